// Command meetscribe records meetings, transcribes them and summarizes the
// result, either as an HTTP service or straight from the terminal.
package main

import (
	"fmt"
	"os"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "meetscribe: %v\n", err)
		os.Exit(1)
	}
}
