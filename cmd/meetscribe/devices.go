package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrWong99/meetscribe/pkg/audio"
	"github.com/MrWong99/meetscribe/pkg/audio/portaudio"
)

func newDevicesCmd(_ *cli) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List audio input devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			backend, err := portaudio.New()
			if err != nil {
				return fmt.Errorf("open audio: %w", err)
			}
			defer backend.Close()

			devices, err := audio.InputDevices(backend)
			if err != nil {
				return err
			}
			def, defErr := backend.DefaultInputDevice()
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(devices)
			}
			newFormatter(os.Stdout).devices(devices, def, defErr == nil)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print devices as JSON")
	return cmd
}
