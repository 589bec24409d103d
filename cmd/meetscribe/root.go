package main

import (
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrWong99/meetscribe/internal/app"
	"github.com/MrWong99/meetscribe/internal/config"
)

// cli holds state shared by every subcommand. It is filled by the root
// command's PersistentPreRunE.
type cli struct {
	configPath string
	verbose    bool

	// fromFile is true when cfg was read from configPath rather than built
	// from defaults and the environment.
	fromFile bool
	cfg      *config.Config
	level    *slog.LevelVar
}

func newRootCmd() *cobra.Command {
	c := &cli{level: new(slog.LevelVar)}

	root := &cobra.Command{
		Use:           "meetscribe",
		Short:         "Record, transcribe and summarize meetings",
		Long:          "meetscribe captures meeting audio from a local input device, transcribes it live and after the fact, summarizes it with an LLM and archives the result.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.load()
		},
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "config.yaml", "path to the YAML configuration file")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "log at debug level regardless of the config")

	root.AddCommand(
		newServeCmd(c),
		newDevicesCmd(c),
		newRecordCmd(c),
		newTranscribeCmd(c),
		newSummarizeCmd(c),
	)

	return root
}

// load reads the config file, falling back to defaults plus environment when
// it does not exist, and installs the process logger.
func (c *cli) load() error {
	cfg, err := config.Load(c.configPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		cfg, err = config.Default()
		if err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		c.fromFile = true
	}
	c.cfg = cfg

	c.level.Set(app.ParseLevel(cfg.Server.LogLevel))
	if c.verbose {
		c.level.Set(slog.LevelDebug)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: c.level})))
	if !c.fromFile {
		slog.Info("config file not found, using defaults and environment", "path", c.configPath)
	}
	return nil
}
