package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrWong99/meetscribe/internal/app"
	"github.com/MrWong99/meetscribe/internal/observe"
	"github.com/MrWong99/meetscribe/pkg/audio/portaudio"
)

func newServeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and live status server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.serve(cmd.Context())
		},
	}
}

func (c *cli) serve(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := observe.Setup(ctx, observe.TelemetryConfig{Version: version})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			slog.Warn("telemetry shutdown", "err", err)
		}
	}()

	providers, err := c.providers()
	if err != nil {
		return err
	}
	backend, err := portaudio.New()
	if err != nil {
		return fmt.Errorf("open audio: %w", err)
	}
	defer backend.Close()
	providers.Audio = backend

	opts := []app.Option{app.WithLogLevel(c.level), app.WithVersion(version), app.WithMetrics(tel.Metrics)}
	if c.fromFile {
		opts = append(opts, app.WithConfigPath(c.configPath))
	}
	application, err := app.New(ctx, c.cfg, providers, opts...)
	if err != nil {
		return err
	}

	slog.Info("meetscribe ready, press Ctrl+C to shut down",
		"listen_addr", c.cfg.Server.ListenAddr(),
		"stt", c.cfg.Providers.STT.Name,
		"llm", c.cfg.Providers.LLM.Name,
	)
	runErr := application.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("run error", "err", runErr)
	}

	slog.Info("shutdown signal received, stopping")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("goodbye")
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}
