package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrWong99/meetscribe/internal/app"
	"github.com/MrWong99/meetscribe/internal/broadcast"
	"github.com/MrWong99/meetscribe/internal/meeting"
	"github.com/MrWong99/meetscribe/pkg/audio/portaudio"
)

func newRecordCmd(c *cli) *cobra.Command {
	var (
		title        string
		participants []string
		device       string
	)
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a meeting in the foreground until Ctrl+C",
		Long:  "Record a meeting from the selected input device, showing live progress. On Ctrl+C the recording is transcribed, summarized and saved.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if device != "" {
				c.cfg.Audio.Device = device
			}
			return c.record(cmd.Context(), title, participants)
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "meeting title (default: timestamped)")
	cmd.Flags().StringSliceVarP(&participants, "participants", "p", nil, "comma-separated participant names")
	cmd.Flags().StringVarP(&device, "device", "d", "", "input device index or name")
	return cmd
}

func (c *cli) record(parent context.Context, title string, participants []string) error {
	out := newFormatter(os.Stdout)

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

	application, err := app.New(parent, c.cfg, providers, app.WithLogLevel(c.level), app.WithVersion(version))
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = application.Shutdown(ctx)
	}()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	orch := application.Orchestrator()
	res, err := orch.Start(ctx, title, participants)
	if err != nil {
		return err
	}
	out.recordingStarted(res)

	// Live progress arrives through the same status loop the server runs.
	obs := broadcast.NewChanObserver(4)
	application.Registry().Register(obs)
	loopCtx, stopLoop := context.WithCancel(ctx)
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		_ = application.Loop().Run(loopCtx)
	}()

	c.followStatus(ctx, obs, out)
	stopLoop()
	<-loopDone
	application.Registry().Unregister(obs)

	out.finalizing()
	result, err := orch.Stop(context.Background())
	var conflict *meeting.StateConflictError
	if errors.As(err, &conflict) {
		return fmt.Errorf("the meeting ended early (%s); check the logs and the meeting store", orch.Status().CaptureError)
	}
	if err != nil {
		return err
	}
	out.meetingResult(result)
	return nil
}

// followStatus prints status updates until ctx ends or the meeting stops on
// its own (e.g. after a capture failure).
func (c *cli) followStatus(ctx context.Context, obs *broadcast.ChanObserver, out *formatter) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-obs.Done():
			return
		case payload := <-obs.C():
			var msg struct {
				Type string         `json:"type"`
				Data meeting.Status `json:"data"`
			}
			if err := json.Unmarshal(payload, &msg); err != nil {
				slog.Debug("undecodable status", "err", err)
				continue
			}
			if msg.Type != broadcast.TypeUpdate {
				continue
			}
			if !msg.Data.Active {
				return
			}
			out.liveStatus(msg.Data)
		}
	}
}
