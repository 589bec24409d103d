package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrWong99/meetscribe/internal/app"
)

func newTranscribeCmd(c *cli) *cobra.Command {
	var summarize bool
	cmd := &cobra.Command{
		Use:   "transcribe <audio.wav>",
		Short: "Transcribe a recorded audio file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.transcribe(cmd.Context(), args[0], summarize)
		},
	}
	cmd.Flags().BoolVarP(&summarize, "summarize", "s", false, "summarize the transcript as well")
	return cmd
}

func (c *cli) transcribe(ctx context.Context, path string, withSummary bool) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	providers, err := c.providers()
	if err != nil {
		return err
	}
	speech := app.Speech(providers)
	if speech == nil {
		return errors.New("no stt provider configured (providers.stt)")
	}

	text, err := speech.TranscribeFile(ctx, path)
	if err != nil {
		return fmt.Errorf("transcribe %s: %w", path, err)
	}
	out := newFormatter(os.Stdout)
	out.transcript(text)

	if !withSummary {
		return nil
	}
	s := app.Summarizer(c.cfg.Meeting, providers)
	if s == nil {
		return errors.New("no llm provider configured (providers.llm)")
	}
	sum, err := s.Summarize(ctx, text, nil)
	if err != nil {
		return fmt.Errorf("summarize: %w", err)
	}
	out.summary(sum)
	return nil
}
