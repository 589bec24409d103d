package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrWong99/meetscribe/internal/app"
)

func newSummarizeCmd(c *cli) *cobra.Command {
	var participants []string
	cmd := &cobra.Command{
		Use:   "summarize [transcript.txt]",
		Short: "Summarize a transcript file, or stdin when no file is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			return c.summarize(cmd.Context(), r, participants)
		},
	}
	cmd.Flags().StringSliceVarP(&participants, "participants", "p", nil, "comma-separated participant names")
	return cmd
}

func (c *cli) summarize(ctx context.Context, r io.Reader, participants []string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read transcript: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return errors.New("transcript is empty")
	}

	providers, err := c.providers()
	if err != nil {
		return err
	}
	s := app.Summarizer(c.cfg.Meeting, providers)
	if s == nil {
		return errors.New("no llm provider configured (providers.llm)")
	}
	sum, err := s.Summarize(ctx, text, participants)
	if err != nil {
		return fmt.Errorf("summarize: %w", err)
	}
	newFormatter(os.Stdout).summary(sum)
	return nil
}
