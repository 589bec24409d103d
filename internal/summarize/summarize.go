// Package summarize turns a finished meeting transcript into a
// [types.Summary] with a prose overview, key points, and action items.
//
// [LLMSummarizer] issues three independent completions concurrently, one per
// section. Only the overview is required: if it fails, Summarize returns an
// error and the caller omits the summary. Failed key-point or action-item
// extraction yields an empty list and a log line.
//
// All exported types are safe for concurrent use.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/meetscribe/pkg/provider/llm"
	"github.com/MrWong99/meetscribe/pkg/types"
)

// ErrEmptyTranscript is returned when there is nothing to summarize.
var ErrEmptyTranscript = errors.New("summarize: transcript is empty")

// Summarizer produces a [types.Summary] for a meeting transcript.
type Summarizer interface {
	// Summarize condenses text. participants, when non-empty, is included as
	// context so the model can attribute action items.
	Summarize(ctx context.Context, text string, participants []string) (*types.Summary, error)
}

const (
	summaryPrompt = `You are an expert meeting summarizer. Write a brief overview (2-3 sentences)
of the meeting's main purpose and outcome. Paraphrase; do not copy sentences
verbatim. Use clear, professional language.`

	keyPointsPrompt = `Extract the key points and main topics discussed in the meeting transcript.
List each key point as a separate bullet point starting with "- ".`

	actionItemsPrompt = `Extract all action items from the meeting transcript. List each action item
as a separate bullet point starting with "- ". Include who is responsible if
mentioned.`

	// minItemLen is the shortest bullet kept; shorter lines are fragments.
	minItemLen = 6

	// copyRatio flags an overview as copied when it is at least this long
	// relative to the transcript.
	copyRatio = 0.9

	// promptOverheadTokens reserves room for the system prompt and framing.
	promptOverheadTokens = 256
)

// Option configures an [LLMSummarizer].
type Option func(*LLMSummarizer)

// WithTemperature overrides the sampling temperature (default 0.3).
func WithTemperature(t float64) Option {
	return func(s *LLMSummarizer) { s.temperature = t }
}

// WithMaxTokens sets the completion budget for the overview. Bullet lists use
// half of it. Defaults to 800.
func WithMaxTokens(n int) Option {
	return func(s *LLMSummarizer) { s.maxTokens = n }
}

// LLMSummarizer summarizes with an [llm.Provider].
type LLMSummarizer struct {
	llm         llm.Provider
	temperature float64
	maxTokens   int
}

var _ Summarizer = (*LLMSummarizer)(nil)

// NewLLMSummarizer creates an [LLMSummarizer] backed by provider.
func NewLLMSummarizer(provider llm.Provider, opts ...Option) *LLMSummarizer {
	s := &LLMSummarizer{llm: provider, temperature: 0.3, maxTokens: 800}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Summarize implements [Summarizer].
func (s *LLMSummarizer) Summarize(ctx context.Context, text string, participants []string) (*types.Summary, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyTranscript
	}
	input := s.fitTranscript(text, participants)

	var (
		out       types.Summary
		keyPoints []string
		actions   []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		overview, err := s.complete(gctx, summaryPrompt, input, s.maxTokens)
		if err != nil {
			return fmt.Errorf("summarize: overview: %w", err)
		}
		out.Summary = overview
		return nil
	})
	g.Go(func() error {
		resp, err := s.complete(gctx, keyPointsPrompt, input, s.maxTokens/2)
		if err != nil {
			slog.Warn("summarize: key point extraction failed", "err", err)
			return nil
		}
		keyPoints = ParseBullets(resp, types.MaxKeyPoints)
		return nil
	})
	g.Go(func() error {
		resp, err := s.complete(gctx, actionItemsPrompt, input, s.maxTokens/2)
		if err != nil {
			slog.Warn("summarize: action item extraction failed", "err", err)
			return nil
		}
		actions = ParseBullets(resp, types.MaxActionItems)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if out.Summary == "" || float64(len(out.Summary)) >= float64(len(text))*copyRatio {
		slog.Debug("summarize: overview empty or copied, using extractive summary",
			"summary_len", len(out.Summary), "transcript_len", len(text))
		out.Summary = Extractive(text)
	}
	out.KeyPoints = nonNil(keyPoints)
	out.ActionItems = nonNil(actions)
	return &out, nil
}

func (s *LLMSummarizer) complete(ctx context.Context, system, input string, maxTokens int) (string, error) {
	resp, err := s.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: system,
		Messages:     []llm.Message{{Role: "user", Content: input}},
		Temperature:  s.temperature,
		MaxTokens:    maxTokens,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

// fitTranscript frames the transcript as the user message and, when it would
// overflow the model's context window, elides the middle of the transcript.
func (s *LLMSummarizer) fitTranscript(text string, participants []string) string {
	frame := func(t string) string {
		var b strings.Builder
		if len(participants) > 0 {
			fmt.Fprintf(&b, "Participants: %s\n\n", strings.Join(participants, ", "))
		}
		b.WriteString("Meeting transcript:\n")
		b.WriteString(t)
		return b.String()
	}

	caps := s.llm.Capabilities()
	if caps.ContextWindow <= 0 {
		return frame(text)
	}
	budget := caps.ContextWindow - s.maxTokens - promptOverheadTokens
	if budget <= 0 {
		return frame(text)
	}

	input := frame(text)
	tokens, err := s.llm.CountTokens([]llm.Message{{Role: "user", Content: input}})
	if err != nil || tokens <= budget {
		return input
	}

	// Shrink proportionally; the char/token ratio of this text is known.
	keep := int(float64(len(text)) * float64(budget) / float64(tokens))
	slog.Info("summarize: transcript exceeds context window, eliding middle",
		"tokens", tokens, "budget", budget, "kept_chars", keep)
	return frame(elideMiddle(text, keep))
}

// elideMiddle keeps roughly the first and last keep/2 bytes of text, cut at
// rune boundaries.
func elideMiddle(text string, keep int) string {
	if keep >= len(text) || keep <= 0 {
		return text
	}
	head, tail := keep/2, len(text)-keep/2
	for head > 0 && !utf8.RuneStart(text[head]) {
		head--
	}
	for tail < len(text) && !utf8.RuneStart(text[tail]) {
		tail++
	}
	return text[:head] + "\n[...]\n" + text[tail:]
}

var bulletPrefix = regexp.MustCompile(`^(?:[-•*]|\d+[.)])\s*`)

// ParseBullets extracts list items from model output. Lines starting with
// "-", "•", "*" or a number ("1." / "1)") are items; anything else is
// ignored. Markdown bold markers are stripped, items of five characters or
// fewer are dropped, and at most limit items are returned.
func ParseBullets(text string, limit int) []string {
	var items []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "**") { // markdown heading such as **Key Points:**
			continue
		}
		loc := bulletPrefix.FindStringIndex(line)
		if loc == nil {
			continue
		}
		item := strings.TrimSpace(strings.ReplaceAll(line[loc[1]:], "**", ""))
		if utf8.RuneCountInString(item) < minItemLen {
			continue
		}
		items = append(items, item)
		if limit > 0 && len(items) == limit {
			break
		}
	}
	return items
}

// Extractive builds a fallback summary from the first, middle, and last
// sentences of text.
func Extractive(text string) string {
	var sentences []string
	for _, s := range strings.Split(text, ".") {
		if s = strings.TrimSpace(s); s != "" {
			sentences = append(sentences, s)
		}
	}
	if len(sentences) == 0 {
		return ""
	}
	if len(sentences) > 3 {
		sentences = []string{sentences[0], sentences[len(sentences)/2], sentences[len(sentences)-1]}
	}
	return strings.Join(sentences, ". ") + "."
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
