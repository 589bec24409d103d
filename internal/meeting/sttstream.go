package meeting

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/MrWong99/meetscribe/pkg/audio"
	"github.com/MrWong99/meetscribe/pkg/provider/stt"
)

// StreamOpener opens the live transcriber for a new meeting. participants
// are passed on as recognition hints.
type StreamOpener func(ctx context.Context, participants []string) (StreamTranscriber, error)

// STTStream adapts an [stt.SessionHandle] to [StreamTranscriber]. Each call
// sends the frame's audio and returns the final results that have arrived
// since the previous call. Interim results are discarded.
type STTStream struct {
	mu       sync.Mutex
	handle   stt.SessionHandle
	finals   <-chan stt.Transcript
	partials <-chan stt.Transcript
	closed   bool
}

var _ StreamTranscriber = (*STTStream)(nil)

// NewSTTStream opens a streaming session on p.
func NewSTTStream(ctx context.Context, p stt.Provider, cfg stt.StreamConfig) (*STTStream, error) {
	h, err := p.StartStream(ctx, cfg)
	if err != nil {
		return nil, &EngineError{Stage: StageStream, Err: err}
	}
	return &STTStream{handle: h, finals: h.Finals(), partials: h.Partials()}, nil
}

// STTStreamOpener returns a [StreamOpener] that opens an [STTStream] on p,
// boosting participant names.
func STTStreamOpener(p stt.Provider, base stt.StreamConfig) StreamOpener {
	return func(ctx context.Context, participants []string) (StreamTranscriber, error) {
		cfg := base
		cfg.Keywords = append([]stt.KeywordBoost(nil), base.Keywords...)
		for _, name := range participants {
			if name = strings.TrimSpace(name); name != "" {
				cfg.Keywords = append(cfg.Keywords, stt.KeywordBoost{Keyword: name, Boost: 2})
			}
		}
		// The stream lives as long as the meeting, not the start request.
		return NewSTTStream(context.WithoutCancel(ctx), p, cfg)
	}
}

// TranscribeStream implements [StreamTranscriber].
func (s *STTStream) TranscribeStream(ctx context.Context, frame audio.Frame) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", fmt.Errorf("meeting: stt stream closed")
	}
	if err := s.handle.SendAudio(frame.Data); err != nil {
		return "", &EngineError{Stage: StageStream, Err: err}
	}
	return s.collectLocked(), nil
}

// collectLocked drains whatever results are ready without waiting.
func (s *STTStream) collectLocked() string {
	var parts []string
	for {
		select {
		case t, ok := <-s.finals:
			if !ok {
				s.finals = nil
				continue
			}
			if text := strings.TrimSpace(t.Text); text != "" {
				parts = append(parts, text)
			}
		case _, ok := <-s.partials:
			if !ok {
				s.partials = nil
			}
		default:
			return strings.Join(parts, " ")
		}
	}
}

// Close ends the provider session. It is safe to call more than once.
func (s *STTStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.handle.Close(); err != nil {
		return fmt.Errorf("meeting: close stt stream: %w", err)
	}
	return nil
}
