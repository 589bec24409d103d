package resilience

import (
	"context"
	"fmt"

	"github.com/MrWong99/meetscribe/pkg/provider/stt"
)

// STTFallback is an [stt.Provider] and [stt.FileTranscriber] that fails over
// between speech backends. Backends that cannot transcribe files are passed
// over by TranscribeFile without tripping their breaker.
type STTFallback struct {
	group *FallbackGroup[stt.Provider]
}

var (
	_ stt.Provider        = (*STTFallback)(nil)
	_ stt.FileTranscriber = (*STTFallback)(nil)
)

// NewSTTFallback returns an [STTFallback] preferring primary.
func NewSTTFallback(primary stt.Provider, primaryName string, cfg FallbackConfig) *STTFallback {
	return &STTFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers a backend tried after the ones already added.
func (f *STTFallback) AddFallback(name string, provider stt.Provider) {
	f.group.AddFallback(name, provider)
}

// Names returns the backend names in failover order.
func (f *STTFallback) Names() []string { return f.group.Names() }

// StartStream opens a live session on the first healthy backend. Failover
// covers opening only; a session that fails later is the caller's concern.
func (f *STTFallback) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	h, err := ExecuteWithResult(f.group, func(p stt.Provider) (stt.SessionHandle, error) {
		return p.StartStream(ctx, cfg)
	})
	if err != nil {
		return nil, fmt.Errorf("stt fallback: start stream: %w", err)
	}
	return h, nil
}

// TranscribeFile transcribes path with the first healthy backend that
// implements [stt.FileTranscriber]. When none does, the error wraps
// [stt.ErrNotSupported].
func (f *STTFallback) TranscribeFile(ctx context.Context, path string) (string, error) {
	supported := false
	for _, e := range f.group.entries {
		if _, ok := e.value.(stt.FileTranscriber); ok {
			supported = true
			break
		}
	}
	if !supported {
		return "", fmt.Errorf("stt fallback: transcribe file: %w", stt.ErrNotSupported)
	}
	text, err := ExecuteWithResult(f.group, func(p stt.Provider) (string, error) {
		ft, ok := p.(stt.FileTranscriber)
		if !ok {
			return "", ErrSkip
		}
		return ft.TranscribeFile(ctx, path)
	})
	if err != nil {
		return "", fmt.Errorf("stt fallback: transcribe file: %w", err)
	}
	return text, nil
}
