// This file contains the NativeProvider implementation backed by the
// whisper.cpp CGO bindings. libwhisper.a and whisper.h must be available at
// link time via LIBRARY_PATH and C_INCLUDE_PATH.

package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/MrWong99/meetscribe/pkg/audio/wav"
	"github.com/MrWong99/meetscribe/pkg/provider/stt"
)

var (
	_ stt.Provider        = (*NativeProvider)(nil)
	_ stt.FileTranscriber = (*NativeProvider)(nil)
)

// modelSampleRate is the only sample rate whisper.cpp models accept.
const modelSampleRate = 16000

// NativeProvider implements [stt.Provider] and [stt.FileTranscriber] with the
// whisper.cpp Go bindings. The model is loaded once and shared; every
// inference creates its own context, so sessions run independently.
type NativeProvider struct {
	model    whisperlib.Model
	language string

	sampleRate          int
	silenceThresholdMs  int
	maxBufferDurationMs int
}

// NativeOption is a functional option for configuring a NativeProvider.
type NativeOption func(*NativeProvider)

// WithNativeLanguage sets the transcription language. Defaults to "en".
func WithNativeLanguage(lang string) NativeOption {
	return func(p *NativeProvider) { p.language = lang }
}

// WithNativeSampleRate sets the default session sample rate in Hz.
func WithNativeSampleRate(rate int) NativeOption {
	return func(p *NativeProvider) { p.sampleRate = rate }
}

// WithNativeSilenceThresholdMs sets the silence that commits an utterance.
func WithNativeSilenceThresholdMs(ms int) NativeOption {
	return func(p *NativeProvider) { p.silenceThresholdMs = ms }
}

// WithNativeMaxBufferDurationMs sets the longest utterance before a forced
// flush.
func WithNativeMaxBufferDurationMs(ms int) NativeOption {
	return func(p *NativeProvider) { p.maxBufferDurationMs = ms }
}

// NewNative loads the whisper.cpp model at modelPath. Call Close to release it.
func NewNative(modelPath string, opts ...NativeOption) (*NativeProvider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	p := &NativeProvider{
		model:               model,
		language:            defaultLanguage,
		sampleRate:          defaultSampleRate,
		silenceThresholdMs:  defaultSilenceThresholdMs,
		maxBufferDurationMs: defaultMaxBufferDurationMs,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the whisper model.
func (p *NativeProvider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// StartStream opens a new transcription session. Audio that is not 16 kHz
// mono is converted before inference.
func (p *NativeProvider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("whisper: context already cancelled: %w", err)
	}

	lang := cfg.Language
	if lang == "" {
		lang = p.language
	}
	params := segmentParams{
		sampleRate:          cfg.SampleRate,
		channels:            cfg.Channels,
		silenceThresholdMs:  p.silenceThresholdMs,
		maxBufferDurationMs: p.maxBufferDurationMs,
	}
	if params.sampleRate <= 0 {
		params.sampleRate = p.sampleRate
	}
	if params.channels <= 0 {
		params.channels = 1
	}

	infer := func(ctx context.Context, pcm []byte, prompt string) (string, error) {
		samples := pcmToModelInput(pcm, params.sampleRate, params.channels)
		return p.process(ctx, samples, lang, prompt)
	}
	return newSegmentSession(ctx, params, cfg.Keywords, infer), nil
}

// TranscribeFile decodes the WAV file at path and transcribes it in one pass.
func (p *NativeProvider) TranscribeFile(ctx context.Context, path string) (string, error) {
	pcm, format, err := wav.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("whisper: %w", err)
	}
	samples := pcmToModelInput(pcm, format.SampleRate, format.Channels)
	return p.process(ctx, samples, p.language, "")
}

// process runs inference over 16 kHz mono samples with a fresh context and
// returns the joined segment text. Contexts are not safe for concurrent use,
// the model is.
func (p *NativeProvider) process(ctx context.Context, samples []float32, lang, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("whisper: %w", err)
	}
	if len(samples) == 0 {
		return "", nil
	}

	wctx, err := p.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(lang); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", lang, "err", err)
	}
	if prompt != "" {
		wctx.SetInitialPrompt(prompt)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}
