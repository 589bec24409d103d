// Package whisper provides whisper.cpp-backed STT providers.
//
// [Provider] talks to a running whisper-server binary (POST /inference).
// [NativeProvider] links whisper.cpp in-process through its Go bindings. Both
// simulate streaming by buffering incoming PCM, cutting utterances at pauses
// with an energy-based silence detector, and running batch inference on each
// utterance. Both also implement [stt.FileTranscriber] so a finished meeting
// recording can be re-transcribed in one pass.
//
// Usage:
//
//	p, err := whisper.New("http://localhost:8080",
//	    whisper.WithLanguage("en"),
//	    whisper.WithSilenceThresholdMs(500),
//	)
//	handle, err := p.StartStream(ctx, cfg)
//	handle.SendAudio(pcmChunk)
//	transcript := <-handle.Finals()
//	handle.Close()
//
//	text, err := p.TranscribeFile(ctx, "recordings/meeting.wav")
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/MrWong99/meetscribe/pkg/audio"
	"github.com/MrWong99/meetscribe/pkg/audio/wav"
	"github.com/MrWong99/meetscribe/pkg/provider/stt"
)

var (
	_ stt.Provider        = (*Provider)(nil)
	_ stt.FileTranscriber = (*Provider)(nil)
)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the model identifier forwarded to the whisper.cpp server
// (e.g., "base.en", "small"). Empty uses the model the server was started with.
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the language code sent to the server. Defaults to "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithSampleRate sets the default sample rate in Hz for sessions whose
// StreamConfig leaves it zero. Defaults to 16000.
func WithSampleRate(rate int) Option {
	return func(p *Provider) {
		p.sampleRate = rate
	}
}

// WithSilenceThresholdMs sets the consecutive silence that commits an
// utterance. Defaults to 500 ms.
func WithSilenceThresholdMs(ms int) Option {
	return func(p *Provider) {
		p.silenceThresholdMs = ms
	}
}

// WithMaxBufferDurationMs sets the longest utterance before a flush is forced
// regardless of silence. Defaults to 10 s.
func WithMaxBufferDurationMs(ms int) Option {
	return func(p *Provider) {
		p.maxBufferDurationMs = ms
	}
}

// WithHTTPClient replaces the HTTP client. The default has a 30 s timeout,
// which is too short for re-transcribing long recordings.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements [stt.Provider] and [stt.FileTranscriber] against a
// whisper.cpp HTTP server. Each streaming session owns its buffer and
// goroutine.
type Provider struct {
	serverURL           string
	model               string
	language            string
	sampleRate          int
	silenceThresholdMs  int
	maxBufferDurationMs int
	httpClient          *http.Client
}

// New creates a Provider for the whisper.cpp server at serverURL
// (e.g., "http://localhost:8080").
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:           serverURL,
		language:            defaultLanguage,
		sampleRate:          defaultSampleRate,
		silenceThresholdMs:  defaultSilenceThresholdMs,
		maxBufferDurationMs: defaultMaxBufferDurationMs,
		httpClient:          &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// StartStream opens a new transcription session. No connection is made until
// the first utterance is committed. Zero values in cfg fall back to the
// provider defaults.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
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
	format := audio.Format{SampleRate: params.sampleRate, Channels: params.channels}

	infer := func(ctx context.Context, pcm []byte, prompt string) (string, error) {
		var buf bytes.Buffer
		if err := wav.Write(&buf, pcm, format); err != nil {
			return "", fmt.Errorf("whisper: encode utterance: %w", err)
		}
		return p.inference(ctx, "utterance.wav", &buf, lang, prompt)
	}
	return newSegmentSession(ctx, params, cfg.Keywords, infer), nil
}

// TranscribeFile uploads the WAV file at path to the server and returns the
// transcript.
func (p *Provider) TranscribeFile(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("whisper: open %q: %w", path, err)
	}
	defer f.Close()
	return p.inference(ctx, filepath.Base(path), f, p.language, "")
}

// inference POSTs a WAV body to /inference as multipart/form-data and returns
// the transcribed text.
func (p *Provider) inference(ctx context.Context, filename string, wavBody io.Reader, lang, prompt string) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := io.Copy(fw, wavBody); err != nil {
		return "", fmt.Errorf("whisper: write wav data: %w", err)
	}
	fields := map[string]string{
		"language":        lang,
		"model":           p.model,
		"prompt":          prompt,
		"response_format": "json",
	}
	for name, value := range fields {
		if value == "" {
			continue
		}
		if err := mw.WriteField(name, value); err != nil {
			return "", fmt.Errorf("whisper: write %s field: %w", name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+"/inference", &body)
	if err != nil {
		return "", fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("whisper: server returned HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("whisper: parse JSON response: %w", err)
	}
	return result.Text, nil
}
