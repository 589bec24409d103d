// Package stt defines the Provider interfaces for Speech-to-Text backends.
//
// A streaming provider wraps a real-time transcription service (Deepgram, a
// local whisper.cpp server, or the in-process whisper.cpp bindings) and exposes
// a uniform session interface: once opened, a session accepts raw PCM audio
// and emits low-latency partials and authoritative finals.
//
// A file transcriber re-transcribes a finished recording in one pass. The
// meeting orchestrator uses it to produce the final transcript after capture
// stops, falling back to the live transcript when it fails.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"
)

// ErrNotSupported is returned by optional operations a provider does not offer.
var ErrNotSupported = errors.New("stt: operation not supported")

// StreamConfig describes the audio format and recognition hints for a new STT
// session.
type StreamConfig struct {
	// SampleRate is the audio sample rate in Hz. 16000 is what every bundled
	// provider expects.
	SampleRate int

	// Channels is the number of audio channels. 1 = mono.
	Channels int

	// Language is the BCP-47 language tag for recognition (e.g., "en-US").
	// An empty string lets the provider auto-detect the language, if supported.
	Language string

	// Keywords is a list of vocabulary hints such as participant names.
	Keywords []KeywordBoost
}

// SessionHandle represents an open STT streaming session.
//
// Callers must call Close when the session is no longer needed. All methods
// must be safe for concurrent use.
type SessionHandle interface {
	// SendAudio delivers a chunk of raw PCM audio bytes matching the
	// StreamConfig. Calling SendAudio after Close returns an error.
	SendAudio(chunk []byte) error

	// Partials emits interim results. The channel is closed when the session ends.
	Partials() <-chan Transcript

	// Finals emits committed results. The channel is closed when the session ends.
	Finals() <-chan Transcript

	// SetKeywords replaces the active keyword list. Providers without
	// mid-session updates return an error wrapping [ErrNotSupported].
	SetKeywords(keywords []KeywordBoost) error

	// Close flushes pending audio and releases all resources. After Close
	// returns, Partials and Finals are closed. Calling Close twice is safe.
	Close() error
}

// Provider is the abstraction over any streaming STT backend.
type Provider interface {
	// StartStream opens a new streaming transcription session. The caller owns
	// the returned SessionHandle and must Close it.
	StartStream(ctx context.Context, cfg StreamConfig) (SessionHandle, error)
}

// FileTranscriber transcribes a complete WAV recording.
type FileTranscriber interface {
	// TranscribeFile returns the full transcript of the 16-bit PCM WAV file at
	// path.
	TranscribeFile(ctx context.Context, path string) (string, error)
}
