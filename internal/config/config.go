// Package config provides the configuration schema, loader, watcher, and
// provider registry for the meetscribe server and CLI.
package config

import (
	"net"
	"strconv"
	"time"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Audio     AudioConfig     `yaml:"audio"`
	Meeting   MeetingConfig   `yaml:"meeting"`
	Storage   StorageConfig   `yaml:"storage"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
}

// ServerConfig holds network and logging settings for the HTTP server.
type ServerConfig struct {
	// Host is the interface to bind. Default "0.0.0.0".
	Host string `yaml:"host"`

	// Port is the TCP port. Default 8080.
	Port int `yaml:"port"`

	// LogLevel controls verbosity. Hot-reloadable.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS enables HTTPS when both files are set.
	TLS TLSConfig `yaml:"tls"`

	// AllowedOrigins lists host patterns accepted for WebSocket upgrades from
	// other origins. Same-origin requests are always accepted.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// ListenAddr returns Host:Port.
func (s ServerConfig) ListenAddr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// Enabled reports whether both certificate and key are configured.
func (t TLSConfig) Enabled() bool { return t.CertFile != "" && t.KeyFile != "" }

// ProvidersConfig declares which provider implementation to use for each
// stage. Each entry selects a named provider registered in the [Registry].
type ProvidersConfig struct {
	// STT is the primary speech-to-text provider.
	STT ProviderEntry `yaml:"stt"`

	// STTFallbacks are tried in order when the primary fails.
	STTFallbacks []ProviderEntry `yaml:"stt_fallbacks"`

	// LLM is used for summarization. Optional: without it meetings are stored
	// without a summary.
	LLM ProviderEntry `yaml:"llm"`

	// Embeddings enables semantic search over the PostgreSQL archive.
	// Optional.
	Embeddings ProviderEntry `yaml:"embeddings"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "deepgram", "openai").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "nova-2", "gpt-4o-mini").
	Model string `yaml:"model"`

	// Options holds provider-specific values not covered by the fields above.
	Options map[string]any `yaml:"options"`
}

// OptString returns Options[key] if it is a string, else "".
func (e ProviderEntry) OptString(key string) string {
	s, _ := e.Options[key].(string)
	return s
}

// AudioConfig configures microphone capture.
type AudioConfig struct {
	// Device is an input device index or exact name. Empty selects the
	// backend default. Hot-reloadable; applies to the next meeting.
	Device string `yaml:"device"`

	SampleRate      int `yaml:"sample_rate"`
	Channels        int `yaml:"channels"`
	FramesPerBuffer int `yaml:"frames_per_buffer"`

	// OverflowWarnThreshold logs a degraded-quality warning each time the
	// overflow count reaches a multiple of it.
	OverflowWarnThreshold int `yaml:"overflow_warn_threshold"`

	// JoinTimeout bounds how long stopping capture waits for the read loop.
	JoinTimeout time.Duration `yaml:"join_timeout"`
}

// MeetingConfig configures the recording pipeline.
type MeetingConfig struct {
	// RecordingsDir is where WAV files are written.
	RecordingsDir string `yaml:"recordings_dir"`

	// QueueDepth bounds the frames waiting for live transcription.
	QueueDepth int `yaml:"queue_depth"`

	// DispatchGrace bounds how long stop waits for in-flight transcription.
	DispatchGrace time.Duration `yaml:"dispatch_grace"`

	// Language is passed to the STT provider. Empty lets it auto-detect.
	Language string `yaml:"language"`

	// SummaryTemperature and SummaryMaxTokens tune the summarizer.
	SummaryTemperature float64 `yaml:"summary_temperature"`
	SummaryMaxTokens   int     `yaml:"summary_max_tokens"`

	// SkipNameCorrection disables the phonetic repair of participant names
	// in final transcripts.
	SkipNameCorrection bool `yaml:"skip_name_correction"`
}

// StorageConfig configures meeting persistence.
type StorageConfig struct {
	// PostgresDSN enables the PostgreSQL store. Empty means files only.
	PostgresDSN string `yaml:"postgres_dsn"`

	// FallbackDir holds JSON records when the primary store is unavailable,
	// or all records when no DSN is configured.
	FallbackDir string `yaml:"fallback_dir"`

	// MaxRetries is the number of attempts against the primary store.
	MaxRetries int `yaml:"max_retries"`

	// RetryBaseDelay and RetryMaxDelay bound the exponential backoff.
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
	RetryMaxDelay  time.Duration `yaml:"retry_max_delay"`
}

// BroadcastConfig configures the live-status fan-out.
type BroadcastConfig struct {
	// ActiveInterval and IdleInterval are the update periods while a meeting
	// is active and otherwise. Hot-reloadable.
	ActiveInterval time.Duration `yaml:"active_interval"`
	IdleInterval   time.Duration `yaml:"idle_interval"`

	// SendTimeout bounds one delivery to one observer.
	SendTimeout time.Duration `yaml:"send_timeout"`

	// Redis publishes every envelope to a pub/sub channel when Addr is set.
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig configures the Redis status publisher.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}
