package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt":        {"deepgram", "whisper", "whisper-native"},
	"llm":        {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"embeddings": {"openai", "ollama"},
}

// Defaults applied by [ApplyDefaults].
const (
	DefaultHost                  = "0.0.0.0"
	DefaultPort                  = 8080
	DefaultSampleRate            = 16000
	DefaultChannels              = 1
	DefaultFramesPerBuffer       = 1024
	DefaultOverflowWarnThreshold = 10
	DefaultJoinTimeout           = 2 * time.Second
	DefaultQueueDepth            = 64
	DefaultDispatchGrace         = 2 * time.Second
	DefaultMaxRetries            = 3
	DefaultRetryBaseDelay        = 200 * time.Millisecond
	DefaultRetryMaxDelay         = 2 * time.Second
	DefaultActiveInterval        = time.Second
	DefaultIdleInterval          = 5 * time.Second
	DefaultSendTimeout           = 2 * time.Second
	DefaultRedisChannel          = "meetscribe:status"
)

// envOverrides lists the environment variables read by [ApplyEnv]. Unset
// variables leave the file value untouched.
type envOverrides struct {
	Host          string `env:"MEETING_ASSISTANT_HOST"`
	Port          int    `env:"MEETING_ASSISTANT_PORT"`
	LogLevel      string `env:"MEETING_ASSISTANT_LOG_LEVEL"`
	AudioDevice   string `env:"MEETING_ASSISTANT_AUDIO_DEVICE"`
	PostgresDSN   string `env:"MEETING_ASSISTANT_POSTGRES_DSN"`
	RedisAddr     string `env:"MEETING_ASSISTANT_REDIS_ADDR"`
	RedisPassword string `env:"MEETING_ASSISTANT_REDIS_PASSWORD"`
	STTAPIKey     string `env:"MEETING_ASSISTANT_STT_API_KEY"`
	LLMAPIKey     string `env:"MEETING_ASSISTANT_LLM_API_KEY"`
	EmbedAPIKey   string `env:"MEETING_ASSISTANT_EMBEDDINGS_API_KEY"`
}

// Default returns a configuration with every default applied and
// environment overrides read. Used when no config file exists.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies environment
// overrides and defaults, and validates the result. Unknown keys are errors.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with the MEETING_ASSISTANT_* environment variables.
func ApplyEnv(cfg *Config) error {
	var env envOverrides
	if err := cleanenv.ReadEnv(&env); err != nil {
		return fmt.Errorf("config: read environment: %w", err)
	}
	setIf(&cfg.Server.Host, env.Host)
	if env.Port != 0 {
		cfg.Server.Port = env.Port
	}
	if env.LogLevel != "" {
		cfg.Server.LogLevel = LogLevel(env.LogLevel)
	}
	setIf(&cfg.Audio.Device, env.AudioDevice)
	setIf(&cfg.Storage.PostgresDSN, env.PostgresDSN)
	setIf(&cfg.Broadcast.Redis.Addr, env.RedisAddr)
	setIf(&cfg.Broadcast.Redis.Password, env.RedisPassword)
	setIf(&cfg.Providers.STT.APIKey, env.STTAPIKey)
	setIf(&cfg.Providers.LLM.APIKey, env.LLMAPIKey)
	setIf(&cfg.Providers.Embeddings.APIKey, env.EmbedAPIKey)
	return nil
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// ApplyDefaults fills zero-valued fields with their defaults.
func ApplyDefaults(cfg *Config) {
	def := func(v *int, d int) {
		if *v <= 0 {
			*v = d
		}
	}
	defDur := func(v *time.Duration, d time.Duration) {
		if *v <= 0 {
			*v = d
		}
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = DefaultHost
	}
	def(&cfg.Server.Port, DefaultPort)
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}

	def(&cfg.Audio.SampleRate, DefaultSampleRate)
	def(&cfg.Audio.Channels, DefaultChannels)
	def(&cfg.Audio.FramesPerBuffer, DefaultFramesPerBuffer)
	def(&cfg.Audio.OverflowWarnThreshold, DefaultOverflowWarnThreshold)
	defDur(&cfg.Audio.JoinTimeout, DefaultJoinTimeout)

	if cfg.Meeting.RecordingsDir == "" {
		cfg.Meeting.RecordingsDir = filepath.Join("data", "recordings")
	}
	def(&cfg.Meeting.QueueDepth, DefaultQueueDepth)
	defDur(&cfg.Meeting.DispatchGrace, DefaultDispatchGrace)

	if cfg.Storage.FallbackDir == "" {
		cfg.Storage.FallbackDir = filepath.Join("data", "meetings")
	}
	def(&cfg.Storage.MaxRetries, DefaultMaxRetries)
	defDur(&cfg.Storage.RetryBaseDelay, DefaultRetryBaseDelay)
	defDur(&cfg.Storage.RetryMaxDelay, DefaultRetryMaxDelay)

	defDur(&cfg.Broadcast.ActiveInterval, DefaultActiveInterval)
	defDur(&cfg.Broadcast.IdleInterval, DefaultIdleInterval)
	defDur(&cfg.Broadcast.SendTimeout, DefaultSendTimeout)
	if cfg.Broadcast.Redis.Channel == "" {
		cfg.Broadcast.Redis.Channel = DefaultRedisChannel
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d is out of range", cfg.Server.Port))
	}
	if (cfg.Server.TLS.CertFile == "") != (cfg.Server.TLS.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("embeddings", cfg.Providers.Embeddings.Name)
	if cfg.Providers.Embeddings.Name != "" && cfg.Storage.PostgresDSN == "" {
		slog.Warn("providers.embeddings is set but storage.postgres_dsn is not; semantic search stays disabled")
	}
	seen := map[string]bool{cfg.Providers.STT.Name: true}
	for i, fb := range cfg.Providers.STTFallbacks {
		prefix := fmt.Sprintf("providers.stt_fallbacks[%d]", i)
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		if cfg.Providers.STT.Name == "" {
			errs = append(errs, fmt.Errorf("%s requires providers.stt to be configured", prefix))
		}
		if seen[fb.Name] {
			errs = append(errs, fmt.Errorf("%s.name %q is a duplicate", prefix, fb.Name))
		}
		seen[fb.Name] = true
		validateProviderName("stt", fb.Name)
	}
	if cfg.Providers.STT.Name == "" {
		slog.Warn("no stt provider configured; meetings will be recorded without a transcript")
	}
	if cfg.Providers.LLM.Name == "" {
		slog.Warn("no llm provider configured; meetings will be stored without a summary")
	}

	if cfg.Audio.Channels > 2 {
		errs = append(errs, fmt.Errorf("audio.channels %d is out of range [1, 2]", cfg.Audio.Channels))
	}
	if cfg.Audio.SampleRate < 0 || cfg.Audio.FramesPerBuffer < 0 {
		errs = append(errs, errors.New("audio.sample_rate and audio.frames_per_buffer must not be negative"))
	}
	if cfg.Meeting.QueueDepth < 0 {
		errs = append(errs, fmt.Errorf("meeting.queue_depth %d must not be negative", cfg.Meeting.QueueDepth))
	}
	if t := cfg.Meeting.SummaryTemperature; t < 0 || t > 2 {
		errs = append(errs, fmt.Errorf("meeting.summary_temperature %.2f is out of range [0, 2]", t))
	}
	if cfg.Storage.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("storage.max_retries %d must not be negative", cfg.Storage.MaxRetries))
	}
	if b := cfg.Broadcast; b.ActiveInterval > 0 && b.IdleInterval > 0 && b.ActiveInterval > b.IdleInterval {
		slog.Warn("broadcast.active_interval is longer than idle_interval",
			"active_interval", b.ActiveInterval, "idle_interval", b.IdleInterval)
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok || slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
