package config_test

import (
	"slices"
	"testing"
	"time"

	"github.com/MrWong99/meetscribe/internal/config"
)

func baseConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Providers.STT = config.ProviderEntry{Name: "deepgram", Options: map[string]any{"language": "en"}}
	config.ApplyDefaults(cfg)
	return cfg
}

func TestDiff_NoChanges(t *testing.T) {
	d := config.Diff(baseConfig(), baseConfig())
	if !d.Empty() {
		t.Errorf("Diff of identical configs = %+v", d)
	}
}

func TestDiff_HotReloadableFields(t *testing.T) {
	old, updated := baseConfig(), baseConfig()
	updated.Server.LogLevel = config.LogDebug
	updated.Broadcast.IdleInterval = 30 * time.Second
	updated.Audio.Device = "USB Mic"

	d := config.Diff(old, updated)
	if !d.LogLevelChanged || d.NewLogLevel != config.LogDebug {
		t.Errorf("log level: %+v", d)
	}
	if !d.IntervalsChanged || d.NewIdleInterval != 30*time.Second || d.NewActiveInterval != time.Second {
		t.Errorf("intervals: %+v", d)
	}
	if !d.AudioDeviceChanged || d.NewAudioDevice != "USB Mic" {
		t.Errorf("audio device: %+v", d)
	}
	if len(d.RestartRequired) != 0 {
		t.Errorf("RestartRequired = %v, want none", d.RestartRequired)
	}
}

func TestDiff_RestartRequired(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"port", func(c *config.Config) { c.Server.Port = 1234 }, "server"},
		{"stt model", func(c *config.Config) { c.Providers.STT.Model = "nova-3" }, "providers"},
		{"stt option", func(c *config.Config) { c.Providers.STT.Options["language"] = "de" }, "providers"},
		{"fallback added", func(c *config.Config) {
			c.Providers.STTFallbacks = append(c.Providers.STTFallbacks, config.ProviderEntry{Name: "whisper"})
		}, "providers"},
		{"embeddings", func(c *config.Config) { c.Providers.Embeddings.Name = "ollama" }, "providers"},
		{"name correction", func(c *config.Config) { c.Meeting.SkipNameCorrection = true }, "meeting"},
		{"dsn", func(c *config.Config) { c.Storage.PostgresDSN = "postgres://x" }, "storage"},
		{"queue depth", func(c *config.Config) { c.Meeting.QueueDepth = 1 }, "meeting"},
		{"sample rate", func(c *config.Config) { c.Audio.SampleRate = 44100 }, "audio"},
		{"redis", func(c *config.Config) { c.Broadcast.Redis.Addr = "localhost:6379" }, "broadcast"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			old, updated := baseConfig(), baseConfig()
			tc.mutate(updated)
			d := config.Diff(old, updated)
			if !slices.Contains(d.RestartRequired, tc.want) {
				t.Errorf("RestartRequired = %v, want %q", d.RestartRequired, tc.want)
			}
			if d.LogLevelChanged || d.IntervalsChanged || d.AudioDeviceChanged {
				t.Errorf("unexpected hot-reload flags: %+v", d)
			}
		})
	}
}
