package config

import (
	"fmt"
	"time"
)

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; everything else
// needs a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// IntervalsChanged is set when either broadcast interval changed.
	IntervalsChanged  bool
	NewActiveInterval time.Duration
	NewIdleInterval   time.Duration

	// AudioDeviceChanged is set when audio.device changed. The new device
	// applies to the next meeting.
	AudioDeviceChanged bool
	NewAudioDevice     string

	// RestartRequired lists sections whose changes are ignored until restart.
	RestartRequired []string
}

// Empty reports whether nothing changed.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.IntervalsChanged && !d.AudioDeviceChanged && len(d.RestartRequired) == 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Broadcast.ActiveInterval != new.Broadcast.ActiveInterval ||
		old.Broadcast.IdleInterval != new.Broadcast.IdleInterval {
		d.IntervalsChanged = true
		d.NewActiveInterval = new.Broadcast.ActiveInterval
		d.NewIdleInterval = new.Broadcast.IdleInterval
	}

	if old.Audio.Device != new.Audio.Device {
		d.AudioDeviceChanged = true
		d.NewAudioDevice = new.Audio.Device
	}

	if old.Server.Host != new.Server.Host || old.Server.Port != new.Server.Port || old.Server.TLS != new.Server.TLS {
		d.RestartRequired = append(d.RestartRequired, "server")
	}
	if !providersEqual(old.Providers, new.Providers) {
		d.RestartRequired = append(d.RestartRequired, "providers")
	}
	if old.Storage != new.Storage {
		d.RestartRequired = append(d.RestartRequired, "storage")
	}
	if old.Meeting != new.Meeting {
		d.RestartRequired = append(d.RestartRequired, "meeting")
	}
	oldAudio, newAudio := old.Audio, new.Audio
	oldAudio.Device, newAudio.Device = "", ""
	if oldAudio != newAudio {
		d.RestartRequired = append(d.RestartRequired, "audio")
	}
	if old.Broadcast.SendTimeout != new.Broadcast.SendTimeout || old.Broadcast.Redis != new.Broadcast.Redis {
		d.RestartRequired = append(d.RestartRequired, "broadcast")
	}

	return d
}

func providersEqual(a, b ProvidersConfig) bool {
	if !entryEqual(a.STT, b.STT) || !entryEqual(a.LLM, b.LLM) || !entryEqual(a.Embeddings, b.Embeddings) ||
		len(a.STTFallbacks) != len(b.STTFallbacks) {
		return false
	}
	for i := range a.STTFallbacks {
		if !entryEqual(a.STTFallbacks[i], b.STTFallbacks[i]) {
			return false
		}
	}
	return true
}

// entryEqual compares the scalar fields of two entries. Options are compared
// by key set and string form only.
func entryEqual(a, b ProviderEntry) bool {
	if a.Name != b.Name || a.APIKey != b.APIKey || a.BaseURL != b.BaseURL || a.Model != b.Model {
		return false
	}
	if len(a.Options) != len(b.Options) {
		return false
	}
	for k, v := range a.Options {
		w, ok := b.Options[k]
		if !ok || fmt.Sprint(v) != fmt.Sprint(w) {
			return false
		}
	}
	return true
}
