// Package audio defines the device and stream abstractions used to capture
// microphone input within meetscribe.
//
// The two primary abstractions are:
//
//   - [Backend] — enumerates input devices and opens capture streams on them.
//   - [InputStream] — a blocking PCM reader bound to one device.
//
// Implementations live in sub-packages (audio/portaudio for real hardware,
// audio/mock for tests). The interfaces are narrow so the capture thread stays
// decoupled from the host audio API.
package audio

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNoInputDevice is returned by [SelectInputDevice] when no device with
// input channels exists.
var ErrNoInputDevice = errors.New("audio: no input device available")

// ErrInputOverflow is returned by [InputStream.Read] when the host dropped
// samples because they were not read fast enough. The buffer still holds the
// most recent frame and reading may continue.
var ErrInputOverflow = errors.New("audio: input overflowed")

// Device describes one audio device reported by a [Backend].
type Device struct {
	// Index is the backend-specific position of the device in the enumeration.
	Index int `json:"index"`

	// Name is the human-readable device name.
	Name string `json:"name"`

	// MaxInputChannels is zero for output-only devices.
	MaxInputChannels int `json:"channels"`

	// DefaultSampleRate is the device's preferred sample rate in Hz.
	DefaultSampleRate float64 `json:"sample_rate"`
}

// IsInput reports whether the device can capture audio.
func (d Device) IsInput() bool { return d.MaxInputChannels > 0 }

// StreamParams configures an [InputStream].
type StreamParams struct {
	// SampleRate in Hz (e.g. 16000).
	SampleRate int

	// Channels is the number of interleaved input channels.
	Channels int

	// FramesPerBuffer is the number of sample frames delivered per Read.
	FramesPerBuffer int
}

// BufferLen returns the number of int16 samples one Read fills.
func (p StreamParams) BufferLen() int { return p.FramesPerBuffer * p.Channels }

// InputStream is a started, blocking capture stream.
//
// Read and Close may be called from different goroutines: Close unblocks a
// pending Read, which then returns a non-nil error.
type InputStream interface {
	// Read blocks until buf (of length [StreamParams.BufferLen]) is filled.
	// It returns [ErrInputOverflow] when samples were lost; any other error is
	// fatal for the stream.
	Read(buf []int16) error

	// Close stops the stream and releases the device. Safe to call more than
	// once.
	Close() error
}

// Backend enumerates devices and opens capture streams.
//
// Implementations must be safe for concurrent use.
type Backend interface {
	// Devices returns all devices known to the host, including output-only ones.
	Devices() ([]Device, error)

	// DefaultInputDevice returns the host's default capture device.
	DefaultInputDevice() (Device, error)

	// OpenInput opens and starts a capture stream on dev.
	OpenInput(dev Device, params StreamParams) (InputStream, error)
}

// InputDevices returns only the devices of b that can capture audio.
func InputDevices(b Backend) ([]Device, error) {
	all, err := b.Devices()
	if err != nil {
		return nil, fmt.Errorf("audio: list devices: %w", err)
	}
	in := make([]Device, 0, len(all))
	for _, d := range all {
		if d.IsInput() {
			in = append(in, d)
		}
	}
	return in, nil
}

// SelectInputDevice picks the capture device for a recording. want is either
// empty, a device index ("3"), or an exact device name. The first match wins:
//
//  1. the device named by want, if it still exists and has input channels;
//  2. the backend's default input device;
//  3. the first enumerated device with input channels.
//
// [ErrNoInputDevice] is returned when none of these exist.
func SelectInputDevice(b Backend, want string) (Device, error) {
	devices, err := b.Devices()
	if err != nil {
		return Device{}, fmt.Errorf("audio: list devices: %w", err)
	}

	if want = strings.TrimSpace(want); want != "" {
		if d, ok := findDevice(devices, want); ok && d.IsInput() {
			return d, nil
		}
	}

	if d, err := b.DefaultInputDevice(); err == nil && d.IsInput() {
		return d, nil
	}

	for _, d := range devices {
		if d.IsInput() {
			return d, nil
		}
	}
	return Device{}, ErrNoInputDevice
}

func findDevice(devices []Device, want string) (Device, bool) {
	if idx, err := strconv.Atoi(want); err == nil {
		for _, d := range devices {
			if d.Index == idx {
				return d, true
			}
		}
		return Device{}, false
	}
	for _, d := range devices {
		if d.Name == want {
			return d, true
		}
	}
	return Device{}, false
}
