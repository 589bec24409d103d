// Package portaudio implements [audio.Backend] on top of the PortAudio host
// audio library (github.com/gordonklaus/portaudio).
//
// Streams are opened in blocking mode: the capture thread pulls one buffer per
// [audio.InputStream.Read] instead of PortAudio pushing into a callback, so the
// caller controls cadence and can observe input overflows explicitly.
package portaudio

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	pa "github.com/gordonklaus/portaudio"

	"github.com/MrWong99/meetscribe/pkg/audio"
)

// Backend is a PortAudio-backed [audio.Backend]. Create it with [New] and
// release it with [Backend.Close].
type Backend struct {
	mu     sync.Mutex
	closed bool
}

var _ audio.Backend = (*Backend)(nil)

// New initialises the PortAudio library.
func New() (*Backend, error) {
	if err := pa.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: initialize: %w", err)
	}
	return &Backend{}, nil
}

// Close terminates the PortAudio library. Streams must be closed first.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	if err := pa.Terminate(); err != nil {
		return fmt.Errorf("portaudio: terminate: %w", err)
	}
	return nil
}

// Devices implements [audio.Backend]. Device indices are positions in the
// PortAudio enumeration.
func (b *Backend) Devices() ([]audio.Device, error) {
	infos, err := pa.Devices()
	if err != nil {
		return nil, fmt.Errorf("portaudio: devices: %w", err)
	}
	out := make([]audio.Device, 0, len(infos))
	for i, info := range infos {
		out = append(out, toDevice(i, info))
	}
	return out, nil
}

// DefaultInputDevice implements [audio.Backend].
func (b *Backend) DefaultInputDevice() (audio.Device, error) {
	def, err := pa.DefaultInputDevice()
	if err != nil {
		return audio.Device{}, fmt.Errorf("portaudio: default input device: %w", err)
	}
	infos, err := pa.Devices()
	if err != nil {
		return audio.Device{}, fmt.Errorf("portaudio: devices: %w", err)
	}
	for i, info := range infos {
		if info == def || info.Name == def.Name {
			return toDevice(i, info), nil
		}
	}
	return audio.Device{}, errors.New("portaudio: default input device not in enumeration")
}

// OpenInput implements [audio.Backend]. The stream is started before it is
// returned.
func (b *Backend) OpenInput(dev audio.Device, params audio.StreamParams) (audio.InputStream, error) {
	infos, err := pa.Devices()
	if err != nil {
		return nil, fmt.Errorf("portaudio: devices: %w", err)
	}
	if dev.Index < 0 || dev.Index >= len(infos) {
		return nil, fmt.Errorf("portaudio: device index %d out of range", dev.Index)
	}
	info := infos[dev.Index]
	if info.MaxInputChannels < params.Channels {
		return nil, fmt.Errorf("portaudio: device %q has %d input channels, need %d",
			info.Name, info.MaxInputChannels, params.Channels)
	}

	buf := make([]int16, params.BufferLen())
	sp := pa.StreamParameters{
		Input: pa.StreamDeviceParameters{
			Device:   info,
			Channels: params.Channels,
			Latency:  info.DefaultLowInputLatency,
		},
		SampleRate:      float64(params.SampleRate),
		FramesPerBuffer: params.FramesPerBuffer,
	}
	s, err := pa.OpenStream(sp, buf)
	if err != nil {
		return nil, fmt.Errorf("portaudio: open stream on %q: %w", info.Name, err)
	}
	if err := s.Start(); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("portaudio: start stream on %q: %w", info.Name, err)
	}
	slog.Debug("portaudio: input stream started",
		"device", info.Name,
		"sample_rate", params.SampleRate,
		"channels", params.Channels,
		"frames_per_buffer", params.FramesPerBuffer,
	)
	return &stream{s: s, buf: buf, device: info.Name}, nil
}

// stream adapts a blocking *pa.Stream to [audio.InputStream].
type stream struct {
	s      *pa.Stream
	buf    []int16
	device string

	once sync.Once
	err  error
}

func (s *stream) Read(buf []int16) error {
	err := s.s.Read()
	copy(buf, s.buf)
	if err == nil {
		return nil
	}
	if errors.Is(err, pa.InputOverflowed) {
		return audio.ErrInputOverflow
	}
	return fmt.Errorf("portaudio: read %q: %w", s.device, err)
}

// Close aborts the stream, which unblocks a pending Read, and releases it.
func (s *stream) Close() error {
	s.once.Do(func() {
		abortErr := s.s.Abort()
		closeErr := s.s.Close()
		s.err = errors.Join(abortErr, closeErr)
		slog.Debug("portaudio: input stream closed", "device", s.device)
	})
	return s.err
}

func toDevice(index int, info *pa.DeviceInfo) audio.Device {
	return audio.Device{
		Index:             index,
		Name:              info.Name,
		MaxInputChannels:  info.MaxInputChannels,
		DefaultSampleRate: info.DefaultSampleRate,
	}
}
