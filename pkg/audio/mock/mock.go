// Package mock provides in-memory implementations of [audio.Backend] and
// [audio.InputStream] for use in unit tests.
//
// All mocks are safe for concurrent use. They record method calls so tests can
// assert on call counts, and expose fields the test sets to control results.
//
// Typical usage:
//
//	stream := &mock.Stream{Errors: []error{nil, audio.ErrInputOverflow}, Endless: true}
//	backend := &mock.Backend{
//	    DevicesResult: []audio.Device{{Index: 0, Name: "mic", MaxInputChannels: 1}},
//	    StreamResult:  stream,
//	}
package mock

import (
	"errors"
	"sync"
	"time"

	"github.com/MrWong99/meetscribe/pkg/audio"
)

// ErrClosed is returned by [Stream.Read] after [Stream.Close].
var ErrClosed = errors.New("mock audio: stream closed")

// ─── Backend ──────────────────────────────────────────────────────────────────

// Backend is a mock implementation of [audio.Backend].
type Backend struct {
	mu sync.Mutex

	// DevicesResult is returned by [Backend.Devices].
	DevicesResult []audio.Device

	// DevicesErr is returned by [Backend.Devices] when non-nil.
	DevicesErr error

	// DefaultResult is returned by [Backend.DefaultInputDevice].
	DefaultResult audio.Device

	// DefaultErr is returned by [Backend.DefaultInputDevice] when non-nil.
	// When both DefaultResult and DefaultErr are zero, an error is returned.
	DefaultErr error

	// StreamResult is returned by [Backend.OpenInput]. A fresh endless
	// [Stream] is created when nil.
	StreamResult *Stream

	// OpenErr is returned by [Backend.OpenInput] when non-nil.
	OpenErr error

	// OpenedDevices records every device passed to OpenInput.
	OpenedDevices []audio.Device

	// OpenedParams records every StreamParams passed to OpenInput.
	OpenedParams []audio.StreamParams
}

var _ audio.Backend = (*Backend)(nil)

// Devices implements [audio.Backend].
func (b *Backend) Devices() ([]audio.Device, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.DevicesErr != nil {
		return nil, b.DevicesErr
	}
	out := make([]audio.Device, len(b.DevicesResult))
	copy(out, b.DevicesResult)
	return out, nil
}

// DefaultInputDevice implements [audio.Backend].
func (b *Backend) DefaultInputDevice() (audio.Device, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.DefaultErr != nil {
		return audio.Device{}, b.DefaultErr
	}
	if b.DefaultResult == (audio.Device{}) {
		return audio.Device{}, errors.New("mock audio: no default device")
	}
	return b.DefaultResult, nil
}

// OpenInput implements [audio.Backend].
func (b *Backend) OpenInput(dev audio.Device, params audio.StreamParams) (audio.InputStream, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.OpenedDevices = append(b.OpenedDevices, dev)
	b.OpenedParams = append(b.OpenedParams, params)
	if b.OpenErr != nil {
		return nil, b.OpenErr
	}
	if b.StreamResult == nil {
		b.StreamResult = &Stream{Endless: true, Interval: time.Millisecond}
	}
	return b.StreamResult, nil
}

// ─── Stream ───────────────────────────────────────────────────────────────────

// Stream is a mock implementation of [audio.InputStream].
//
// Each Read consumes one entry of Errors. Once Errors is exhausted, Read keeps
// returning nil every Interval when Endless is set, and otherwise blocks until
// Close. When Hang is set, Read ignores Close and blocks until [Stream.Release].
type Stream struct {
	// Errors is consumed one entry per Read.
	Errors []error

	// Endless keeps producing frames after Errors is exhausted.
	Endless bool

	// Interval delays every Read.
	Interval time.Duration

	// Sample is written to every position of the read buffer.
	Sample int16

	// Hang makes Read block until Release, ignoring Close.
	Hang bool

	mu          sync.Mutex
	pos         int
	callsRead   int
	callsClose  int
	closeOnce   sync.Once
	releaseOnce sync.Once
	closed      chan struct{}
	released    chan struct{}
	initOnce    sync.Once
}

var _ audio.InputStream = (*Stream)(nil)

func (s *Stream) init() {
	s.initOnce.Do(func() {
		s.closed = make(chan struct{})
		s.released = make(chan struct{})
	})
}

// Read implements [audio.InputStream].
func (s *Stream) Read(buf []int16) error {
	s.init()

	s.mu.Lock()
	s.callsRead++
	hang := s.Hang
	var (
		result   error
		scripted bool
	)
	if s.pos < len(s.Errors) {
		result = s.Errors[s.pos]
		s.pos++
		scripted = true
	}
	endless := s.Endless
	interval := s.Interval
	sample := s.Sample
	s.mu.Unlock()

	if hang {
		<-s.released
		return ErrClosed
	}

	select {
	case <-s.closed:
		return ErrClosed
	default:
	}

	if !scripted && !endless {
		<-s.closed
		return ErrClosed
	}

	if interval > 0 {
		select {
		case <-s.closed:
			return ErrClosed
		case <-time.After(interval):
		}
	}

	for i := range buf {
		buf[i] = sample
	}
	return result
}

// Close implements [audio.InputStream].
func (s *Stream) Close() error {
	s.init()
	s.mu.Lock()
	s.callsClose++
	s.mu.Unlock()
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

// Release unblocks a hanging Read.
func (s *Stream) Release() {
	s.init()
	s.releaseOnce.Do(func() { close(s.released) })
}

// ReadCalls returns how many times Read was called.
func (s *Stream) ReadCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callsRead
}

// CloseCalls returns how many times Close was called.
func (s *Stream) CloseCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callsClose
}
