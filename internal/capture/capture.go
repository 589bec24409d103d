// Package capture owns the microphone while a meeting is recording.
//
// A [Thread] selects an input device, opens a blocking stream on it, and runs
// a read loop in its own goroutine. Every frame is appended to a WAV
// recording and then handed to a [Consumer]. The loop tolerates input
// overflows and consumer failures; only an unrecoverable read error ends it
// early, which is reported through the callback set with [WithOnFatal].
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrWong99/meetscribe/internal/observe"
	"github.com/MrWong99/meetscribe/pkg/audio"
	"github.com/MrWong99/meetscribe/pkg/audio/wav"
)

const (
	defaultSampleRate       = 16000
	defaultChannels         = 1
	defaultFramesPerBuffer  = 1024
	defaultOverflowWarnEach = 10
	defaultJoinTimeout      = 2 * time.Second
)

var (
	// ErrAlreadyRunning is returned by [Thread.Start] while a capture is active.
	ErrAlreadyRunning = errors.New("capture: already running")

	// ErrNotRunning is returned by [Thread.Stop] when nothing is being captured.
	ErrNotRunning = errors.New("capture: not running")

	// ErrJoinTimeout is part of the error returned by [Thread.Stop] when the
	// read loop had to be abandoned and the device closed forcibly.
	ErrJoinTimeout = errors.New("capture: read loop did not exit in time")
)

// Config describes one capture.
type Config struct {
	// Device is a device index or exact name. Empty selects the default input.
	Device string

	// SampleRate in Hz. Default 16000.
	SampleRate int

	// Channels requested from the device, capped at what it supports.
	// Default 1.
	Channels int

	// FramesPerBuffer is the number of sample frames per read. Default 1024.
	FramesPerBuffer int

	// RecordingPath is where the WAV file is written. Empty disables
	// recording.
	RecordingPath string

	// OverflowWarnThreshold logs a degraded-quality warning every time the
	// overflow count reaches a multiple of it. Default 10.
	OverflowWarnThreshold int

	// JoinTimeout bounds how long Stop waits for the read loop. Default 2s.
	JoinTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.SampleRate <= 0 {
		c.SampleRate = defaultSampleRate
	}
	if c.Channels <= 0 {
		c.Channels = defaultChannels
	}
	if c.FramesPerBuffer <= 0 {
		c.FramesPerBuffer = defaultFramesPerBuffer
	}
	if c.OverflowWarnThreshold <= 0 {
		c.OverflowWarnThreshold = defaultOverflowWarnEach
	}
	if c.JoinTimeout <= 0 {
		c.JoinTimeout = defaultJoinTimeout
	}
	return c
}

// Consumer receives every captured frame on the capture goroutine. It must
// return quickly; errors and panics are logged and capture continues.
type Consumer func(frame audio.Frame) error

// Option configures a [Thread].
type Option func(*Thread)

// WithOnFatal sets the callback invoked once when the read loop ends because
// of an unrecoverable device error. It runs on the capture goroutine after
// the device has been released.
func WithOnFatal(fn func(err error)) Option {
	return func(t *Thread) { t.onFatal = fn }
}

// WithMetrics overrides the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(t *Thread) { t.metrics = m }
}

// Thread captures audio from one device at a time. All methods are safe for
// concurrent use.
type Thread struct {
	backend audio.Backend
	onFatal func(err error)
	metrics *observe.Metrics

	mu      sync.Mutex
	stream  audio.InputStream
	rec     *wav.Recorder
	device  audio.Device
	timeout time.Duration
	stop    chan struct{}
	done    chan struct{}

	recording   atomic.Bool
	frames      atomic.Uint64
	overflows   atomic.Int64
	consumerErr atomic.Int64
	fatal       atomic.Pointer[error]
}

// New creates a Thread that opens devices through backend.
func New(backend audio.Backend, opts ...Option) *Thread {
	t := &Thread{backend: backend}
	for _, o := range opts {
		o(t)
	}
	if t.metrics == nil {
		t.metrics = observe.DefaultMetrics()
	}
	return t
}

// Start selects a device, opens it, and starts the read loop. ctx bounds the
// setup only; the loop keeps running until [Thread.Stop]. Errors wrapping
// [audio.ErrNoInputDevice] mean no capture device exists.
func (t *Thread) Start(ctx context.Context, cfg Config, consumer Consumer) error {
	cfg = cfg.withDefaults()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done != nil {
		return ErrAlreadyRunning
	}

	dev, err := audio.SelectInputDevice(t.backend, cfg.Device)
	if err != nil {
		return fmt.Errorf("capture: select device: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("capture: %w", err)
	}

	params := audio.StreamParams{
		SampleRate:      cfg.SampleRate,
		Channels:        min(cfg.Channels, dev.MaxInputChannels),
		FramesPerBuffer: cfg.FramesPerBuffer,
	}

	var rec *wav.Recorder
	if cfg.RecordingPath != "" {
		rec, err = wav.NewRecorder(cfg.RecordingPath, audio.Format{SampleRate: params.SampleRate, Channels: params.Channels})
		if err != nil {
			return fmt.Errorf("capture: %w", err)
		}
	}

	stream, err := t.backend.OpenInput(dev, params)
	if err != nil {
		if rec != nil {
			_ = rec.Discard()
		}
		return fmt.Errorf("capture: open device %q: %w", dev.Name, err)
	}

	t.frames.Store(0)
	t.overflows.Store(0)
	t.consumerErr.Store(0)
	t.fatal.Store(nil)
	t.recording.Store(true)

	t.stream = stream
	t.rec = rec
	t.device = dev
	t.timeout = cfg.JoinTimeout
	t.stop = make(chan struct{})
	t.done = make(chan struct{})

	slog.Info("capture started",
		"device", dev.Name,
		"device_index", dev.Index,
		"sample_rate", params.SampleRate,
		"channels", params.Channels,
		"frames_per_buffer", params.FramesPerBuffer,
	)

	go t.loop(stream, rec, params, cfg.OverflowWarnThreshold, consumer, t.stop, t.done)
	return nil
}

// Stop ends the read loop, waits up to the configured join timeout for it to
// exit, and finalizes the recording. It returns the WAV path ("" when
// recording was disabled). A non-nil error alongside a path is a warning: the
// recording is usable but something went wrong, e.g. [ErrJoinTimeout].
func (t *Thread) Stop() (string, error) {
	t.mu.Lock()
	if t.done == nil {
		t.mu.Unlock()
		return "", ErrNotRunning
	}
	stream, rec, stop, done, timeout := t.stream, t.rec, t.stop, t.done, t.timeout
	t.stream, t.rec, t.stop, t.done = nil, nil, nil, nil
	t.mu.Unlock()

	close(stop)

	var errs []error
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		slog.Warn("capture: read loop did not exit, closing device forcibly", "timeout", timeout)
		if err := stream.Close(); err != nil {
			slog.Warn("capture: forced close failed", "err", err)
		}
		t.recording.Store(false)
		errs = append(errs, fmt.Errorf("%w (%s)", ErrJoinTimeout, timeout))
	}

	if rec == nil {
		return "", errors.Join(errs...)
	}
	path, err := rec.Finalize()
	if err != nil {
		errs = append(errs, fmt.Errorf("capture: finalize recording: %w", err))
		return "", errors.Join(errs...)
	}
	slog.Info("capture stopped", "recording", path, "frames", t.frames.Load(), "overflows", t.overflows.Load())
	return path, errors.Join(errs...)
}

func (t *Thread) loop(
	stream audio.InputStream,
	rec *wav.Recorder,
	params audio.StreamParams,
	warnEvery int,
	consumer Consumer,
	stop <-chan struct{},
	done chan<- struct{},
) {
	var fatal error
	defer func() {
		if err := stream.Close(); err != nil {
			slog.Warn("capture: close stream", "err", err)
		}
		t.recording.Store(false)
		// Stop waits on done, so the failure is reported before it returns.
		if fatal != nil && t.onFatal != nil {
			t.onFatal(fatal)
		}
		close(done)
	}()

	ctx := context.Background()
	buf := make([]int16, params.BufferLen())
	var (
		seq         uint64
		offset      time.Duration
		recordFails int
	)
	for {
		select {
		case <-stop:
			return
		default:
		}

		err := stream.Read(buf)
		switch {
		case err == nil:
		case errors.Is(err, audio.ErrInputOverflow):
			n := t.overflows.Add(1)
			t.metrics.CaptureOverflows.Add(ctx, 1)
			if n%int64(warnEvery) == 0 {
				slog.Warn("capture: repeated input overflows, audio quality degraded", "overflows", n)
			}
		default:
			select {
			case <-stop:
				// Close during Read, not a device failure.
				return
			default:
			}
			fatal = fmt.Errorf("capture: read: %w", err)
			t.fatal.Store(&fatal)
			slog.Error("capture: device read failed, stopping capture", "err", err, "frames", seq)
			return
		}

		seq++
		frame := audio.Frame{
			Data:       audio.EncodePCM16(buf),
			Seq:        seq,
			SampleRate: params.SampleRate,
			Channels:   params.Channels,
			Offset:     offset,
		}
		offset += frame.Duration()
		t.frames.Store(seq)
		t.metrics.CaptureFrames.Add(ctx, 1)

		if rec != nil {
			if err := rec.Write(frame); err != nil {
				recordFails++
				if recordFails == 1 {
					slog.Warn("capture: write recording", "err", err)
				}
			}
		}
		t.deliver(consumer, frame)
	}
}

func (t *Thread) deliver(consumer Consumer, frame audio.Frame) {
	defer func() {
		if r := recover(); r != nil {
			t.consumerErr.Add(1)
			slog.Error("capture: frame consumer panicked", "seq", frame.Seq, "panic", r)
		}
	}()
	if err := consumer(frame); err != nil {
		t.consumerErr.Add(1)
		slog.Warn("capture: frame consumer failed", "seq", frame.Seq, "err", err)
	}
}

// Recording reports whether the read loop is running.
func (t *Thread) Recording() bool { return t.recording.Load() }

// Frames returns the number of frames read since the last Start.
func (t *Thread) Frames() uint64 { return t.frames.Load() }

// Overflows returns the number of input overflows since the last Start.
func (t *Thread) Overflows() int64 { return t.overflows.Load() }

// ConsumerErrors returns how many frames the consumer failed on.
func (t *Thread) ConsumerErrors() int64 { return t.consumerErr.Load() }

// Err returns the fatal error that ended the last read loop, if any.
func (t *Thread) Err() error {
	if p := t.fatal.Load(); p != nil {
		return *p
	}
	return nil
}

// Device returns the device used by the current or last capture.
func (t *Thread) Device() audio.Device {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.device
}
