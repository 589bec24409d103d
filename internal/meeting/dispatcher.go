package meeting

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrWong99/meetscribe/internal/observe"
	"github.com/MrWong99/meetscribe/pkg/audio"
)

// StreamTranscriber turns live audio into text one frame at a time. The text
// returned for a frame is whatever became final since the previous call and
// may be empty.
type StreamTranscriber interface {
	TranscribeStream(ctx context.Context, frame audio.Frame) (string, error)
}

// SegmentSink receives non-empty live text together with the frame that
// produced it. It reports whether the text was kept.
type SegmentSink func(frame audio.Frame, text string) bool

// Dispatcher moves frames from the capture goroutine to a single
// transcription worker through a bounded queue.
//
// Submit never blocks. When the queue is full the newest frame is dropped from
// live transcription; it is still part of the WAV recording and so of the
// final transcript. Drops are counted and warned about once.
type Dispatcher struct {
	sessionID   string
	queue       chan audio.Frame
	transcriber StreamTranscriber
	sink        SegmentSink
	stopping    *atomic.Bool
	metrics     *observe.Metrics

	mu     sync.RWMutex
	closed bool

	ctx     context.Context
	cancel  context.CancelFunc
	started atomic.Bool
	done    chan struct{}

	dropped    atomic.Int64
	warnedDrop atomic.Bool
	failures   atomic.Int64
	kept       atomic.Int64
}

// NewDispatcher creates a Dispatcher with room for depth queued frames. Frames
// are discarded unread while stopping is set. The worker does not run until
// [Dispatcher.Start].
func NewDispatcher(sessionID string, depth int, t StreamTranscriber, sink SegmentSink, stopping *atomic.Bool, m *observe.Metrics) *Dispatcher {
	if depth <= 0 {
		depth = 1
	}
	if m == nil {
		m = observe.DefaultMetrics()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		sessionID:   sessionID,
		queue:       make(chan audio.Frame, depth),
		transcriber: t,
		sink:        sink,
		stopping:    stopping,
		metrics:     m,
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
}

// Start launches the worker. Calling it more than once has no effect.
func (d *Dispatcher) Start() {
	if d.started.CompareAndSwap(false, true) {
		go d.run()
	}
}

// Submit queues frame for live transcription. It has the signature of a
// capture consumer and always returns nil.
func (d *Dispatcher) Submit(frame audio.Frame) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil
	}
	select {
	case d.queue <- frame:
	default:
		n := d.dropped.Add(1)
		d.metrics.DroppedFrames.Add(d.ctx, 1)
		if d.warnedDrop.CompareAndSwap(false, true) {
			slog.Warn("meeting: live transcription is falling behind, dropping frames",
				"session_id", d.sessionID, "queue_depth", cap(d.queue), "seq", frame.Seq, "dropped", n)
		}
	}
	return nil
}

// Drain closes the queue and waits up to timeout for the worker to finish the
// frames already queued. It reports whether the worker exited in time; if it
// did not, the in-flight call is cancelled and left to finish on its own.
func (d *Dispatcher) Drain(timeout time.Duration) bool {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	if !d.started.Load() {
		d.cancel()
		return true
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-d.done:
		d.cancel()
		return true
	case <-t.C:
		d.cancel()
		slog.Warn("meeting: live transcription did not drain in time",
			"session_id", d.sessionID, "grace", timeout)
		return false
	}
}

// Dropped returns how many frames were dropped because the queue was full.
func (d *Dispatcher) Dropped() int64 { return d.dropped.Load() }

// Failures returns how many TranscribeStream calls returned an error.
func (d *Dispatcher) Failures() int64 { return d.failures.Load() }

// Kept returns how many segments the sink accepted.
func (d *Dispatcher) Kept() int64 { return d.kept.Load() }

func (d *Dispatcher) run() {
	defer close(d.done)
	for frame := range d.queue {
		if d.stopping.Load() {
			continue
		}
		d.handle(frame)
	}
}

func (d *Dispatcher) handle(frame audio.Frame) {
	start := time.Now()
	text, err := d.transcriber.TranscribeStream(d.ctx, frame)
	d.metrics.DispatchDuration.Record(d.ctx, time.Since(start).Seconds())
	if err != nil {
		if d.failures.Add(1) == 1 {
			slog.Warn("meeting: live transcription failed, continuing",
				"session_id", d.sessionID, "seq", frame.Seq, "err", err)
		} else {
			slog.Debug("meeting: live transcription failed",
				"session_id", d.sessionID, "seq", frame.Seq, "err", err)
		}
		return
	}
	if strings.TrimSpace(text) == "" {
		return
	}
	if d.sink(frame, text) {
		d.kept.Add(1)
		return
	}
	slog.Debug("meeting: discarded late segment", "session_id", d.sessionID, "seq", frame.Seq)
}
