package broadcast

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Default polling intervals for [Loop].
const (
	DefaultActiveInterval = time.Second
	DefaultIdleInterval   = 5 * time.Second
)

// StatusSource returns the current status snapshot and whether a meeting is
// active.
type StatusSource func() (data any, active bool)

// LoopConfig holds the dependencies of a [Loop].
type LoopConfig struct {
	Registry *Registry
	Source   StatusSource

	// ActiveInterval is the update period while a meeting is active.
	// Default: 1s.
	ActiveInterval time.Duration

	// IdleInterval is the update period otherwise. Default: 5s.
	IdleInterval time.Duration
}

// Loop periodically broadcasts [TypeUpdate] messages built from a
// [StatusSource].
type Loop struct {
	reg    *Registry
	source StatusSource

	mu     sync.Mutex
	active time.Duration
	idle   time.Duration
	wake   chan struct{}
}

// NewLoop creates a Loop. It does nothing until [Loop.Run].
func NewLoop(cfg LoopConfig) *Loop {
	l := &Loop{
		reg:    cfg.Registry,
		source: cfg.Source,
		wake:   make(chan struct{}, 1),
	}
	l.SetIntervals(cfg.ActiveInterval, cfg.IdleInterval)
	return l
}

// SetIntervals changes the polling intervals. Zero values select the
// defaults. A running loop picks up the change immediately.
func (l *Loop) SetIntervals(active, idle time.Duration) {
	if active <= 0 {
		active = DefaultActiveInterval
	}
	if idle <= 0 {
		idle = DefaultIdleInterval
	}
	l.mu.Lock()
	l.active, l.idle = active, idle
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Intervals returns the current active and idle intervals.
func (l *Loop) Intervals() (active, idle time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active, l.idle
}

// Run broadcasts an update immediately and then once per interval until ctx
// is cancelled. Updates are skipped while no observer is registered. Run
// always returns nil.
func (l *Loop) Run(ctx context.Context) error {
	active := l.tick(ctx)

	timer := time.NewTimer(l.interval(active))
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-l.wake:
			timer.Reset(l.interval(active))
		case <-timer.C:
			active = l.tick(ctx)
			timer.Reset(l.interval(active))
		}
	}
}

func (l *Loop) interval(active bool) time.Duration {
	a, i := l.Intervals()
	if active {
		return a
	}
	return i
}

func (l *Loop) tick(ctx context.Context) bool {
	data, active := l.source()
	if l.reg.Len() == 0 {
		return active
	}
	n := l.reg.Broadcast(ctx, Message{Type: TypeUpdate, Data: data})
	slog.Debug("broadcast: status update", "active", active, "delivered", n)
	return active
}
