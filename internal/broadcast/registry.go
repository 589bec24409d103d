// Package broadcast fans live meeting status out to observers.
//
// A [Registry] holds the set of registered observers and delivers each
// message to all of them concurrently. Observers that fail, time out, or have
// been closed are pruned so a single stuck client cannot hold up the others.
// Persistent observers, registered with [Registry.RegisterPersistent], are
// kept across failures. [Registry.Post] queues lifecycle events for delivery
// in the background. [Loop] polls a status source and broadcasts periodic snapshots.
package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/meetscribe/internal/observe"
)

// Message types carried in the envelope.
const (
	TypeUpdate  = "meeting_update"
	TypeStarted = "meeting_started"
	TypeStopped = "meeting_stopped"
)

// DefaultSendTimeout bounds a single delivery to one observer.
const DefaultSendTimeout = 2 * time.Second

// eventQueueSize is the number of posted events waiting for delivery.
const eventQueueSize = 32

var (
	// ErrClosed is returned by observers that no longer accept messages.
	ErrClosed = errors.New("broadcast: observer closed")

	// ErrSendTimeout marks a delivery that did not finish within the send
	// timeout.
	ErrSendTimeout = errors.New("broadcast: send timed out")
)

// Message is the envelope delivered to every observer.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Observer receives serialized [Message] envelopes.
//
// Send should honour ctx. The registry stops waiting after the send timeout
// whether or not Send returned, and treats the observer as dead. Close is
// called once when the observer is pruned or unregistered.
type Observer interface {
	Send(ctx context.Context, payload []byte) error
	Close() error
}

// Option configures a [Registry].
type Option func(*Registry)

// WithSendTimeout overrides [DefaultSendTimeout].
func WithSendTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.sendTimeout = d
		}
	}
}

// WithMetrics sets the metrics instruments. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// Registry is the set of live-status observers.
//
// Safe for concurrent use.
type Registry struct {
	mu sync.Mutex
	// observers maps each observer to whether it is persistent.
	observers map[Observer]bool

	sendTimeout time.Duration
	metrics     *observe.Metrics

	events    chan Message
	quit      chan struct{}
	drained   chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
}

// NewRegistry creates an empty Registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		observers:   make(map[Observer]bool),
		sendTimeout: DefaultSendTimeout,
		events:      make(chan Message, eventQueueSize),
		quit:        make(chan struct{}),
		drained:     make(chan struct{}),
	}
	for _, o := range opts {
		o(r)
	}
	if r.metrics == nil {
		r.metrics = observe.DefaultMetrics()
	}
	return r
}

// Register adds obs. Registering the same observer twice has no effect.
func (r *Registry) Register(obs Observer) { r.register(obs, false) }

// RegisterPersistent adds an observer that is never pruned. Failed or timed
// out deliveries are logged and the observer receives the next message as
// usual. Use it for server-side sinks such as [RedisObserver] that have no
// client to reconnect them.
func (r *Registry) RegisterPersistent(obs Observer) { r.register(obs, true) }

func (r *Registry) register(obs Observer, persistent bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.observers[obs]; ok {
		r.observers[obs] = persistent
		return
	}
	r.observers[obs] = persistent
	r.metrics.Observers.Add(context.Background(), 1)
	slog.Debug("broadcast: observer registered", "observers", len(r.observers), "persistent", persistent)
}

// Unregister removes obs and closes it. It reports whether obs was
// registered.
func (r *Registry) Unregister(obs Observer) bool {
	if !r.remove(obs) {
		return false
	}
	if err := obs.Close(); err != nil {
		slog.Debug("broadcast: close observer", "err", err)
	}
	return true
}

// Len returns the number of registered observers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.observers)
}

func (r *Registry) remove(obs Observer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.observers[obs]; !ok {
		return false
	}
	delete(r.observers, obs)
	r.metrics.Observers.Add(context.Background(), -1)
	return true
}

type target struct {
	obs        Observer
	persistent bool
}

func (r *Registry) snapshot() []target {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]target, 0, len(r.observers))
	for obs, persistent := range r.observers {
		out = append(out, target{obs: obs, persistent: persistent})
	}
	return out
}

// Broadcast delivers msg to every registered observer concurrently and
// returns the number of successful deliveries. It returns within the send
// timeout even when an observer's Send never does; such a Send is left
// running and its observer is pruned. Observers whose Send fails are pruned
// as well, unless they are persistent. The lock is not held while sending.
func (r *Registry) Broadcast(ctx context.Context, msg Message) int {
	payload, err := json.Marshal(msg)
	if err != nil {
		slog.Error("broadcast: encode message", "type", msg.Type, "err", err)
		return 0
	}
	targets := r.snapshot()
	if len(targets) == 0 {
		return 0
	}

	sendCtx, cancel := context.WithTimeout(ctx, r.sendTimeout)
	defer cancel()

	type result struct {
		i   int
		err error
	}
	// Buffered so abandoned sends can still finish without blocking.
	results := make(chan result, len(targets))
	for i, t := range targets {
		go func() { results <- result{i: i, err: r.send(sendCtx, t.obs, payload)} }()
	}

	errs := make([]error, len(targets))
	for i := range errs {
		errs[i] = ErrSendTimeout
	}
	deadline := time.NewTimer(r.sendTimeout)
	defer deadline.Stop()
collect:
	for pending := len(targets); pending > 0; pending-- {
		select {
		case res := <-results:
			errs[res.i] = res.err
		case <-deadline.C:
			break collect
		case <-ctx.Done():
			break collect
		}
	}

	delivered, pruned, failed := 0, 0, 0
	for i, t := range targets {
		switch {
		case errs[i] == nil:
			delivered++
		case t.persistent:
			failed++
			slog.Warn("broadcast: delivery to persistent observer failed", "type", msg.Type, "err", errs[i])
		case errors.Is(errs[i], ErrSendTimeout):
			// Close may block just like Send did.
			if r.remove(t.obs) {
				pruned++
				slog.Info("broadcast: pruned stuck observer", "type", msg.Type)
				go r.closeObserver(t.obs)
			}
		default:
			if r.Unregister(t.obs) {
				pruned++
				slog.Info("broadcast: pruned observer", "type", msg.Type, "err", errs[i])
			}
		}
	}
	r.metrics.RecordBroadcast(ctx, "ok", delivered)
	r.metrics.RecordBroadcast(ctx, "pruned", pruned)
	r.metrics.RecordBroadcast(ctx, "failed", failed)
	return delivered
}

// Notify broadcasts an out-of-band event such as [TypeStarted] and waits for
// the delivery round to finish.
func (r *Registry) Notify(ctx context.Context, typ string, data any) int {
	return r.Broadcast(ctx, Message{Type: typ, Data: data})
}

// Post queues an event for delivery and returns immediately. Posted events
// are delivered one round at a time in the order they were posted. Post
// reports false when the queue is full or the registry is closed.
func (r *Registry) Post(typ string, data any) bool {
	select {
	case <-r.quit:
		return false
	default:
	}
	r.startOnce.Do(func() { go r.drain() })
	select {
	case r.events <- Message{Type: typ, Data: data}:
		return true
	default:
		slog.Warn("broadcast: event queue full, dropping event", "type", typ)
		return false
	}
}

// drain delivers posted events until Close, then flushes what is left.
func (r *Registry) drain() {
	defer close(r.drained)
	ctx := context.Background()
	for {
		select {
		case msg := <-r.events:
			r.Broadcast(ctx, msg)
		case <-r.quit:
			for {
				select {
				case msg := <-r.events:
					r.Broadcast(ctx, msg)
				default:
					return
				}
			}
		}
	}
}

func (r *Registry) closeObserver(obs Observer) {
	if err := obs.Close(); err != nil {
		slog.Debug("broadcast: close observer", "err", err)
	}
}

// Close delivers events still queued by [Registry.Post], then unregisters
// and closes every observer.
func (r *Registry) Close() error {
	r.closeOnce.Do(func() {
		close(r.quit)
		started := true
		r.startOnce.Do(func() { started = false })
		if started {
			<-r.drained
		}
	})

	var errs []error
	for _, t := range r.snapshot() {
		if r.remove(t.obs) {
			if err := t.obs.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("broadcast: close observers: %w", err)
	}
	return nil
}

func (r *Registry) send(ctx context.Context, obs Observer, payload []byte) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("broadcast: observer panicked: %v", p)
		}
	}()
	if err := obs.Send(ctx, payload); err != nil {
		return err
	}
	return nil
}
