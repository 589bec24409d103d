// Package resilience keeps meetscribe running when a speech, language model or
// storage backend misbehaves.
//
// [CircuitBreaker] stops hammering a backend after repeated failures and
// probes it again once a cool-down has passed. [FallbackGroup] chains several
// backends of the same kind, each behind its own breaker, and [Retry] repeats a
// single operation with exponential backoff.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] while the breaker is
// open and the cool-down has not elapsed.
var ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

// ErrSkip may be wrapped by a guarded function to decline a call without it
// counting as a success or a failure. [FallbackGroup] moves on to the next
// entry.
var ErrSkip = errors.New("resilience: skipped")

// State is the operating mode of a [CircuitBreaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects calls with [ErrCircuitOpen] until ResetTimeout passes.
	StateOpen

	// StateHalfOpen lets a limited number of probe calls through. Any probe
	// failure re-opens the breaker; HalfOpenMax successes close it.
	StateHalfOpen
)

// String returns the lower-case state name used in logs and status output.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig tunes a [CircuitBreaker]. Zero values take defaults.
type CircuitBreakerConfig struct {
	// Name labels the breaker in log lines.
	Name string

	// MaxFailures is the consecutive failure count that opens the breaker.
	// Default: 5.
	MaxFailures int

	// ResetTimeout is the cool-down before an open breaker admits probes.
	// Default: 30s.
	ResetTimeout time.Duration

	// HalfOpenMax is the probe budget while half-open. Default: 3.
	HalfOpenMax int

	// OnStateChange, if set, is called after every transition. It runs with
	// the breaker's lock released.
	OnStateChange func(name string, from, to State)
}

// CircuitBreaker is a three-state breaker (closed, open, half-open).
type CircuitBreaker struct {
	name          string
	maxFailures   int
	resetTimeout  time.Duration
	halfOpenMax   int
	onStateChange func(name string, from, to State)
	now           func() time.Time

	mu              sync.Mutex
	state           State
	consecutiveFail int
	lastFailure     time.Time
	halfOpenCalls   int
	halfOpenFails   int
}

// NewCircuitBreaker returns a closed [CircuitBreaker].
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 3
	}
	return &CircuitBreaker{
		name:          cfg.Name,
		maxFailures:   cfg.MaxFailures,
		resetTimeout:  cfg.ResetTimeout,
		halfOpenMax:   cfg.HalfOpenMax,
		onStateChange: cfg.OnStateChange,
		now:           time.Now,
		state:         StateClosed,
	}
}

// Name returns the configured label.
func (cb *CircuitBreaker) Name() string { return cb.name }

// Execute runs fn unless the breaker is open. Errors wrapping [ErrSkip] are
// returned unchanged and leave the breaker's counters untouched.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()
	from := cb.state
	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.lastFailure) < cb.resetTimeout {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		cb.halfOpenCalls = 0
		cb.halfOpenFails = 0
	case StateHalfOpen:
		if cb.halfOpenCalls >= cb.halfOpenMax {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
	}
	probing := cb.state == StateHalfOpen
	if probing {
		cb.halfOpenCalls++
	}
	mid := cb.state
	cb.mu.Unlock()
	if mid != from {
		cb.notify(from, mid)
	}

	err := fn()

	cb.mu.Lock()
	before := cb.state
	switch {
	case errors.Is(err, ErrSkip):
		if probing {
			cb.halfOpenCalls--
		}
	case err != nil:
		cb.recordFailureLocked(probing)
	default:
		cb.recordSuccessLocked(probing)
	}
	after := cb.state
	cb.mu.Unlock()
	if after != before {
		cb.notify(before, after)
	}
	return err
}

func (cb *CircuitBreaker) recordFailureLocked(probing bool) {
	cb.lastFailure = cb.now()
	if probing {
		cb.halfOpenFails++
		cb.state = StateOpen
		cb.consecutiveFail = cb.maxFailures
		return
	}
	cb.consecutiveFail++
	if cb.consecutiveFail >= cb.maxFailures {
		cb.state = StateOpen
	}
}

func (cb *CircuitBreaker) recordSuccessLocked(probing bool) {
	if !probing {
		cb.consecutiveFail = 0
		return
	}
	// A probe that succeeded while another probe failed must not close a
	// breaker that has already re-opened.
	if cb.state != StateHalfOpen {
		return
	}
	if cb.halfOpenCalls-cb.halfOpenFails >= cb.halfOpenMax {
		cb.state = StateClosed
		cb.consecutiveFail = 0
		cb.halfOpenCalls = 0
		cb.halfOpenFails = 0
	}
}

func (cb *CircuitBreaker) notify(from, to State) {
	switch to {
	case StateOpen:
		slog.Warn("circuit breaker opened", "name", cb.name, "from", from.String())
	default:
		slog.Info("circuit breaker state change", "name", cb.name, "from", from.String(), "to", to.String())
	}
	if cb.onStateChange != nil {
		cb.onStateChange(cb.name, from, to)
	}
}

// State returns the breaker's mode. An open breaker whose cool-down has
// elapsed reports [StateHalfOpen]; the transition itself happens on the next
// Execute.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen && cb.now().Sub(cb.lastFailure) >= cb.resetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Reset forces the breaker closed and clears its counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	from := cb.state
	cb.state = StateClosed
	cb.consecutiveFail = 0
	cb.halfOpenCalls = 0
	cb.halfOpenFails = 0
	cb.mu.Unlock()
	if from != StateClosed {
		cb.notify(from, StateClosed)
	}
}
