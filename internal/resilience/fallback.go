package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when no entry of a [FallbackGroup] produced a
// result.
var ErrAllFailed = errors.New("resilience: all backends failed")

// FallbackConfig is applied to the breaker created for every entry of a
// [FallbackGroup].
type FallbackConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

type fallbackEntry[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// FallbackGroup is an ordered list of interchangeable backends, each guarded
// by its own [CircuitBreaker]. Calls go to the first entry that is not open
// and succeed; later entries are only tried when earlier ones fail or skip.
//
// Entries must all be added before the group is shared between goroutines.
type FallbackGroup[T any] struct {
	entries []fallbackEntry[T]
	cfg     FallbackConfig
}

// NewFallbackGroup returns a group whose first entry is primary.
func NewFallbackGroup[T any](primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	fg := &FallbackGroup[T]{cfg: cfg}
	fg.AddFallback(primaryName, primary)
	return fg
}

// AddFallback appends a backend tried after all entries added before it.
func (fg *FallbackGroup[T]) AddFallback(name string, fallback T) {
	bcfg := fg.cfg.CircuitBreaker
	bcfg.Name = name
	fg.entries = append(fg.entries, fallbackEntry[T]{
		name:    name,
		value:   fallback,
		breaker: NewCircuitBreaker(bcfg),
	})
}

// Names returns the entry names in the order they are tried.
func (fg *FallbackGroup[T]) Names() []string {
	names := make([]string, len(fg.entries))
	for i, e := range fg.entries {
		names[i] = e.name
	}
	return names
}

// Primary returns the first entry's value.
func (fg *FallbackGroup[T]) Primary() T {
	return fg.entries[0].value
}

// Breaker returns the breaker guarding the named entry, or nil.
func (fg *FallbackGroup[T]) Breaker(name string) *CircuitBreaker {
	for _, e := range fg.entries {
		if e.name == name {
			return e.breaker
		}
	}
	return nil
}

// Execute is [ExecuteWithResult] for calls without a result value.
func (fg *FallbackGroup[T]) Execute(fn func(T) error) error {
	_, err := ExecuteWithResult(fg, func(v T) (struct{}, error) {
		return struct{}{}, fn(v)
	})
	return err
}

// ExecuteWithResult calls fn against each entry of fg in order and returns
// the first successful result. The returned error wraps [ErrAllFailed] and the
// last real failure. When every entry skipped it also wraps [ErrSkip].
func ExecuteWithResult[T any, R any](fg *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	var (
		zero    R
		lastErr error
		skipped error
	)
	for i := range fg.entries {
		entry := &fg.entries[i]
		var result R
		err := entry.breaker.Execute(func() error {
			var ferr error
			result, ferr = fn(entry.value)
			return ferr
		})
		switch {
		case err == nil:
			return result, nil
		case errors.Is(err, ErrSkip):
			skipped = err
			slog.Debug("backend skipped", "backend", entry.name, "reason", err)
		case errors.Is(err, ErrCircuitOpen):
			lastErr = err
			slog.Debug("backend skipped, circuit open", "backend", entry.name)
		default:
			lastErr = err
			slog.Warn("backend failed, trying next", "backend", entry.name, "err", err)
		}
	}
	if lastErr == nil {
		if skipped == nil {
			return zero, ErrAllFailed
		}
		return zero, fmt.Errorf("%w: %w", ErrAllFailed, skipped)
	}
	return zero, fmt.Errorf("%w: %w", ErrAllFailed, lastErr)
}
