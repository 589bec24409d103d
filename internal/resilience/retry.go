package resilience

import (
	"context"
	"errors"
	"time"
)

// RetryConfig tunes [Retry]. Zero values take defaults.
type RetryConfig struct {
	// MaxAttempts is the total number of calls including the first. Default: 3.
	MaxAttempts int

	// BaseDelay is the wait after the first failure. Each further wait doubles
	// it. Default: 200ms.
	BaseDelay time.Duration

	// MaxDelay caps a single wait. Default: 5s.
	MaxDelay time.Duration

	// OnRetry, if set, is called after each failed attempt that will be
	// retried.
	OnRetry func(attempt int, err error, wait time.Duration)
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 200 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 5 * time.Second
	}
	return c
}

// Backoff returns the wait before attempt n+1 after attempt n (1-based)
// failed.
func (c RetryConfig) Backoff(n int) time.Duration {
	c = c.withDefaults()
	d := c.BaseDelay
	for i := 1; i < n && d < c.MaxDelay; i++ {
		d *= 2
	}
	return min(d, c.MaxDelay)
}

// Retry calls fn until it succeeds, cfg.MaxAttempts calls have failed, or ctx
// is done. It returns the number of calls made and the last error. Errors
// wrapping [ErrSkip] are not retried.
func Retry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) (int, error) {
	cfg = cfg.withDefaults()
	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(ctx); err == nil {
			return attempt, nil
		}
		if attempt >= cfg.MaxAttempts || errors.Is(err, ErrSkip) {
			return attempt, err
		}
		wait := cfg.Backoff(attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, wait)
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return attempt, errors.Join(err, ctx.Err())
		case <-t.C:
		}
	}
}
