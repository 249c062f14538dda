package retry

import (
	"context"
	"fmt"
	"time"
)

// DelayFunc returns the delay before the given attempt (1-based).
type DelayFunc func(attempt int) time.Duration

// Linear returns base, 2*base, 3*base, ...
func Linear(base time.Duration) DelayFunc {
	return func(attempt int) time.Duration {
		return time.Duration(attempt) * base
	}
}

// Exponential returns base, 2*base, 4*base, ...
func Exponential(base time.Duration) DelayFunc {
	return func(attempt int) time.Duration {
		return base << (attempt - 1)
	}
}

// Policy is a reusable retry configuration shared by all backend calls.
type Policy struct {
	MaxAttempts int
	Delay       DelayFunc
}

// Do runs fn until it succeeds, the attempts are exhausted or ctx is done.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if lastErr = fn(); lastErr == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		var delay time.Duration
		if p.Delay != nil {
			delay = p.Delay(attempt)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}
