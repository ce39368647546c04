// Package retry provides bounded retry with exponential backoff and jitter
// for operations against external services.
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// Config controls retry behavior.
type Config struct {
	// MaxRetries is the number of attempts after the first. 0 disables
	// retrying entirely; the operation runs exactly once.
	MaxRetries int
	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration
	// MaxDelay caps the computed backoff.
	MaxDelay time.Duration
}

// DefaultConfig returns sensible defaults for transient upstream failures.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   30 * time.Second,
	}
}

// Do runs fn until it succeeds, the retry budget is exhausted, or ctx is
// canceled. Between attempts it sleeps with exponential backoff and full
// jitter. The last error is returned when all attempts fail.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(cfg, attempt)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return fmt.Errorf("retry canceled after %d attempts: %w", attempt, ctx.Err())
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return lastErr
		}
	}
	return fmt.Errorf("exhausted %d retries: %w", cfg.MaxRetries, lastErr)
}

// backoffDelay computes the delay before the given attempt (1-based):
// baseDelay * 2^(attempt-1), capped at maxDelay, with full jitter applied.
func backoffDelay(cfg Config, attempt int) time.Duration {
	delay := cfg.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= cfg.MaxDelay {
			delay = cfg.MaxDelay
			break
		}
	}

	// Full jitter: random duration in [0, delay).
	jittered := time.Duration(rand.Int63n(int64(delay) + 1))
	if jittered < 100*time.Millisecond {
		jittered = 100 * time.Millisecond
	}
	return jittered
}
