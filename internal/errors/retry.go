package errors

import (
	"context"
	"fmt"
	"time"
)

// RetryConfig bounds a retry loop with exponential backoff.
type RetryConfig struct {
	// MaxRetries counts retries after the first attempt.
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64

	// Permanent reports errors that another attempt cannot fix. Nil treats
	// every error except non-retryable SeekErrors as transient.
	Permanent func(error) bool
}

// DefaultRetryConfig returns three retries starting at 50ms.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
	}
}

func (c RetryConfig) permanent(err error) bool {
	if c.Permanent != nil {
		return c.Permanent(err)
	}
	se, ok := As(err)
	return ok && !se.Retryable
}

// Retry calls fn until it succeeds, fails permanently, runs out of retries
// or ctx ends. A permanent error is returned unwrapped.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if cfg.permanent(lastErr) {
			return lastErr
		}
		if attempt == cfg.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return fmt.Errorf("failed after %d retries: %w", cfg.MaxRetries, lastErr)
}
