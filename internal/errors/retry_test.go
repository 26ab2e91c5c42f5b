package errors

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(maxRetries int) RetryConfig {
	return RetryConfig{
		MaxRetries:   maxRetries,
		InitialDelay: time.Millisecond,
		MaxDelay:     4 * time.Millisecond,
		Multiplier:   2,
	}
}

// TS02: a rename that fails once then succeeds
func TestRetry_SucceedsAfterTransientError(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), fastRetry(3), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("device busy")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetry_FailsAfterMaxRetries(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), fastRetry(2), func() error {
		attempts++
		return errors.New("device busy")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 retries")
	assert.Contains(t, err.Error(), "device busy")
	assert.Equal(t, 3, attempts)
}

func TestRetry_StopsOnPermanentError(t *testing.T) {
	t.Run("custom predicate", func(t *testing.T) {
		cfg := fastRetry(5)
		cfg.Permanent = os.IsNotExist

		attempts := 0
		err := Retry(context.Background(), cfg, func() error {
			attempts++
			return &os.PathError{Op: "rename", Path: "apikey.json.bak", Err: os.ErrNotExist}
		})

		assert.True(t, os.IsNotExist(err))
		assert.Equal(t, 1, attempts)
	})

	t.Run("non-retryable SeekError", func(t *testing.T) {
		attempts := 0
		validation := ValidationError("schema is empty", nil)
		err := Retry(context.Background(), fastRetry(5), func() error {
			attempts++
			return validation
		})

		assert.Same(t, validation, err)
		assert.Equal(t, 1, attempts)
	})

	t.Run("retryable SeekError", func(t *testing.T) {
		attempts := 0
		err := Retry(context.Background(), fastRetry(2), func() error {
			attempts++
			return IOFailure(ErrCodeFileRename, "rename apikey.json", nil)
		})

		require.Error(t, err)
		assert.Equal(t, 3, attempts)
	})
}

func TestRetry_RespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fastRetry(10)
	cfg.InitialDelay = time.Second
	cfg.MaxDelay = time.Second

	attempts := 0
	start := time.Now()
	err := Retry(ctx, cfg, func() error {
		attempts++
		cancel()
		return errors.New("device busy")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestRetry_CancelledBeforeFirstAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := Retry(ctx, fastRetry(3), func() error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestRetry_BackoffIsCapped(t *testing.T) {
	cfg := RetryConfig{
		MaxRetries:   4,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     20 * time.Millisecond,
		Multiplier:   10,
	}

	var stamps []time.Time
	_ = Retry(context.Background(), cfg, func() error {
		stamps = append(stamps, time.Now())
		return errors.New("device busy")
	})

	require.Len(t, stamps, 5)
	for i := 2; i < len(stamps); i++ {
		gap := stamps[i].Sub(stamps[i-1])
		assert.GreaterOrEqual(t, gap, 20*time.Millisecond)
		assert.Less(t, gap, 200*time.Millisecond, "delay should stay near MaxDelay")
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig()

	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 50*time.Millisecond, cfg.InitialDelay)
	assert.LessOrEqual(t, cfg.InitialDelay, cfg.MaxDelay)
	assert.Greater(t, cfg.Multiplier, 1.0)
}
