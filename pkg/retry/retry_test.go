package retry

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/mmif/errors"
)

func fastConfig(attempts int) Config {
	return Config{
		MaxAttempts:  attempts,
		InitialDelay: 5 * time.Millisecond,
		MaxDelay:     50 * time.Millisecond,
		Multiplier:   2.0,
		AddJitter:    false,
	}
}

func TestDo_RetriesTransientFailures(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(3), func() error {
		attempts++
		if attempts < 3 {
			return errors.WrapTransient(errors.ErrFetchFailed, "httploc", "Resolve", "GET")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDo_AllAttemptsFail(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(3), func() error {
		attempts++
		return fmt.Errorf("connection reset by peer")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
	assert.Equal(t, 3, attempts)
}

func TestDo_StopsOnNonRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"marked", NonRetryable(fmt.Errorf("404 not found"))},
		{"invalid input", errors.WrapInvalid(errors.ErrInvalidLocation, "httploc", "Resolve", "parse")},
		{"fatal", errors.ErrNoResolver},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := 0
			err := Do(context.Background(), fastConfig(5), func() error {
				attempts++
				return tt.err
			})
			require.Error(t, err)
			assert.Equal(t, 1, attempts)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestDo_CustomRetryable(t *testing.T) {
	cfg := fastConfig(4)
	cfg.Retryable = func(error) bool { return false }

	attempts := 0
	_ = Do(context.Background(), cfg, func() error {
		attempts++
		return errors.ErrFetchFailed
	})
	assert.Equal(t, 1, attempts)
}

func TestDo_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{
		MaxAttempts:  5,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
	}

	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	attempts := 0
	err := Do(ctx, cfg, func() error {
		attempts++
		return errors.ErrFetchFailed
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "retry cancelled")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, attempts, 5)
}

func TestDo_BackoffIsCapped(t *testing.T) {
	cfg := Config{
		MaxAttempts:  4,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     25 * time.Millisecond,
		Multiplier:   10.0,
	}

	start := time.Now()
	_ = Do(context.Background(), cfg, func() error { return errors.ErrFetchFailed })
	elapsed := time.Since(start)

	// 10ms + 25ms + 25ms
	assert.GreaterOrEqual(t, elapsed, 60*time.Millisecond)
	assert.Less(t, elapsed, 500*time.Millisecond)
}

func TestDo_InvalidConfig(t *testing.T) {
	tests := []Config{
		{InitialDelay: -1},
		{MaxDelay: -1},
		{Multiplier: -1},
		{InitialDelay: time.Second, MaxDelay: time.Millisecond},
	}

	for _, cfg := range tests {
		called := false
		err := Do(context.Background(), cfg, func() error {
			called = true
			return nil
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrInvalidConfig))
		assert.True(t, errors.IsFatal(err))
		assert.False(t, called)
	}
}

func TestDo_ZeroAttemptsRunsOnce(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), Config{}, func() error {
		attempts++
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDoWithResult(t *testing.T) {
	attempts := 0
	path, err := DoWithResult(context.Background(), fastConfig(3), func() (string, error) {
		attempts++
		if attempts < 2 {
			return "", errors.ErrFetchFailed
		}
		return "/tmp/doc.mp4", nil
	})

	assert.NoError(t, err)
	assert.Equal(t, "/tmp/doc.mp4", path)
	assert.Equal(t, 2, attempts)
}

func TestPresets(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 200*time.Millisecond, cfg.InitialDelay)
	assert.True(t, cfg.AddJitter)
	assert.NoError(t, cfg.Validate())

	assert.Equal(t, 1, Once().MaxAttempts)
}

func TestJittered(t *testing.T) {
	d := 100 * time.Millisecond
	for i := 0; i < 20; i++ {
		got := jittered(d, true)
		assert.GreaterOrEqual(t, got, d)
		assert.Less(t, got, d+d/4)
	}
	assert.Equal(t, d, jittered(d, false))
}
