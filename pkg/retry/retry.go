// Package retry provides exponential backoff for operations that fail with
// transient errors, such as fetching remote documents.
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/c360/mmif/errors"
)

var (
	randMu     sync.Mutex
	randSource = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// NonRetryableError marks an error that must not be retried
type NonRetryableError struct {
	Err error
}

func (e *NonRetryableError) Error() string {
	return fmt.Sprintf("non-retryable: %v", e.Err)
}

func (e *NonRetryableError) Unwrap() error {
	return e.Err
}

// NonRetryable wraps an error to indicate it should not be retried
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &NonRetryableError{Err: err}
}

// IsNonRetryable checks if an error is marked as non-retryable
func IsNonRetryable(err error) bool {
	var nre *NonRetryableError
	return errors.As(err, &nre)
}

// Config provides retry configuration
type Config struct {
	MaxAttempts  int           // Attempts including the first; values below 1 mean one
	InitialDelay time.Duration // Delay before the second attempt
	MaxDelay     time.Duration // Upper bound for any delay
	Multiplier   float64       // Growth factor between delays
	AddJitter    bool          // Add up to 25% random delay

	// Retryable decides whether an error is worth another attempt. When nil,
	// every error except fatal, invalid-input and NonRetryable ones is
	// retried.
	Retryable func(error) bool
}

// DefaultConfig returns the settings used for document downloads
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		AddJitter:    true,
	}
}

// Once returns a config that performs a single attempt
func Once() Config {
	return Config{MaxAttempts: 1}
}

// Validate reports configuration mistakes as errors.ErrInvalidConfig
func (c Config) Validate() error {
	switch {
	case c.InitialDelay < 0:
		return fmt.Errorf("%w: retry InitialDelay cannot be negative", errors.ErrInvalidConfig)
	case c.MaxDelay < 0:
		return fmt.Errorf("%w: retry MaxDelay cannot be negative", errors.ErrInvalidConfig)
	case c.Multiplier < 0:
		return fmt.Errorf("%w: retry Multiplier cannot be negative", errors.ErrInvalidConfig)
	case c.MaxDelay > 0 && c.InitialDelay > c.MaxDelay:
		return fmt.Errorf("%w: retry MaxDelay must be >= InitialDelay", errors.ErrInvalidConfig)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	if c.InitialDelay == 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = 5 * time.Second
	}
	if c.MaxDelay < c.InitialDelay {
		c.MaxDelay = c.InitialDelay
	}
	if c.Multiplier == 0 {
		c.Multiplier = 2.0
	}
	if c.Multiplier > 1000 {
		c.Multiplier = 1000
	}
	if c.Retryable == nil {
		c.Retryable = defaultRetryable
	}
	return c
}

func defaultRetryable(err error) bool {
	if IsNonRetryable(err) {
		return false
	}
	return errors.IsTransient(err) || !(errors.IsFatal(err) || errors.IsInvalid(err))
}

// Do executes fn until it succeeds, returns an error that is not
// retryable, the attempts run out, or ctx is done.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	if err := cfg.Validate(); err != nil {
		return errors.WrapFatal(err, "retry", "Do", "validate config")
	}
	cfg = cfg.withDefaults()

	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !cfg.Retryable(err) {
			return err
		}
		if ctx.Err() != nil {
			return fmt.Errorf("retry cancelled before attempt %d: %w", attempt+1, ctx.Err())
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		timer := time.NewTimer(jittered(delay, cfg.AddJitter))
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled during backoff for attempt %d: %w", attempt+1, ctx.Err())
		case <-timer.C:
		}

		delay = nextDelay(delay, cfg)
	}

	return fmt.Errorf("retry failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
}

// DoWithResult executes fn with retry and returns both result and error
func DoWithResult[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var result T
	err := Do(ctx, cfg, func() error {
		var innerErr error
		result, innerErr = fn()
		return innerErr
	})
	return result, err
}

func jittered(d time.Duration, enabled bool) time.Duration {
	if !enabled || d < 4 {
		return d
	}
	randMu.Lock()
	defer randMu.Unlock()
	return d + time.Duration(randSource.Int63n(int64(d/4)))
}

func nextDelay(d time.Duration, cfg Config) time.Duration {
	next := float64(d) * cfg.Multiplier
	if next > float64(cfg.MaxDelay) {
		return cfg.MaxDelay
	}
	return time.Duration(next)
}
