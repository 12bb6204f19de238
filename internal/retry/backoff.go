package retry

import (
	"context"
	"time"
)

// BackoffConfig contains configuration for linear backoff. The delay
// before attempt n+1 is BaseDelay * n, capped at MaxDelay.
type BackoffConfig struct {
	BaseDelay   time.Duration `json:"base_delay"`
	MaxDelay    time.Duration `json:"max_delay"`
	MaxAttempts int           `json:"max_attempts"`
}

// DefaultBackoffConfig returns the send retry policy defaults.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		MaxAttempts: 3,
	}
}

// Backoff implements linear backoff with cancellation support.
type Backoff struct {
	config BackoffConfig
}

func NewBackoff(config BackoffConfig) *Backoff {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	return &Backoff{config: config}
}

// Retry executes the operation until it succeeds or attempts run out.
func (b *Backoff) Retry(ctx context.Context, operation func() error) error {
	return b.RetryWithPredicate(ctx, operation, func(error) bool { return true })
}

// RetryWithPredicate executes the operation with linear backoff, using a
// predicate to decide whether an error is worth another attempt. The
// context is checked before each attempt and while sleeping, so a
// cancelled caller never waits out a backoff delay.
func (b *Backoff) RetryWithPredicate(ctx context.Context, operation func() error, isRetryable func(error) bool) error {
	var lastErr error

	for attempt := 1; attempt <= b.config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := operation()
		if err == nil {
			return nil
		}

		lastErr = err

		if !isRetryable(err) {
			return err
		}

		if attempt == b.config.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.delayFor(attempt)):
		}
	}

	return lastErr
}

// delayFor computes the wait after the given attempt number, growing
// linearly and capped at MaxDelay.
func (b *Backoff) delayFor(attempt int) time.Duration {
	delay := b.config.BaseDelay * time.Duration(attempt)
	if b.config.MaxDelay > 0 && delay > b.config.MaxDelay {
		delay = b.config.MaxDelay
	}
	return delay
}

// NextDelay exposes the delay schedule for tests and monitoring.
func (b *Backoff) NextDelay(attempt int) time.Duration {
	return b.delayFor(attempt)
}
