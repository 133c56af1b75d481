// Package retry implements bounded exponential backoff for provider calls.
// Retry policy lives with the caller: adapters classify failures, this
// package decides whether another attempt is worth making.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"agropay/internal/domain/payment"
)

// Config holds configuration for retry with exponential backoff.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultConfig returns sensible defaults for retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    5 * time.Second,
	}
}

// Do executes fn with exponential backoff. Only retryable payment failures
// (auth_failure, provider_unavailable, timeout) are retried; everything else
// returns immediately.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err

		if !payment.IsRetryable(err) {
			return err
		}

		// Don't wait after the last attempt
		if attempt == cfg.MaxAttempts-1 {
			break
		}

		delay := backoff(attempt, cfg.BaseDelay, cfg.MaxDelay)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return lastErr
}

// backoff computes exponential backoff with jitter.
func backoff(attempt int, baseDelay, maxDelay time.Duration) time.Duration {
	// Exponential: baseDelay * 2^attempt
	delay := float64(baseDelay) * math.Pow(2, float64(attempt))

	// Jitter of up to 25% either way
	jitter := delay * 0.25 * (rand.Float64()*2 - 1)
	delay += jitter

	if delay > float64(maxDelay) {
		delay = float64(maxDelay)
	}

	return time.Duration(delay)
}
