package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"agropay/internal/domain/payment"

	"github.com/stretchr/testify/assert"
)

func fastConfig() Config {
	return Config{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestDo(t *testing.T) {
	t.Parallel()

	t.Run("should return immediately on success", func(t *testing.T) {
		calls := 0

		err := Do(context.Background(), fastConfig(), func() error {
			calls++
			return nil
		})

		assert.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("should retry retryable failures up to the limit", func(t *testing.T) {
		calls := 0

		err := Do(context.Background(), fastConfig(), func() error {
			calls++
			return payment.NewError(payment.KindProviderUnavailable, "down")
		})

		assert.Equal(t, payment.KindProviderUnavailable, payment.KindOf(err))
		assert.Equal(t, 3, calls)
	})

	t.Run("should succeed mid-way", func(t *testing.T) {
		calls := 0

		err := Do(context.Background(), fastConfig(), func() error {
			calls++
			if calls < 3 {
				return payment.NewError(payment.KindTimeout, "slow")
			}
			return nil
		})

		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("should not retry terminal failures", func(t *testing.T) {
		calls := 0

		err := Do(context.Background(), fastConfig(), func() error {
			calls++
			return payment.NewError(payment.KindRejectedByProvider, "no")
		})

		assert.Equal(t, payment.KindRejectedByProvider, payment.KindOf(err))
		assert.Equal(t, 1, calls)
	})

	t.Run("should not retry plain errors", func(t *testing.T) {
		calls := 0

		err := Do(context.Background(), fastConfig(), func() error {
			calls++
			return errors.New("boom")
		})

		assert.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("should stop when the context is cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cfg := Config{MaxAttempts: 10, BaseDelay: time.Hour, MaxDelay: time.Hour}

		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()

		err := Do(ctx, cfg, func() error {
			return payment.NewError(payment.KindTimeout, "slow")
		})

		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestBackoff(t *testing.T) {
	t.Parallel()

	base := 100 * time.Millisecond
	max := time.Second

	for attempt := 0; attempt < 10; attempt++ {
		d := backoff(attempt, base, max)
		assert.LessOrEqual(t, d, max)
		assert.Positive(t, d)
	}
}
