package token

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"agropay/internal/domain/payment"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubExchanger struct {
	calls int32
	delay time.Duration
	token Token
	err   error
}

func (s *stubExchanger) Exchange(ctx context.Context) (Token, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return Token{}, s.err
	}
	return s.token, nil
}

func (s *stubExchanger) callCount() int {
	return int(atomic.LoadInt32(&s.calls))
}

func TestManager_GetToken(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return base }

	t.Run("should exchange on first call and cache", func(t *testing.T) {
		ex := &stubExchanger{token: Token{Value: "tok-1", ExpiresAt: base.Add(time.Hour)}}
		m := NewManager(payment.ProviderMpesa, ex, WithClock(clock))

		first, err := m.GetToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "tok-1", first.Value)

		second, err := m.GetToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, first, second)
		assert.Equal(t, 1, ex.callCount())
	})

	t.Run("should refresh inside safety margin", func(t *testing.T) {
		// token expires in 3 minutes, margin is 5
		ex := &stubExchanger{token: Token{Value: "fresh", ExpiresAt: base.Add(time.Hour)}}
		m := NewManager(payment.ProviderMpesa, ex, WithClock(clock))
		m.cached = Token{Value: "stale", ExpiresAt: base.Add(3 * time.Minute)}

		tok, err := m.GetToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "fresh", tok.Value)
		assert.Equal(t, 1, ex.callCount())
	})

	t.Run("should share one exchange between concurrent callers", func(t *testing.T) {
		ex := &stubExchanger{
			delay: 50 * time.Millisecond,
			token: Token{Value: "shared", ExpiresAt: base.Add(time.Hour)},
		}
		m := NewManager(payment.ProviderMpesa, ex, WithClock(clock))

		const n = 20
		var wg sync.WaitGroup
		tokens := make([]Token, n)
		errs := make([]error, n)

		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				tokens[i], errs[i] = m.GetToken(context.Background())
			}(i)
		}
		wg.Wait()

		for i := 0; i < n; i++ {
			require.NoError(t, errs[i])
			assert.Equal(t, "shared", tokens[i].Value)
		}
		assert.Equal(t, 1, ex.callCount())
	})

	t.Run("should not cache a failed exchange", func(t *testing.T) {
		ex := &stubExchanger{err: payment.NewError(payment.KindAuthFailure, "bad credentials")}
		m := NewManager(payment.ProviderMpesa, ex, WithClock(clock))

		_, err := m.GetToken(context.Background())
		assert.Equal(t, payment.KindAuthFailure, payment.KindOf(err))

		ex.err = nil
		ex.token = Token{Value: "recovered", ExpiresAt: base.Add(time.Hour)}

		tok, err := m.GetToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "recovered", tok.Value)
		assert.Equal(t, 2, ex.callCount())
	})

	t.Run("should classify unknown exchange errors as auth failure", func(t *testing.T) {
		ex := &stubExchanger{err: errors.New("connection reset")}
		m := NewManager(payment.ProviderMpesa, ex, WithClock(clock))

		_, err := m.GetToken(context.Background())
		assert.Equal(t, payment.KindAuthFailure, payment.KindOf(err))
	})

	t.Run("should honor a custom safety margin", func(t *testing.T) {
		ex := &stubExchanger{token: Token{Value: "fresh", ExpiresAt: base.Add(time.Hour)}}
		m := NewManager(payment.ProviderMpesa, ex, WithClock(clock), WithSafetyMargin(time.Nanosecond))
		m.cached = Token{Value: "barely-valid", ExpiresAt: base.Add(time.Minute)}

		tok, err := m.GetToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "barely-valid", tok.Value)
		assert.Equal(t, 0, ex.callCount())
	})
}
