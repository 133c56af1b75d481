// Package token caches per-provider bearer tokens and refreshes them ahead
// of expiry. One Manager per configured provider; the cached token is the
// only long-lived mutable state in the gateway.
package token

import (
	"context"
	"sync"
	"time"

	"agropay/internal/domain/payment"

	"golang.org/x/sync/singleflight"
)

// DefaultSafetyMargin is how much validity a token handed out must still
// have; anything closer to expiry triggers a refresh first.
const DefaultSafetyMargin = 5 * time.Minute

// Token is an opaque bearer credential with an absolute expiry.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// Exchanger performs one credential exchange against a provider. Each
// provider client implements this with its own auth scheme.
type Exchanger interface {
	Exchange(ctx context.Context) (Token, error)
}

// Manager serializes refreshes for one provider. Reads of a still-valid
// token never block behind a refresh, and concurrent callers during a
// refresh share a single in-flight exchange call.
type Manager struct {
	provider  payment.Provider
	exchanger Exchanger
	margin    time.Duration
	now       func() time.Time

	mu     sync.RWMutex
	cached Token

	group singleflight.Group
}

type Option func(*Manager)

// WithSafetyMargin overrides the remaining-validity requirement.
func WithSafetyMargin(d time.Duration) Option {
	return func(m *Manager) { m.margin = d }
}

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(provider payment.Provider, exchanger Exchanger, opts ...Option) *Manager {
	m := &Manager{
		provider:  provider,
		exchanger: exchanger,
		margin:    DefaultSafetyMargin,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetToken returns a cached token with at least the safety margin of
// validity left, refreshing via the exchanger otherwise. A failed exchange
// is never cached.
func (m *Manager) GetToken(ctx context.Context) (Token, error) {
	m.mu.RLock()
	cached := m.cached
	m.mu.RUnlock()

	if m.valid(cached) {
		return cached, nil
	}

	v, err, _ := m.group.Do("refresh", func() (any, error) {
		// A concurrent flight may already have refreshed.
		m.mu.RLock()
		cached := m.cached
		m.mu.RUnlock()
		if m.valid(cached) {
			return cached, nil
		}

		fresh, err := m.exchanger.Exchange(ctx)
		if err != nil {
			if payment.KindOf(err) == payment.KindUnknown {
				err = payment.NewProviderError(payment.KindAuthFailure,
					"credential exchange failed", "", err.Error())
			}
			return Token{}, err
		}

		m.mu.Lock()
		m.cached = fresh
		m.mu.Unlock()
		return fresh, nil
	})
	if err != nil {
		return Token{}, err
	}
	return v.(Token), nil
}

func (m *Manager) valid(t Token) bool {
	return t.Value != "" && m.now().Add(m.margin).Before(t.ExpiresAt)
}
