package payment

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	t.Parallel()

	t.Run("should extract kind from a payment error", func(t *testing.T) {
		err := NewError(KindValidation, "bad phone")
		assert.Equal(t, KindValidation, KindOf(err))
	})

	t.Run("should see through wrapping", func(t *testing.T) {
		err := fmt.Errorf("initiate: %w", NewProviderError(KindTimeout, "slow provider", "", ""))
		assert.Equal(t, KindTimeout, KindOf(err))
	})

	t.Run("should default to unknown", func(t *testing.T) {
		assert.Equal(t, KindUnknown, KindOf(errors.New("boom")))
	})
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	retryable := []Kind{KindAuthFailure, KindProviderUnavailable, KindTimeout}
	for _, kind := range retryable {
		assert.True(t, IsRetryable(NewError(kind, "x")), string(kind))
	}

	terminal := []Kind{KindValidation, KindUnsupportedProvider, KindRejectedByProvider, KindMalformedCallback, KindUnknown}
	for _, kind := range terminal {
		assert.False(t, IsRetryable(NewError(kind, "x")), string(kind))
	}
}

func TestError_Error(t *testing.T) {
	t.Parallel()

	withCode := NewProviderError(KindRejectedByProvider, "push rejected", "1032", "{}")
	assert.Contains(t, withCode.Error(), "1032")

	withoutCode := NewError(KindValidation, "amount must be positive")
	assert.Equal(t, "validation: amount must be positive", withoutCode.Error())
}
