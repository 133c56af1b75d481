package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("should apply defaults", func(t *testing.T) {
		cfg, err := New()
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.Port)
		assert.Equal(t, "info", cfg.LogLevel)
		assert.Equal(t, "config/markets.json", cfg.MarketsPath)
		assert.Equal(t, "log", cfg.EventSinkMode)
		assert.Equal(t, 30*time.Second, cfg.ProviderHTTPTimeout)
		assert.Equal(t, 5*time.Minute, cfg.TokenSafetyMargin)
		assert.False(t, cfg.Mpesa.Enabled())
		assert.False(t, cfg.MTN.Enabled())
	})

	t.Run("should read provider credentials from the environment", func(t *testing.T) {
		t.Setenv("PORT", "9090")
		t.Setenv("MPESA_CONSUMER_KEY", "key")
		t.Setenv("MPESA_CONSUMER_SECRET", "secret")
		t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

		cfg, err := New()
		require.NoError(t, err)

		assert.Equal(t, 9090, cfg.Port)
		assert.True(t, cfg.Mpesa.Enabled())
		assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	})

	t.Run("should need all three MTN credentials", func(t *testing.T) {
		t.Setenv("MTN_MOMO_SUBSCRIPTION_KEY", "sub")
		t.Setenv("MTN_MOMO_API_USER", "user")

		cfg, err := New()
		require.NoError(t, err)
		assert.False(t, cfg.MTN.Enabled())

		t.Setenv("MTN_MOMO_API_KEY", "key")
		cfg, err = New()
		require.NoError(t, err)
		assert.True(t, cfg.MTN.Enabled())
	})
}
