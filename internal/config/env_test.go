package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_ADDRESS", ":7070")
	t.Setenv("PAYMENT_SUCCESS_RATE", "0.5")
	t.Setenv("TEST_MODE", "true")
	t.Setenv("TEST_PAYMENT_SUCCESS", "false")
	t.Setenv("TEST_PROCESSING_DELAY_MS", "250")
	t.Setenv("WEBHOOK_MAX_RETRIES", "3")
	t.Setenv("WEBHOOK_TIMEOUT_MS", "2500")
	t.Setenv("WEBHOOK_RETRY_INTERVALS_TEST", "1")
	t.Setenv("IDEMPOTENCY_TTL_HOURS", "1")
	t.Setenv("POLL_INTERVAL_MS", "1000")
	t.Setenv("POLL_BATCH", "25")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg := defaultConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, ":7070", cfg.Server.Address)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSAllowedOrigins)
	assert.Equal(t, 0.5, cfg.Payment.SuccessRate)
	assert.True(t, cfg.Payment.TestMode)
	assert.False(t, cfg.Payment.TestPaymentSuccess)
	assert.Equal(t, 250*time.Millisecond, cfg.Payment.TestProcessingDelay.Duration)
	assert.Equal(t, 3, cfg.Webhook.MaxRetries)
	assert.Equal(t, 2500*time.Millisecond, cfg.Webhook.Timeout.Duration)
	assert.True(t, cfg.Webhook.RetryIntervalsTest)
	assert.Equal(t, 1, cfg.Idempotency.TTLHours)
	assert.Equal(t, 1000*time.Millisecond, cfg.Poll.Interval.Duration)
	assert.Equal(t, 25, cfg.Poll.Batch)
}

func TestApplyEnvOverridesLeavesDefaultsWhenUnset(t *testing.T) {
	cfg := defaultConfig()
	want := *cfg

	cfg.applyEnvOverrides()

	require.Equal(t, want, *cfg)
}
