package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// applyEnvOverrides applies environment variable overrides to the config.
// Environment variables take precedence over YAML configuration.
func (c *Config) applyEnvOverrides() {
	// Server
	setIfEnv(&c.Server.Address, "SERVER_ADDRESS")
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		c.Server.CORSAllowedOrigins = splitAndTrim(v)
	}

	// Logging
	setIfEnv(&c.Logging.Level, "LOG_LEVEL")
	setIfEnv(&c.Logging.Format, "LOG_FORMAT")
	setIfEnv(&c.Logging.Environment, "ENVIRONMENT")

	// Postgres / Redis
	setIfEnv(&c.Postgres.DSN, "POSTGRES_DSN")
	setIfEnv(&c.Redis.Addr, "REDIS_ADDR")
	setIfEnv(&c.Redis.Password, "REDIS_PASSWORD")
	setIntIfEnv(&c.Redis.DB, "REDIS_DB")

	// Payment processor
	setFloatIfEnv(&c.Payment.SuccessRate, "PAYMENT_SUCCESS_RATE")
	setBoolIfEnv(&c.Payment.TestMode, "TEST_MODE")
	setBoolIfEnv(&c.Payment.TestPaymentSuccess, "TEST_PAYMENT_SUCCESS")
	setDurationMillisIfEnv(&c.Payment.TestProcessingDelay, "TEST_PROCESSING_DELAY_MS")

	// Webhook delivery
	setIntIfEnv(&c.Webhook.MaxRetries, "WEBHOOK_MAX_RETRIES")
	setDurationMillisIfEnv(&c.Webhook.Timeout, "WEBHOOK_TIMEOUT_MS")
	setBoolIfEnv(&c.Webhook.RetryIntervalsTest, "WEBHOOK_RETRY_INTERVALS_TEST")

	// Idempotency
	setIntIfEnv(&c.Idempotency.TTLHours, "IDEMPOTENCY_TTL_HOURS")

	// Outbox poller
	setDurationMillisIfEnv(&c.Poll.Interval, "POLL_INTERVAL_MS")
	setIntIfEnv(&c.Poll.Batch, "POLL_BATCH")
}

// setIfEnv sets a string pointer to the environment variable value if it exists.
func setIfEnv(target *string, key string) {
	if val := os.Getenv(key); val != "" {
		*target = val
	}
}

// setBoolIfEnv sets a boolean pointer from an environment variable.
// Accepts "1", "true", "TRUE", "True" as true values.
func setBoolIfEnv(target *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v == "1" || strings.EqualFold(v, "true")
	}
}

// setIntIfEnv sets an int pointer from an environment variable.
func setIntIfEnv(target *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*target = n
		}
	}
}

// setFloatIfEnv sets a float64 pointer from an environment variable.
func setFloatIfEnv(target *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*target = f
		}
	}
}

// setDurationMillisIfEnv sets a Duration pointer from a millisecond integer
// environment variable.
func setDurationMillisIfEnv(target *Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			*target = Duration{Duration: time.Duration(ms) * time.Millisecond}
		}
	}
}

func splitAndTrim(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
