package config

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to support string based YAML decoding.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses duration values expressed as Go-style strings or numbers interpreted as seconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		raw := strings.TrimSpace(value.Value)
		if raw == "" {
			d.Duration = 0
			return nil
		}
		parsed, err := time.ParseDuration(raw)
		if err == nil {
			d.Duration = parsed
			return nil
		}
		secs, convErr := time.ParseDuration(fmt.Sprintf("%ss", raw))
		if convErr == nil {
			d.Duration = secs
			return nil
		}
		return fmt.Errorf("invalid duration value %q: %w", raw, err)
	default:
		return fmt.Errorf("unsupported duration node kind: %v", value.Kind)
	}
}

// MarshalYAML renders the duration as a string to keep config edits human-friendly.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// Config aggregates application configuration from file and environment
// variables. Environment variables always win.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
	Postgres    PostgresConfig    `yaml:"postgres"`
	Redis       RedisConfig       `yaml:"redis"`
	Payment     PaymentConfig     `yaml:"payment"`
	Webhook     WebhookConfig     `yaml:"webhook"`
	Idempotency IdempotencyConfig `yaml:"idempotency"`
	Poll        PollConfig        `yaml:"poll"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
}

// ServerConfig holds HTTP server configuration for cmd/api.
type ServerConfig struct {
	Address      string   `yaml:"address"`
	ReadTimeout  Duration `yaml:"read_timeout"`
	WriteTimeout Duration `yaml:"write_timeout"`
	IdleTimeout  Duration `yaml:"idle_timeout"`

	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
}

// LoggingConfig holds structured logging configuration.
type LoggingConfig struct {
	Level       string `yaml:"level"`       // debug, info, warn, error (default: info)
	Format      string `yaml:"format"`      // json, console (default: json)
	Environment string `yaml:"environment"` // production, staging, development
}

// PostgresConfig holds the store's Postgres connection settings.
type PostgresConfig struct {
	DSN  string             `yaml:"dsn"`
	Pool PostgresPoolConfig `yaml:"pool"`
}

// PostgresPoolConfig holds PostgreSQL connection pool settings.
type PostgresPoolConfig struct {
	MaxOpenConns    int      `yaml:"max_open_conns"`    // default: 25
	MaxIdleConns    int      `yaml:"max_idle_conns"`    // default: 5
	ConnMaxLifetime Duration `yaml:"conn_max_lifetime"` // default: 5m
}

// RedisConfig holds the job queue's Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// PaymentConfig configures the simulated payment processor.
type PaymentConfig struct {
	SuccessRate          float64  `yaml:"success_rate"`            // default 0.9
	TestMode             bool     `yaml:"test_mode"`               // deterministic overrides below apply
	TestPaymentSuccess   bool     `yaml:"test_payment_success"`    // forced outcome when TestMode
	TestProcessingDelay  Duration `yaml:"test_processing_delay"`   // forced delay when TestMode
	ProcessingDelayMin   Duration `yaml:"processing_delay_min"`    // randomized delay range outside TestMode
	ProcessingDelayMax   Duration `yaml:"processing_delay_max"`
	Workers              int      `yaml:"workers"` // default: 4
}

// WebhookConfig configures signing, delivery, and retry of outbound webhooks.
type WebhookConfig struct {
	MaxRetries         int      `yaml:"max_retries"`          // default: 5
	Timeout            Duration `yaml:"timeout"`              // default: 5s
	RetryIntervalsTest bool     `yaml:"retry_intervals_test"` // shortens backoff schedule for tests
	SignatureTolerance Duration `yaml:"signature_tolerance"`  // default: 5m
	Workers            int      `yaml:"workers"`              // default: 8
}

// IdempotencyConfig configures the TTL of recorded idempotent responses.
type IdempotencyConfig struct {
	TTLHours int `yaml:"ttl_hours"` // default: 24
}

// TTL returns the configured idempotency record lifetime as a time.Duration.
func (c IdempotencyConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

// PollConfig configures the webhook dispatcher's outbox poller.
type PollConfig struct {
	Interval Duration `yaml:"interval"` // default: 30s
	Batch    int      `yaml:"batch"`    // default: 100
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	GlobalEnabled bool     `yaml:"global_enabled"`
	GlobalLimit   int      `yaml:"global_limit"`
	GlobalWindow  Duration `yaml:"global_window"`

	PerIPEnabled bool     `yaml:"per_ip_enabled"`
	PerIPLimit   int      `yaml:"per_ip_limit"`
	PerIPWindow  Duration `yaml:"per_ip_window"`
}
