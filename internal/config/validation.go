package config

import (
	"database/sql"
	"errors"
	"strings"
	"time"
)

// finalize applies defaults that depend on other fields and validates the
// configuration.
func (c *Config) finalize() error {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Environment == "" {
		c.Logging.Environment = "production"
	}
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}

	if c.Payment.SuccessRate <= 0 {
		c.Payment.SuccessRate = 0.9
	}
	if c.Payment.Workers <= 0 {
		c.Payment.Workers = 4
	}
	if c.Payment.ProcessingDelayMin.Duration <= 0 {
		c.Payment.ProcessingDelayMin = Duration{Duration: 1 * time.Second}
	}
	if c.Payment.ProcessingDelayMax.Duration <= 0 {
		c.Payment.ProcessingDelayMax = Duration{Duration: 3 * time.Second}
	}

	if c.Webhook.MaxRetries <= 0 {
		c.Webhook.MaxRetries = 5
	}
	if c.Webhook.Timeout.Duration <= 0 {
		c.Webhook.Timeout = Duration{Duration: 5 * time.Second}
	}
	if c.Webhook.SignatureTolerance.Duration <= 0 {
		c.Webhook.SignatureTolerance = Duration{Duration: 5 * time.Minute}
	}
	if c.Webhook.Workers <= 0 {
		c.Webhook.Workers = 8
	}

	if c.Idempotency.TTLHours <= 0 {
		c.Idempotency.TTLHours = 24
	}

	if c.Poll.Interval.Duration <= 0 {
		c.Poll.Interval = Duration{Duration: 30 * time.Second}
	}
	if c.Poll.Batch <= 0 {
		c.Poll.Batch = 100
	}

	return c.validate()
}

// validate checks that required configuration fields are set correctly.
func (c *Config) validate() error {
	var errs []string

	if c.Postgres.DSN == "" {
		errs = append(errs, "postgres.dsn is required")
	}
	if c.Redis.Addr == "" {
		errs = append(errs, "redis.addr is required")
	}
	if c.Payment.SuccessRate < 0 || c.Payment.SuccessRate > 1 {
		errs = append(errs, "payment.success_rate must be between 0 and 1")
	}
	if c.Payment.ProcessingDelayMin.Duration > c.Payment.ProcessingDelayMax.Duration {
		errs = append(errs, "payment.processing_delay_min must not exceed processing_delay_max")
	}
	if c.Webhook.MaxRetries < 0 {
		errs = append(errs, "webhook.max_retries must not be negative")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// ApplyPostgresPoolSettings applies connection pool settings to a database
// connection. If pool config is not specified, applies sensible defaults.
func ApplyPostgresPoolSettings(db *sql.DB, pool PostgresPoolConfig) {
	maxOpen := pool.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 25
	}

	maxIdle := pool.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 5
	}
	if maxIdle > maxOpen {
		maxIdle = maxOpen
	}

	maxLifetime := pool.ConnMaxLifetime.Duration
	if maxLifetime <= 0 {
		maxLifetime = 5 * time.Minute
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(maxLifetime)
}
