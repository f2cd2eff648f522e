package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads configuration from a YAML file and applies environment overrides.
// path may be empty, in which case only defaults and env vars apply.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		if err := cfg.parseFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.finalize(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:      ":8080",
			ReadTimeout:  Duration{Duration: 15 * time.Second},
			WriteTimeout: Duration{Duration: 15 * time.Second},
			IdleTimeout:  Duration{Duration: 60 * time.Second},
		},
		Logging: LoggingConfig{
			Level:       "info",
			Format:      "json",
			Environment: "production",
		},
		Postgres: PostgresConfig{
			DSN: "postgres://localhost:5432/gateway?sslmode=disable",
			Pool: PostgresPoolConfig{
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: Duration{Duration: 5 * time.Minute},
			},
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Payment: PaymentConfig{
			SuccessRate:        0.9,
			ProcessingDelayMin: Duration{Duration: 1 * time.Second},
			ProcessingDelayMax: Duration{Duration: 3 * time.Second},
			Workers:            4,
		},
		Webhook: WebhookConfig{
			MaxRetries:         5,
			Timeout:            Duration{Duration: 5 * time.Second},
			SignatureTolerance: Duration{Duration: 5 * time.Minute},
			Workers:            8,
		},
		Idempotency: IdempotencyConfig{
			TTLHours: 24,
		},
		Poll: PollConfig{
			Interval: Duration{Duration: 30 * time.Second},
			Batch:    100,
		},
		RateLimit: RateLimitConfig{
			GlobalEnabled: true,
			GlobalLimit:   1000,
			GlobalWindow:  Duration{Duration: 1 * time.Minute},
			PerIPEnabled:  true,
			PerIPLimit:    120,
			PerIPWindow:   Duration{Duration: 1 * time.Minute},
		},
	}
}

// parseFile reads and unmarshals a YAML configuration file.
func (c *Config) parseFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}
	return nil
}
