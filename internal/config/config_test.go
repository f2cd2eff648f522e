package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 0.9, cfg.Payment.SuccessRate)
	assert.Equal(t, 4, cfg.Payment.Workers)
	assert.Equal(t, 5, cfg.Webhook.MaxRetries)
	assert.Equal(t, 8, cfg.Webhook.Workers)
	assert.Equal(t, 24, cfg.Idempotency.TTLHours)
	assert.Equal(t, 100, cfg.Poll.Batch)
	assert.Equal(t, 30*time.Second, cfg.Poll.Interval.Duration)
}

func TestLoadParsesYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  address: ":9090"
payment:
  success_rate: 0.75
  workers: 2
webhook:
  max_retries: 3
poll:
  batch: 50
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, 0.75, cfg.Payment.SuccessRate)
	assert.Equal(t, 2, cfg.Payment.Workers)
	assert.Equal(t, 3, cfg.Webhook.MaxRetries)
	assert.Equal(t, 50, cfg.Poll.Batch)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadValidatesSuccessRateRange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("payment:\n  success_rate: 1.5\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "success_rate")
}
