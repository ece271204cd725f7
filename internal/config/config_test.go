package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "10000", cfg.Server.Port)
	assert.Equal(t, "https://api.placeholder.com", cfg.ERP.BaseURL)
	assert.Equal(t, "your_fallback_key", cfg.ERP.APIKey)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.Scheduler.Interval)
	assert.Equal(t, 24*time.Hour, cfg.Idempotency.TTL)
	assert.Equal(t, 5*time.Minute, cfg.Idempotency.LockTTL)
	assert.Empty(t, cfg.Database.DSN)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.False(t, cfg.Server.ReadOnly)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CHAINSYNC_ERP_BASE_URL", "https://erp.example.com")
	t.Setenv("CHAINSYNC_SCHEDULER_INTERVAL", "30s")
	t.Setenv("CHAINSYNC_SERVER_READ_ONLY", "true")
	t.Setenv("CHAINSYNC_DATABASE_DSN", "postgres://u:p@db:5432/chainsync")
	t.Setenv("CHAINSYNC_IDEMPOTENCY_LOCK_TTL", "90s")

	cfg, err := load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "https://erp.example.com", cfg.ERP.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.Interval)
	assert.True(t, cfg.Server.ReadOnly)
	assert.Equal(t, "postgres://u:p@db:5432/chainsync", cfg.Database.DSN)
	assert.Equal(t, 90*time.Second, cfg.Idempotency.LockTTL)
}

func TestLoadLegacyOracleVariables(t *testing.T) {
	t.Setenv("ORACLE_BASE_URL", "https://ebs.example.com")
	t.Setenv("ORACLE_API_KEY", "legacy-key")

	cfg, err := load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "https://ebs.example.com", cfg.ERP.BaseURL)
	assert.Equal(t, "legacy-key", cfg.ERP.APIKey)
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		ERP:         ERPConfig{BaseURL: "https://erp"},
		Scheduler:   SchedulerConfig{Enabled: true, Interval: time.Minute},
		Idempotency: IdempotencyConfig{TTL: time.Hour, LockTTL: time.Minute},
	}
	assert.NoError(t, cfg.Validate())

	cfg.Idempotency.LockTTL = 0
	assert.Error(t, cfg.Validate())
	cfg.Idempotency.LockTTL = time.Minute

	cfg.Scheduler.Interval = 0
	assert.Error(t, cfg.Validate())

	cfg.Scheduler.Enabled = false
	assert.NoError(t, cfg.Validate())

	cfg.ERP.BaseURL = " "
	assert.Error(t, cfg.Validate())
}
