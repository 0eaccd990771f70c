package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scarson/relayd/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, ":9090", cfg.OpsAddr)
	assert.Equal(t, 5, cfg.WorkerCount)
	assert.False(t, cfg.PoolRespawnWorkers)
	assert.Equal(t, float64(0), cfg.AcceptRateLimit)
	assert.Equal(t, 15*time.Second, cfg.ReadTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("LISTEN_ADDR", ":7070")
	t.Setenv("WORKER_COUNT", "12")
	t.Setenv("POOL_RESPAWN_WORKERS", "true")
	t.Setenv("ACCEPT_RATE_LIMIT", "2.5")
	t.Setenv("READ_TIMEOUT", "3s")
	t.Setenv("APP_ENV", "production")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.ListenAddr)
	assert.Equal(t, 12, cfg.WorkerCount)
	assert.True(t, cfg.PoolRespawnWorkers)
	assert.Equal(t, 2.5, cfg.AcceptRateLimit)
	assert.Equal(t, 3*time.Second, cfg.ReadTimeout)
	assert.False(t, cfg.IsDevelopment())
}

func TestLoad_RejectsZeroWorkers(t *testing.T) {
	t.Setenv("WORKER_COUNT", "0")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WORKER_COUNT")
}

func TestLoad_RejectsNegativeRateLimit(t *testing.T) {
	t.Setenv("ACCEPT_RATE_LIMIT", "-1")

	_, err := config.Load()
	require.Error(t, err)
}

func TestLoad_RejectsZeroBurstWhenLimiting(t *testing.T) {
	t.Setenv("ACCEPT_RATE_LIMIT", "5")
	t.Setenv("ACCEPT_RATE_BURST", "0")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ACCEPT_RATE_BURST")
}
