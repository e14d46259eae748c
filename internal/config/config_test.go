package config

import (
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "DATABASE_URL", "REDIS_ADDR", "LOBBY_STORE", "TOKEN_EXPIRE_TIME", "LOG_LEVEL", "TARGET_RADIUS_METERS", "RUN_SWEEPERS"} {
		t.Setenv(k, "")
	}
	t.Setenv("PG_DATABASE", "geohunt")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, StoreRedis, cfg.LobbyStore)
	assert.Equal(t, "geohunt_events", cfg.EventQueueName)
	assert.Zero(t, cfg.TokenExpiry)
	assert.Equal(t, 50.0, cfg.TargetRadiusMeters)
	assert.False(t, cfg.RunSweepers)
	assert.Equal(t, log.InfoLevel, cfg.LogLevel)
	assert.Equal(t, 500*time.Millisecond, cfg.HistorianFlush)
	assert.Contains(t, cfg.DatabaseURL, "/geohunt")
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/x")
	t.Setenv("LOBBY_STORE", "Memory")
	t.Setenv("TOKEN_EXPIRE_TIME", "24h")
	t.Setenv("RUN_SWEEPERS", "true")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("TARGET_RADIUS_METERS", "75")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@db:5432/x", cfg.DatabaseURL)
	assert.Equal(t, StoreMemory, cfg.LobbyStore)
	assert.Equal(t, 24*time.Hour, cfg.TokenExpiry)
	assert.True(t, cfg.RunSweepers)
	assert.Equal(t, log.DebugLevel, cfg.LogLevel)
	assert.Equal(t, 75.0, cfg.TargetRadiusMeters)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("LOBBY_STORE", "etcd")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("LOBBY_STORE", "")
	t.Setenv("TOKEN_EXPIRE_TIME", "soon")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("TOKEN_EXPIRE_TIME", "never")
	t.Setenv("TARGET_RADIUS_METERS", "-1")
	_, err = Load()
	assert.Error(t, err)
}
