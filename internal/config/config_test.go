package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"APP_ENV", "PORT", "LOG_LEVEL", "REDIS_URL", "REDIS_ADDR", "QUEUE_TIMEOUT", "STATS_INTERVAL", "ALLOWED_ORIGINS", "CORS_ORIGIN"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	assert.Equal(t, ":5000", cfg.Addr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "", cfg.RedisURL)
	assert.Equal(t, 2*time.Minute, cfg.QueueTimeout)
	assert.Equal(t, 5*time.Second, cfg.StatsInterval)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.False(t, cfg.IsProduction())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("PORT", "9000")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("REDIS_ADDR", "cache:6379")
	t.Setenv("QUEUE_TIMEOUT", "90s")
	t.Setenv("STATS_INTERVAL", "not-a-duration")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg := Load()
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "cache:6379", cfg.RedisURL)
	assert.Equal(t, 90*time.Second, cfg.QueueTimeout)
	assert.Equal(t, 5*time.Second, cfg.StatsInterval, "invalid durations fall back to the default")
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}
