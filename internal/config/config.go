// Package config loads service settings from the environment. A .env file in the
// working directory is picked up automatically by godotenv/autoload in main.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every tunable of the matchmaking service.
type Config struct {
	Env      string
	Addr     string
	LogLevel string

	// RedisURL may be a redis:// URL or a bare host:port. Empty disables the shared room cache.
	RedisURL string
	RedisDB  int

	// DatabaseURL enables player profile lookups when set.
	DatabaseURL string

	// JWTSecret verifies peer tokens for the advisory player id. Empty skips verification.
	JWTSecret string

	QueueTimeout   time.Duration
	StatsInterval  time.Duration
	OutboxSize     int
	AllowedOrigins []string
}

// Load reads the environment, applying defaults for anything unset.
func Load() Config {
	cfg := Config{
		Env:            getEnv("APP_ENV", "development"),
		Addr:           ":" + getEnv("PORT", "5000"),
		LogLevel:       getEnv("LOG_LEVEL", ""),
		RedisURL:       getEnv("REDIS_URL", os.Getenv("REDIS_ADDR")),
		RedisDB:        getEnvInt("REDIS_DB", 0),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		QueueTimeout:   getEnvDuration("QUEUE_TIMEOUT", 2*time.Minute),
		StatsInterval:  getEnvDuration("STATS_INTERVAL", 5*time.Second),
		OutboxSize:     getEnvInt("OUTBOX_SIZE", 32),
		AllowedOrigins: splitCSV(getEnv("ALLOWED_ORIGINS", getEnv("CORS_ORIGIN", "*"))),
	}
	if cfg.LogLevel == "" {
		if cfg.IsProduction() {
			cfg.LogLevel = "info"
		} else {
			cfg.LogLevel = "debug"
		}
	}
	return cfg
}

// IsProduction reports whether APP_ENV names a production deployment.
func (c Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// getEnv reads an environment variable or returns def.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt parses an environment variable as an integer, else returns def.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

// getEnvDuration parses a Go duration string such as "90s" or "2m".
func getEnvDuration(key string, def time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// splitCSV trims and filters a comma-separated list.
func splitCSV(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
