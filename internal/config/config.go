// Package config loads process settings from the environment and an
// optional .env file.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	Port         string
	DatabasePath string
	Environment  string
	LogLevel     slog.Level

	// OperatorSecret is the bearer token of the admin API. Empty locks it.
	OperatorSecret string

	ReconcileInterval  time.Duration
	ReconcileBatchSize int
	ReconcileClaimTTL  time.Duration

	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, after loading .env
// when present. Variables already set in the environment win.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port:               getenv("PORT", "8080"),
		DatabasePath:       getenv("DATABASE_PATH", "sessiongate.db"),
		Environment:        strings.ToLower(getenv("ENVIRONMENT", "development")),
		LogLevel:           getenvLevel("LOG_LEVEL", slog.LevelInfo),
		OperatorSecret:     strings.TrimSpace(os.Getenv("OPERATOR_SECRET")),
		ReconcileInterval:  getenvDuration("RECONCILE_INTERVAL", 5*time.Minute),
		ReconcileBatchSize: getenvInt("RECONCILE_BATCH_SIZE", 100),
		ReconcileClaimTTL:  getenvDuration("RECONCILE_CLAIM_TTL", 15*time.Minute),
		ShutdownTimeout:    getenvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

// IsProduction reports whether logs should be machine readable.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

// getenvDuration accepts Go durations ("90s", "5m"). "0" disables.
func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	if value == "0" {
		return 0
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed < 0 {
		return def
	}
	return parsed
}

func getenvLevel(key string, def slog.Level) slog.Level {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		return def
	}
	return level
}
