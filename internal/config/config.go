package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Config captures runtime configuration sourced from environment variables.
type Config struct {
	Environment   string
	HTTPPort      string
	DatabasePath  string
	LogDir        string
	JWTSecret     string
	SweepSchedule string
	// NotifyURLs is a comma-separated list of shoutrrr URLs that receive
	// operational alerts (storage corruption, lossy imports).
	NotifyURLs string
}

// Load reads env vars and falls back to defaults so the daemon can boot with zero configuration.
func Load() (Config, error) {
	cfg := Config{
		Environment:   getEnv("PG_ENV", "development"),
		HTTPPort:      getEnv("PG_HTTP_PORT", "8090"),
		DatabasePath:  getEnv("PG_DB_PATH", filepath.Join("data", "policygraph.db")),
		LogDir:        getEnv("PG_LOG_DIR", filepath.Join("data", "logs")),
		JWTSecret:     getEnv("PG_JWT_SECRET", ""),
		SweepSchedule: getEnv("PG_SWEEP_SCHEDULE", "@every 1h"),
		NotifyURLs:    getEnv("PG_NOTIFY_URLS", ""),
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
		return Config{}, fmt.Errorf("ensure data directory: %w", err)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return fallback
}
