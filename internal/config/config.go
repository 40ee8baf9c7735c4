package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all service settings, populated from the environment.
type AppConfig struct {
	// FeedURL is the provider endpoint.
	FeedURL string
	// HTTPTimeout bounds each feed request.
	HTTPTimeout time.Duration
	// FeedMaxRetries is the number of retries after a failed request (0 = single request).
	FeedMaxRetries int

	// FetchInterval controls how often the snapshot is refreshed.
	FetchInterval time.Duration

	// Snapshot file and backup retention.
	SnapshotFile string
	MaxBackups   int

	Port            string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from the environment (and an optional .env file)
// with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}
	cfg := &AppConfig{}

	cfg.FeedURL = getenvDefault("FEED_URL", "http://www.funvisis.gob.ve/maravilla.json")
	cfg.SnapshotFile = getenvDefault("SNAPSHOT_FILE", "sismosve.json")
	cfg.Port = getenvDefault("PORT", "8080")
	cfg.LogLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.LogFormat = getenvDefault("LOG_FORMAT", "json")

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "30s"); err != nil {
		return nil, err
	}
	// Scheduler interval: default 5 minutes.
	if cfg.FetchInterval, err = getenvDuration("FETCH_INTERVAL", "5m"); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = getenvDuration("SHUTDOWN_TIMEOUT", "10s"); err != nil {
		return nil, err
	}

	if cfg.MaxBackups, err = getenvInt("MAX_BACKUPS", 5); err != nil {
		return nil, err
	}
	if cfg.MaxBackups <= 0 {
		return nil, errors.New("MAX_BACKUPS must be positive")
	}
	if cfg.FeedMaxRetries, err = getenvInt("FEED_MAX_RETRIES", 0); err != nil {
		return nil, err
	}
	if cfg.FeedMaxRetries < 0 {
		return nil, errors.New("FEED_MAX_RETRIES must not be negative")
	}

	if cfg.SnapshotFile == "" {
		return nil, errors.New("SNAPSHOT_FILE is required")
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

// getenvDuration parses key as a positive duration.
func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}
