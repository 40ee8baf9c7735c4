// Command sismos-updater refreshes the earthquake snapshot without the HTTP
// service, either once or in a loop.
//
// Usage:
//
//	sismos-updater once
//	sismos-updater -mode continuous
//
// It reads the same environment as the API (FEED_URL, SNAPSHOT_FILE,
// FETCH_INTERVAL, MAX_BACKUPS, ...). In continuous mode it sleeps
// FETCH_INTERVAL between cycles and keeps going after failures.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sismosve/sismos-api/internal/config"
	"github.com/sismosve/sismos-api/internal/observability"
	"github.com/sismosve/sismos-api/internal/sismos"
	"github.com/sismosve/sismos-api/internal/sismos/providers"
	"github.com/sismosve/sismos-api/internal/store"
)

const (
	modeOnce       = "once"
	modeContinuous = "continuous"
)

func main() {
	mode := flag.String("mode", modeOnce, "run mode: once or continuous")
	flag.Parse()
	if flag.NArg() > 0 {
		*mode = flag.Arg(0)
	}
	if *mode != modeOnce && *mode != modeContinuous {
		fmt.Fprintf(os.Stderr, "unknown mode %q (want %s or %s)\n", *mode, modeOnce, modeContinuous)
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	snapshots := store.NewFileStore(cfg.SnapshotFile, cfg.MaxBackups, logger, metrics)
	source := providers.NewFunvisisProvider(&http.Client{Timeout: cfg.HTTPTimeout}, cfg.FeedURL, cfg.FeedMaxRetries, logger, metrics)
	service := sismos.NewService(snapshots, source, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *mode == modeOnce {
		if !runOnce(ctx, service, logger) {
			os.Exit(1)
		}
		return
	}

	logger.Info("continuous updater started", "interval", cfg.FetchInterval)
	for {
		runOnce(ctx, service, logger)
		if !sleepWithContext(ctx, cfg.FetchInterval) {
			logger.Info("updater stopping", "reason", ctx.Err())
			return
		}
	}
}

func runOnce(ctx context.Context, service *sismos.Service, logger *slog.Logger) bool {
	stats, err := service.Refresh(ctx)
	if err != nil {
		logger.Error("update failed", "error", err)
		return false
	}
	logger.Info("update completed",
		"events", stats.Total,
		"magnitude_min", stats.MinMagnitude,
		"magnitude_max", stats.MaxMagnitude,
		"magnitude_avg", stats.AvgMagnitude,
	)
	return true
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
