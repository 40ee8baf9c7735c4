package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpapi "github.com/sismosve/sismos-api/internal/api/http"
	"github.com/sismosve/sismos-api/internal/config"
	"github.com/sismosve/sismos-api/internal/observability"
	"github.com/sismosve/sismos-api/internal/scheduler"
	"github.com/sismosve/sismos-api/internal/sismos"
	"github.com/sismosve/sismos-api/internal/sismos/providers"
	"github.com/sismosve/sismos-api/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	// Shared HTTP client for outbound feed calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	snapshots := store.NewFileStore(cfg.SnapshotFile, cfg.MaxBackups, logger, metrics)
	source := providers.NewFunvisisProvider(httpClient, cfg.FeedURL, cfg.FeedMaxRetries, logger, metrics)

	// Core service: refresh pipeline and snapshot reads.
	service := sismos.NewService(snapshots, source, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Scheduler that periodically refreshes the snapshot; the first cycle runs before Start returns.
	sched := scheduler.New(service, cfg.FetchInterval, logger, metrics)
	if err := sched.Start(ctx); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}

	app := httpapi.NewApp(true)
	httpapi.RegisterRoutes(app, service, sched, logger)

	go func() {
		logger.Info("http server starting", "port", cfg.Port, "snapshot", snapshots.Path())
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error("http server stopped", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("error during http shutdown", "error", err)
	}
	if err := sched.Close(shutdownCtx); err != nil {
		logger.Error("error during scheduler shutdown", "error", err)
	}
}
