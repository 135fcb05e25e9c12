// Package main is the entry point for signalscope, the daily technical
// signal pipeline service.
//
// Startup sequence:
//  1. Load configuration from the environment (.env supported)
//  2. Initialize the structured logger
//  3. Wire databases, repositories, services and jobs via the DI container
//  4. Start the cron scheduler and the HTTP server
//  5. Wait for SIGINT/SIGTERM and shut down gracefully
//
// Databases:
//   - history.db: market data supplied by data acquisition
//   - signals.db: score results, signals and performance aggregates
//   - cache.db: derived price series and indicator snapshots
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/signalscope/internal/config"
	"github.com/aristath/signalscope/internal/di"
	"github.com/aristath/signalscope/internal/server"
	"github.com/aristath/signalscope/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:   cfg.LogLevel,
		Pretty:  cfg.LogPretty,
		Service: "signalscope",
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Str("data_dir", cfg.DataDir).
		Int("workers", cfg.WorkerCount).
		Msg("Starting signalscope")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container, jobs, err := di.Wire(ctx, cfg, logger.Component(log, "di"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	log.Info().
		Int("scoring_jobs", len(jobs.Scoring)).
		Int("lifecycle_jobs", len(jobs.Lifecycle)).
		Bool("backups", jobs.Backup != nil).
		Msg("Jobs ready")

	srv := server.New(server.Config{
		Log:       log,
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
		DataDir:   cfg.DataDir,
		Databases: container.Databases(),
		Pipeline:  container.PipelineService,
		Scheduler: container.Scheduler,
		Events:    container.EventManager,
		Metrics:   container.Metrics,
		Backups:   container.BackupService,
	})

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	container.Scheduler.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownLog := logger.Component(log, "shutdown")
	shutdownLog.Info().Msg("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		shutdownLog.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Waits for running jobs so databases are not closed underneath them
	container.Scheduler.Stop()

	shutdownLog.Info().Msg("Server stopped")
}
