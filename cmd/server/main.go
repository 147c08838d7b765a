// Package main is the entry point for the allocator service. It runs
// portfolio correlation analysis, mean-variance optimization, risk
// concentration checks and rebalancing scheduling behind an HTTP API,
// persisting every analysis as an immutable snapshot.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	s3client "github.com/aristath/allocator/internal/clients/s3"
	"github.com/aristath/allocator/internal/config"
	"github.com/aristath/allocator/internal/database"
	"github.com/aristath/allocator/internal/engine"
	"github.com/aristath/allocator/internal/modules/correlation"
	"github.com/aristath/allocator/internal/modules/estimation"
	"github.com/aristath/allocator/internal/modules/optimization"
	"github.com/aristath/allocator/internal/modules/regime"
	"github.com/aristath/allocator/internal/modules/risk"
	"github.com/aristath/allocator/internal/modules/scheduling"
	"github.com/aristath/allocator/internal/modules/snapshots"
	"github.com/aristath/allocator/internal/scheduler"
	"github.com/aristath/allocator/internal/server"
	"github.com/aristath/allocator/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting allocator")

	// Snapshot database
	db, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "snapshots.db"),
		Profile: database.ProfileStandard,
		Name:    "snapshots",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open snapshot database")
	}
	defer db.Close()

	store, err := snapshots.NewStore(db, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize snapshot store")
	}

	// Optional S3 offload
	uploader, err := s3client.New(context.Background(), cfg.S3, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize S3 uploader")
	}
	if uploader != nil {
		log.Info().Str("bucket", cfg.S3.Bucket).Msg("S3 snapshot offload enabled")
	}

	// Analysis engine
	optCfg := optimization.DefaultConfig()
	optCfg.TargetVolatility = cfg.TargetVolatility
	optCfg.MaxAssetWeight = cfg.MaxAssetWeight
	optCfg.RiskFreeRate = cfg.RiskFreeRate

	eng := engine.NewService(
		estimation.NewHistoricalEstimator(),
		correlation.NewEngine(correlation.DefaultConfig(), log),
		optimization.NewMVOptimizer(log),
		risk.NewAnalyzer(risk.DefaultConfig(), log),
		scheduling.NewScheduler(scheduling.DefaultConfig(), log),
		snapshots.NewExporter(log),
		regime.RotationForecast{},
		optCfg,
		log,
	)

	// Background maintenance
	jobs := scheduler.New(log)
	retention := scheduler.NewRetentionJob(store, cfg.SnapshotRetentionDays, log)
	if err := jobs.AddJob("0 0 3 * * *", retention); err != nil {
		log.Fatal().Err(err).Msg("Failed to register retention job")
	}
	jobs.Start()

	srv := server.New(server.Config{
		Log:      log,
		Port:     cfg.Port,
		DevMode:  cfg.DevMode,
		Engine:   eng,
		Store:    store,
		Uploader: uploader,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	jobs.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
