package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/txn-aggregator/internal/api"
	"github.com/dvloznov/txn-aggregator/internal/config"
	"github.com/dvloznov/txn-aggregator/internal/export"
	infraBQ "github.com/dvloznov/txn-aggregator/internal/infra/bigquery"
	"github.com/dvloznov/txn-aggregator/internal/ingest"
	"github.com/dvloznov/txn-aggregator/internal/jobs"
	"github.com/dvloznov/txn-aggregator/internal/jobs/inmemory"
	"github.com/dvloznov/txn-aggregator/internal/logger"
	"github.com/dvloznov/txn-aggregator/internal/pipeline"
	"github.com/dvloznov/txn-aggregator/internal/storage"
)

func main() {
	bootLog := logger.New()

	cfg, err := config.LoadConfig()
	if err != nil {
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	var (
		port    = flag.String("port", cfg.Port, "HTTP server port")
		workers = flag.Int("workers", 5, "Number of concurrent report job workers")
	)
	flag.Parse()

	log, closer, err := logger.NewWithOptions(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	if err != nil {
		bootLog.Fatal().Err(err).Msg("Failed to configure logger")
	}

	err = serve(log, cfg, *port, *workers)
	closer.Close()
	if err != nil {
		bootLog.Fatal().Err(err).Msg("API server failed")
	}
}

// serve runs the API server and the job workers until SIGINT or SIGTERM.
func serve(log zerolog.Logger, cfg *config.Config, port string, workers int) error {
	ctx := logger.WithContext(context.Background(), log)

	store := storage.NewRouter()
	deps := pipeline.Deps{
		Source: ingest.NewReader(store),
		Sink:   export.NewWriter(store),
	}

	var repo *infraBQ.BigQueryReportRepository
	if cfg.BigQueryEnabled() {
		var err error
		repo, err = infraBQ.NewBigQueryReportRepository(ctx, cfg.BQProjectID, cfg.BQDataset)
		if err != nil {
			return fmt.Errorf("create report repository: %w", err)
		}
		defer repo.Close()
		deps.Repository = repo
	} else {
		log.Warn().Msg("No BQ_PROJECT_ID configured - runs will not be published")
	}

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore, inmemory.WithWorkers(workers))

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	log.Info().Int("workers", workers).Msg("Starting job workers")
	if err := jobQueue.Start(workerCtx, jobs.NewReportHandler(deps, cfg.AggregatorConfig())); err != nil {
		return fmt.Errorf("start job workers: %w", err)
	}

	apiDeps := api.Dependencies{
		Rules:     cfg.AggregatorConfig(),
		Publisher: jobQueue,
		Store:     jobStore,
		GCSBucket: cfg.GCSBucket,
		APIToken:  cfg.APIToken,
	}
	if repo != nil {
		apiDeps.Repository = repo
	}

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      api.NewHandler(apiDeps, log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal or a listener failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-quit:
	case err := <-serverErr:
		runErr = fmt.Errorf("listen: %w", err)
	}

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	log.Info().Msg("Server exited")
	return runErr
}
