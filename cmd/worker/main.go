package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	ingestapp "github.com/marketplace-analytics/backend/internal/application/ingest"
	"github.com/marketplace-analytics/backend/internal/bootstrap"
	"github.com/marketplace-analytics/backend/internal/infrastructure/config"
	"github.com/marketplace-analytics/backend/internal/infrastructure/logger"
	"github.com/marketplace-analytics/backend/internal/infrastructure/scheduler"
	"github.com/marketplace-analytics/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: logger.DefaultTimeFormat,
		Service:    cfg.App.Name,
		Env:        cfg.App.Env,
		Sampling:   cfg.App.Env == "production",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting ingestion worker",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("version", version),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("Worker stopped with error", zap.Error(err))
		_ = logger.Sync(log)
		os.Exit(1)
	}
	log.Info("Worker exited")
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	tel, err := bootstrap.SetupTelemetry(ctx, cfg.Telemetry, version, log)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), bootstrap.ShutdownTimeout)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			log.Error("Telemetry shutdown failed", zap.Error(err))
		}
	}()

	db, err := bootstrap.OpenDatabase(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully", zap.String("driver", cfg.Database.Driver))

	// The worker pulls jobs from Redis, so it cannot run without it
	redisClient := bootstrap.ConnectRedis(ctx, cfg.Redis, log)
	if redisClient == nil {
		return errors.New("worker requires redis for the job queue")
	}
	defer redisClient.Close()

	queue := scheduler.NewRedisJobQueue(redisClient, cfg.Scheduler.QueueKey, log)

	metrics, err := telemetry.NewIngestionMetrics(telemetry.IngestionMetricsConfig{
		Meter:         tel.Meter.Meter("marketplace-analytics/ingestion"),
		Logger:        log,
		QueueProvider: queue,
	})
	if err != nil {
		return err
	}
	metrics.StartPeriodicCollection(ctx, cfg.Telemetry.MetricsInterval)
	defer metrics.Stop()

	ing, err := bootstrap.NewIngestion(ctx, cfg, db, redisClient, metrics, log)
	if err != nil {
		return err
	}

	schedCfg := scheduler.SchedulerConfig{
		Workers:     cfg.Scheduler.Workers,
		QueueSize:   cfg.Scheduler.QueueSize,
		JobTimeout:  cfg.Scheduler.JobTimeout,
		MaxAttempts: cfg.Scheduler.MaxAttempts,
		RetryDelay:  cfg.Scheduler.RetryDelay,
	}
	var consumer *scheduler.Consumer
	sched, err := scheduler.NewScheduler(schedCfg,
		scheduler.NewIngestionExecutor(ing.Orchestrator, log),
		log,
		scheduler.WithRetryPolicy(ingestapp.IsRetryable),
		scheduler.WithJobRecorder(metrics),
		scheduler.WithAbandonHandler(func(ctx context.Context, job *scheduler.Job) {
			consumer.Requeue(ctx, job)
		}),
	)
	if err != nil {
		return err
	}
	consumer = scheduler.NewConsumer(queue, sched, log)

	// Stop owns job cancellation, so the workers do not inherit the signal context
	if err := sched.Start(context.WithoutCancel(ctx)); err != nil {
		return err
	}

	log.Info("Consuming ingestion jobs",
		zap.String("queue", queue.Key()),
		zap.Int("workers", schedCfg.Workers),
	)
	consumeErr := consumer.Run(ctx)

	log.Info("Shutting down worker...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), bootstrap.ShutdownTimeout)
	defer cancel()
	if err := sched.Stop(shutdownCtx); err != nil {
		log.Error("Scheduler shutdown failed", zap.Error(err))
	}
	return consumeErr
}
