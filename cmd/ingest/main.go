package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	ingestapp "github.com/marketplace-analytics/backend/internal/application/ingest"
	reportapp "github.com/marketplace-analytics/backend/internal/application/report"
	"github.com/marketplace-analytics/backend/internal/bootstrap"
	"github.com/marketplace-analytics/backend/internal/domain/sales"
	"github.com/marketplace-analytics/backend/internal/infrastructure/config"
	"github.com/marketplace-analytics/backend/internal/infrastructure/logger"
	"github.com/marketplace-analytics/backend/internal/infrastructure/scheduler"
	"go.uber.org/zap"
)

type options struct {
	file        string
	marketplace string
	userID      string
	reportID    string
	enqueue     bool
	analytics   bool
}

func main() {
	var opts options
	flag.StringVar(&opts.file, "file", "", "Local sales report file (.csv, .xlsx, .xls)")
	flag.StringVar(&opts.marketplace, "marketplace", "", "Marketplace of the report: wildberries (wb) or ozon")
	flag.StringVar(&opts.userID, "user", "", "Owner of a new report (required unless -report is set)")
	flag.StringVar(&opts.reportID, "report", "", "Reprocess an existing report instead of creating one")
	flag.BoolVar(&opts.enqueue, "enqueue", false, "Push the job to the worker queue instead of running it here")
	flag.BoolVar(&opts.analytics, "analytics", false, "Print the report analytics after a successful run")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: ingest -file <path> -marketplace <wb|ozon> (-user <uuid> | -report <uuid>) [-enqueue] [-analytics]\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if opts.file == "" || opts.marketplace == "" || (opts.userID == "" && opts.reportID == "") {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     "console",
		Output:     "stderr",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts, log); err != nil {
		log.Error("Ingestion failed", zap.Error(err))
		_ = logger.Sync(log)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, opts options, log *zap.Logger) error {
	marketplace, err := sales.ParseMarketplace(opts.marketplace)
	if err != nil {
		return err
	}

	db, err := bootstrap.OpenDatabase(cfg, log)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient := bootstrap.ConnectRedis(ctx, cfg.Redis, log)
	if redisClient != nil {
		defer redisClient.Close()
	}
	if opts.enqueue && redisClient == nil {
		return errors.New("-enqueue requires redis")
	}

	ing, err := bootstrap.NewIngestion(ctx, cfg, db, redisClient, nil, log)
	if err != nil {
		return err
	}

	report, err := resolveReport(ctx, ing.Reports, opts, marketplace)
	if err != nil {
		return err
	}

	job, err := upload(ctx, ing, report, opts.file)
	if err != nil {
		return err
	}
	log.Info("Source file stored",
		zap.String("report_id", report.ID.String()),
		zap.String("storage_key", job.StorageKey),
	)

	if opts.enqueue {
		queue := scheduler.NewRedisJobQueue(redisClient, cfg.Scheduler.QueueKey, log)
		qjob := scheduler.NewJob(job, cfg.Scheduler.MaxAttempts-1)
		if err := queue.Push(ctx, qjob); err != nil {
			return err
		}
		log.Info("Ingestion job enqueued",
			zap.String("job_id", qjob.ID.String()),
			zap.String("queue", queue.Key()),
		)
		return nil
	}

	result, runErr := ing.Orchestrator.Run(ctx, job)
	if result != nil {
		if err := printJSON(result); err != nil {
			return err
		}
	}
	if runErr != nil {
		return runErr
	}

	if opts.analytics {
		svc := reportapp.NewAnalyticsService(ing.Reports, log)
		resp, err := svc.GetReportAnalytics(ctx, report.UserID, report.ID)
		if err != nil {
			return err
		}
		return printJSON(resp)
	}
	return nil
}

// resolveReport loads the report to reprocess or creates a new one
func resolveReport(ctx context.Context, repo sales.ReportRepository, opts options, m sales.Marketplace) (*sales.Report, error) {
	if opts.reportID != "" {
		id, err := uuid.Parse(opts.reportID)
		if err != nil {
			return nil, fmt.Errorf("invalid -report: %w", err)
		}
		report, err := repo.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if report.Marketplace != m {
			return nil, fmt.Errorf("report %s belongs to %s, not %s", id, report.Marketplace, m)
		}
		return report, nil
	}

	userID, err := uuid.Parse(opts.userID)
	if err != nil {
		return nil, fmt.Errorf("invalid -user: %w", err)
	}
	report, err := sales.NewReport(userID, filepath.Base(opts.file), m)
	if err != nil {
		return nil, err
	}
	if err := repo.Create(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

// upload copies the local file into the configured store and builds its job
func upload(ctx context.Context, ing *bootstrap.Ingestion, report *sales.Report, path string) (ingestapp.IngestionJob, error) {
	f, err := os.Open(path)
	if err != nil {
		return ingestapp.IngestionJob{}, err
	}
	defer f.Close()

	name := filepath.Base(path)
	key := fmt.Sprintf("reports/%s/%s", report.ID, name)
	if err := ing.Store.Put(ctx, key, f); err != nil {
		return ingestapp.IngestionJob{}, err
	}
	return ingestapp.NewIngestionJob(report.ID, key, name, report.Marketplace.String())
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
