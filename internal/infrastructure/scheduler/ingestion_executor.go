package scheduler

import (
	"context"

	ingestapp "github.com/marketplace-analytics/backend/internal/application/ingest"
	"go.uber.org/zap"
)

// IngestionRunner runs a single ingestion job
type IngestionRunner interface {
	Run(ctx context.Context, job ingestapp.IngestionJob) (*ingestapp.RunResult, error)
}

// IngestionExecutor executes scheduled jobs through an IngestionRunner
type IngestionExecutor struct {
	runner IngestionRunner
	logger *zap.Logger
}

// NewIngestionExecutor creates a new ingestion executor
func NewIngestionExecutor(runner IngestionRunner, logger *zap.Logger) *IngestionExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestionExecutor{runner: runner, logger: logger}
}

// Execute runs the job's ingestion and logs the run summary
func (e *IngestionExecutor) Execute(ctx context.Context, job *Job) error {
	result, err := e.runner.Run(ctx, job.Ingestion)
	if result == nil {
		return err
	}

	fields := []zap.Field{
		zap.String("job_id", job.ID.String()),
		zap.String("run_id", result.RunID.String()),
		zap.String("state", string(result.State)),
		zap.Int("rows_seen", result.Diagnostics.Seen),
		zap.Int("rows_persisted", result.Diagnostics.Persisted),
		zap.Int("rows_dropped", result.Diagnostics.Dropped),
		zap.Duration("duration", result.Duration),
	}
	if result.FailedIn != "" {
		fields = append(fields, zap.String("failed_in", string(result.FailedIn)))
	}
	e.logger.Info("Ingestion run finished", fields...)
	return err
}

// Ensure IngestionExecutor implements JobExecutor
var _ JobExecutor = (*IngestionExecutor)(nil)
