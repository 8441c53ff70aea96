// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Row outcomes for the rows metric
const (
	RowOutcomePersisted = "persisted"
	RowOutcomeDropped   = "dropped"
)

// IngestionMetrics tracks ingestion runs, row outcomes and the job queue.
type IngestionMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	runTotal  *Counter
	rowTotal  *Counter
	jobTotal  *Counter
	runLength *Histogram

	// Gauge metrics (point-in-time values)
	queueDepth *Gauge

	// Periodic collector
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	queueProvider QueueDepthProvider
}

// QueueDepthProvider reports how many ingestion jobs are waiting.
type QueueDepthProvider interface {
	Len(ctx context.Context) (int64, error)
}

// IngestionMetricsConfig holds configuration for ingestion metrics.
type IngestionMetricsConfig struct {
	Meter         metric.Meter
	Logger        *zap.Logger
	QueueProvider QueueDepthProvider
}

// NewIngestionMetrics creates a new IngestionMetrics instance.
func NewIngestionMetrics(cfg IngestionMetricsConfig) (*IngestionMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	im := &IngestionMetrics{
		meter:         cfg.Meter,
		logger:        logger,
		stopChan:      make(chan struct{}),
		queueProvider: cfg.QueueProvider,
	}

	var err error
	im.runTotal, err = NewCounter(cfg.Meter,
		"ingestion_run_total",
		"Total number of ingestion runs by final state",
		"{runs}",
	)
	if err != nil {
		return nil, err
	}

	im.rowTotal, err = NewCounter(cfg.Meter,
		"ingestion_row_total",
		"Total number of source rows by outcome",
		"{rows}",
	)
	if err != nil {
		return nil, err
	}

	im.jobTotal, err = NewCounter(cfg.Meter,
		"ingestion_job_total",
		"Total number of scheduled job attempts by status",
		"{jobs}",
	)
	if err != nil {
		return nil, err
	}

	im.runLength, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "ingestion_run_duration_seconds",
		Description: "Ingestion run duration",
		Unit:        "s",
		Boundaries:  RunDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	im.queueDepth, err = NewGauge(cfg.Meter,
		"ingestion_queue_depth",
		"Number of ingestion jobs waiting in the queue",
		"{jobs}",
	)
	if err != nil {
		return nil, err
	}

	return im, nil
}

// RecordRun records a finished run and its duration.
func (im *IngestionMetrics) RecordRun(ctx context.Context, marketplace, state string, duration time.Duration) {
	im.runTotal.Inc(ctx,
		AttrMarketplace.String(marketplace),
		AttrRunState.String(state),
	)
	im.runLength.RecordDuration(ctx, duration,
		AttrMarketplace.String(marketplace),
		AttrRunState.String(state),
	)
}

// RecordRows records how many rows of a run were persisted and dropped.
func (im *IngestionMetrics) RecordRows(ctx context.Context, marketplace string, persisted, dropped int) {
	if persisted > 0 {
		im.rowTotal.Add(ctx, int64(persisted),
			AttrMarketplace.String(marketplace),
			AttrRowOutcome.String(RowOutcomePersisted),
		)
	}
	if dropped > 0 {
		im.rowTotal.Add(ctx, int64(dropped),
			AttrMarketplace.String(marketplace),
			AttrRowOutcome.String(RowOutcomeDropped),
		)
	}
}

// RecordJob records one scheduler attempt for an ingestion job.
func (im *IngestionMetrics) RecordJob(ctx context.Context, status string) {
	im.jobTotal.Inc(ctx, AttrJobStatus.String(status))
}

// RecordQueueDepth records the current queue depth.
func (im *IngestionMetrics) RecordQueueDepth(ctx context.Context, depth int64) {
	im.queueDepth.Record(ctx, depth)
}

// StartPeriodicCollection samples the queue depth every interval (default: 30 seconds).
// This is non-blocking - use Stop() to stop collection.
func (im *IngestionMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	im.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 30 * time.Second
		}
		go im.runPeriodicCollection(ctx, interval)
	})
}

func (im *IngestionMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	im.collectQueueDepth(ctx)

	for {
		select {
		case <-im.stopChan:
			im.logger.Info("Stopping periodic ingestion metrics collection")
			return
		case <-ctx.Done():
			im.logger.Info("Context cancelled, stopping periodic ingestion metrics collection")
			return
		case <-ticker.C:
			im.collectQueueDepth(ctx)
		}
	}
}

func (im *IngestionMetrics) collectQueueDepth(ctx context.Context) {
	if im.queueProvider == nil {
		im.logger.Debug("No queue provider configured, skipping queue depth collection")
		return
	}
	depth, err := im.queueProvider.Len(ctx)
	if err != nil {
		im.logger.Warn("Failed to read ingestion queue depth", zap.Error(err))
		return
	}
	im.RecordQueueDepth(ctx, depth)
}

// Stop stops the periodic collection.
func (im *IngestionMetrics) Stop() {
	im.stopOnce.Do(func() {
		close(im.stopChan)
	})
}

// =============================================================================
// Error Types
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewIngestionMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
