package ingestapp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/marketplace-analytics/backend/internal/domain/sales"
	csvimport "github.com/marketplace-analytics/backend/internal/infrastructure/import"
	"github.com/marketplace-analytics/backend/internal/infrastructure/logger"
	"github.com/marketplace-analytics/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// RunState is the state of an ingestion run
type RunState string

const (
	StatePending    RunState = "pending"
	StateDecoding   RunState = "decoding"
	StateMapping    RunState = "mapping"
	StateComputing  RunState = "computing"
	StatePersisting RunState = "persisting"
	StateDone       RunState = "done"
	StateFailed     RunState = "failed"
)

// IsTerminal returns true if the state is final
func (s RunState) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// validTransitions lists the states each state may move to
var validTransitions = map[RunState][]RunState{
	StatePending:    {StateDecoding, StateFailed},
	StateDecoding:   {StateMapping, StateFailed},
	StateMapping:    {StateComputing, StateFailed},
	StateComputing:  {StatePersisting, StateFailed},
	StatePersisting: {StateDone, StateFailed},
}

// CanTransitionTo checks if a transition to the target state is allowed
func (s RunState) CanTransitionTo(target RunState) bool {
	for _, next := range validTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// cleanupTimeout bounds the calls made after a run failed or finished
const cleanupTimeout = 10 * time.Second

// FileSource gives access to uploaded source files
type FileSource interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// RunRecorder receives per-run metrics
type RunRecorder interface {
	RecordRun(ctx context.Context, marketplace, state string, duration time.Duration)
	RecordRows(ctx context.Context, marketplace string, persisted, dropped int)
}

type noopRecorder struct{}

func (noopRecorder) RecordRun(context.Context, string, string, time.Duration) {}
func (noopRecorder) RecordRows(context.Context, string, int, int)             {}

// Diagnostics counts what happened to the rows of a run
type Diagnostics struct {
	Seen          int                  `json:"seen"`
	Mapped        int                  `json:"mapped"`
	Dropped       int                  `json:"dropped"`
	ComputeFailed int                  `json:"compute_failed"`
	Persisted     int                  `json:"persisted"`
	DropReasons   map[string]int       `json:"drop_reasons"`
	Errors        []csvimport.RowError `json:"errors,omitempty"`
	IsTruncated   bool                 `json:"is_truncated,omitempty"`
}

// RunResult is the outcome of one ingestion run
type RunResult struct {
	RunID       uuid.UUID          `json:"run_id"`
	ReportID    uuid.UUID          `json:"report_id"`
	State       RunState           `json:"state"`
	FailedIn    RunState           `json:"failed_in,omitempty"`
	Diagnostics Diagnostics        `json:"diagnostics"`
	Totals      sales.ReportTotals `json:"totals"`
	Duration    time.Duration      `json:"duration"`
}

// transition moves the run to state; an invalid transition is a programming error
func (r *RunResult) transition(to RunState) {
	if !r.State.CanTransitionTo(to) {
		panic(fmt.Sprintf("ingestion run: invalid transition %s -> %s", r.State, to))
	}
	r.State = to
}

// Config holds orchestrator configuration
type Config struct {
	Workers               int
	MaxFileSize           int64
	MaxDiagnostics        int
	DeleteSourceOnSuccess bool
	NoiseTokens           []string
}

// Orchestrator runs the per-file ingestion state machine
type Orchestrator struct {
	cfg      Config
	source   FileSource
	store    sales.IngestionStore
	locker   sales.ReportLocker
	calc     *sales.Calculator
	noise    *sales.NoiseList
	recorder RunRecorder
	logger   *zap.Logger
	now      func() time.Time
}

// Option is a functional option for Orchestrator configuration
type Option func(*Orchestrator)

// WithRecorder sets the metrics recorder
func WithRecorder(r RunRecorder) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithClock sets the clock used for date bounds and durations
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// NewOrchestrator creates a new Orchestrator
func NewOrchestrator(
	cfg Config,
	source FileSource,
	store sales.IngestionStore,
	locker sales.ReportLocker,
	calc *sales.Calculator,
	log *zap.Logger,
	opts ...Option,
) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if calc == nil {
		calc = sales.NewCalculator(nil)
	}
	if log == nil {
		log = zap.NewNop()
	}
	o := &Orchestrator{
		cfg:      cfg,
		source:   source,
		store:    store,
		locker:   locker,
		calc:     calc,
		noise:    sales.NewNoiseList(cfg.NoiseTokens...),
		recorder: noopRecorder{},
		logger:   log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run ingests one file into its report. The returned result is non-nil for
// every valid job, including failed runs.
func (o *Orchestrator) Run(ctx context.Context, job IngestionJob) (*RunResult, error) {
	if err := job.Validate(); err != nil {
		return nil, err
	}

	result := &RunResult{
		RunID:       uuid.New(),
		ReportID:    job.ReportID,
		State:       StatePending,
		Diagnostics: Diagnostics{DropReasons: make(map[string]int)},
	}

	ctx, log := logger.WithRun(ctx, o.logger, logger.Run{
		RunID:       result.RunID.String(),
		ReportID:    job.ReportID.String(),
		Marketplace: job.Marketplace.String(),
	})

	ctx, span := telemetry.StartServiceSpan(ctx, "ingestion", "run",
		telemetry.WithAttribute(telemetry.SpanAttrReportID, job.ReportID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrMarketplace, job.Marketplace.String()),
	)
	defer span.End()

	start := o.now()
	defer func() {
		result.Duration = o.now().Sub(start)
		o.recorder.RecordRun(ctx, job.Marketplace.String(), string(result.State), result.Duration)
	}()

	lock, err := o.locker.Lock(ctx, job.ReportID)
	if err != nil {
		result.State = StateFailed
		result.FailedIn = StatePending
		if errors.Is(err, sales.ErrReportLocked) {
			err = fmt.Errorf("%w: report %s", ErrRunInProgress, job.ReportID)
		} else {
			err = fmt.Errorf("acquire report lock: %w", err)
		}
		log.Warn("Ingestion run not started", zap.Error(err))
		telemetry.RecordError(span, err)
		return result, err
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
		defer cancel()
		if err := lock.Release(releaseCtx); err != nil {
			log.Warn("Failed to release report lock", zap.Error(err))
		}
	}()

	log.Info("Ingestion run started", zap.String("file_name", job.FileName))
	if err := o.run(ctx, job, result, log); err != nil {
		telemetry.RecordError(span, err)
		return result, err
	}

	telemetry.SetAttributes(span,
		"rows_persisted", result.Diagnostics.Persisted,
		"rows_dropped", result.Diagnostics.Dropped,
	)
	telemetry.SetOK(span)
	log.Info("Ingestion run completed",
		zap.Int("seen", result.Diagnostics.Seen),
		zap.Int("persisted", result.Diagnostics.Persisted),
		zap.Int("dropped", result.Diagnostics.Dropped),
		zap.Int("compute_failed", result.Diagnostics.ComputeFailed),
		zap.String("total_revenue", result.Totals.TotalRevenue.String()),
		zap.String("total_profit", result.Totals.TotalProfit.String()),
	)
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, job IngestionJob, result *RunResult, log *zap.Logger) error {
	diag := csvimport.NewErrorCollection(o.cfg.MaxDiagnostics)
	defer func() {
		result.Diagnostics.Errors = diag.Errors()
		result.Diagnostics.IsTruncated = diag.IsTruncated()
		result.Diagnostics.DropReasons = diag.ErrorSummary()
		o.recorder.RecordRows(ctx, job.Marketplace.String(), result.Diagnostics.Persisted, result.Diagnostics.Dropped)
	}()

	// decoding
	result.transition(StateDecoding)
	profile, ok := sales.ColumnProfileFor(job.Marketplace)
	if !ok {
		return o.fail(ctx, job, result, log, fmt.Errorf("%w: %s", sales.ErrInvalidMarketplace, job.Marketplace))
	}
	decoded, err := o.decode(ctx, job, profile, log)
	if err != nil {
		return o.fail(ctx, job, result, log, err)
	}
	result.Diagnostics.Seen = decoded.LinesSeen
	result.Diagnostics.Dropped = decoded.Drops.TotalCount()
	diag.Merge(decoded.Drops)

	// mapping
	result.transition(StateMapping)
	mapper := NewRowMapper(MapperConfig{Profile: profile, Noise: o.noise, Now: o.now})
	canonical := make([]sales.CanonicalSaleRow, len(decoded.Rows))
	mapErrs := make([]*csvimport.RowError, len(decoded.Rows))
	err = o.forEach(ctx, len(decoded.Rows), func(i int) {
		canonical[i], mapErrs[i] = mapper.Map(decoded.Rows[i])
	}, func(i int, p any) {
		e := csvimport.NewRowError(decoded.Rows[i].LineNumber, "", csvimport.ErrCodeImportInvalidValue, fmt.Sprintf("row mapping panicked: %v", p))
		mapErrs[i] = &e
	})
	if err != nil {
		return o.fail(ctx, job, result, log, err)
	}

	mapped := make([]sales.CanonicalSaleRow, 0, len(canonical))
	mappedLines := make([]int, 0, len(canonical))
	for i, rowErr := range mapErrs {
		if rowErr != nil {
			diag.Add(*rowErr)
			result.Diagnostics.Dropped++
			log.Debug("Dropped row", zap.Int("line", rowErr.Row), zap.String("code", rowErr.Code), zap.String("reason", rowErr.Message))
			continue
		}
		mapped = append(mapped, canonical[i])
		mappedLines = append(mappedLines, decoded.Rows[i].LineNumber)
	}
	result.Diagnostics.Mapped = len(mapped)

	// computing
	result.transition(StateComputing)
	analyzed := make([]sales.AnalyzedSaleRow, len(mapped))
	computeErrs := make([]error, len(mapped))
	err = o.forEach(ctx, len(mapped), func(i int) {
		analyzed[i], computeErrs[i] = o.calc.Analyze(mapped[i], job.Marketplace)
	}, func(i int, p any) {
		computeErrs[i] = fmt.Errorf("analytics panicked: %v", p)
	})
	if err != nil {
		return o.fail(ctx, job, result, log, err)
	}

	rows := make([]sales.AnalyzedSaleRow, 0, len(analyzed))
	for i, cerr := range computeErrs {
		if cerr != nil {
			var ie *sales.InvalidInputError
			column := ""
			if errors.As(cerr, &ie) {
				column = ie.Field
			}
			diag.Add(csvimport.NewRowError(mappedLines[i], column, csvimport.ErrCodeImportAnalyticsFailed, cerr.Error()))
			result.Diagnostics.ComputeFailed++
			result.Diagnostics.Dropped++
			continue
		}
		rows = append(rows, analyzed[i])
	}

	if len(rows) == 0 {
		return o.fail(ctx, job, result, log, fmt.Errorf("%w: %d of %d lines dropped", ErrNoValidRows, result.Diagnostics.Dropped, result.Diagnostics.Seen))
	}

	// persisting
	result.transition(StatePersisting)
	totals := sales.Summarize(rows)
	if err := o.store.ReplaceReportSales(ctx, job.ReportID, rows, totals); err != nil {
		return o.fail(ctx, job, result, log, fmt.Errorf("%w: %w", ErrPersistence, err))
	}
	result.Totals = totals
	result.Diagnostics.Persisted = len(rows)

	result.transition(StateDone)
	if o.cfg.DeleteSourceOnSuccess {
		delCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
		defer cancel()
		if err := o.source.Delete(delCtx, job.StorageKey); err != nil {
			log.Warn("Failed to delete source file", zap.String("storage_key", job.StorageKey), zap.Error(err))
		}
	}
	return nil
}

func (o *Orchestrator) decode(ctx context.Context, job IngestionJob, profile sales.ColumnProfile, log *zap.Logger) (*csvimport.DecodeResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ingestion", "decode")
	defer span.End()

	kind, err := csvimport.KindFromFileName(job.FileName)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	rc, err := o.source.Open(ctx, job.StorageKey)
	if err != nil {
		err = fmt.Errorf("open source file %q: %w", job.StorageKey, err)
		telemetry.RecordError(span, err)
		return nil, err
	}
	defer rc.Close()

	decoder := csvimport.NewDecoder(
		csvimport.WithLogger(log),
		csvimport.WithMaxFileSize(o.cfg.MaxFileSize),
		csvimport.WithMaxDiagnostics(o.cfg.MaxDiagnostics),
		csvimport.WithNoiseList(o.noise),
		csvimport.WithKeyColumnResolver(keyColumnsFor(profile)),
	)
	decoded, err := decoder.Decode(rc, kind)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span, "kind", string(kind), "rows", len(decoded.Rows))
	return decoded, nil
}

// keyColumnsFor locates the date, SKU and name columns of a header through the profile
func keyColumnsFor(profile sales.ColumnProfile) csvimport.KeyColumnResolver {
	return func(headers []string) csvimport.KeyColumns {
		return csvimport.KeyColumns{
			Date: profile.HeaderIndex(sales.FieldDate, headers),
			SKU:  profile.HeaderIndex(sales.FieldSKU, headers),
			Name: profile.HeaderIndex(sales.FieldName, headers),
		}
	}
}

// forEach calls fn for every index on a bounded pool and waits for all of
// them. A panic in fn is passed to recovered for that index only.
func (o *Orchestrator) forEach(ctx context.Context, n int, fn func(i int), recovered func(i int, p any)) error {
	g := new(errgroup.Group)
	g.SetLimit(o.cfg.Workers)
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			defer func() {
				if p := recover(); p != nil {
					recovered(i, p)
				}
			}()
			fn(i)
			return nil
		})
	}
	_ = g.Wait()
	return ctx.Err()
}

// fail moves the run to failed and clears the processed flag of the report
func (o *Orchestrator) fail(ctx context.Context, job IngestionJob, result *RunResult, log *zap.Logger, err error) error {
	result.FailedIn = result.State
	result.transition(StateFailed)

	markCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	if merr := o.store.MarkUnprocessed(markCtx, job.ReportID); merr != nil {
		log.Error("Failed to mark report unprocessed", zap.Error(merr))
	}

	log.Error("Ingestion run failed",
		zap.String("stage", string(result.FailedIn)),
		zap.Bool("retryable", IsRetryable(err)),
		zap.Error(err),
	)
	return err
}
