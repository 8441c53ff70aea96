package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ctxKey struct{}

// Run identifies the ingestion run a context belongs to
type Run struct {
	RunID       string
	ReportID    string
	Marketplace string
}

// Fields returns the non-empty run identifiers as log fields
func (r Run) Fields() []zap.Field {
	fields := make([]zap.Field, 0, 3)
	if r.RunID != "" {
		fields = append(fields, zap.String("run_id", r.RunID))
	}
	if r.ReportID != "" {
		fields = append(fields, zap.String("report_id", r.ReportID))
	}
	if r.Marketplace != "" {
		fields = append(fields, zap.String("marketplace", r.Marketplace))
	}
	return fields
}

type scope struct {
	run    Run
	logger *zap.Logger
}

// WithRun stores run and a logger carrying its fields in ctx. Empty fields of
// run keep the values of an enclosing run.
func WithRun(ctx context.Context, base *zap.Logger, run Run) (context.Context, *zap.Logger) {
	if base == nil {
		base = zap.NewNop()
	}
	parent := RunFrom(ctx)
	if run.RunID == "" {
		run.RunID = parent.RunID
	}
	if run.ReportID == "" {
		run.ReportID = parent.ReportID
	}
	if run.Marketplace == "" {
		run.Marketplace = parent.Marketplace
	}
	log := base.With(run.Fields()...)
	return context.WithValue(ctx, ctxKey{}, scope{run: run, logger: log}), log
}

// RunFrom returns the run stored in ctx, or the zero Run
func RunFrom(ctx context.Context) Run {
	if s, ok := ctx.Value(ctxKey{}).(scope); ok {
		return s.run
	}
	return Run{}
}

// FromContext returns the logger stored by WithRun with the active span's
// trace_id and span_id added. Without one it returns a no-op logger.
func FromContext(ctx context.Context) *zap.Logger {
	log := zap.NewNop()
	if s, ok := ctx.Value(ctxKey{}).(scope); ok {
		log = s.logger
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return log
	}
	return log.With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	)
}

// TraceID returns the trace ID of the active span, or ""
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}
