package sales

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// IngestionStore is the transactional write side used by an ingestion run
type IngestionStore interface {
	// ReplaceReportSales atomically deletes every sales record of the report,
	// inserts rows and marks the report processed with totals.
	ReplaceReportSales(ctx context.Context, reportID uuid.UUID, rows []AnalyzedSaleRow, totals ReportTotals) error
	// MarkUnprocessed sets processed = false on the report
	MarkUnprocessed(ctx context.Context, reportID uuid.UUID) error
}

// ReportRepository reads and creates reports and their sales records
type ReportRepository interface {
	Create(ctx context.Context, report *Report) error
	FindByID(ctx context.Context, id uuid.UUID) (*Report, error)
	ListByUser(ctx context.Context, userID uuid.UUID, since time.Time) ([]Report, error)
	ListSalesRecords(ctx context.Context, reportIDs ...uuid.UUID) ([]SalesRecord, error)
}

// ErrReportLocked is returned by a ReportLocker when another run holds the report
var ErrReportLocked = errors.New("sales: report is locked by another run")

// ReportLocker grants one ingestion run at a time per report
type ReportLocker interface {
	// Lock fails with ErrReportLocked when the report is held
	Lock(ctx context.Context, reportID uuid.UUID) (ReportLock, error)
}

// ReportLock is a held report lock
type ReportLock interface {
	Release(ctx context.Context) error
}
