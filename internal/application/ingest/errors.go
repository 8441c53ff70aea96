package ingestapp

import (
	"context"
	"errors"

	"github.com/marketplace-analytics/backend/internal/domain/sales"
	"github.com/marketplace-analytics/backend/internal/domain/shared"
	csvimport "github.com/marketplace-analytics/backend/internal/infrastructure/import"
)

var (
	// ErrNoValidRows is returned when no row of the file survived mapping and computation
	ErrNoValidRows = errors.New("no valid sales data")

	// ErrPersistence wraps a failure of the ingestion transaction
	ErrPersistence = errors.New("failed to persist sales data")

	// ErrRunInProgress is returned when another run holds the report
	ErrRunInProgress = errors.New("ingestion already in progress for report")

	// ErrInvalidJob is returned for a job descriptor that fails validation
	ErrInvalidJob = errors.New("invalid ingestion job")
)

// IsRetryable reports whether a failed run may succeed if attempted again.
// File-level problems and empty results are permanent.
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrNoValidRows),
		errors.Is(err, ErrInvalidJob),
		errors.Is(err, csvimport.ErrUnsupportedFormat),
		errors.Is(err, csvimport.ErrDecodeFailed),
		errors.Is(err, csvimport.ErrEmptyFile),
		errors.Is(err, csvimport.ErrMissingHeader),
		errors.Is(err, csvimport.ErrFileTooLarge),
		errors.Is(err, sales.ErrInvalidMarketplace),
		errors.Is(err, shared.ErrNotFound),
		errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, ErrRunInProgress),
		errors.Is(err, ErrPersistence),
		errors.Is(err, context.DeadlineExceeded):
		return true
	}
	// source storage and other infrastructure errors
	return true
}
