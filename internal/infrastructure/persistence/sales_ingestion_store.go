package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/marketplace-analytics/backend/internal/domain/sales"
	"github.com/marketplace-analytics/backend/internal/domain/shared"
	"github.com/marketplace-analytics/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// DefaultInsertBatchSize is used when the store is built with a non-positive batch size
const DefaultInsertBatchSize = 500

// GormSalesIngestionStore implements sales.IngestionStore using GORM
type GormSalesIngestionStore struct {
	db        *gorm.DB
	batchSize int
}

// NewGormSalesIngestionStore creates a new GormSalesIngestionStore
func NewGormSalesIngestionStore(db *gorm.DB, batchSize int) *GormSalesIngestionStore {
	if batchSize <= 0 {
		batchSize = DefaultInsertBatchSize
	}
	return &GormSalesIngestionStore{db: db, batchSize: batchSize}
}

// ReplaceReportSales deletes the report's previous records, inserts rows in
// batches and writes totals onto the report, all in one transaction.
func (s *GormSalesIngestionStore) ReplaceReportSales(
	ctx context.Context,
	reportID uuid.UUID,
	rows []sales.AnalyzedSaleRow,
	totals sales.ReportTotals,
) error {
	if len(rows) == 0 {
		return shared.ErrInvalidInput.Withf("no sales rows to store")
	}

	now := time.Now().UTC()
	records := make([]models.SalesRecordModel, len(rows))
	for i, row := range rows {
		records[i] = models.SalesRecordModelFromRow(reportID, row)
		records[i].CreatedAt = now
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var report models.ReportModel
		if err := tx.Select("id").Where("id = ?", reportID).First(&report).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return shared.ErrNotFound.Withf("report %s", reportID)
			}
			return fmt.Errorf("find report: %w", err)
		}

		if err := tx.Where("report_id = ?", reportID).Delete(&models.SalesRecordModel{}).Error; err != nil {
			return fmt.Errorf("delete previous sales records: %w", err)
		}

		if err := tx.CreateInBatches(records, s.batchSize).Error; err != nil {
			return fmt.Errorf("insert sales records: %w", err)
		}

		result := tx.Model(&models.ReportModel{}).
			Where("id = ?", reportID).
			Updates(map[string]any{
				"processed":     true,
				"total_revenue": totals.TotalRevenue,
				"total_profit":  totals.TotalProfit,
				"profit_margin": totals.ProfitMargin,
				"updated_at":    now,
			})
		if result.Error != nil {
			return fmt.Errorf("update report totals: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return shared.ErrNotFound.Withf("report %s", reportID)
		}
		return nil
	})
}

// MarkUnprocessed sets processed = false on the report
func (s *GormSalesIngestionStore) MarkUnprocessed(ctx context.Context, reportID uuid.UUID) error {
	result := s.db.WithContext(ctx).
		Model(&models.ReportModel{}).
		Where("id = ?", reportID).
		Updates(map[string]any{
			"processed":  false,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound.Withf("report %s", reportID)
	}
	return nil
}

// Ensure GormSalesIngestionStore implements the IngestionStore interface
var _ sales.IngestionStore = (*GormSalesIngestionStore)(nil)
