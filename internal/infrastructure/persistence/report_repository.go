package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/marketplace-analytics/backend/internal/domain/sales"
	"github.com/marketplace-analytics/backend/internal/domain/shared"
	"github.com/marketplace-analytics/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormReportRepository implements sales.ReportRepository using GORM
type GormReportRepository struct {
	db *gorm.DB
}

// NewGormReportRepository creates a new GormReportRepository
func NewGormReportRepository(db *gorm.DB) *GormReportRepository {
	return &GormReportRepository{db: db}
}

// Create inserts a new report
func (r *GormReportRepository) Create(ctx context.Context, report *sales.Report) error {
	return r.db.WithContext(ctx).Create(models.ReportModelFromDomain(report)).Error
}

// FindByID finds a report by ID
func (r *GormReportRepository) FindByID(ctx context.Context, id uuid.UUID) (*sales.Report, error) {
	var model models.ReportModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound.Withf("report %s", id)
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListByUser returns the user's reports uploaded at or after since, newest first
func (r *GormReportRepository) ListByUser(ctx context.Context, userID uuid.UUID, since time.Time) ([]sales.Report, error) {
	var rows []models.ReportModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND upload_date >= ?", userID, since).
		Order("upload_date DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	reports := make([]sales.Report, len(rows))
	for i := range rows {
		reports[i] = *rows[i].ToDomain()
	}
	return reports, nil
}

// ListSalesRecords returns every sales record of the given reports ordered by sale date
func (r *GormReportRepository) ListSalesRecords(ctx context.Context, reportIDs ...uuid.UUID) ([]sales.SalesRecord, error) {
	if len(reportIDs) == 0 {
		return nil, nil
	}

	var rows []models.SalesRecordModel
	if err := r.db.WithContext(ctx).
		Where("report_id IN ?", reportIDs).
		Order("sale_date ASC").
		Order("sku ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	records := make([]sales.SalesRecord, len(rows))
	for i := range rows {
		records[i] = rows[i].ToDomain()
	}
	return records, nil
}

// Ensure GormReportRepository implements the ReportRepository interface
var _ sales.ReportRepository = (*GormReportRepository)(nil)
