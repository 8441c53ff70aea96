package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/marketplace-analytics/backend/internal/domain/sales"
	"github.com/shopspring/decimal"
)

// ReportModel is the persistence model for sales.Report
type ReportModel struct {
	BaseModel
	UserID       uuid.UUID         `gorm:"type:uuid;not null;index:idx_reports_user_upload,priority:1"`
	FileName     string            `gorm:"type:varchar(255);not null"`
	Marketplace  sales.Marketplace `gorm:"type:varchar(32);not null"`
	UploadDate   time.Time         `gorm:"not null;index:idx_reports_user_upload,priority:2"`
	Processed    bool              `gorm:"not null;default:false"`
	TotalRevenue decimal.Decimal   `gorm:"type:decimal(18,2);not null;default:0"`
	TotalProfit  decimal.Decimal   `gorm:"type:decimal(18,2);not null;default:0"`
	ProfitMargin decimal.Decimal   `gorm:"type:decimal(9,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (ReportModel) TableName() string {
	return "reports"
}

// ToDomain converts the persistence model to a domain Report
func (m *ReportModel) ToDomain() *sales.Report {
	return &sales.Report{
		ID:           m.ID,
		UserID:       m.UserID,
		FileName:     m.FileName,
		Marketplace:  m.Marketplace,
		UploadDate:   m.UploadDate,
		Processed:    m.Processed,
		TotalRevenue: m.TotalRevenue,
		TotalProfit:  m.TotalProfit,
		ProfitMargin: m.ProfitMargin,
	}
}

// ReportModelFromDomain creates a persistence model from a domain Report
func ReportModelFromDomain(r *sales.Report) *ReportModel {
	return &ReportModel{
		BaseModel:    BaseModel{ID: r.ID},
		UserID:       r.UserID,
		FileName:     r.FileName,
		Marketplace:  r.Marketplace,
		UploadDate:   r.UploadDate,
		Processed:    r.Processed,
		TotalRevenue: r.TotalRevenue,
		TotalProfit:  r.TotalProfit,
		ProfitMargin: r.ProfitMargin,
	}
}
