package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/marketplace-analytics/backend/internal/domain/sales"
	"github.com/shopspring/decimal"
)

// SalesRecordModel is one persisted analyzed sale row
type SalesRecordModel struct {
	ID           uuid.UUID       `gorm:"type:uuid;primary_key"`
	ReportID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	SaleDate     time.Time       `gorm:"type:date;not null"`
	SKU          string          `gorm:"column:sku;type:varchar(20);not null"`
	ProductName  string          `gorm:"type:varchar(200);not null"`
	Quantity     int             `gorm:"not null"`
	Price        decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Revenue      decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Commission   decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Logistics    decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Storage      decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Surcharge    decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	NetProfit    decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	ProfitMargin decimal.Decimal `gorm:"type:decimal(12,4);not null"`
	CreatedAt    time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SalesRecordModel) TableName() string {
	return "sales_records"
}

// SalesRecordModelFromRow maps an analyzed row onto a new record of the report
func SalesRecordModelFromRow(reportID uuid.UUID, row sales.AnalyzedSaleRow) SalesRecordModel {
	return SalesRecordModel{
		ID:           uuid.New(),
		ReportID:     reportID,
		SaleDate:     row.SaleDate(),
		SKU:          row.SKU(),
		ProductName:  row.ProductName(),
		Quantity:     row.Quantity(),
		Price:        row.Price(),
		Revenue:      row.Revenue,
		Commission:   row.Commission,
		Logistics:    row.Logistics,
		Storage:      row.Storage,
		Surcharge:    row.Surcharge,
		NetProfit:    row.NetProfit,
		ProfitMargin: row.ProfitMargin,
	}
}

// ToDomain converts the persistence model to a domain SalesRecord
func (m *SalesRecordModel) ToDomain() sales.SalesRecord {
	return sales.SalesRecord{
		ID:           m.ID,
		ReportID:     m.ReportID,
		SaleDate:     m.SaleDate.UTC(),
		SKU:          m.SKU,
		ProductName:  m.ProductName,
		Quantity:     m.Quantity,
		Price:        m.Price,
		Revenue:      m.Revenue,
		Commission:   m.Commission,
		Logistics:    m.Logistics,
		Storage:      m.Storage,
		Surcharge:    m.Surcharge,
		NetProfit:    m.NetProfit,
		ProfitMargin: m.ProfitMargin,
	}
}
