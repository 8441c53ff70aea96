package sales

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Report is an uploaded sales report file and its aggregate results
type Report struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	FileName     string
	Marketplace  Marketplace
	UploadDate   time.Time
	Processed    bool
	TotalRevenue decimal.Decimal
	TotalProfit  decimal.Decimal
	ProfitMargin decimal.Decimal // Percentage
}

// NewReport creates an unprocessed report
func NewReport(userID uuid.UUID, fileName string, m Marketplace) (*Report, error) {
	if !m.IsValid() {
		return nil, ErrInvalidMarketplace
	}
	if fileName == "" {
		return nil, invalidInput("fileName", "is required")
	}
	return &Report{
		ID:           uuid.New(),
		UserID:       userID,
		FileName:     fileName,
		Marketplace:  m,
		UploadDate:   time.Now().UTC(),
		TotalRevenue: decimal.Zero,
		TotalProfit:  decimal.Zero,
		ProfitMargin: decimal.Zero,
	}, nil
}

// ReportTotals are the aggregates written onto a report by an ingestion run
type ReportTotals struct {
	RowCount     int
	TotalRevenue decimal.Decimal
	TotalProfit  decimal.Decimal
	ProfitMargin decimal.Decimal
}

// Summarize sums revenue and net profit over rows. The result does not depend on row order.
func Summarize(rows []AnalyzedSaleRow) ReportTotals {
	t := ReportTotals{
		RowCount:     len(rows),
		TotalRevenue: decimal.Zero,
		TotalProfit:  decimal.Zero,
	}
	for _, r := range rows {
		t.TotalRevenue = t.TotalRevenue.Add(r.Revenue)
		t.TotalProfit = t.TotalProfit.Add(r.NetProfit)
	}
	t.ProfitMargin = Margin(t.TotalProfit, t.TotalRevenue)
	return t
}

// SalesRecord is a persisted analyzed sale, as read back for analytics
type SalesRecord struct {
	ID           uuid.UUID
	ReportID     uuid.UUID
	SaleDate     time.Time
	SKU          string
	ProductName  string
	Quantity     int
	Price        decimal.Decimal
	Revenue      decimal.Decimal
	Commission   decimal.Decimal
	Logistics    decimal.Decimal
	Storage      decimal.Decimal
	Surcharge    decimal.Decimal
	NetProfit    decimal.Decimal
	ProfitMargin decimal.Decimal
}
