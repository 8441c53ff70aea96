package reportapp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/marketplace-analytics/backend/internal/domain/sales"
	"github.com/marketplace-analytics/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrInvalidPeriod is returned for an analytics period other than 7d, 30d or 90d
var ErrInvalidPeriod = errors.New("invalid analytics period")

// Period is a trailing window of report upload dates
type Period string

const (
	Period7d  Period = "7d"
	Period30d Period = "30d"
	Period90d Period = "90d"

	DefaultPeriod = Period30d
)

var periodDays = map[Period]int{
	Period7d:  7,
	Period30d: 30,
	Period90d: 90,
}

// ParsePeriod parses a period; an empty string yields DefaultPeriod
func ParsePeriod(s string) (Period, error) {
	if s == "" {
		return DefaultPeriod, nil
	}
	p := Period(s)
	if _, ok := periodDays[p]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	return p, nil
}

// Duration returns the length of the period
func (p Period) Duration() time.Duration {
	return time.Duration(periodDays[p]) * 24 * time.Hour
}

// ReportAnalyticsResponse is the analytics of one report
type ReportAnalyticsResponse struct {
	ReportID    uuid.UUID         `json:"report_id"`
	FileName    string            `json:"file_name"`
	Marketplace sales.Marketplace `json:"marketplace"`
	UploadDate  time.Time         `json:"upload_date"`
	Processed   bool              `json:"processed"`
	sales.AnalyticsSummary
}

// MarketplaceSummary aggregates the processed reports of one marketplace
type MarketplaceSummary struct {
	Marketplace  sales.Marketplace `json:"marketplace"`
	Reports      int               `json:"reports"`
	TotalRevenue decimal.Decimal   `json:"total_revenue"`
	TotalProfit  decimal.Decimal   `json:"total_profit"`
	ProfitMargin decimal.Decimal   `json:"profit_margin"` // Percentage
}

// UserAnalyticsResponse is the analytics across the reports of one user
type UserAnalyticsResponse struct {
	UserID        uuid.UUID            `json:"user_id"`
	Period        Period               `json:"period"`
	PeriodStart   time.Time            `json:"period_start"`
	PeriodEnd     time.Time            `json:"period_end"`
	ReportCount   int                  `json:"report_count"`
	ByMarketplace []MarketplaceSummary `json:"by_marketplace"`
	sales.AnalyticsSummary
}

// AnalyticsService answers analytics queries over persisted sales records
type AnalyticsService struct {
	repo        sales.ReportRepository
	topProducts int
	now         func() time.Time
	logger      *zap.Logger
}

// Option is a functional option for AnalyticsService configuration
type Option func(*AnalyticsService)

// WithTopProducts sets the number of ranked products
func WithTopProducts(n int) Option {
	return func(s *AnalyticsService) {
		if n > 0 {
			s.topProducts = n
		}
	}
}

// WithClock sets the clock the period window is computed from
func WithClock(now func() time.Time) Option {
	return func(s *AnalyticsService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewAnalyticsService creates a new AnalyticsService
func NewAnalyticsService(repo sales.ReportRepository, logger *zap.Logger, opts ...Option) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &AnalyticsService{
		repo:        repo,
		topProducts: sales.DefaultTopProducts,
		now:         time.Now,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetReportAnalytics returns the analytics of a report owned by userID.
// A report of another user is reported as not found.
func (s *AnalyticsService) GetReportAnalytics(ctx context.Context, userID, reportID uuid.UUID) (*ReportAnalyticsResponse, error) {
	report, err := s.repo.FindByID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if report.UserID != userID {
		return nil, shared.ErrNotFound.Withf("report %s", reportID)
	}

	records, err := s.repo.ListSalesRecords(ctx, report.ID)
	if err != nil {
		return nil, fmt.Errorf("list sales records: %w", err)
	}

	return &ReportAnalyticsResponse{
		ReportID:         report.ID,
		FileName:         report.FileName,
		Marketplace:      report.Marketplace,
		UploadDate:       report.UploadDate,
		Processed:        report.Processed,
		AnalyticsSummary: sales.BuildAnalytics(records, s.topProducts),
	}, nil
}

// GetUserAnalytics aggregates the processed reports a user uploaded within period
func (s *AnalyticsService) GetUserAnalytics(ctx context.Context, userID uuid.UUID, period string) (*UserAnalyticsResponse, error) {
	p, err := ParsePeriod(period)
	if err != nil {
		return nil, err
	}

	end := s.now().UTC()
	start := end.Add(-p.Duration())

	reports, err := s.repo.ListByUser(ctx, userID, start)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(reports))
	byMarketplace := make(map[sales.Marketplace]*MarketplaceSummary)
	for _, r := range reports {
		if !r.Processed {
			continue
		}
		ids = append(ids, r.ID)

		m, ok := byMarketplace[r.Marketplace]
		if !ok {
			m = &MarketplaceSummary{Marketplace: r.Marketplace, TotalRevenue: decimal.Zero, TotalProfit: decimal.Zero}
			byMarketplace[r.Marketplace] = m
		}
		m.Reports++
		m.TotalRevenue = m.TotalRevenue.Add(r.TotalRevenue)
		m.TotalProfit = m.TotalProfit.Add(r.TotalProfit)
	}

	records, err := s.repo.ListSalesRecords(ctx, ids...)
	if err != nil {
		return nil, fmt.Errorf("list sales records: %w", err)
	}

	summaries := make([]MarketplaceSummary, 0, len(byMarketplace))
	for _, m := range sales.AllMarketplaces() {
		if ms, ok := byMarketplace[m]; ok {
			ms.ProfitMargin = sales.Margin(ms.TotalProfit, ms.TotalRevenue)
			summaries = append(summaries, *ms)
		}
	}

	s.logger.Debug("User analytics computed",
		zap.String("user_id", userID.String()),
		zap.String("period", string(p)),
		zap.Int("reports", len(ids)),
		zap.Int("records", len(records)),
	)

	return &UserAnalyticsResponse{
		UserID:           userID,
		Period:           p,
		PeriodStart:      start,
		PeriodEnd:        end,
		ReportCount:      len(ids),
		ByMarketplace:    summaries,
		AnalyticsSummary: sales.BuildAnalytics(records, s.topProducts),
	}, nil
}
