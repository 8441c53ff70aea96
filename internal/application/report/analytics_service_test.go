package reportapp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/marketplace-analytics/backend/internal/domain/sales"
	"github.com/marketplace-analytics/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockReportRepository is a mock implementation of sales.ReportRepository
type mockReportRepository struct {
	mock.Mock
}

func (m *mockReportRepository) Create(ctx context.Context, report *sales.Report) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}

func (m *mockReportRepository) FindByID(ctx context.Context, id uuid.UUID) (*sales.Report, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sales.Report), args.Error(1)
}

func (m *mockReportRepository) ListByUser(ctx context.Context, userID uuid.UUID, since time.Time) ([]sales.Report, error) {
	args := m.Called(ctx, userID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]sales.Report), args.Error(1)
}

func (m *mockReportRepository) ListSalesRecords(ctx context.Context, reportIDs ...uuid.UUID) ([]sales.SalesRecord, error) {
	args := m.Called(ctx, reportIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]sales.SalesRecord), args.Error(1)
}

var now = time.Date(2024, 6, 30, 15, 0, 0, 0, time.UTC)

func newTestService(repo *mockReportRepository) *AnalyticsService {
	return NewAnalyticsService(repo, nil, WithClock(func() time.Time { return now }))
}

func record(reportID uuid.UUID, sku string, day int, revenue, profit string) sales.SalesRecord {
	rev := decimal.RequireFromString(revenue)
	return sales.SalesRecord{
		ID:          uuid.New(),
		ReportID:    reportID,
		SaleDate:    time.Date(2024, 6, day, 0, 0, 0, 0, time.UTC),
		SKU:         sku,
		ProductName: "Товар " + sku,
		Quantity:    1,
		Price:       rev,
		Revenue:     rev,
		Commission:  rev.Sub(decimal.RequireFromString(profit)),
		Logistics:   decimal.Zero,
		Storage:     decimal.Zero,
		Surcharge:   decimal.Zero,
		NetProfit:   decimal.RequireFromString(profit),
	}
}

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		in      string
		want    Period
		wantErr bool
	}{
		{"", Period30d, false},
		{"7d", Period7d, false},
		{"30d", Period30d, false},
		{"90d", Period90d, false},
		{"1y", "", true},
		{"7D", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePeriod(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPeriod)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, 7*24*time.Hour, Period7d.Duration())
	assert.Equal(t, 90*24*time.Hour, Period90d.Duration())
}

func TestAnalyticsService_GetReportAnalytics(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	report := &sales.Report{
		ID:          uuid.New(),
		UserID:      userID,
		FileName:    "wb-june.csv",
		Marketplace: sales.MarketplaceWildberries,
		UploadDate:  now.Add(-time.Hour),
		Processed:   true,
	}

	t.Run("aggregates the report records", func(t *testing.T) {
		repo := new(mockReportRepository)
		repo.On("FindByID", ctx, report.ID).Return(report, nil).Once()
		repo.On("ListSalesRecords", ctx, []uuid.UUID{report.ID}).Return([]sales.SalesRecord{
			record(report.ID, "SKU-A", 2, "100", "80"),
			record(report.ID, "SKU-B", 1, "300", "200"),
			record(report.ID, "SKU-A", 1, "50", "40"),
		}, nil).Once()

		got, err := newTestService(repo).GetReportAnalytics(ctx, userID, report.ID)

		require.NoError(t, err)
		assert.Equal(t, report.ID, got.ReportID)
		assert.Equal(t, "wb-june.csv", got.FileName)
		assert.True(t, got.Processed)
		assert.Equal(t, int64(3), got.TotalOrders)
		assert.True(t, decimal.NewFromInt(450).Equal(got.TotalRevenue))
		assert.True(t, decimal.NewFromInt(320).Equal(got.TotalProfit))
		require.Len(t, got.TopProducts, 2)
		assert.Equal(t, "SKU-B", got.TopProducts[0].SKU)
		assert.Equal(t, 1, got.TopProducts[0].Rank)
		assert.True(t, decimal.NewFromInt(120).Equal(got.TopProducts[1].NetProfit))
		require.Len(t, got.DailySales, 2)
		assert.Equal(t, 1, got.DailySales[0].Date.Day())
		assert.Equal(t, int64(2), got.DailySales[0].Orders)
		assert.True(t, decimal.NewFromInt(130).Equal(got.Expenses.Total()))
		repo.AssertExpectations(t)
	})

	t.Run("report of another user is not found", func(t *testing.T) {
		repo := new(mockReportRepository)
		repo.On("FindByID", ctx, report.ID).Return(report, nil).Once()

		_, err := newTestService(repo).GetReportAnalytics(ctx, uuid.New(), report.ID)

		assert.ErrorIs(t, err, shared.ErrNotFound)
		repo.AssertNotCalled(t, "ListSalesRecords", mock.Anything, mock.Anything)
	})

	t.Run("missing report", func(t *testing.T) {
		repo := new(mockReportRepository)
		missing := uuid.New()
		repo.On("FindByID", ctx, missing).Return(nil, shared.ErrNotFound).Once()

		_, err := newTestService(repo).GetReportAnalytics(ctx, userID, missing)

		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("record query failure", func(t *testing.T) {
		repo := new(mockReportRepository)
		repo.On("FindByID", ctx, report.ID).Return(report, nil).Once()
		repo.On("ListSalesRecords", ctx, []uuid.UUID{report.ID}).Return(nil, errors.New("timeout")).Once()

		_, err := newTestService(repo).GetReportAnalytics(ctx, userID, report.ID)

		assert.ErrorContains(t, err, "list sales records")
	})
}

func TestAnalyticsService_GetUserAnalytics(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	wb := sales.Report{
		ID: uuid.New(), UserID: userID, Marketplace: sales.MarketplaceWildberries, Processed: true,
		TotalRevenue: decimal.NewFromInt(100), TotalProfit: decimal.NewFromInt(80),
	}
	ozon := sales.Report{
		ID: uuid.New(), UserID: userID, Marketplace: sales.MarketplaceOzon, Processed: true,
		TotalRevenue: decimal.NewFromInt(300), TotalProfit: decimal.NewFromInt(200),
	}
	pending := sales.Report{ID: uuid.New(), UserID: userID, Marketplace: sales.MarketplaceOzon}

	t.Run("aggregates processed reports of the period", func(t *testing.T) {
		repo := new(mockReportRepository)
		repo.On("ListByUser", ctx, userID, now.Add(-7*24*time.Hour)).
			Return([]sales.Report{ozon, pending, wb}, nil).Once()
		repo.On("ListSalesRecords", ctx, []uuid.UUID{ozon.ID, wb.ID}).Return([]sales.SalesRecord{
			record(wb.ID, "SKU-A", 3, "100", "80"),
			record(ozon.ID, "SKU-B", 4, "300", "200"),
		}, nil).Once()

		got, err := newTestService(repo).GetUserAnalytics(ctx, userID, "7d")

		require.NoError(t, err)
		assert.Equal(t, Period7d, got.Period)
		assert.Equal(t, now, got.PeriodEnd)
		assert.Equal(t, now.Add(-7*24*time.Hour), got.PeriodStart)
		assert.Equal(t, 2, got.ReportCount)
		assert.Equal(t, int64(2), got.TotalOrders)
		assert.True(t, decimal.NewFromInt(400).Equal(got.TotalRevenue))
		assert.True(t, decimal.NewFromInt(70).Equal(got.ProfitMargin))

		require.Len(t, got.ByMarketplace, 2)
		assert.Equal(t, sales.MarketplaceWildberries, got.ByMarketplace[0].Marketplace)
		assert.Equal(t, 1, got.ByMarketplace[0].Reports)
		assert.True(t, decimal.NewFromInt(80).Equal(got.ByMarketplace[0].ProfitMargin))
		assert.Equal(t, sales.MarketplaceOzon, got.ByMarketplace[1].Marketplace)
		repo.AssertExpectations(t)
	})

	t.Run("default period is 30 days", func(t *testing.T) {
		repo := new(mockReportRepository)
		repo.On("ListByUser", ctx, userID, now.Add(-30*24*time.Hour)).Return([]sales.Report{}, nil).Once()
		repo.On("ListSalesRecords", ctx, []uuid.UUID{}).Return(nil, nil).Once()

		got, err := newTestService(repo).GetUserAnalytics(ctx, userID, "")

		require.NoError(t, err)
		assert.Equal(t, Period30d, got.Period)
		assert.Zero(t, got.ReportCount)
		assert.Zero(t, got.TotalOrders)
		assert.True(t, got.TotalRevenue.IsZero())
		assert.True(t, got.ProfitMargin.IsZero())
		assert.Empty(t, got.TopProducts)
		assert.Empty(t, got.ByMarketplace)
		repo.AssertExpectations(t)
	})

	t.Run("invalid period", func(t *testing.T) {
		repo := new(mockReportRepository)

		_, err := newTestService(repo).GetUserAnalytics(ctx, userID, "1y")

		assert.ErrorIs(t, err, ErrInvalidPeriod)
		repo.AssertNotCalled(t, "ListByUser", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("report query failure", func(t *testing.T) {
		repo := new(mockReportRepository)
		repo.On("ListByUser", ctx, userID, mock.Anything).Return(nil, errors.New("timeout")).Once()

		_, err := newTestService(repo).GetUserAnalytics(ctx, userID, "90d")

		assert.ErrorContains(t, err, "list reports")
	})
}
