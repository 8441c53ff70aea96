package sales

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func mustRow(t *testing.T, price string, qty int) CanonicalSaleRow {
	t.Helper()
	row, err := NewCanonicalSaleRow(SaleRowInput{
		SKU:         "SKU-001",
		ProductName: "Test product",
		SaleDate:    time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		Quantity:    qty,
		Price:       decimal.RequireFromString(price),
	}, testNow)
	require.NoError(t, err)
	return row
}

func assertDecimal(t *testing.T, expected string, actual decimal.Decimal, field string) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(expected).Equal(actual), "%s: expected %s, got %s", field, expected, actual)
}

func TestCalculator_Analyze(t *testing.T) {
	calc := NewCalculator(DefaultFeeSchedule())

	t.Run("wildberries fee example", func(t *testing.T) {
		out, err := calc.Analyze(mustRow(t, "1000", 2), MarketplaceWildberries)
		require.NoError(t, err)

		assertDecimal(t, "2000", out.Revenue, "revenue")
		assertDecimal(t, "100", out.Commission, "commission")
		assertDecimal(t, "80", out.Logistics, "logistics")
		assertDecimal(t, "50", out.Storage, "storage")
		assertDecimal(t, "46", out.Surcharge, "surcharge")
		assertDecimal(t, "276", out.TotalFees(), "total fees")
		assertDecimal(t, "1724", out.NetProfit, "net profit")
		assertDecimal(t, "86.2", out.ProfitMargin, "margin")
		assert.Equal(t, MarketplaceWildberries, out.Marketplace)
		assert.Equal(t, "SKU-001", out.SKU())
	})

	t.Run("ozon applies fulfillment surcharge", func(t *testing.T) {
		out, err := calc.Analyze(mustRow(t, "500", 3), MarketplaceOzon)
		require.NoError(t, err)

		assertDecimal(t, "1500", out.Revenue, "revenue")
		assertDecimal(t, "120", out.Commission, "commission")
		assertDecimal(t, "52.5", out.Logistics, "logistics")
		assertDecimal(t, "30", out.Storage, "storage")
		assertDecimal(t, "37.5", out.Surcharge, "surcharge")
		assertDecimal(t, "1260", out.NetProfit, "net profit")
		assertDecimal(t, "84", out.ProfitMargin, "margin")
	})

	t.Run("zero price yields zero margin", func(t *testing.T) {
		out, err := calc.Analyze(mustRow(t, "0", 5), MarketplaceOzon)
		require.NoError(t, err)
		assert.True(t, out.Revenue.IsZero())
		assert.True(t, out.NetProfit.IsZero())
		assert.True(t, out.ProfitMargin.IsZero())
	})

	t.Run("unknown marketplace", func(t *testing.T) {
		_, err := calc.Analyze(mustRow(t, "100", 1), Marketplace("AMAZON"))
		require.Error(t, err)

		var invalid *InvalidInputError
		require.True(t, errors.As(err, &invalid))
		assert.Equal(t, "marketplace", invalid.Field)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("non-positive quantity", func(t *testing.T) {
		row := CanonicalSaleRow{sku: "SKU-001", productName: "Test", quantity: 0, price: decimal.NewFromInt(10)}
		_, err := calc.Analyze(row, MarketplaceWildberries)

		var invalid *InvalidInputError
		require.True(t, errors.As(err, &invalid))
		assert.Equal(t, "quantity", invalid.Field)
	})

	t.Run("negative price", func(t *testing.T) {
		row := CanonicalSaleRow{sku: "SKU-001", productName: "Test", quantity: 1, price: decimal.NewFromInt(-1)}
		_, err := calc.Analyze(row, MarketplaceWildberries)

		var invalid *InvalidInputError
		require.True(t, errors.As(err, &invalid))
		assert.Equal(t, "price", invalid.Field)
	})
}

func TestCalculator_ScheduleIsData(t *testing.T) {
	yandex := Marketplace("YANDEX")
	schedule, err := NewFeeSchedule("test", map[Marketplace]FeeProfile{
		yandex: {
			SaleCommissionRate: decimal.RequireFromString("0.1"),
			LogisticsRate:      decimal.RequireFromString("0.05"),
			StorageRate:        decimal.Zero,
		},
	})
	require.NoError(t, err)

	out, err := NewCalculator(schedule).Analyze(mustRow(t, "200", 1), yandex)
	require.NoError(t, err)
	assertDecimal(t, "0", out.Surcharge, "surcharge")
	assertDecimal(t, "170", out.NetProfit, "net profit")
	assertDecimal(t, "85", out.ProfitMargin, "margin")
}

func TestFeeSchedule(t *testing.T) {
	t.Run("defaults cover both marketplaces", func(t *testing.T) {
		s := DefaultFeeSchedule()
		assert.Equal(t, DefaultFeeScheduleVersion, s.Version())
		assert.Equal(t, []Marketplace{MarketplaceOzon, MarketplaceWildberries}, s.Marketplaces())

		wb, ok := s.Profile(MarketplaceWildberries)
		require.True(t, ok)
		require.NotNil(t, wb.Surcharge)
		assert.Equal(t, "acquiring", wb.Surcharge.Name)
		assertDecimal(t, "0.138", wb.TotalRate(), "total rate")
	})

	t.Run("profiles are copied", func(t *testing.T) {
		profiles := DefaultFeeProfiles()
		s, err := NewFeeSchedule("v1", profiles)
		require.NoError(t, err)

		profiles[MarketplaceOzon] = FeeProfile{SaleCommissionRate: decimal.NewFromInt(1)}
		got, _ := s.Profile(MarketplaceOzon)
		assertDecimal(t, "0.08", got.SaleCommissionRate, "commission rate")

		got.Surcharge.Rate = decimal.NewFromInt(1)
		again, _ := s.Profile(MarketplaceOzon)
		assertDecimal(t, "0.025", again.Surcharge.Rate, "surcharge rate")
	})

	t.Run("rejects invalid tables", func(t *testing.T) {
		_, err := NewFeeSchedule("", DefaultFeeProfiles())
		assert.ErrorIs(t, err, ErrInvalidFeeSchedule)

		_, err = NewFeeSchedule("v1", nil)
		assert.ErrorIs(t, err, ErrInvalidFeeSchedule)

		_, err = NewFeeSchedule("v1", map[Marketplace]FeeProfile{
			MarketplaceOzon: {SaleCommissionRate: decimal.RequireFromString("1.5")},
		})
		assert.ErrorIs(t, err, ErrInvalidFeeSchedule)
	})
}

func TestSummarize(t *testing.T) {
	calc := NewCalculator(nil)
	a, err := calc.Analyze(mustRow(t, "1000", 2), MarketplaceWildberries)
	require.NoError(t, err)
	b, err := calc.Analyze(mustRow(t, "500", 3), MarketplaceOzon)
	require.NoError(t, err)

	forward := Summarize([]AnalyzedSaleRow{a, b})
	backward := Summarize([]AnalyzedSaleRow{b, a})

	assert.Equal(t, 2, forward.RowCount)
	assertDecimal(t, "3500", forward.TotalRevenue, "total revenue")
	assertDecimal(t, "2984", forward.TotalProfit, "total profit")
	assert.True(t, Margin(forward.TotalProfit, forward.TotalRevenue).Equal(forward.ProfitMargin))
	assert.True(t, forward.TotalProfit.Equal(backward.TotalProfit))

	empty := Summarize(nil)
	assert.True(t, empty.ProfitMargin.IsZero())
}
