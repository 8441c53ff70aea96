package ingestapp

import (
	"testing"
	"time"

	"github.com/marketplace-analytics/backend/internal/domain/sales"
	csvimport "github.com/marketplace-analytics/backend/internal/infrastructure/import"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestMapper(t *testing.T, m sales.Marketplace) *RowMapper {
	t.Helper()
	profile, ok := sales.ColumnProfileFor(m)
	require.True(t, ok)
	return NewRowMapper(MapperConfig{Profile: profile, Now: func() time.Time { return fixedNow }})
}

var wbHeaders = []string{"Дата продажи", "Артикул WB", "Наименование", "Цена продажи", "Количество", "Комиссия WB"}

func TestRowMapper_Map(t *testing.T) {
	mapper := newTestMapper(t, sales.MarketplaceWildberries)

	t.Run("resolves marketplace columns", func(t *testing.T) {
		row := csvimport.NewRow(2, wbHeaders, []string{"01.03.2024", "WB-100", "Шарф синий", "1 200,50", "2", "60"})

		got, rowErr := mapper.Map(row)

		require.Nil(t, rowErr)
		assert.Equal(t, "WB-100", got.SKU())
		assert.Equal(t, "Шарф синий", got.ProductName())
		assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), got.SaleDate())
		assert.Equal(t, 2, got.Quantity())
		assert.True(t, decimal.RequireFromString("1200.50").Equal(got.Price()))
		commission, ok := got.RawCommission()
		require.True(t, ok)
		assert.True(t, decimal.NewFromInt(60).Equal(commission))
	})

	t.Run("falls back to generic column names", func(t *testing.T) {
		row := csvimport.NewRow(2,
			[]string{"date", "SKU", "Product Name", "price", "QUANTITY"},
			[]string{"2024-03-05", "GEN-1", "Варежки", "350", "1"})

		got, rowErr := mapper.Map(row)

		require.Nil(t, rowErr)
		assert.Equal(t, "GEN-1", got.SKU())
		assert.Equal(t, 1, got.Quantity())
		_, ok := got.RawCommission()
		assert.False(t, ok)
	})

	t.Run("unreadable commission is treated as absent", func(t *testing.T) {
		row := csvimport.NewRow(2, wbHeaders, []string{"01.03.2024", "WB-100", "Шарф синий", "100", "1", "n/a"})

		got, rowErr := mapper.Map(row)

		require.Nil(t, rowErr)
		_, ok := got.RawCommission()
		assert.False(t, ok)
	})
}

func TestRowMapper_Map_Drops(t *testing.T) {
	mapper := newTestMapper(t, sales.MarketplaceWildberries)

	tests := []struct {
		name       string
		fields     []string
		wantCode   string
		wantColumn string
	}{
		{
			name:       "missing quantity",
			fields:     []string{"01.03.2024", "WB-100", "Шарф синий", "100", "", ""},
			wantCode:   csvimport.ErrCodeImportRequiredField,
			wantColumn: "quantity",
		},
		{
			name:       "sku too short",
			fields:     []string{"01.03.2024", "WB", "Шарф синий", "100", "1", ""},
			wantCode:   csvimport.ErrCodeImportInvalidLength,
			wantColumn: "sku",
		},
		{
			name:       "sku holds product name text",
			fields:     []string{"01.03.2024", "шапка", "Шарф синий", "100", "1", ""},
			wantCode:   csvimport.ErrCodeImportNoiseDetected,
			wantColumn: "sku",
		},
		{
			name:       "product name too short",
			fields:     []string{"01.03.2024", "WB-100", "Ш", "100", "1", ""},
			wantCode:   csvimport.ErrCodeImportInvalidLength,
			wantColumn: "name",
		},
		{
			name:       "price out of range",
			fields:     []string{"01.03.2024", "WB-100", "Шарф синий", "2000000", "1", ""},
			wantCode:   csvimport.ErrCodeImportInvalidRange,
			wantColumn: "price",
		},
		{
			name:       "price is not a number",
			fields:     []string{"01.03.2024", "WB-100", "Шарф синий", "дорого", "1", ""},
			wantCode:   csvimport.ErrCodeImportInvalidType,
			wantColumn: "price",
		},
		{
			name:       "fractional quantity",
			fields:     []string{"01.03.2024", "WB-100", "Шарф синий", "100", "1,5", ""},
			wantCode:   csvimport.ErrCodeImportInvalidType,
			wantColumn: "quantity",
		},
		{
			name:       "zero quantity",
			fields:     []string{"01.03.2024", "WB-100", "Шарф синий", "100", "0", ""},
			wantCode:   csvimport.ErrCodeImportInvalidRange,
			wantColumn: "quantity",
		},
		{
			name:       "date is free text",
			fields:     []string{"вчера", "WB-100", "Шарф синий", "100", "1", ""},
			wantCode:   csvimport.ErrCodeImportInvalidFormat,
			wantColumn: "date",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := csvimport.NewRow(7, wbHeaders, tt.fields)

			_, rowErr := mapper.Map(row)

			require.NotNil(t, rowErr)
			assert.Equal(t, tt.wantCode, rowErr.Code)
			assert.Equal(t, tt.wantColumn, rowErr.Column)
			assert.Equal(t, 7, rowErr.Row)
		})
	}
}

func TestRowMapper_Map_SaleYearBound(t *testing.T) {
	mapper := newTestMapper(t, sales.MarketplaceWildberries)
	row := csvimport.NewRow(3, wbHeaders, []string{"01.03.2031", "WB-100", "Шарф синий", "100", "1", ""})

	_, rowErr := mapper.Map(row)

	require.NotNil(t, rowErr)
	assert.Equal(t, 3, rowErr.Row)
}
