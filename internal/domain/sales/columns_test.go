package sales

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapCells struct {
	headers []string
	data    map[string]string
}

func newMapCells(pairs ...string) mapCells {
	c := mapCells{data: map[string]string{}}
	for i := 0; i+1 < len(pairs); i += 2 {
		c.headers = append(c.headers, pairs[i])
		c.data[pairs[i]] = pairs[i+1]
	}
	return c
}

func (c mapCells) Headers() []string        { return c.headers }
func (c mapCells) Get(header string) string { return c.data[header] }

func TestMarketplace(t *testing.T) {
	tests := []struct {
		input    string
		expected Marketplace
		valid    bool
	}{
		{"WILDBERRIES", MarketplaceWildberries, true},
		{" wildberries ", MarketplaceWildberries, true},
		{"wb", MarketplaceWildberries, true},
		{"ozon", MarketplaceOzon, true},
		{"AMAZON", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseMarketplace(tt.input)
			if !tt.valid {
				assert.ErrorIs(t, err, ErrInvalidMarketplace)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
			assert.True(t, got.IsValid())
		})
	}

	assert.Equal(t, "Wildberries", MarketplaceWildberries.DisplayName())
	assert.Equal(t, "Ozon", MarketplaceOzon.DisplayName())
	assert.Len(t, AllMarketplaces(), 2)
}

func TestColumnProfile_Resolve(t *testing.T) {
	wb, ok := ColumnProfileFor(MarketplaceWildberries)
	require.True(t, ok)
	ozon, ok := ColumnProfileFor(MarketplaceOzon)
	require.True(t, ok)

	t.Run("native headers", func(t *testing.T) {
		cells := newMapCells("Дата продажи", "15.01.2024", "Артикул WB", "123456", "Наименование", "Куртка")
		header, value, ok := wb.Resolve(FieldSKU, cells)
		require.True(t, ok)
		assert.Equal(t, "Артикул WB", header)
		assert.Equal(t, "123456", value)

		_, _, ok = ozon.Resolve(FieldSKU, cells)
		assert.False(t, ok, "ozon profile must not read wildberries headers")
	})

	t.Run("english fallback", func(t *testing.T) {
		cells := newMapCells("Date", "15.01.2024", "SKU", "OZ-1", "Product Name", "Jacket")
		_, value, ok := ozon.Resolve(FieldName, cells)
		require.True(t, ok)
		assert.Equal(t, "Jacket", value)
	})

	t.Run("blank preferred column falls through", func(t *testing.T) {
		cells := newMapCells("Артикул", "  ", "sku", "OZ-2")
		header, value, ok := ozon.Resolve(FieldSKU, cells)
		require.True(t, ok)
		assert.Equal(t, "sku", header)
		assert.Equal(t, "OZ-2", value)
	})

	t.Run("case-insensitive match", func(t *testing.T) {
		cells := newMapCells("PRODUCT NAME", "Jacket", "QUANTITY", "3")
		header, value, ok := wb.Resolve(FieldQuantity, cells)
		require.True(t, ok)
		assert.Equal(t, "QUANTITY", header)
		assert.Equal(t, "3", value)
	})

	t.Run("missing field", func(t *testing.T) {
		_, _, ok := wb.Resolve(FieldCommission, newMapCells("Date", "15.01.2024"))
		assert.False(t, ok)
	})
}

func TestColumnProfile_HeaderIndex(t *testing.T) {
	wb, _ := ColumnProfileFor(MarketplaceWildberries)
	headers := []string{"Дата продажи", "Артикул WB", "Наименование", "Цена продажи", "Количество"}

	assert.Equal(t, 0, wb.HeaderIndex(FieldDate, headers))
	assert.Equal(t, 1, wb.HeaderIndex(FieldSKU, headers))
	assert.Equal(t, 4, wb.HeaderIndex(FieldQuantity, headers))
	assert.Equal(t, -1, wb.HeaderIndex(FieldCommission, headers))
	assert.Equal(t, 1, wb.HeaderIndex(FieldSKU, []string{"date", "sku"}))
}

func TestColumnProfileFor_ReturnsCopy(t *testing.T) {
	p, _ := ColumnProfileFor(MarketplaceOzon)
	p.Synonyms[FieldSKU][0] = "changed"

	again, _ := ColumnProfileFor(MarketplaceOzon)
	assert.Equal(t, "Артикул", again.Synonyms[FieldSKU][0])

	_, ok := ColumnProfileFor(Marketplace("AMAZON"))
	assert.False(t, ok)
}

func TestNoiseList(t *testing.T) {
	l := NewNoiseList("Acme", "  ", "acme", "Strasse")

	tests := []struct {
		input    string
		expected bool
	}{
		{"Куртка зимняя мужская", true},
		{"КРОССОВКИ", true},
		{"SAMSUNG-A54", true},
		{"acme widget", true},
		{"STRAßE sandals", true},
		{"123456789", false},
		{"OZ-00153", false},
		{"15.01.2024", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, l.Contains(tt.input))
		})
	}

	count := 0
	for _, tok := range l.Tokens() {
		if tok == "acme" {
			count++
		}
	}
	assert.Equal(t, 1, count)

	var nilList *NoiseList
	assert.False(t, nilList.Contains("Куртка"))
}
