package csvimport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHeader(t *testing.T) {
	t.Run("Valid header", func(t *testing.T) {
		parser := NewCSVParser()

		err := parser.ParseHeader("code,name,price")

		require.NoError(t, err)
		assert.Equal(t, []string{"code", "name", "price"}, parser.Headers())
		assert.Equal(t, map[string]int{"code": 0, "name": 1, "price": 2}, parser.HeaderMap())
	})

	t.Run("Header with spaces trimmed", func(t *testing.T) {
		parser := NewCSVParser()

		err := parser.ParseHeader("  code  ,  name  ,  price  ")

		require.NoError(t, err)
		assert.Equal(t, []string{"code", "name", "price"}, parser.Headers())
	})

	t.Run("Trailing empty headers are dropped", func(t *testing.T) {
		parser := NewCSVParser(WithDelimiter(';'))

		require.NoError(t, parser.ParseHeader("Дата;Артикул;;"))
		assert.Equal(t, []string{"Дата", "Артикул"}, parser.Headers())
	})

	t.Run("Blank header line", func(t *testing.T) {
		parser := NewCSVParser()

		err := parser.ParseHeader(" , ")

		assert.ErrorIs(t, err, ErrMissingHeader)
	})

	t.Run("Duplicate header keeps first index", func(t *testing.T) {
		parser := NewCSVParser()

		require.NoError(t, parser.ParseHeader("sku,name,sku"))
		assert.Equal(t, 0, parser.HeaderMap()["sku"])
		assert.True(t, parser.HasHeader("name"))
		assert.False(t, parser.HasHeader("price"))
	})
}

func TestParseLine(t *testing.T) {
	parser := NewCSVParser()
	require.NoError(t, parser.ParseHeader("date,sku,name,price,quantity"))

	t.Run("Plain line", func(t *testing.T) {
		row, err := parser.ParseLine(2, "01.03.2024,SKU-1,Widget,100,2")

		require.NoError(t, err)
		assert.Equal(t, 2, row.LineNumber)
		assert.Equal(t, "SKU-1", row.Get("sku"))
		assert.Equal(t, "Widget", row.Get("name"))
		assert.Equal(t, []string{"date", "sku", "name", "price", "quantity"}, row.Headers())
	})

	t.Run("Quoted fields with escaped quotes", func(t *testing.T) {
		row, err := parser.ParseLine(3, `01.03.2024,SKU-2,"Куртка ""Зима"", синяя","1 200,50",1`)

		require.NoError(t, err)
		assert.Equal(t, `Куртка "Зима", синяя`, row.Get("name"))
		assert.Equal(t, "1 200,50", row.Get("price"))
	})

	t.Run("Short line fills missing columns", func(t *testing.T) {
		row, err := parser.ParseLine(4, "01.03.2024,SKU-3")

		require.NoError(t, err)
		assert.Equal(t, "", row.Get("price"))
		assert.Equal(t, "default", row.GetOrDefault("price", "default"))
	})

	t.Run("Extra fields kept in RawFields", func(t *testing.T) {
		row, err := parser.ParseLine(5, "01.03.2024,SKU-4,Widget,100,2,extra")

		require.NoError(t, err)
		assert.Len(t, row.RawFields, 6)
		assert.Len(t, row.Data, 5)
	})

	assert.Equal(t, 4, parser.TotalRows())
}

func TestRow(t *testing.T) {
	t.Run("IsEmpty", func(t *testing.T) {
		row := NewRow(1, []string{"a", "b"}, []string{" ", ""})
		assert.True(t, row.IsEmpty())

		row.Dates["a"] = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
		assert.False(t, row.IsEmpty())
	})

	t.Run("Date lookup", func(t *testing.T) {
		row := NewRow(1, []string{"date"}, []string{"45352"})
		_, ok := row.Date("date")
		assert.False(t, ok)

		want := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
		row.Dates["date"] = want
		got, ok := row.Date("date")
		assert.True(t, ok)
		assert.Equal(t, want, got)
	})
}

func TestTrimSpaces(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"  hello  ", "hello"},
		{"\thello\t", "hello"},
		{" цена ", "цена"},
		{"", ""},
		{"   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, trimSpaces(tt.input))
		})
	}
}
