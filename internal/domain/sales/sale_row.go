package sales

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/marketplace-analytics/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Bounds of a canonical sale row
const (
	MinSKULength         = 3
	MaxSKULength         = 20
	MinProductNameLength = 3
	MaxProductNameLength = 200
	MinQuantity          = 1
	MaxQuantity          = 10000
	MinSaleYear          = 2020
)

// MaxPrice is the largest accepted unit price
var MaxPrice = decimal.NewFromInt(1_000_000)

// ErrInvalidInput is the sentinel wrapped by InvalidInputError
var ErrInvalidInput = shared.ErrInvalidInput

// InvalidInputError reports a field that failed validation
type InvalidInputError struct {
	Field  string
	Reason string
}

// Error implements the error interface
func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("sales: invalid %s: %s", e.Field, e.Reason)
}

// Unwrap returns ErrInvalidInput
func (e *InvalidInputError) Unwrap() error {
	return ErrInvalidInput
}

func invalidInput(field, format string, args ...any) *InvalidInputError {
	return &InvalidInputError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// SaleRowInput carries the resolved values used to build a CanonicalSaleRow
type SaleRowInput struct {
	SKU           string
	ProductName   string
	SaleDate      time.Time
	Quantity      int
	Price         decimal.Decimal
	RawCommission *decimal.Decimal
}

// CanonicalSaleRow is one validated sale, independent of the source marketplace format.
// It can only be obtained from NewCanonicalSaleRow and is never mutated.
type CanonicalSaleRow struct {
	sku           string
	productName   string
	saleDate      time.Time
	quantity      int
	price         decimal.Decimal
	rawCommission *decimal.Decimal
}

// NewCanonicalSaleRow validates the input and builds a CanonicalSaleRow.
// now bounds the sale year to [MinSaleYear, now.Year()+1].
func NewCanonicalSaleRow(in SaleRowInput, now time.Time) (CanonicalSaleRow, error) {
	sku := strings.TrimSpace(in.SKU)
	if n := utf8.RuneCountInString(sku); n < MinSKULength || n > MaxSKULength {
		return CanonicalSaleRow{}, invalidInput("sku", "length %d outside [%d,%d]", n, MinSKULength, MaxSKULength)
	}

	name := strings.TrimSpace(in.ProductName)
	if strings.ContainsAny(name, "\r\n") {
		return CanonicalSaleRow{}, invalidInput("productName", "contains a line break")
	}
	if n := utf8.RuneCountInString(name); n < MinProductNameLength || n > MaxProductNameLength {
		return CanonicalSaleRow{}, invalidInput("productName", "length %d outside [%d,%d]", n, MinProductNameLength, MaxProductNameLength)
	}

	if in.SaleDate.IsZero() {
		return CanonicalSaleRow{}, invalidInput("saleDate", "is required")
	}
	y, m, d := in.SaleDate.Date()
	if maxYear := now.UTC().Year() + 1; y < MinSaleYear || y > maxYear {
		return CanonicalSaleRow{}, invalidInput("saleDate", "year %d outside [%d,%d]", y, MinSaleYear, maxYear)
	}

	if in.Quantity < MinQuantity || in.Quantity > MaxQuantity {
		return CanonicalSaleRow{}, invalidInput("quantity", "%d outside [%d,%d]", in.Quantity, MinQuantity, MaxQuantity)
	}
	if in.Price.IsNegative() || in.Price.GreaterThan(MaxPrice) {
		return CanonicalSaleRow{}, invalidInput("price", "%s outside [0,%s]", in.Price, MaxPrice)
	}

	row := CanonicalSaleRow{
		sku:         sku,
		productName: name,
		saleDate:    time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		quantity:    in.Quantity,
		price:       in.Price,
	}
	if in.RawCommission != nil {
		c := *in.RawCommission
		row.rawCommission = &c
	}
	return row, nil
}

// SKU returns the product identifier
func (r CanonicalSaleRow) SKU() string { return r.sku }

// ProductName returns the product name
func (r CanonicalSaleRow) ProductName() string { return r.productName }

// SaleDate returns the sale date at UTC midnight
func (r CanonicalSaleRow) SaleDate() time.Time { return r.saleDate }

// Quantity returns the number of units sold
func (r CanonicalSaleRow) Quantity() int { return r.quantity }

// Price returns the unit price
func (r CanonicalSaleRow) Price() decimal.Decimal { return r.price }

// RawCommission returns the commission reported by the source file, if any
func (r CanonicalSaleRow) RawCommission() (decimal.Decimal, bool) {
	if r.rawCommission == nil {
		return decimal.Zero, false
	}
	return *r.rawCommission, true
}

// AnalyzedSaleRow is a CanonicalSaleRow enriched with revenue and fee figures
type AnalyzedSaleRow struct {
	CanonicalSaleRow
	Marketplace  Marketplace
	Revenue      decimal.Decimal
	Commission   decimal.Decimal
	Logistics    decimal.Decimal
	Storage      decimal.Decimal
	Surcharge    decimal.Decimal
	NetProfit    decimal.Decimal
	ProfitMargin decimal.Decimal // Percentage
}

// TotalFees returns the sum of every fee charged on the row
func (r AnalyzedSaleRow) TotalFees() decimal.Decimal {
	return r.Commission.Add(r.Logistics).Add(r.Storage).Add(r.Surcharge)
}
