package sales

import (
	"github.com/shopspring/decimal"
)

// Monetary results are rounded to MoneyScale decimal places, margins to MarginScale.
const (
	MoneyScale  int32 = 2
	MarginScale int32 = 4
)

var hundred = decimal.NewFromInt(100)

// Calculator applies a fee schedule to canonical sale rows
type Calculator struct {
	fees *FeeSchedule
}

// NewCalculator creates a calculator over the given fee schedule
func NewCalculator(fees *FeeSchedule) *Calculator {
	if fees == nil {
		fees = DefaultFeeSchedule()
	}
	return &Calculator{fees: fees}
}

// FeeSchedule returns the schedule the calculator applies
func (c *Calculator) FeeSchedule() *FeeSchedule {
	return c.fees
}

// Analyze computes revenue, fees, net profit and margin for one row.
// It fails with an *InvalidInputError for a marketplace missing from the
// schedule, a non-positive quantity or a negative price.
func (c *Calculator) Analyze(row CanonicalSaleRow, m Marketplace) (AnalyzedSaleRow, error) {
	profile, ok := c.fees.Profile(m)
	if !ok {
		return AnalyzedSaleRow{}, invalidInput("marketplace", "%q has no fee profile in schedule %s", m, c.fees.Version())
	}
	if row.quantity <= 0 {
		return AnalyzedSaleRow{}, invalidInput("quantity", "%d is not positive", row.quantity)
	}
	if row.price.IsNegative() {
		return AnalyzedSaleRow{}, invalidInput("price", "%s is negative", row.price)
	}

	revenue := row.price.Mul(decimal.NewFromInt(int64(row.quantity))).Round(MoneyScale)
	out := AnalyzedSaleRow{
		CanonicalSaleRow: row,
		Marketplace:      m,
		Revenue:          revenue,
		Commission:       fee(revenue, profile.SaleCommissionRate),
		Logistics:        fee(revenue, profile.LogisticsRate),
		Storage:          fee(revenue, profile.StorageRate),
		Surcharge:        decimal.Zero,
	}
	if profile.Surcharge != nil {
		out.Surcharge = fee(revenue, profile.Surcharge.Rate)
	}
	out.NetProfit = revenue.Sub(out.TotalFees())
	out.ProfitMargin = Margin(out.NetProfit, revenue)
	return out, nil
}

func fee(revenue, rate decimal.Decimal) decimal.Decimal {
	return revenue.Mul(rate).Round(MoneyScale)
}

// Margin returns profit as a percentage of revenue, or zero when revenue is zero
func Margin(profit, revenue decimal.Decimal) decimal.Decimal {
	if revenue.IsZero() {
		return decimal.Zero
	}
	return profit.Div(revenue).Mul(hundred).Round(MarginScale)
}
