package sales

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultTopProducts is the number of products listed in an analytics summary
const DefaultTopProducts = 10

// ProductPerformance aggregates the sales of one SKU
type ProductPerformance struct {
	Rank         int             `json:"rank"`
	SKU          string          `json:"sku"`
	ProductName  string          `json:"product_name"`
	Quantity     int64           `json:"quantity"`
	Orders       int64           `json:"orders"`
	Revenue      decimal.Decimal `json:"revenue"`
	NetProfit    decimal.Decimal `json:"net_profit"`
	ProfitMargin decimal.Decimal `json:"profit_margin"` // Percentage
}

// DailySales aggregates the sales of one calendar day
type DailySales struct {
	Date      time.Time       `json:"date"`
	Orders    int64           `json:"orders"`
	Quantity  int64           `json:"quantity"`
	Revenue   decimal.Decimal `json:"revenue"`
	NetProfit decimal.Decimal `json:"net_profit"`
}

// ExpenseBreakdown sums each fee category
type ExpenseBreakdown struct {
	Commission decimal.Decimal `json:"commission"`
	Logistics  decimal.Decimal `json:"logistics"`
	Storage    decimal.Decimal `json:"storage"`
	Surcharge  decimal.Decimal `json:"surcharge"`
}

// Total returns the sum of all fee categories
func (e ExpenseBreakdown) Total() decimal.Decimal {
	return e.Commission.Add(e.Logistics).Add(e.Storage).Add(e.Surcharge)
}

// AnalyticsSummary is the dashboard view over a set of sales records
type AnalyticsSummary struct {
	TotalRevenue  decimal.Decimal      `json:"total_revenue"`
	TotalProfit   decimal.Decimal      `json:"total_profit"`
	ProfitMargin  decimal.Decimal      `json:"profit_margin"` // Percentage
	TotalOrders   int64                `json:"total_orders"`
	TotalQuantity int64                `json:"total_quantity"`
	TopProducts   []ProductPerformance `json:"top_products"`
	DailySales    []DailySales         `json:"daily_sales"`
	Expenses      ExpenseBreakdown     `json:"expenses"`
}

// BuildAnalytics aggregates records into a summary. Products are ranked by net
// profit (ties by SKU) and limited to topN; days are sorted ascending.
func BuildAnalytics(records []SalesRecord, topN int) AnalyticsSummary {
	if topN <= 0 {
		topN = DefaultTopProducts
	}
	s := AnalyticsSummary{
		TotalRevenue: decimal.Zero,
		TotalProfit:  decimal.Zero,
		Expenses: ExpenseBreakdown{
			Commission: decimal.Zero,
			Logistics:  decimal.Zero,
			Storage:    decimal.Zero,
			Surcharge:  decimal.Zero,
		},
	}

	products := make(map[string]*ProductPerformance)
	days := make(map[time.Time]*DailySales)

	for _, r := range records {
		qty := int64(r.Quantity)
		s.TotalOrders++
		s.TotalQuantity += qty
		s.TotalRevenue = s.TotalRevenue.Add(r.Revenue)
		s.TotalProfit = s.TotalProfit.Add(r.NetProfit)
		s.Expenses.Commission = s.Expenses.Commission.Add(r.Commission)
		s.Expenses.Logistics = s.Expenses.Logistics.Add(r.Logistics)
		s.Expenses.Storage = s.Expenses.Storage.Add(r.Storage)
		s.Expenses.Surcharge = s.Expenses.Surcharge.Add(r.Surcharge)

		p, ok := products[r.SKU]
		if !ok {
			p = &ProductPerformance{SKU: r.SKU, ProductName: r.ProductName, Revenue: decimal.Zero, NetProfit: decimal.Zero}
			products[r.SKU] = p
		}
		p.Orders++
		p.Quantity += qty
		p.Revenue = p.Revenue.Add(r.Revenue)
		p.NetProfit = p.NetProfit.Add(r.NetProfit)

		y, m, d := r.SaleDate.Date()
		key := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		day, ok := days[key]
		if !ok {
			day = &DailySales{Date: key, Revenue: decimal.Zero, NetProfit: decimal.Zero}
			days[key] = day
		}
		day.Orders++
		day.Quantity += qty
		day.Revenue = day.Revenue.Add(r.Revenue)
		day.NetProfit = day.NetProfit.Add(r.NetProfit)
	}
	s.ProfitMargin = Margin(s.TotalProfit, s.TotalRevenue)

	ranked := make([]ProductPerformance, 0, len(products))
	for _, p := range products {
		p.ProfitMargin = Margin(p.NetProfit, p.Revenue)
		ranked = append(ranked, *p)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if c := ranked[i].NetProfit.Cmp(ranked[j].NetProfit); c != 0 {
			return c > 0
		}
		return ranked[i].SKU < ranked[j].SKU
	})
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	s.TopProducts = ranked

	s.DailySales = make([]DailySales, 0, len(days))
	for _, d := range days {
		s.DailySales = append(s.DailySales, *d)
	}
	sort.Slice(s.DailySales, func(i, j int) bool {
		return s.DailySales[i].Date.Before(s.DailySales[j].Date)
	})
	return s
}
