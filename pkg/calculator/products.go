package calculator

import (
	"database/sql"

	"github.com/shopspring/decimal"

	"retail-analytics/pkg/aggregate"
	"retail-analytics/pkg/models"
)

const noDescription = "No Description"

// productKey groups on the raw (code, description) pair; the same code with a
// different description is a different product row.
type productKey struct {
	StockCode   string
	Description sql.NullString
}

// ProductStats is one product row.
type ProductStats struct {
	StockCode      string
	Description    string
	Revenue        decimal.Decimal
	QuantitySold   int64
	QuantityReturn int64
	TimesPurchased int
	Customers      int
	AvgUnitPrice   decimal.NullDecimal
	ReturnRatePct  decimal.NullDecimal // returned / (sold + returned)
}

func (p ProductStats) naturalKey() string { return p.StockCode + "\x00" + p.Description }

// PerProduct aggregates qualifying lines per product, first-seen order.
func PerProduct(lines []models.TransactionLine) []ProductStats {
	groups := aggregate.GroupBy(lines, func(l models.TransactionLine) productKey {
		return productKey{StockCode: l.StockCode, Description: l.Description}
	})
	out := make([]ProductStats, 0, len(groups))
	for _, g := range groups {
		desc := g.Key.Description.String
		if !g.Key.Description.Valid {
			desc = noDescription
		}
		prices := make([]decimal.Decimal, 0, len(g.Items))
		for _, l := range g.Items {
			if l.HasPrice() {
				prices = append(prices, l.UnitPrice.Decimal)
			}
		}
		sold := aggregate.SumIntWhere(g.Items, soldQuantity, nil)
		returned := aggregate.SumIntWhere(g.Items, returnedQuantity, nil)
		out = append(out, ProductStats{
			StockCode:      g.Key.StockCode,
			Description:    desc,
			Revenue:        aggregate.Round2(aggregate.SumWhere(g.Items, salesRevenue, nil)),
			QuantitySold:   sold,
			QuantityReturn: returned,
			TimesPurchased: countInvoices(g.Items),
			Customers:      countCustomers(g.Items),
			AvgUnitPrice:   aggregate.Average(prices),
			ReturnRatePct:  aggregate.PercentageOfTotal(returned, sold+returned),
		})
	}
	return out
}

func rankProducts(rows []ProductStats, key func(ProductStats) decimal.Decimal, n int) []ProductStats {
	return aggregate.TopN(rows, key, ProductStats.naturalKey, n, true)
}

// TopProductsByRevenue ranks products by sales revenue.
func TopProductsByRevenue(lines []models.TransactionLine, n int) []ProductStats {
	return rankProducts(PerProduct(lines), func(p ProductStats) decimal.Decimal { return p.Revenue }, n)
}

// TopProductsByQuantity ranks products by units sold.
func TopProductsByQuantity(lines []models.TransactionLine, n int) []ProductStats {
	return rankProducts(PerProduct(lines), func(p ProductStats) decimal.Decimal { return decimal.NewFromInt(p.QuantitySold) }, n)
}

// ProductReturnRates ranks products that sold at least one unit by return rate.
func ProductReturnRates(lines []models.TransactionLine, n int) []ProductStats {
	var sold []ProductStats
	for _, p := range PerProduct(lines) {
		if p.QuantitySold > 0 {
			sold = append(sold, p)
		}
	}
	return rankProducts(sold, func(p ProductStats) decimal.Decimal { return p.ReturnRatePct.Decimal }, n)
}

func buildTopProductsByRevenue(lines []models.TransactionLine, cfg models.Config) (*models.Table, error) {
	t := newTable("StockCode", "Description", "product_revenue", "total_quantity_sold", "times_purchased", "unique_customers", "avg_unit_price")
	for _, p := range TopProductsByRevenue(lines, cfg.TopProducts) {
		t.Rows = append(t.Rows, []any{p.StockCode, p.Description, p.Revenue, p.QuantitySold, p.TimesPurchased, p.Customers, p.AvgUnitPrice})
	}
	return t, nil
}

func buildTopProductsByQuantity(lines []models.TransactionLine, cfg models.Config) (*models.Table, error) {
	t := newTable("StockCode", "Description", "total_quantity_sold", "product_revenue", "times_purchased", "unique_customers")
	for _, p := range TopProductsByQuantity(lines, cfg.TopProducts) {
		t.Rows = append(t.Rows, []any{p.StockCode, p.Description, p.QuantitySold, p.Revenue, p.TimesPurchased, p.Customers})
	}
	return t, nil
}

func buildProductReturnRates(lines []models.TransactionLine, cfg models.Config) (*models.Table, error) {
	t := newTable("StockCode", "Description", "total_sold", "total_returned", "return_rate_pct")
	for _, p := range ProductReturnRates(lines, cfg.TopProducts) {
		t.Rows = append(t.Rows, []any{p.StockCode, p.Description, p.QuantitySold, p.QuantityReturn, p.ReturnRatePct})
	}
	return t, nil
}
