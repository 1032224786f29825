package calculator

import (
	"github.com/shopspring/decimal"

	"retail-analytics/pkg/aggregate"
	"retail-analytics/pkg/models"
)

// BusinessKPIs is the one-row headline summary.
//
// Invoices and money are taken from qualifying lines (priced, not cancelled);
// customers, products and countries are distinct over the whole snapshot.
type BusinessKPIs struct {
	Invoices            int
	Customers           int
	Products            int
	Countries           int
	SalesRevenue        decimal.Decimal
	AvgOrderValue       decimal.NullDecimal
	AvgCustomerValue    decimal.NullDecimal
	AvgItemsPerLine     decimal.NullDecimal
	CancellationRatePct decimal.NullDecimal
}

func ComputeBusinessKPIs(lines []models.TransactionLine, cancelPrefix string) BusinessKPIs {
	var qualifying []models.TransactionLine
	for _, l := range lines {
		if l.HasPrice() && !l.IsCancelled(cancelPrefix) {
			qualifying = append(qualifying, l)
		}
	}

	revenue := aggregate.SumWhere(qualifying, salesRevenue, nil)
	invoices := countInvoices(qualifying)
	items := aggregate.SumIntWhere(qualifying, soldQuantity, nil)

	return BusinessKPIs{
		Invoices:            invoices,
		Customers:           countCustomers(lines),
		Products:            aggregate.CountDistinct(lines, stockKey),
		Countries:           aggregate.CountDistinct(lines, countryKey),
		SalesRevenue:        aggregate.Round2(revenue),
		AvgOrderValue:       aggregate.SafeRatio(revenue, count(invoices)),
		AvgCustomerValue:    aggregate.SafeRatio(revenue, count(countCustomers(qualifying))),
		AvgItemsPerLine:     aggregate.SafeRatio(decimal.NewFromInt(items), count(len(qualifying))),
		CancellationRatePct: ComputeCancellation(lines, cancelPrefix).RatePct,
	}
}

func buildBusinessKPIs(lines []models.TransactionLine, cfg models.Config) (*models.Table, error) {
	k := ComputeBusinessKPIs(lines, cfg.CancelPrefix)
	t := newTable("total_invoices", "total_customers", "total_products", "total_countries",
		"total_sales_revenue", "avg_order_value", "avg_customer_value", "avg_items_per_transaction", "cancellation_rate_pct")
	t.Rows = append(t.Rows, []any{k.Invoices, k.Customers, k.Products, k.Countries,
		k.SalesRevenue, k.AvgOrderValue, k.AvgCustomerValue, k.AvgItemsPerLine, k.CancellationRatePct})
	return t, nil
}
