package calculator

import (
	"github.com/shopspring/decimal"

	"retail-analytics/pkg/aggregate"
	"retail-analytics/pkg/classify"
	"retail-analytics/pkg/models"
)

// Invoice is the total of one invoice's sales lines.
type Invoice struct {
	InvoiceNo string
	Value     decimal.Decimal
	Items     int64
}

// PerInvoice totals lines per invoice, first-seen order.
func PerInvoice(lines []models.TransactionLine) []Invoice {
	groups := aggregate.GroupBy(lines, func(l models.TransactionLine) string { return l.InvoiceNo })
	out := make([]Invoice, 0, len(groups))
	for _, g := range groups {
		out = append(out, Invoice{
			InvoiceNo: g.Key,
			Value:     aggregate.SumWhere(g.Items, salesRevenue, nil),
			Items:     aggregate.SumIntWhere(g.Items, soldQuantity, nil),
		})
	}
	return out
}

// InvoiceAverages summarises invoice totals.
type InvoiceAverages struct {
	Invoices      int
	AvgOrderValue decimal.NullDecimal
	AvgItems      decimal.NullDecimal
	MaxOrderValue decimal.NullDecimal
	MinOrderValue decimal.NullDecimal
}

func ComputeInvoiceAverages(lines []models.TransactionLine) InvoiceAverages {
	invoices := PerInvoice(lines)
	values := make([]decimal.Decimal, len(invoices))
	items := make([]decimal.Decimal, len(invoices))
	for i, inv := range invoices {
		values[i] = inv.Value
		items[i] = decimal.NewFromInt(inv.Items)
	}
	a := InvoiceAverages{
		Invoices:      len(invoices),
		AvgOrderValue: aggregate.Average(values),
		AvgItems:      aggregate.Average(items),
	}
	if lo, hi, ok := aggregate.MinMax(values); ok {
		a.MinOrderValue = decimal.NewNullDecimal(aggregate.Round2(lo))
		a.MaxOrderValue = decimal.NewNullDecimal(aggregate.Round2(hi))
	}
	return a
}

func buildInvoiceAverages(lines []models.TransactionLine, _ models.Config) (*models.Table, error) {
	a := ComputeInvoiceAverages(lines)
	t := newTable("total_invoices", "avg_order_value", "avg_items_per_invoice", "max_order_value", "min_order_value")
	if a.Invoices > 0 {
		t.Rows = append(t.Rows, []any{a.Invoices, a.AvgOrderValue, a.AvgItems, a.MaxOrderValue, a.MinOrderValue})
	}
	return t, nil
}

// BasketDistribution buckets invoices by their item count.
func BasketDistribution(lines []models.TransactionLine) []BucketCount {
	invoices := PerInvoice(lines)
	sizes := make([]int, len(invoices))
	for i, inv := range invoices {
		sizes[i] = int(inv.Items)
	}
	return distribution(classify.BasketSizeBuckets, sizes)
}

func buildBasketDistribution(lines []models.TransactionLine, _ models.Config) (*models.Table, error) {
	t := newTable("basket_size_category", "num_invoices", "percentage")
	for _, b := range BasketDistribution(lines) {
		t.Rows = append(t.Rows, []any{b.Label, b.Count, b.Percentage})
	}
	return t, nil
}
