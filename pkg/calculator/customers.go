package calculator

import (
	"database/sql"

	"github.com/shopspring/decimal"

	"retail-analytics/pkg/aggregate"
	"retail-analytics/pkg/classify"
	"retail-analytics/pkg/models"
)

// CustomerRevenue is one customer's qualifying activity.
type CustomerRevenue struct {
	CustomerID    string
	Revenue       decimal.Decimal
	Invoices      int
	Transactions  int
	ActiveMonths  int
	FirstPurchase sql.NullString
	LastPurchase  sql.NullString
	AvgOrderValue decimal.NullDecimal
	PerMonth      decimal.NullDecimal
}

// PerCustomer groups customer-attributed lines, first-seen order.
func PerCustomer(lines []models.TransactionLine) []CustomerRevenue {
	groups := aggregate.GroupBy(lines, func(l models.TransactionLine) string { return l.CustomerID.String })
	out := make([]CustomerRevenue, 0, len(groups))
	for _, g := range groups {
		revenue := aggregate.SumWhere(g.Items, salesRevenue, nil)
		invoices := countInvoices(g.Items)
		months := aggregate.CountDistinct(g.Items, models.TransactionLine.Month)
		first, last := dateSpan(g.Items)
		out = append(out, CustomerRevenue{
			CustomerID:    g.Key,
			Revenue:       aggregate.Round2(revenue),
			Invoices:      invoices,
			Transactions:  len(g.Items),
			ActiveMonths:  months,
			FirstPurchase: first,
			LastPurchase:  last,
			AvgOrderValue: aggregate.SafeRatio(revenue, count(invoices)),
			PerMonth:      aggregate.SafeRatio(revenue, count(months)),
		})
	}
	return out
}

func byRevenue(c CustomerRevenue) decimal.Decimal { return c.Revenue }
func byCustomerID(c CustomerRevenue) string       { return c.CustomerID }

// TopCustomers ranks customers by revenue.
func TopCustomers(lines []models.TransactionLine, n int) []CustomerRevenue {
	return aggregate.TopN(PerCustomer(lines), byRevenue, byCustomerID, n, true)
}

func buildTopCustomers(lines []models.TransactionLine, cfg models.Config) (*models.Table, error) {
	t := newTable("CustomerID", "customer_revenue", "num_invoices", "num_transactions",
		"first_purchase_date", "last_purchase_date", "avg_order_value")
	for _, c := range TopCustomers(lines, cfg.TopCustomers) {
		t.Rows = append(t.Rows, []any{c.CustomerID, c.Revenue, c.Invoices, c.Transactions,
			c.FirstPurchase, c.LastPurchase, c.AvgOrderValue})
	}
	return t, nil
}

// LifetimeValue keeps repeat customers (two or more orders) ranked by revenue.
func LifetimeValue(lines []models.TransactionLine, n int) []CustomerRevenue {
	var repeat []CustomerRevenue
	for _, c := range PerCustomer(lines) {
		if c.Invoices >= 2 {
			repeat = append(repeat, c)
		}
	}
	return aggregate.TopN(repeat, byRevenue, byCustomerID, n, true)
}

func buildLifetimeValue(lines []models.TransactionLine, cfg models.Config) (*models.Table, error) {
	t := newTable("CustomerID", "total_revenue", "total_orders", "active_months",
		"first_purchase", "last_purchase", "revenue_per_month")
	for _, c := range LifetimeValue(lines, cfg.TopLifetimeValue) {
		t.Rows = append(t.Rows, []any{c.CustomerID, c.Revenue, c.Invoices, c.ActiveMonths,
			c.FirstPurchase, c.LastPurchase, c.PerMonth})
	}
	return t, nil
}

// BucketCount is one row of a bucketed distribution.
type BucketCount struct {
	Label      string
	Count      int
	Percentage decimal.NullDecimal
}

// distribution counts values per bucket, in bucket order, dropping empty buckets.
// Percentages are relative to the number of values.
func distribution(buckets []classify.Bucket, values []int) []BucketCount {
	counts := make([]int, len(buckets))
	for _, v := range values {
		if i := classify.BucketIndex(buckets, v); i >= 0 {
			counts[i]++
		}
	}
	var out []BucketCount
	for i, b := range buckets {
		if counts[i] == 0 {
			continue
		}
		out = append(out, BucketCount{
			Label:      b.Label,
			Count:      counts[i],
			Percentage: aggregate.PercentageOfTotal(int64(counts[i]), int64(len(values))),
		})
	}
	return out
}

// FrequencyDistribution buckets customers by their count of distinct invoices.
func FrequencyDistribution(lines []models.TransactionLine) []BucketCount {
	groups := aggregate.GroupBy(lines, func(l models.TransactionLine) string { return l.CustomerID.String })
	invoices := make([]int, len(groups))
	for i, g := range groups {
		invoices[i] = countInvoices(g.Items)
	}
	return distribution(classify.PurchaseFrequencyBuckets, invoices)
}

func buildFrequencyDistribution(lines []models.TransactionLine, _ models.Config) (*models.Table, error) {
	t := newTable("purchase_frequency_category", "num_customers", "percentage")
	for _, b := range FrequencyDistribution(lines) {
		t.Rows = append(t.Rows, []any{b.Label, b.Count, b.Percentage})
	}
	return t, nil
}
