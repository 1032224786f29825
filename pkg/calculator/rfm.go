package calculator

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"retail-analytics/pkg/aggregate"
	"retail-analytics/pkg/classify"
	"retail-analytics/pkg/models"
)

// CustomerRFM pairs a customer's metrics with their scores.
type CustomerRFM struct {
	models.CustomerMetrics
	Score models.RFMScore
}

// CustomerMetricsAt aggregates dated sales lines per customer, measuring recency
// from asOf. A zero asOf falls back to the latest timestamp in lines.
func CustomerMetricsAt(lines []models.TransactionLine, asOf time.Time) []models.CustomerMetrics {
	lines = dated(lines)
	if asOf.IsZero() {
		asOf, _ = latestTimestamp(lines)
	}
	groups := aggregate.GroupBy(lines, func(l models.TransactionLine) string { return l.CustomerID.String })
	out := make([]models.CustomerMetrics, 0, len(groups))
	for _, g := range groups {
		first, _ := g.Items[0].Timestamp()
		last := first
		for _, l := range g.Items[1:] {
			t, _ := l.Timestamp()
			if t.Before(first) {
				first = t
			}
			if t.After(last) {
				last = t
			}
		}
		out = append(out, models.CustomerMetrics{
			CustomerID:    g.Key,
			Monetary:      aggregate.Round2(aggregate.SumWhere(g.Items, salesRevenue, nil)),
			Frequency:     countInvoices(g.Items),
			Transactions:  len(g.Items),
			RecencyDays:   asOf.Sub(last).Hours() / 24,
			FirstPurchase: first,
			LastPurchase:  last,
			ActiveMonths:  aggregate.CountDistinct(g.Items, models.TransactionLine.Month),
		})
	}
	return out
}

// ScoreCustomers classifies every customer, ordered by rfm_score then monetary
// value (both descending), ties by customer id.
func ScoreCustomers(metrics []models.CustomerMetrics) []CustomerRFM {
	out := make([]CustomerRFM, len(metrics))
	for i, m := range metrics {
		out[i] = CustomerRFM{CustomerMetrics: m, Score: classify.Score(m.RecencyDays, m.Frequency, m.Monetary)}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score.Total() != b.Score.Total() {
			return a.Score.Total() > b.Score.Total()
		}
		if c := a.Monetary.Cmp(b.Monetary); c != 0 {
			return c > 0
		}
		return a.CustomerID < b.CustomerID
	})
	return out
}

func buildRFMSegments(lines []models.TransactionLine, cfg models.Config) (*models.Table, error) {
	t := newTable("CustomerID", "last_purchase_date", "days_since_last_purchase", "frequency", "monetary_value",
		"recency_score", "frequency_score", "monetary_score", "rfm_score", "customer_segment")
	for _, c := range ScoreCustomers(CustomerMetricsAt(lines, cfg.AsOf)) {
		t.Rows = append(t.Rows, []any{
			c.CustomerID,
			c.LastPurchase.Format(models.TimestampLayout),
			aggregate.Round2(decimal.NewFromFloat(c.RecencyDays)),
			c.Frequency,
			c.Monetary,
			c.Score.Recency, c.Score.Frequency, c.Score.Monetary, c.Score.Total(),
			c.Score.Segment,
		})
	}
	return t, nil
}

// SegmentSummary aggregates scored customers per segment.
type SegmentSummary struct {
	Segment    string
	Customers  int
	Percentage decimal.NullDecimal
	Revenue    decimal.Decimal
	AvgValue   decimal.NullDecimal
}

// SummariseSegments orders segments by total revenue descending, ties by name.
func SummariseSegments(scored []CustomerRFM) []SegmentSummary {
	groups := aggregate.GroupBy(scored, func(c CustomerRFM) string { return c.Score.Segment })
	rows := make([]SegmentSummary, 0, len(groups))
	for _, g := range groups {
		values := make([]decimal.Decimal, len(g.Items))
		for i, c := range g.Items {
			values[i] = c.Monetary
		}
		rows = append(rows, SegmentSummary{
			Segment:    g.Key,
			Customers:  len(g.Items),
			Percentage: aggregate.PercentageOfTotal(int64(len(g.Items)), int64(len(scored))),
			Revenue:    aggregate.Round2(decimal.Sum(decimal.Zero, values...)),
			AvgValue:   aggregate.Average(values),
		})
	}
	return aggregate.TopN(rows,
		func(s SegmentSummary) decimal.Decimal { return s.Revenue },
		func(s SegmentSummary) string { return s.Segment }, 0, true)
}

func buildRFMSummary(lines []models.TransactionLine, cfg models.Config) (*models.Table, error) {
	t := newTable("customer_segment", "num_customers", "percentage", "total_revenue", "avg_customer_value")
	for _, s := range SummariseSegments(ScoreCustomers(CustomerMetricsAt(lines, cfg.AsOf))) {
		t.Rows = append(t.Rows, []any{s.Segment, s.Customers, s.Percentage, s.Revenue, s.AvgValue})
	}
	return t, nil
}
