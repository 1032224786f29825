package calculator

import (
	"sort"

	"github.com/shopspring/decimal"

	"retail-analytics/pkg/aggregate"
	"retail-analytics/pkg/models"
)

// RevenueBreakdown splits priced revenue by quantity sign. The three figures are
// computed independently; null-quantity lines count towards none of them.
type RevenueBreakdown struct {
	Total   decimal.Decimal
	Sales   decimal.Decimal
	Returns decimal.Decimal // absolute value
}

func ComputeRevenueBreakdown(lines []models.TransactionLine) RevenueBreakdown {
	return RevenueBreakdown{
		Total: aggregate.Round2(aggregate.SumWhere(lines, models.TransactionLine.LineRevenue, models.TransactionLine.HasPrice)),
		Sales: aggregate.Round2(aggregate.SumWhere(lines, salesRevenue, models.TransactionLine.HasPrice)),
		Returns: aggregate.Round2(aggregate.SumWhere(lines,
			func(l models.TransactionLine) decimal.Decimal { return l.LineRevenue().Abs() },
			func(l models.TransactionLine) bool { return l.HasPrice() && l.IsReturn() })),
	}
}

func buildRevenueBreakdown(lines []models.TransactionLine, _ models.Config) (*models.Table, error) {
	r := ComputeRevenueBreakdown(lines)
	t := newTable("total_revenue", "sales_revenue", "return_value")
	t.Rows = append(t.Rows, []any{r.Total, r.Sales, r.Returns})
	return t, nil
}

// MonthlyRevenue is one calendar month of qualifying activity.
type MonthlyRevenue struct {
	Month        string // YYYY-MM
	SalesRevenue decimal.Decimal
	Invoices     int
	Customers    int
	Cumulative   decimal.Decimal
}

// MonthlyTrend groups dated lines by month, ascending by period.
func MonthlyTrend(lines []models.TransactionLine) []MonthlyRevenue {
	byMonth := aggregate.GroupBy(dated(lines), func(l models.TransactionLine) string {
		m, _ := l.Month()
		return m
	})
	rows := make([]MonthlyRevenue, 0, len(byMonth))
	for _, g := range byMonth {
		rows = append(rows, MonthlyRevenue{
			Month:        g.Key,
			SalesRevenue: aggregate.Round2(aggregate.SumWhere(g.Items, salesRevenue, nil)),
			Invoices:     countInvoices(g.Items),
			Customers:    countCustomers(g.Items),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Month < rows[j].Month })

	revenues := make([]decimal.Decimal, len(rows))
	for i, r := range rows {
		revenues[i] = r.SalesRevenue
	}
	for i, total := range aggregate.RunningTotal(revenues) {
		rows[i].Cumulative = total
	}
	return rows
}

func buildMonthlyTrend(lines []models.TransactionLine, _ models.Config) (*models.Table, error) {
	t := newTable("year_month", "sales_revenue", "num_invoices", "num_customers", "cumulative_revenue")
	for _, r := range MonthlyTrend(lines) {
		t.Rows = append(t.Rows, []any{r.Month, r.SalesRevenue, r.Invoices, r.Customers, r.Cumulative})
	}
	return t, nil
}

// GrowthRow compares a month with the one before it in sorted order.
type GrowthRow struct {
	Month    string
	Revenue  decimal.Decimal
	Previous decimal.NullDecimal // null for the first period
	Change   decimal.NullDecimal
	RatePct  decimal.NullDecimal // null for the first period or a zero prior
}

// RevenueGrowth derives month-over-month change from a trend ordered by period.
func RevenueGrowth(trend []MonthlyRevenue) []GrowthRow {
	rows := make([]GrowthRow, len(trend))
	for i, m := range trend {
		rows[i] = GrowthRow{Month: m.Month, Revenue: m.SalesRevenue}
		if i == 0 {
			continue
		}
		prev := trend[i-1].SalesRevenue
		change := aggregate.Round2(m.SalesRevenue.Sub(prev))
		rows[i].Previous = decimal.NewNullDecimal(prev)
		rows[i].Change = decimal.NewNullDecimal(change)
		rows[i].RatePct = aggregate.Percentage(change, prev)
	}
	return rows
}

func buildRevenueGrowth(lines []models.TransactionLine, _ models.Config) (*models.Table, error) {
	t := newTable("year_month", "revenue", "previous_month_revenue", "revenue_change", "growth_rate_pct")
	for _, r := range RevenueGrowth(MonthlyTrend(lines)) {
		t.Rows = append(t.Rows, []any{r.Month, r.Revenue, r.Previous, r.Change, r.RatePct})
	}
	return t, nil
}
