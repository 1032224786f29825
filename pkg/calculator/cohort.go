package calculator

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"retail-analytics/pkg/aggregate"
	"retail-analytics/pkg/models"
)

/* COHORTS */

// firstMonths maps each customer to the month of their first dated line.
// A customer belongs to exactly one cohort for life.
func firstMonths(lines []models.TransactionLine) map[string]string {
	first := make(map[string]string)
	for _, l := range lines {
		m, ok := l.Month()
		if !ok || !l.HasCustomer() {
			continue
		}
		if cur, seen := first[l.CustomerID.String]; !seen || m < cur {
			first[l.CustomerID.String] = m
		}
	}
	return first
}

// CustomerCohorts builds the retention table, ascending by cohort then activity month.
func CustomerCohorts(lines []models.TransactionLine) ([]models.CohortCell, error) {
	lines = dated(lines)
	first := firstMonths(lines)

	type cellKey struct{ cohort, activity string }
	groups := aggregate.GroupBy(lines, func(l models.TransactionLine) cellKey {
		m, _ := l.Month()
		return cellKey{cohort: first[l.CustomerID.String], activity: m}
	})
	cells := make([]models.CohortCell, 0, len(groups))
	for _, g := range groups {
		cohort, err := time.Parse(models.MonthLayout, g.Key.cohort)
		if err != nil {
			return nil, fmt.Errorf("cohort month %q: %w", g.Key.cohort, err)
		}
		activity, err := time.Parse(models.MonthLayout, g.Key.activity)
		if err != nil {
			return nil, fmt.Errorf("order month %q: %w", g.Key.activity, err)
		}
		cells = append(cells, models.CohortCell{
			CohortMonth:   g.Key.cohort,
			ActivityMonth: g.Key.activity,
			PeriodIndex:   len(monthsBetweenInclusive(cohort, activity)) - 1,
			Customers:     countCustomers(g.Items),
			Orders:        countInvoices(g.Items),
			Revenue:       aggregate.Round2(aggregate.SumWhere(g.Items, salesRevenue, nil)),
		})
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].CohortMonth != cells[j].CohortMonth {
			return cells[i].CohortMonth < cells[j].CohortMonth
		}
		return cells[i].ActivityMonth < cells[j].ActivityMonth
	})
	return cells, nil
}

func buildCustomerCohorts(lines []models.TransactionLine, _ models.Config) (*models.Table, error) {
	cells, err := CustomerCohorts(lines)
	if err != nil {
		return nil, err
	}
	size := make(map[string]int)
	for _, c := range cells {
		if c.PeriodIndex == 0 {
			size[c.CohortMonth] = c.Customers
		}
	}
	t := newTable("cohort_month", "order_month", "period_index", "customers", "orders", "revenue", "retention_pct")
	for _, c := range cells {
		t.Rows = append(t.Rows, []any{c.CohortMonth, c.ActivityMonth, c.PeriodIndex, c.Customers, c.Orders, c.Revenue,
			aggregate.PercentageOfTotal(int64(c.Customers), int64(size[c.CohortMonth]))})
	}
	return t, nil
}

/* COHORT LTV */

// CohortLTV is the average lifetime sales revenue of one acquisition cohort.
type CohortLTV struct {
	Month        string
	Customers    int
	Revenue      decimal.Decimal
	LTVAvg       decimal.NullDecimal // null for a month with no new customers
	RunningTotal int
}

// ComputeCohortLTV returns one row per cohort month, ascending. When start and
// end ("MMYYYY") are set, every month of the window is emitted and cohorts
// outside it are dropped.
func ComputeCohortLTV(lines []models.TransactionLine, startMonth, endMonth string) ([]CohortLTV, error) {
	lines = dated(lines)
	first := firstMonths(lines)

	customers := make(map[string]int)
	revenue := make(map[string]decimal.Decimal)
	for _, m := range first {
		customers[m]++
	}
	for _, l := range lines {
		if m, ok := first[l.CustomerID.String]; ok {
			revenue[m] = revenue[m].Add(l.SalesRevenue())
		}
	}

	months := sortedKeys(customers)
	if startMonth != "" || endMonth != "" {
		start, err := parseMonth(startMonth)
		if err != nil {
			return nil, fmt.Errorf("start_month: %w", err)
		}
		end, err := parseMonth(endMonth)
		if err != nil {
			return nil, fmt.Errorf("end_month: %w", err)
		}
		if end.Before(start) {
			return nil, fmt.Errorf("end_month < start_month")
		}
		months = months[:0:0]
		for _, m := range monthsBetweenInclusive(start, end) {
			months = append(months, formatMonth(m))
		}
	}

	out := make([]CohortLTV, 0, len(months))
	running := 0
	for _, m := range months {
		n := customers[m]
		running += n
		out = append(out, CohortLTV{
			Month:        m,
			Customers:    n,
			Revenue:      aggregate.Round2(revenue[m]),
			LTVAvg:       aggregate.SafeRatio(revenue[m], count(n)),
			RunningTotal: running,
		})
	}
	return out, nil
}

func buildCohortLTV(lines []models.TransactionLine, cfg models.Config) (*models.Table, error) {
	rows, err := ComputeCohortLTV(lines, cfg.StartMonth, cfg.EndMonth)
	if err != nil {
		return nil, err
	}
	t := newTable("cohort_month", "cohort_customers", "revenue", "ltv_avg", "running_total_customers")
	for _, r := range rows {
		t.Rows = append(t.Rows, []any{r.Month, r.Customers, r.Revenue, r.LTVAvg, r.RunningTotal})
	}
	return t, nil
}

// parseMonth("MMYYYY") -> first day of the month, UTC.
func parseMonth(mmyyyy string) (time.Time, error) {
	if len(mmyyyy) != 6 {
		return time.Time{}, fmt.Errorf("expected MMYYYY (e.g. 122010), got %q", mmyyyy)
	}
	for _, c := range mmyyyy {
		if c < '0' || c > '9' {
			return time.Time{}, fmt.Errorf("expected MMYYYY digits, got %q", mmyyyy)
		}
	}
	month := int(mmyyyy[0]-'0')*10 + int(mmyyyy[1]-'0')
	year := int(mmyyyy[2]-'0')*1000 + int(mmyyyy[3]-'0')*100 + int(mmyyyy[4]-'0')*10 + int(mmyyyy[5]-'0')
	if month < 1 || month > 12 {
		return time.Time{}, fmt.Errorf("invalid month %02d", month)
	}
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC), nil
}

func monthsBetweenInclusive(start, end time.Time) []time.Time {
	cur := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC)
	var out []time.Time
	for !cur.After(last) {
		out = append(out, cur)
		cur = cur.AddDate(0, 1, 0)
	}
	return out
}

func formatMonth(t time.Time) string {
	return t.Format(models.MonthLayout)
}
