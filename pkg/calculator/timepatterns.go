package calculator

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"retail-analytics/pkg/aggregate"
	"retail-analytics/pkg/models"
)

// HourlyActivity is one hour of the day (0..23).
type HourlyActivity struct {
	Hour         int
	Invoices     int
	Transactions int
	Revenue      decimal.Decimal
}

// HourlyPattern groups dated lines by hour, ascending. Hours without activity are omitted.
func HourlyPattern(lines []models.TransactionLine) []HourlyActivity {
	groups := aggregate.GroupBy(dated(lines), func(l models.TransactionLine) int {
		t, _ := l.Timestamp()
		return t.Hour()
	})
	out := make([]HourlyActivity, 0, len(groups))
	for _, g := range groups {
		out = append(out, HourlyActivity{
			Hour:         g.Key,
			Invoices:     countInvoices(g.Items),
			Transactions: len(g.Items),
			Revenue:      aggregate.Round2(aggregate.SumWhere(g.Items, salesRevenue, nil)),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hour < out[j].Hour })
	return out
}

func buildHourlyPattern(lines []models.TransactionLine, _ models.Config) (*models.Table, error) {
	t := newTable("hour_of_day", "num_invoices", "num_transactions", "revenue")
	for _, h := range HourlyPattern(lines) {
		t.Rows = append(t.Rows, []any{h.Hour, h.Invoices, h.Transactions, h.Revenue})
	}
	return t, nil
}

// WeekdayActivity is one day of the week.
type WeekdayActivity struct {
	Day      time.Weekday
	Invoices int
	Revenue  decimal.Decimal
}

// DayOfWeek groups dated lines by weekday, revenue descending, ties by day index
// (Sunday = 0).
func DayOfWeek(lines []models.TransactionLine) []WeekdayActivity {
	groups := aggregate.GroupBy(dated(lines), func(l models.TransactionLine) time.Weekday {
		t, _ := l.Timestamp()
		return t.Weekday()
	})
	out := make([]WeekdayActivity, 0, len(groups))
	for _, g := range groups {
		out = append(out, WeekdayActivity{
			Day:      g.Key,
			Invoices: countInvoices(g.Items),
			Revenue:  aggregate.Round2(aggregate.SumWhere(g.Items, salesRevenue, nil)),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Revenue.Cmp(out[j].Revenue); c != 0 {
			return c > 0
		}
		return out[i].Day < out[j].Day
	})
	return out
}

func buildDayOfWeek(lines []models.TransactionLine, _ models.Config) (*models.Table, error) {
	t := newTable("day_of_week", "num_invoices", "revenue")
	for _, d := range DayOfWeek(lines) {
		t.Rows = append(t.Rows, []any{d.Day.String(), d.Invoices, d.Revenue})
	}
	return t, nil
}
