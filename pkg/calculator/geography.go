package calculator

import (
	"github.com/shopspring/decimal"

	"retail-analytics/pkg/aggregate"
	"retail-analytics/pkg/models"
)

// CountryStats is the qualifying activity of one country.
type CountryStats struct {
	Country            string
	Customers          int
	Invoices           int
	Products           int
	Revenue            decimal.Decimal
	AvgOrderValue      decimal.NullDecimal
	RevenuePerCustomer decimal.NullDecimal
}

// PerCountry aggregates lines per country, revenue descending, ties by name.
func PerCountry(lines []models.TransactionLine) []CountryStats {
	groups := aggregate.GroupBy(lines, func(l models.TransactionLine) string { return l.Country })
	rows := make([]CountryStats, 0, len(groups))
	for _, g := range groups {
		revenue := aggregate.SumWhere(g.Items, salesRevenue, nil)
		invoices := countInvoices(g.Items)
		customers := countCustomers(g.Items)
		rows = append(rows, CountryStats{
			Country:            g.Key,
			Customers:          customers,
			Invoices:           invoices,
			Products:           aggregate.CountDistinct(g.Items, stockKey),
			Revenue:            aggregate.Round2(revenue),
			AvgOrderValue:      aggregate.SafeRatio(revenue, count(invoices)),
			RevenuePerCustomer: aggregate.SafeRatio(revenue, count(customers)),
		})
	}
	return aggregate.TopN(rows,
		func(c CountryStats) decimal.Decimal { return c.Revenue },
		func(c CountryStats) string { return c.Country }, 0, true)
}

// TopCountries keeps the n countries with the highest revenue.
func TopCountries(lines []models.TransactionLine, n int) []CountryStats {
	rows := PerCountry(lines)
	if n > 0 && len(rows) > n {
		rows = rows[:n]
	}
	return rows
}

func buildTopCountries(lines []models.TransactionLine, cfg models.Config) (*models.Table, error) {
	t := newTable("Country", "sales_revenue", "num_invoices", "num_customers", "avg_order_value")
	for _, c := range TopCountries(lines, cfg.TopCountries) {
		t.Rows = append(t.Rows, []any{c.Country, c.Revenue, c.Invoices, c.Customers, c.AvgOrderValue})
	}
	return t, nil
}

func buildCountryAnalysis(lines []models.TransactionLine, _ models.Config) (*models.Table, error) {
	t := newTable("Country", "num_customers", "num_invoices", "num_products", "sales_revenue", "avg_order_value", "revenue_per_customer")
	for _, c := range PerCountry(lines) {
		t.Rows = append(t.Rows, []any{c.Country, c.Customers, c.Invoices, c.Products, c.Revenue, c.AvgOrderValue, c.RevenuePerCustomer})
	}
	return t, nil
}
