package calculator

import (
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"retail-analytics/pkg/aggregate"
	"retail-analytics/pkg/database"
	"retail-analytics/pkg/models"
)

// Report is one registered analytic: the lines it reads and how it turns them into a table.
type Report struct {
	Name        string // artifact name
	Description string
	Scope       database.Filter
	NeedsAsOf   bool
	Build       func(lines []models.TransactionLine, cfg models.Config) (*models.Table, error)
}

var (
	scopeAll        = database.Filter{}
	scopePriced     = database.Filter{Priced: true}
	scopeReturns    = database.Filter{Priced: true, ReturnsOnly: true}
	scopeQualifying = database.Filter{Priced: true, ExcludeCancelled: true}
	scopeSales      = database.Filter{Priced: true, ExcludeCancelled: true, SalesOnly: true}
	scopeCustomer   = database.Filter{Priced: true, ExcludeCancelled: true, WithCustomer: true}
	scopeSalesCust  = database.Filter{Priced: true, ExcludeCancelled: true, SalesOnly: true, WithCustomer: true}
	scopeActiveCust = database.Filter{ExcludeCancelled: true, WithCustomer: true}
)

// Reports returns the registry in export order.
func Reports() []Report {
	return []Report{
		{"revenue_breakdown", "Revenue Breakdown", scopePriced, false, buildRevenueBreakdown},
		{"distinct_counts", "Distinct Counts", scopeAll, false, buildDistinctCounts},
		{"data_quality_report", "Missing Values Analysis", scopeAll, false, buildDataQuality},
		{"cancellation_analysis", "Cancellation Analysis", scopeAll, false, buildCancellation},
		{"returns_analysis", "Returns Analysis", scopeReturns, false, buildReturns},
		{"top_countries", "Top Countries by Revenue", scopeQualifying, false, buildTopCountries},
		{"monthly_revenue_trend", "Monthly Revenue Trend", scopeQualifying, false, buildMonthlyTrend},
		{"revenue_growth_rate", "Revenue Growth Rate (Month-over-Month)", scopeQualifying, false, buildRevenueGrowth},
		{"top_customers", "Top Customers by Revenue", scopeCustomer, false, buildTopCustomers},
		{"customer_frequency_distribution", "Customer Purchase Frequency Distribution", scopeActiveCust, false, buildFrequencyDistribution},
		{"customer_lifetime_value", "Top Customers by Lifetime Value", scopeCustomer, false, buildLifetimeValue},
		{"rfm_segments", "RFM Customer Segmentation", scopeSalesCust, true, buildRFMSegments},
		{"rfm_segment_summary", "RFM Segment Summary Statistics", scopeSalesCust, true, buildRFMSummary},
		{"top_products_by_revenue", "Top Products by Revenue", scopeQualifying, false, buildTopProductsByRevenue},
		{"top_products_by_quantity", "Top Products by Quantity Sold", scopeQualifying, false, buildTopProductsByQuantity},
		{"product_return_rates", "Top Products by Return Rate", scopeQualifying, false, buildProductReturnRates},
		{"hourly_sales_pattern", "Hourly Sales Pattern", scopeSales, false, buildHourlyPattern},
		{"day_of_week_analysis", "Day of Week Analysis", scopeSales, false, buildDayOfWeek},
		{"country_analysis", "Detailed Country Analysis", scopeQualifying, false, buildCountryAnalysis},
		{"invoice_averages", "Invoice-Level Statistics", scopeSales, false, buildInvoiceAverages},
		{"basket_size_distribution", "Basket Size Distribution", scopeSales, false, buildBasketDistribution},
		{"customer_cohorts", "Customer Cohort Analysis", scopeSalesCust, false, buildCustomerCohorts},
		{"cohort_ltv", "Cohort Lifetime Value", scopeSalesCust, false, buildCohortLTV},
		{"business_kpis", "Overall Business KPIs", scopeAll, false, buildBusinessKPIs},
	}
}

// Lookup returns the registered report with the given artifact name.
func Lookup(name string) (Report, bool) {
	for _, r := range Reports() {
		if r.Name == name {
			return r, true
		}
	}
	return Report{}, false
}

// selectReports keeps the registry order; unknown names are an error.
func selectReports(names []string) ([]Report, error) {
	all := Reports()
	if len(names) == 0 {
		return all, nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := Lookup(n); !ok {
			return nil, fmt.Errorf("unknown report %q", n)
		}
		want[n] = true
	}
	var out []Report
	for _, r := range all {
		if want[r.Name] {
			out = append(out, r)
		}
	}
	return out, nil
}

/*
Shared line keys and helpers.
*/

func invoiceKey(l models.TransactionLine) (string, bool) { return l.InvoiceNo, l.InvoiceNo != "" }

func customerKey(l models.TransactionLine) (string, bool) { return l.CustomerID.String, l.HasCustomer() }

func stockKey(l models.TransactionLine) (string, bool) { return l.StockCode, l.StockCode != "" }

func countryKey(l models.TransactionLine) (string, bool) { return l.Country, l.Country != "" }

func salesRevenue(l models.TransactionLine) decimal.Decimal { return l.SalesRevenue() }

func soldQuantity(l models.TransactionLine) int64 {
	if l.IsSale() {
		return l.Quantity.Int64
	}
	return 0
}

func returnedQuantity(l models.TransactionLine) int64 {
	if l.IsReturn() {
		return -l.Quantity.Int64
	}
	return 0
}

func countInvoices(lines []models.TransactionLine) int {
	return aggregate.CountDistinct(lines, invoiceKey)
}

func countCustomers(lines []models.TransactionLine) int {
	return aggregate.CountDistinct(lines, customerKey)
}

// dated keeps lines whose invoice date parses.
func dated(lines []models.TransactionLine) []models.TransactionLine {
	out := make([]models.TransactionLine, 0, len(lines))
	for _, l := range lines {
		if _, ok := l.Timestamp(); ok {
			out = append(out, l)
		}
	}
	return out
}

// dateSpan returns the smallest and largest non-null invoice date text.
func dateSpan(lines []models.TransactionLine) (first, last sql.NullString) {
	for _, l := range lines {
		if !l.InvoiceDate.Valid {
			continue
		}
		if !first.Valid || l.InvoiceDate.String < first.String {
			first = l.InvoiceDate
		}
		if !last.Valid || l.InvoiceDate.String > last.String {
			last = l.InvoiceDate
		}
	}
	return first, last
}

// latestTimestamp is the default evaluation instant.
func latestTimestamp(lines []models.TransactionLine) (time.Time, bool) {
	var latest time.Time
	found := false
	for _, l := range lines {
		if t, ok := l.Timestamp(); ok && (!found || t.After(latest)) {
			latest, found = t, true
		}
	}
	return latest, found
}

func count(n int) decimal.Decimal { return decimal.NewFromInt(int64(n)) }

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// newTable starts a result table; Run stamps the artifact name and description.
func newTable(columns ...string) *models.Table {
	return &models.Table{Columns: columns}
}
