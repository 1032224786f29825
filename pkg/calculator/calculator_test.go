package calculator

import (
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retail-analytics/pkg/classify"
	"retail-analytics/pkg/database"
	"retail-analytics/pkg/models"
)

func tx(invoice, stock, desc string, qty int64, price, customer, date, country string) models.TransactionLine {
	l := models.TransactionLine{
		InvoiceNo:   invoice,
		StockCode:   stock,
		Description: sql.NullString{String: desc, Valid: desc != ""},
		Quantity:    sql.NullInt64{Int64: qty, Valid: true},
		InvoiceDate: sql.NullString{String: date, Valid: date != ""},
		Country:     country,
	}
	if price != "" {
		l.UnitPrice = decimal.NewNullDecimal(decimal.RequireFromString(price))
	}
	if customer != "" {
		l.CustomerID = sql.NullString{String: customer, Valid: true}
	}
	return l
}

const uk, france = "United Kingdom", "France"

// kpiScenario is the three-line example: one sale invoice with two lines and one cancellation.
func kpiScenario() []models.TransactionLine {
	return []models.TransactionLine{
		tx("536365", "85123A", "WHITE HANGING HEART T-LIGHT HOLDER", 6, "2.55", "17850", "2010-12-01 08:26:00", uk),
		tx("536365", "71053", "WHITE METAL LANTERN", 6, "3.39", "17850", "2010-12-01 08:26:00", uk),
		tx("C536379", "D", "Discount", -1, "27.50", "14527", "2010-12-01 09:41:00", uk),
	}
}

func retailLines() []models.TransactionLine {
	return append(kpiScenario(),
		tx("536366", "22633", "HAND WARMER UNION JACK", 6, "1.85", "17850", "2010-12-01 08:28:00", uk),
		tx("536367", "84879", "ASSORTED COLOUR BIRD ORNAMENT", 32, "1.69", "13047", "2010-12-01 08:34:00", france),
		tx("536370", "22492", "MINI PAINT SET VINTAGE", 12, "0.65", "", "2010-12-01 08:45:00", uk),
		tx("540000", "85123A", "WHITE HANGING HEART T-LIGHT HOLDER", 10, "2.55", "17850", "2011-01-10 10:00:00", uk),
		tx("540001", "85123A", "WHITE HANGING HEART T-LIGHT HOLDER", -2, "2.55", "17850", "2011-01-10 11:00:00", uk),
		tx("541000", "22728", "ALARM CLOCK BAKELIKE PINK", 24, "3.75", "12583", "2011-01-15 14:00:00", france),
	)
}

// scoped applies a report scope the way a store would.
func scoped(lines []models.TransactionLine, f database.Filter) []models.TransactionLine {
	f.CancelPrefix = models.DefaultCancelPrefix
	var out []models.TransactionLine
	for _, l := range lines {
		if f.Match(l) {
			out = append(out, l)
		}
	}
	return out
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

func assertNullDec(t *testing.T, want string, got decimal.NullDecimal) {
	t.Helper()
	if want == "" {
		assert.False(t, got.Valid, "want null, got %s", got.Decimal)
		return
	}
	require.True(t, got.Valid, "want %s, got null", want)
	assertDec(t, want, got.Decimal)
}

func TestBusinessKPIs_Scenario(t *testing.T) {
	k := ComputeBusinessKPIs(kpiScenario(), "C")

	assert.Equal(t, 1, k.Invoices)
	assert.Equal(t, 2, k.Customers)
	assert.Equal(t, 3, k.Products)
	assert.Equal(t, 1, k.Countries)
	assertDec(t, "35.64", k.SalesRevenue)
	assertNullDec(t, "35.64", k.AvgOrderValue)
	assertNullDec(t, "35.64", k.AvgCustomerValue)
	assertNullDec(t, "6.00", k.AvgItemsPerLine)
	assertNullDec(t, "50.00", k.CancellationRatePct)
}

func TestRevenueBreakdown_IndependentFigures(t *testing.T) {
	r := ComputeRevenueBreakdown(scoped(retailLines(), scopePriced))
	// 224.12 sold, 27.50 cancelled and 5.10 returned.
	assertDec(t, "224.12", r.Sales)
	assertDec(t, "32.60", r.Returns)
	assertDec(t, "191.52", r.Total)
}

func TestDistinctCounts_Partition(t *testing.T) {
	c := ComputeDistinctCounts(retailLines(), "C")
	assert.Equal(t, 8, c.TotalInvoices)
	assert.Equal(t, 7, c.ValidInvoices)
	assert.Equal(t, 1, c.CancelledInvoices)
	assert.Equal(t, c.TotalInvoices, c.ValidInvoices+c.CancelledInvoices)
	assert.Equal(t, 4, c.Customers)
	assert.Equal(t, 2, c.Countries)
}

func TestDataQuality(t *testing.T) {
	lines := retailLines()
	lines = append(lines, models.TransactionLine{
		InvoiceNo:   "536999",
		InvoiceDate: sql.NullString{String: "not a date", Valid: true},
	})
	q := ComputeDataQuality(lines)
	assert.Equal(t, 10, q.TotalRows)
	assert.Equal(t, 2, q.MissingCustomerID)
	assertNullDec(t, "20.00", q.PctMissingCustomerID)
	assert.Equal(t, 1, q.MissingDescription)
	assert.Equal(t, 1, q.MissingUnitPrice)
	assert.Equal(t, 1, q.UnparsedInvoiceDate)
}

func TestReturns_KeepsSignAndSkipsWhenNone(t *testing.T) {
	r := ComputeReturns(scoped(retailLines(), scopeReturns))
	assert.Equal(t, 2, r.Transactions)
	assert.Equal(t, int64(-3), r.Quantity)
	assertDec(t, "-32.60", r.Value)
	assert.Equal(t, 2, r.Invoices)

	tbl, err := buildReturns(scoped(kpiScenario()[:2], scopeReturns), models.Config{})
	require.NoError(t, err)
	assert.True(t, tbl.Empty())
}

func TestMonthlyTrendAndGrowth(t *testing.T) {
	trend := MonthlyTrend(scoped(retailLines(), scopeQualifying))
	require.Len(t, trend, 2)
	assert.Equal(t, "2010-12", trend[0].Month)
	assertDec(t, "108.62", trend[0].SalesRevenue)
	assert.Equal(t, 4, trend[0].Invoices)
	assert.Equal(t, 2, trend[0].Customers)
	assertDec(t, "115.50", trend[1].SalesRevenue)
	assertDec(t, "224.12", trend[1].Cumulative)

	growth := RevenueGrowth(trend)
	require.Len(t, growth, 2)
	assert.False(t, growth[0].Previous.Valid)
	assert.False(t, growth[0].Change.Valid)
	assert.False(t, growth[0].RatePct.Valid)
	assertNullDec(t, "108.62", growth[1].Previous)
	assertNullDec(t, "6.88", growth[1].Change)
	assertNullDec(t, "6.33", growth[1].RatePct)
}

func TestRevenueGrowth_ZeroPriorIsNull(t *testing.T) {
	growth := RevenueGrowth([]MonthlyRevenue{
		{Month: "2011-01", SalesRevenue: decimal.Zero},
		{Month: "2011-02", SalesRevenue: dec("10")},
	})
	assertNullDec(t, "10.00", growth[1].Change)
	assert.False(t, growth[1].RatePct.Valid)
}

func TestTopCustomers(t *testing.T) {
	top := TopCustomers(scoped(retailLines(), scopeCustomer), 2)
	require.Len(t, top, 2)
	assert.Equal(t, "12583", top[0].CustomerID)
	assert.Equal(t, "17850", top[1].CustomerID)
	assertDec(t, "72.24", top[1].Revenue)
	assert.Equal(t, 4, top[1].Invoices)
	assert.Equal(t, 5, top[1].Transactions)
	assert.Equal(t, "2010-12-01 08:26:00", top[1].FirstPurchase.String)
	assert.Equal(t, "2011-01-10 11:00:00", top[1].LastPurchase.String)
	assertNullDec(t, "18.06", top[1].AvgOrderValue)
}

func TestLifetimeValue_RepeatCustomersOnly(t *testing.T) {
	clv := LifetimeValue(scoped(retailLines(), scopeCustomer), 50)
	require.Len(t, clv, 1)
	assert.Equal(t, "17850", clv[0].CustomerID)
	assert.Equal(t, 2, clv[0].ActiveMonths)
	assertNullDec(t, "36.12", clv[0].PerMonth)
}

func TestFrequencyDistribution(t *testing.T) {
	dist := FrequencyDistribution(scoped(retailLines(), scopeActiveCust))
	require.Len(t, dist, 2)
	assert.Equal(t, "1 purchase", dist[0].Label)
	assert.Equal(t, 2, dist[0].Count)
	assertNullDec(t, "66.67", dist[0].Percentage)
	assert.Equal(t, "2-5 purchases", dist[1].Label)
	assert.Equal(t, 1, dist[1].Count)
}

func TestRFM_InjectedEvaluationInstant(t *testing.T) {
	lines := scoped(retailLines(), scopeSalesCust)
	asOf := time.Date(2011, 1, 20, 10, 0, 0, 0, time.UTC)

	scored := ScoreCustomers(CustomerMetricsAt(lines, asOf))
	require.Len(t, scored, 3)
	assert.Equal(t, []string{"12583", "17850", "13047"},
		[]string{scored[0].CustomerID, scored[1].CustomerID, scored[2].CustomerID})
	assert.InDelta(t, 10.0, scored[1].RecencyDays, 1e-9)
	assert.Equal(t, models.RFMScore{Recency: 5, Frequency: 1, Monetary: 1, Segment: classify.PotentialLoyalists}, scored[1].Score)
	assert.Equal(t, 4, scored[2].Score.Recency)

	later := ScoreCustomers(CustomerMetricsAt(lines, asOf.AddDate(0, 6, 0)))
	for _, c := range later {
		assert.Equal(t, classify.Lost, c.Score.Segment, c.CustomerID)
	}

	tbl, err := buildRFMSegments(lines, models.Config{AsOf: asOf})
	require.NoError(t, err)
	assert.Equal(t, "2011-01-15 14:00:00", tbl.Rows[0][1])
	assertDec(t, "4.83", tbl.Rows[0][2].(decimal.Decimal))
}

func TestRFM_DefaultsToLatestTimestamp(t *testing.T) {
	metrics := CustomerMetricsAt(scoped(retailLines(), scopeSalesCust), time.Time{})
	for _, m := range metrics {
		if m.CustomerID == "12583" {
			assert.Zero(t, m.RecencyDays)
		}
	}
}

func TestSegmentSummary(t *testing.T) {
	asOf := time.Date(2011, 1, 20, 10, 0, 0, 0, time.UTC)
	summary := SummariseSegments(ScoreCustomers(CustomerMetricsAt(scoped(retailLines(), scopeSalesCust), asOf)))
	require.Len(t, summary, 1)
	assert.Equal(t, classify.PotentialLoyalists, summary[0].Segment)
	assert.Equal(t, 3, summary[0].Customers)
	assertNullDec(t, "100.00", summary[0].Percentage)
	assertDec(t, "216.32", summary[0].Revenue)
	assertNullDec(t, "72.11", summary[0].AvgValue)
}

func TestProducts(t *testing.T) {
	lines := scoped(retailLines(), scopeQualifying)

	byRevenue := TopProductsByRevenue(lines, 3)
	require.Len(t, byRevenue, 3)
	assert.Equal(t, []string{"22728", "84879", "85123A"},
		[]string{byRevenue[0].StockCode, byRevenue[1].StockCode, byRevenue[2].StockCode})
	assertDec(t, "40.80", byRevenue[2].Revenue)
	assert.Equal(t, int64(16), byRevenue[2].QuantitySold)
	assertNullDec(t, "2.55", byRevenue[2].AvgUnitPrice)

	byQty := TopProductsByQuantity(lines, 1)
	assert.Equal(t, "84879", byQty[0].StockCode)

	rates := ProductReturnRates(lines, 30)
	assert.Equal(t, "85123A", rates[0].StockCode)
	assert.Equal(t, int64(2), rates[0].QuantityReturn)
	assertNullDec(t, "11.11", rates[0].ReturnRatePct)
}

func TestProducts_NullDescriptionIsItsOwnGroup(t *testing.T) {
	lines := []models.TransactionLine{
		tx("1", "A", "Widget", 1, "1.00", "", "", uk),
		tx("2", "A", "", 2, "1.00", "", "", uk),
	}
	rows := PerProduct(lines)
	require.Len(t, rows, 2)
	assert.Equal(t, "Widget", rows[0].Description)
	assert.Equal(t, noDescription, rows[1].Description)
}

func TestTimePatterns(t *testing.T) {
	lines := scoped(retailLines(), scopeSales)
	lines = append(lines, tx("599999", "X", "", 1, "1.00", "", "garbage", uk))

	hours := HourlyPattern(lines)
	require.Len(t, hours, 3)
	assert.Equal(t, []int{8, 10, 14}, []int{hours[0].Hour, hours[1].Hour, hours[2].Hour})
	assert.Equal(t, 4, hours[0].Invoices)
	assert.Equal(t, 5, hours[0].Transactions)
	assertDec(t, "108.62", hours[0].Revenue)

	days := DayOfWeek(lines)
	require.Len(t, days, 3)
	assert.Equal(t, []time.Weekday{time.Wednesday, time.Saturday, time.Monday},
		[]time.Weekday{days[0].Day, days[1].Day, days[2].Day})
}

func TestCountries(t *testing.T) {
	rows := PerCountry(scoped(retailLines(), scopeQualifying))
	require.Len(t, rows, 2)
	assert.Equal(t, france, rows[0].Country)
	assertDec(t, "144.08", rows[0].Revenue)
	assertNullDec(t, "72.04", rows[0].AvgOrderValue)
	assert.Equal(t, uk, rows[1].Country)
	assert.Equal(t, 5, rows[1].Invoices)
	assert.Equal(t, 1, rows[1].Customers)
	assertNullDec(t, "16.01", rows[1].AvgOrderValue)

	assert.Len(t, TopCountries(scoped(retailLines(), scopeQualifying), 1), 1)
}

func TestInvoiceAveragesAndBaskets(t *testing.T) {
	lines := scoped(retailLines(), scopeSales)

	a := ComputeInvoiceAverages(lines)
	assert.Equal(t, 6, a.Invoices)
	assertNullDec(t, "37.35", a.AvgOrderValue)
	assertNullDec(t, "16.00", a.AvgItems)
	assertNullDec(t, "90.00", a.MaxOrderValue)
	assertNullDec(t, "7.80", a.MinOrderValue)

	dist := BasketDistribution(lines)
	require.Len(t, dist, 3)
	assert.Equal(t, []string{"6-10 items", "11-20 items", "21-50 items"},
		[]string{dist[0].Label, dist[1].Label, dist[2].Label})
	assertNullDec(t, "33.33", dist[0].Percentage)
}

func TestSelectReports(t *testing.T) {
	all, err := selectReports(nil)
	require.NoError(t, err)
	assert.Len(t, all, 24)

	sub, err := selectReports([]string{"business_kpis", "revenue_breakdown"})
	require.NoError(t, err)
	require.Len(t, sub, 2)
	assert.Equal(t, "revenue_breakdown", sub[0].Name)

	_, err = selectReports([]string{"nope"})
	assert.ErrorContains(t, err, `unknown report "nope"`)
}

func TestReports_UniqueNamesAndBuilders(t *testing.T) {
	seen := map[string]bool{}
	for _, r := range Reports() {
		assert.False(t, seen[r.Name], r.Name)
		seen[r.Name] = true
		assert.NotNil(t, r.Build, r.Name)
		assert.NotEmpty(t, r.Description, r.Name)
	}
}
