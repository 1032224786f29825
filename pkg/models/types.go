package models

import (
	"database/sql"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TimestampLayout is the canonical invoice timestamp produced by ingestion.
const TimestampLayout = "2006-01-02 15:04:05"

// MonthLayout is the period key used by monthly reports ("2010-12").
const MonthLayout = "2006-01"

// DefaultCancelPrefix marks a cancellation invoice ("C536379").
const DefaultCancelPrefix = "C"

/*
LOAD → one cleaned transaction line as delivered by ingestion and held by the store.
*/

// TransactionLine is a single line item of an invoice. Lines are never mutated after ingestion.
type TransactionLine struct {
	InvoiceNo   string
	StockCode   string
	Description sql.NullString
	Quantity    sql.NullInt64
	UnitPrice   decimal.NullDecimal
	CustomerID  sql.NullString
	InvoiceDate sql.NullString // canonical TimestampLayout, or raw text when unparseable
	Country     string
}

// IsCancelled reports whether the line belongs to a cancellation invoice.
func (l TransactionLine) IsCancelled(prefix string) bool {
	if prefix == "" {
		prefix = DefaultCancelPrefix
	}
	return strings.HasPrefix(l.InvoiceNo, prefix)
}

// HasPrice reports whether the unit price is known.
func (l TransactionLine) HasPrice() bool { return l.UnitPrice.Valid }

// HasCustomer reports whether the line is attributed to a customer.
func (l TransactionLine) HasCustomer() bool {
	return l.CustomerID.Valid && l.CustomerID.String != ""
}

// IsSale reports a line with a positive quantity.
func (l TransactionLine) IsSale() bool { return l.Quantity.Valid && l.Quantity.Int64 > 0 }

// IsReturn reports a line with a negative quantity.
func (l TransactionLine) IsReturn() bool { return l.Quantity.Valid && l.Quantity.Int64 < 0 }

// LineRevenue is quantity × unit price; zero when either side is null.
func (l TransactionLine) LineRevenue() decimal.Decimal {
	if !l.Quantity.Valid || !l.UnitPrice.Valid {
		return decimal.Zero
	}
	return l.UnitPrice.Decimal.Mul(decimal.NewFromInt(l.Quantity.Int64))
}

// SalesRevenue is the line revenue when the line is a sale, zero otherwise.
func (l TransactionLine) SalesRevenue() decimal.Decimal {
	if !l.IsSale() {
		return decimal.Zero
	}
	return l.LineRevenue()
}

// Timestamp parses the canonical invoice date. Raw, unparsed dates report false.
func (l TransactionLine) Timestamp() (time.Time, bool) {
	if !l.InvoiceDate.Valid {
		return time.Time{}, false
	}
	t, err := time.Parse(TimestampLayout, l.InvoiceDate.String)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Month returns the "YYYY-MM" period of the line, false when the timestamp is unusable.
func (l TransactionLine) Month() (string, bool) {
	t, ok := l.Timestamp()
	if !ok {
		return "", false
	}
	return t.Format(MonthLayout), true
}

/*
COMPUTE → derived entities, recomputed on every report invocation.
*/

// CustomerMetrics aggregates the qualifying purchases of one customer.
type CustomerMetrics struct {
	CustomerID    string
	Monetary      decimal.Decimal // rounded to 2 decimals
	Frequency     int             // distinct non-cancelled invoices
	Transactions  int
	RecencyDays   float64
	FirstPurchase time.Time
	LastPurchase  time.Time
	ActiveMonths  int
}

// RFMScore holds the three 1..5 scores and the segment they classify into.
type RFMScore struct {
	Recency   int
	Frequency int
	Monetary  int
	Segment   string
}

// Total is the combined rfm_score (r+f+m).
func (s RFMScore) Total() int { return s.Recency + s.Frequency + s.Monetary }

// CohortCell is one (cohort month, activity month) cell of the retention table.
type CohortCell struct {
	CohortMonth   string
	ActivityMonth string
	PeriodIndex   int // months elapsed since the cohort month
	Customers     int
	Orders        int
	Revenue       decimal.Decimal
}

/*
EXPORT → named tabular artifact handed to the export sink.
*/

// Table is a report result with a fixed column schema.
type Table struct {
	Name        string // artifact name, e.g. "top_countries"
	Description string
	Columns     []string
	Rows        [][]any
}

// Empty reports whether the table has no rows.
func (t *Table) Empty() bool { return t == nil || len(t.Rows) == 0 }

/*
CONFIG → parameters passed to the calculator.
*/

// Config contains the computation parameters of one run.
type Config struct {
	AsOf             time.Time         // RFM evaluation instant; zero → latest invoice timestamp
	StartMonth       string            // "MMYYYY", optional cohort window for cohort_ltv
	EndMonth         string            // "MMYYYY"
	CancelPrefix     string            // default "C"
	Workers          int               // <= 1 runs reports sequentially
	TopCountries     int               // default 20
	TopCustomers     int               // default 20
	TopLifetimeValue int               // default 50
	TopProducts      int               // default 30
	Reports          []string          // subset of artifact names, empty = all
	ReportFilters    map[string]string // artifact name → CEL row predicate
	ShowProgress     bool
	Verbose          bool
}
