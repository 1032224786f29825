package calculator

import (
	"github.com/shopspring/decimal"

	"retail-analytics/pkg/aggregate"
	"retail-analytics/pkg/models"
)

// DistinctCounts counts distinct identifiers over the whole snapshot. Valid and
// cancelled invoices partition the total exactly.
type DistinctCounts struct {
	TotalInvoices     int
	ValidInvoices     int
	CancelledInvoices int
	Customers         int
	Products          int
	Countries         int
}

func ComputeDistinctCounts(lines []models.TransactionLine, cancelPrefix string) DistinctCounts {
	return DistinctCounts{
		TotalInvoices: countInvoices(lines),
		ValidInvoices: aggregate.CountDistinct(lines, func(l models.TransactionLine) (string, bool) {
			return l.InvoiceNo, l.InvoiceNo != "" && !l.IsCancelled(cancelPrefix)
		}),
		CancelledInvoices: aggregate.CountDistinct(lines, func(l models.TransactionLine) (string, bool) {
			return l.InvoiceNo, l.IsCancelled(cancelPrefix)
		}),
		Customers: countCustomers(lines),
		Products:  aggregate.CountDistinct(lines, stockKey),
		Countries: aggregate.CountDistinct(lines, countryKey),
	}
}

func buildDistinctCounts(lines []models.TransactionLine, cfg models.Config) (*models.Table, error) {
	c := ComputeDistinctCounts(lines, cfg.CancelPrefix)
	t := newTable("total_invoices", "valid_invoices", "cancelled_invoices", "total_customers", "total_products", "total_countries")
	t.Rows = append(t.Rows, []any{c.TotalInvoices, c.ValidInvoices, c.CancelledInvoices, c.Customers, c.Products, c.Countries})
	return t, nil
}

// DataQuality reports missing and unusable fields.
type DataQuality struct {
	TotalRows            int
	MissingCustomerID    int
	PctMissingCustomerID decimal.NullDecimal
	MissingDescription   int
	MissingUnitPrice     int
	UnparsedInvoiceDate  int // present but in no known layout
}

func ComputeDataQuality(lines []models.TransactionLine) DataQuality {
	q := DataQuality{TotalRows: len(lines)}
	for _, l := range lines {
		if !l.HasCustomer() {
			q.MissingCustomerID++
		}
		if !l.Description.Valid || l.Description.String == "" {
			q.MissingDescription++
		}
		if !l.HasPrice() {
			q.MissingUnitPrice++
		}
		if _, ok := l.Timestamp(); l.InvoiceDate.Valid && !ok {
			q.UnparsedInvoiceDate++
		}
	}
	q.PctMissingCustomerID = aggregate.PercentageOfTotal(int64(q.MissingCustomerID), int64(q.TotalRows))
	return q
}

func buildDataQuality(lines []models.TransactionLine, _ models.Config) (*models.Table, error) {
	q := ComputeDataQuality(lines)
	t := newTable("total_rows", "missing_customer_id", "pct_missing_customer_id", "missing_description", "missing_unit_price", "unparsed_invoice_date")
	t.Rows = append(t.Rows, []any{q.TotalRows, q.MissingCustomerID, q.PctMissingCustomerID, q.MissingDescription, q.MissingUnitPrice, q.UnparsedInvoiceDate})
	return t, nil
}

// Cancellation is the invoice-level cancellation rate. It is unrelated to
// line-level returns (negative quantities).
type Cancellation struct {
	Cancelled int
	Total     int
	RatePct   decimal.NullDecimal
}

func ComputeCancellation(lines []models.TransactionLine, cancelPrefix string) Cancellation {
	c := ComputeDistinctCounts(lines, cancelPrefix)
	return Cancellation{
		Cancelled: c.CancelledInvoices,
		Total:     c.TotalInvoices,
		RatePct:   aggregate.PercentageOfTotal(int64(c.CancelledInvoices), int64(c.TotalInvoices)),
	}
}

func buildCancellation(lines []models.TransactionLine, cfg models.Config) (*models.Table, error) {
	c := ComputeCancellation(lines, cfg.CancelPrefix)
	t := newTable("cancelled_invoices", "total_invoices", "cancellation_rate_pct")
	t.Rows = append(t.Rows, []any{c.Cancelled, c.Total, c.RatePct})
	return t, nil
}

// Returns summarises priced negative-quantity lines. Quantity and value keep their sign.
type Returns struct {
	Transactions int
	Quantity     int64
	Value        decimal.Decimal
	Invoices     int
}

func ComputeReturns(lines []models.TransactionLine) Returns {
	isReturn := func(l models.TransactionLine) bool { return l.HasPrice() && l.IsReturn() }
	r := Returns{
		Quantity: -aggregate.SumIntWhere(lines, returnedQuantity, isReturn),
		Value:    aggregate.Round2(aggregate.SumWhere(lines, models.TransactionLine.LineRevenue, isReturn)),
	}
	var matched []models.TransactionLine
	for _, l := range lines {
		if isReturn(l) {
			matched = append(matched, l)
		}
	}
	r.Transactions = len(matched)
	r.Invoices = countInvoices(matched)
	return r
}

func buildReturns(lines []models.TransactionLine, _ models.Config) (*models.Table, error) {
	r := ComputeReturns(lines)
	t := newTable("return_transactions", "total_returned_quantity", "return_value", "return_invoices")
	if r.Transactions > 0 {
		t.Rows = append(t.Rows, []any{r.Transactions, r.Quantity, r.Value, r.Invoices})
	}
	return t, nil
}
