// Package ingest loads the Online Retail CSV export into a store.
package ingest

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"retail-analytics/pkg/models"
)

// DefaultChunkSize is the number of rows handed to the store per Load call.
const DefaultChunkSize = 50_000

// invoiceDateLayouts are tried in order; the first match wins.
var invoiceDateLayouts = []string{
	"1/2/2006 15:04",
	"2-1-2006 15:04",
	models.TimestampLayout,
}

var expectedColumns = []string{
	"InvoiceNo", "StockCode", "Description", "Quantity",
	"InvoiceDate", "UnitPrice", "CustomerID", "Country",
}

// Loader receives cleaned lines in chunks. database.Store satisfies it.
type Loader interface {
	Load(ctx context.Context, lines []models.TransactionLine) (int, error)
}

// Result summarises one ingestion.
type Result struct {
	RowsRead     int
	RowsInserted int
	RowsSkipped  int // malformed records or rows without an invoice number
	Chunks       int
}

// LoadFile reads the CSV at path and loads it chunk by chunk.
func LoadFile(ctx context.Context, path string, dst Loader, chunkSize int) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("csv file not found: %w", err)
	}
	defer f.Close()
	log.Printf("[INFO] Reading CSV from: %s", path)
	return Load(ctx, f, dst, chunkSize)
}

// Load reads CSV records from r, cleans them and hands them to dst in chunks.
func Load(ctx context.Context, r io.Reader, dst Loader, chunkSize int) (Result, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	headers, err := reader.Read()
	if err != nil {
		return Result{}, fmt.Errorf("failed to read CSV headers: %w", err)
	}
	idx := columnIndex(headers)
	if _, ok := idx["InvoiceNo"]; !ok {
		return Result{}, fmt.Errorf("csv has no InvoiceNo column (headers=%v)", headers)
	}

	var (
		res   Result
		chunk = make([]models.TransactionLine, 0, chunkSize)
	)
	flush := func() error {
		if len(chunk) == 0 {
			return nil
		}
		n, err := dst.Load(ctx, chunk)
		if err != nil {
			return fmt.Errorf("load chunk %d: %w", res.Chunks+1, err)
		}
		res.Chunks++
		res.RowsInserted += n
		log.Printf("[INFO] Inserted %d rows (total so far: %d)", n, res.RowsInserted)
		chunk = chunk[:0]
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		res.RowsRead++
		if err != nil {
			res.RowsSkipped++
			continue
		}
		l, ok := parseRecord(record, idx)
		if !ok {
			res.RowsSkipped++
			continue
		}
		chunk = append(chunk, l)
		if len(chunk) == chunkSize {
			if err := flush(); err != nil {
				return res, err
			}
		}
	}
	if err := flush(); err != nil {
		return res, err
	}
	log.Printf("[INFO] Finished loading data. Total rows inserted: %d (skipped=%d)", res.RowsInserted, res.RowsSkipped)
	return res, nil
}

// columnIndex maps the expected column names to their position; other columns are dropped.
func columnIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(expectedColumns))
	for i, h := range headers {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		for _, want := range expectedColumns {
			if h == want {
				idx[want] = i
			}
		}
	}
	return idx
}

func parseRecord(record []string, idx map[string]int) (models.TransactionLine, bool) {
	field := func(name string) string {
		i, ok := idx[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(strings.ToValidUTF8(record[i], ""))
	}

	invoice := field("InvoiceNo")
	if invoice == "" {
		return models.TransactionLine{}, false
	}
	return models.TransactionLine{
		InvoiceNo:   invoice,
		StockCode:   field("StockCode"),
		Description: nullText(field("Description")),
		Quantity:    ParseQuantity(field("Quantity")),
		UnitPrice:   ParseUnitPrice(field("UnitPrice")),
		CustomerID:  NormalizeCustomerID(field("CustomerID")),
		InvoiceDate: ParseInvoiceDate(field("InvoiceDate")),
		Country:     field("Country"),
	}, true
}

func nullText(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// ParseInvoiceDate normalises a date to the canonical layout. Text that matches
// no known layout is kept as is; blank input is null.
func ParseInvoiceDate(text string) sql.NullString {
	text = strings.TrimSpace(text)
	if text == "" {
		return sql.NullString{}
	}
	for _, layout := range invoiceDateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return sql.NullString{String: t.Format(models.TimestampLayout), Valid: true}
		}
	}
	return sql.NullString{String: text, Valid: true}
}

// ParseQuantity coerces to an integer; non-numeric, fractional or out-of-range values are null.
func ParseQuantity(text string) sql.NullInt64 {
	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		return sql.NullInt64{Int64: n, Valid: true}
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return sql.NullInt64{}
	}
	// float64(math.MaxInt64) rounds up to 2^63
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(f), Valid: true}
}

// ParseUnitPrice coerces to a decimal; non-numeric values are null.
func ParseUnitPrice(text string) decimal.NullDecimal {
	if text == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

// NormalizeCustomerID strips the ".0" a float column leaves behind ("17850.0" → "17850").
func NormalizeCustomerID(text string) sql.NullString {
	if text == "" || strings.EqualFold(text, "nan") {
		return sql.NullString{}
	}
	if i := strings.IndexByte(text, '.'); i > 0 && strings.Trim(text[i+1:], "0") == "" {
		if _, err := strconv.ParseInt(text[:i], 10, 64); err == nil {
			text = text[:i]
		}
	}
	return sql.NullString{String: text, Valid: true}
}
