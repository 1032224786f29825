package export

import (
	"bytes"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"retail-analytics/pkg/models"
)

// Format is the serialisation used for an artifact.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat validates a format name; empty means CSV.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported export format: %s", s)
	}
}

// ContentType returns the MIME type for object stores.
func (f Format) ContentType() string {
	if f == FormatJSON {
		return "application/json"
	}
	return "text/csv"
}

// Encode renders the table in the given format.
func Encode(t *models.Table, f Format) ([]byte, error) {
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return nil, fmt.Errorf("%s: row %d has %d cells, want %d", t.Name, i, len(row), len(t.Columns))
		}
	}
	if f == FormatJSON {
		return encodeJSON(t)
	}
	return encodeCSV(t)
}

func encodeCSV(t *models.Table) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.Columns); err != nil {
		return nil, err
	}
	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, v := range row {
			s, _ := FormatCell(v)
			record[i] = s
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to write CSV: %w", err)
	}
	return buf.Bytes(), nil
}

// encodeJSON writes an array of objects, keys in column order.
func encodeJSON(t *models.Table) ([]byte, error) {
	objects := make([]json.RawMessage, 0, len(t.Rows))
	for _, row := range t.Rows {
		var obj bytes.Buffer
		obj.WriteByte('{')
		for i, v := range row {
			if i > 0 {
				obj.WriteByte(',')
			}
			key, err := json.Marshal(t.Columns[i])
			if err != nil {
				return nil, err
			}
			val, err := jsonCell(v)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", t.Name, t.Columns[i], err)
			}
			obj.Write(key)
			obj.WriteByte(':')
			obj.Write(val)
		}
		obj.WriteByte('}')
		objects = append(objects, obj.Bytes())
	}
	out, err := json.MarshalIndent(objects, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to write JSON: %w", err)
	}
	return append(out, '\n'), nil
}

func jsonCell(v any) ([]byte, error) {
	s, ok := FormatCell(v)
	if !ok {
		return []byte("null"), nil
	}
	switch v.(type) {
	case decimal.Decimal, decimal.NullDecimal, int, int64, sql.NullInt64, float64, sql.NullFloat64:
		return []byte(s), nil
	default:
		return json.Marshal(s)
	}
}

// FormatCell renders one value. Money and percentages print with two decimals.
// The bool is false for nulls, which render as "".
func FormatCell(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case float64:
		return strconv.FormatFloat(x, 'f', 2, 64), true
	case decimal.Decimal:
		return x.StringFixed(2), true
	case decimal.NullDecimal:
		if !x.Valid {
			return "", false
		}
		return x.Decimal.StringFixed(2), true
	case sql.NullString:
		return x.String, x.Valid
	case sql.NullInt64:
		if !x.Valid {
			return "", false
		}
		return strconv.FormatInt(x.Int64, 10), true
	case sql.NullFloat64:
		if !x.Valid {
			return "", false
		}
		return strconv.FormatFloat(x.Float64, 'f', 2, 64), true
	default:
		return fmt.Sprint(x), true
	}
}
