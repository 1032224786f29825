package ingest

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retail-analytics/pkg/models"
)

type captureLoader struct {
	chunks [][]models.TransactionLine
	err    error
}

func (c *captureLoader) Load(_ context.Context, lines []models.TransactionLine) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	cp := append([]models.TransactionLine(nil), lines...)
	c.chunks = append(c.chunks, cp)
	return len(lines), nil
}

func (c *captureLoader) all() []models.TransactionLine {
	var out []models.TransactionLine
	for _, ch := range c.chunks {
		out = append(out, ch...)
	}
	return out
}

const sample = ` InvoiceNo ,StockCode,Description,Quantity,InvoiceDate,UnitPrice,CustomerID,Country,Extra
536365,85123A,WHITE HANGING HEART T-LIGHT HOLDER,6,12/1/2010 8:26,2.55,17850.0,United Kingdom,x
C536379,D,Discount,-1,01-12-2010 09:41,27.5,14527,United Kingdom,x
536414,22139,,56,2010-12-01 11:52:00,,,United Kingdom,x
536415,22140,BAD,abc,someday,free,,France,x
,22141,NO INVOICE,1,12/1/2010 8:26,1,1,France,x
`

func TestLoad_CleansRows(t *testing.T) {
	dst := &captureLoader{}
	res, err := Load(context.Background(), strings.NewReader(sample), dst, 0)
	require.NoError(t, err)

	assert.Equal(t, 5, res.RowsRead)
	assert.Equal(t, 4, res.RowsInserted)
	assert.Equal(t, 1, res.RowsSkipped)
	assert.Equal(t, 1, res.Chunks)

	lines := dst.all()
	require.Len(t, lines, 4)

	first := lines[0]
	assert.Equal(t, "536365", first.InvoiceNo)
	assert.Equal(t, "17850", first.CustomerID.String)
	assert.Equal(t, "2010-12-01 08:26:00", first.InvoiceDate.String)
	assert.Equal(t, int64(6), first.Quantity.Int64)
	assert.Equal(t, "2.55", first.UnitPrice.Decimal.String())

	assert.Equal(t, "2010-12-01 09:41:00", lines[1].InvoiceDate.String)
	assert.Equal(t, int64(-1), lines[1].Quantity.Int64)

	assert.False(t, lines[2].Description.Valid)
	assert.False(t, lines[2].UnitPrice.Valid)
	assert.False(t, lines[2].CustomerID.Valid)
	assert.Equal(t, "2010-12-01 11:52:00", lines[2].InvoiceDate.String)

	bad := lines[3]
	assert.False(t, bad.Quantity.Valid)
	assert.False(t, bad.UnitPrice.Valid)
	assert.Equal(t, "someday", bad.InvoiceDate.String)
	_, ok := bad.Timestamp()
	assert.False(t, ok)
}

func TestLoad_Chunks(t *testing.T) {
	dst := &captureLoader{}
	res, err := Load(context.Background(), strings.NewReader(sample), dst, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Chunks)
	require.Len(t, dst.chunks, 2)
	assert.Len(t, dst.chunks[0], 3)
	assert.Len(t, dst.chunks[1], 1)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(context.Background(), strings.NewReader("Foo,Bar\n1,2\n"), &captureLoader{}, 0)
	assert.ErrorContains(t, err, "InvoiceNo")

	boom := errors.New("disk full")
	_, err = Load(context.Background(), strings.NewReader(sample), &captureLoader{err: boom}, 0)
	assert.ErrorIs(t, err, boom)

	_, err = LoadFile(context.Background(), filepath.Join(t.TempDir(), "missing.csv"), &captureLoader{}, 0)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Online Retail.csv")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	dst := &captureLoader{}
	res, err := LoadFile(context.Background(), path, dst, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, res.RowsInserted)
}

func TestParseInvoiceDate(t *testing.T) {
	cases := map[string]string{
		"12/1/2010 8:26":      "2010-12-01 08:26:00",
		"12/31/2010 17:05":    "2010-12-31 17:05:00",
		"31-12-2010 17:05":    "2010-12-31 17:05:00",
		"2011-01-04 10:00:00": "2011-01-04 10:00:00",
		"Dec 1st":             "Dec 1st",
	}
	for in, want := range cases {
		got := ParseInvoiceDate(in)
		assert.True(t, got.Valid, in)
		assert.Equal(t, want, got.String, in)
	}
	assert.False(t, ParseInvoiceDate("   ").Valid)
}

func TestParseQuantityAndCustomer(t *testing.T) {
	assert.Equal(t, int64(12), ParseQuantity("12").Int64)
	assert.Equal(t, int64(-3), ParseQuantity("-3.0").Int64)
	assert.False(t, ParseQuantity("1.5").Valid)
	assert.False(t, ParseQuantity("").Valid)
	assert.False(t, ParseQuantity("1e30").Valid)
	assert.False(t, ParseQuantity("-1e30").Valid)
	assert.False(t, ParseQuantity("9223372036854775808").Valid)
	assert.Equal(t, int64(math.MinInt64), ParseQuantity("-9.223372036854775808e18").Int64)

	assert.Equal(t, "17850", NormalizeCustomerID("17850.0").String)
	assert.Equal(t, "17850", NormalizeCustomerID("17850").String)
	assert.Equal(t, "A12.5", NormalizeCustomerID("A12.5").String)
	assert.False(t, NormalizeCustomerID("").Valid)
	assert.False(t, NormalizeCustomerID("NaN").Valid)
}
