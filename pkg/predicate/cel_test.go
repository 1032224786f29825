package predicate

import (
	"database/sql"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retail-analytics/pkg/models"
)

func ukLine() models.TransactionLine {
	return models.TransactionLine{
		InvoiceNo:   "536365",
		StockCode:   "85123A",
		Quantity:    sql.NullInt64{Int64: 6, Valid: true},
		UnitPrice:   decimal.NewNullDecimal(decimal.RequireFromString("2.55")),
		CustomerID:  sql.NullString{String: "17850", Valid: true},
		InvoiceDate: sql.NullString{String: "2010-12-01 08:26:00", Valid: true},
		Country:     "United Kingdom",
	}
}

func TestCompile_Evaluates(t *testing.T) {
	c, err := NewCompiler()
	require.NoError(t, err)

	cases := map[string]bool{
		`country == "United Kingdom"`:               true,
		`country == "France"`:                       false,
		`unit_price > 2.0 && quantity >= 6`:         true,
		`has_customer && customer_id.startsWith("1")`: true,
		`!has_price`:                                false,
		`invoice_date.startsWith("2010-12")`:        true,
		`description == ""`:                         true,
	}
	for expr, want := range cases {
		p, err := c.Compile(expr)
		require.NoError(t, err, expr)
		got, err := p.Eval(ukLine())
		require.NoError(t, err, expr)
		assert.Equal(t, want, got, expr)
	}
}

func TestCompile_Rejects(t *testing.T) {
	c, err := NewCompiler()
	require.NoError(t, err)

	_, err = c.Compile(`country ==`)
	assert.Error(t, err)

	_, err = c.Compile(`quantity + 1`)
	assert.ErrorContains(t, err, "want bool")

	_, err = c.Compile(`region == "EU"`)
	assert.Error(t, err, "undeclared variable")
}

func TestPredicate_MatchRecordsFirstError(t *testing.T) {
	c, err := NewCompiler()
	require.NoError(t, err)

	p, err := c.Compile(`60 / quantity > 1`)
	require.NoError(t, err)

	assert.True(t, p.Match(ukLine()))
	assert.NoError(t, p.Err())

	zero := ukLine()
	zero.Quantity = sql.NullInt64{}
	assert.False(t, p.Match(zero))
	assert.ErrorContains(t, p.Err(), "zero")
}

func TestCompile_CachesPrograms(t *testing.T) {
	c, err := NewCompiler()
	require.NoError(t, err)

	a, err := c.Compile(`has_price`)
	require.NoError(t, err)
	b, err := c.Compile(`has_price`)
	require.NoError(t, err)
	assert.Len(t, c.prgCache, 1)
	assert.NotSame(t, a, b)
}
