package calculator

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retail-analytics/pkg/models"
)

func TestParseMonth_Valid(t *testing.T) {
	got, err := parseMonth("122010")
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2010, 12, 1, 0, 0, 0, 0, time.UTC)), "got %v", got)
}

func TestParseMonth_Invalid(t *testing.T) {
	for _, in := range []string{"12201", "132010", "002010", "1a2010", ""} {
		_, err := parseMonth(in)
		assert.Error(t, err, in)
	}
}

func TestMonthsBetweenInclusive(t *testing.T) {
	start := time.Date(2010, 11, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2011, 2, 1, 0, 0, 0, 0, time.UTC)
	got := monthsBetweenInclusive(start, end)
	require.Len(t, got, 4)
	assert.Equal(t, time.November, got[0].Month())
	assert.Equal(t, time.February, got[3].Month())
	assert.Empty(t, monthsBetweenInclusive(end, start))
}

func TestFormatMonth(t *testing.T) {
	assert.Equal(t, "2011-11", formatMonth(time.Date(2011, 11, 1, 0, 0, 0, 0, time.UTC)))
}

func TestCustomerCohorts(t *testing.T) {
	cells, err := CustomerCohorts(scoped(retailLines(), scopeSalesCust))
	require.NoError(t, err)
	require.Len(t, cells, 3)

	assert.Equal(t, models.CohortCell{CohortMonth: "2010-12", ActivityMonth: "2010-12", PeriodIndex: 0, Customers: 2, Orders: 3, Revenue: cells[0].Revenue}, cells[0])
	assertDec(t, "100.82", cells[0].Revenue)
	assert.Equal(t, "2011-01", cells[1].ActivityMonth)
	assert.Equal(t, 1, cells[1].PeriodIndex)
	assert.Equal(t, 1, cells[1].Customers)
	assertDec(t, "25.50", cells[1].Revenue)
	assert.Equal(t, "2011-01", cells[2].CohortMonth)
	assert.Equal(t, 0, cells[2].PeriodIndex)

	tbl, err := buildCustomerCohorts(scoped(retailLines(), scopeSalesCust), models.Config{})
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 3)
	assertNullDec(t, "100.00", tbl.Rows[0][6].(decimal.NullDecimal))
	assertNullDec(t, "50.00", tbl.Rows[1][6].(decimal.NullDecimal))
}

func TestCustomerCohorts_OneCohortPerCustomer(t *testing.T) {
	lines := scoped(retailLines(), scopeSalesCust)
	cells, err := CustomerCohorts(lines)
	require.NoError(t, err)

	first := firstMonths(lines)
	size := map[string]int{}
	for _, m := range first {
		size[m]++
	}
	for _, c := range cells {
		assert.GreaterOrEqual(t, c.ActivityMonth, c.CohortMonth)
		assert.LessOrEqual(t, c.Customers, size[c.CohortMonth])
		if c.PeriodIndex == 0 {
			assert.Equal(t, size[c.CohortMonth], c.Customers, c.CohortMonth)
		}
	}
}

func TestCohortLTV(t *testing.T) {
	rows, err := ComputeCohortLTV(scoped(retailLines(), scopeSalesCust), "", "")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2010-12", rows[0].Month)
	assert.Equal(t, 2, rows[0].Customers)
	assertDec(t, "126.32", rows[0].Revenue)
	assertNullDec(t, "63.16", rows[0].LTVAvg)
	assert.Equal(t, 3, rows[1].RunningTotal)
	assertNullDec(t, "90.00", rows[1].LTVAvg)
}

func TestCohortLTV_Window(t *testing.T) {
	rows, err := ComputeCohortLTV(scoped(retailLines(), scopeSalesCust), "112010", "122010")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2010-11", rows[0].Month)
	assert.Zero(t, rows[0].Customers)
	assert.False(t, rows[0].LTVAvg.Valid)
	assert.Equal(t, "2010-12", rows[1].Month)
	assert.Equal(t, 2, rows[1].RunningTotal)

	_, err = ComputeCohortLTV(nil, "122010", "112010")
	assert.ErrorContains(t, err, "end_month < start_month")
	_, err = ComputeCohortLTV(nil, "2010-12", "122010")
	assert.ErrorContains(t, err, "start_month")
}
