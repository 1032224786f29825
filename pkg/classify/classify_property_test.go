//go:build property
// +build property

package classify

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
)

// TestScoreDeterminism verifies the same (days, frequency, monetary) triple always yields the same segment.
func TestScoreDeterminism(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("segment is a pure function of the triple", prop.ForAll(
		func(days float64, freq int, cents int64) bool {
			m := decimal.New(cents, -2)
			a := Score(days, freq, m)
			b := Score(days, freq, m)
			return a == b
		},
		gen.Float64Range(0, 1000),
		gen.IntRange(0, 200),
		gen.Int64Range(0, 2_000_000),
	))

	properties.TestingRun(t)
}

// TestScoresInRange verifies every score lands in 1..5 and the label is one of the eight segments.
func TestScoresInRange(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	known := map[string]bool{
		Champions: true, LoyalCustomers: true, PotentialLoyalists: true, AtRisk: true,
		CannotLoseThem: true, Hibernating: true, Lost: true, NeedAttention: true,
	}

	properties.Property("scores are within 1..5", prop.ForAll(
		func(days float64, freq int, cents int64) bool {
			s := Score(days, freq, decimal.New(cents, -2))
			for _, v := range []int{s.Recency, s.Frequency, s.Monetary} {
				if v < 1 || v > 5 {
					return false
				}
			}
			return known[s.Segment]
		},
		gen.Float64Range(0, 5000),
		gen.IntRange(0, 1000),
		gen.Int64Range(0, 10_000_000),
	))

	properties.Property("recency 2 or less never lands in Need Attention", prop.ForAll(
		func(r, f, m int) bool {
			return SegmentLabel(r, f, m) != NeedAttention
		},
		gen.IntRange(1, 2),
		gen.IntRange(1, 5),
		gen.IntRange(1, 5),
	))

	properties.TestingRun(t)
}

// TestBucketsExhaustive verifies every non-negative count maps to exactly one bucket.
func TestBucketsExhaustive(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("exactly one basket bucket", prop.ForAll(
		func(n int) bool {
			hits := 0
			for _, b := range BasketSizeBuckets {
				if b.Contains(n) {
					hits++
				}
			}
			return hits == 1
		},
		gen.IntRange(0, 1_000_000),
	))

	properties.TestingRun(t)
}
