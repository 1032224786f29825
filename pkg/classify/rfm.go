// Package classify holds the threshold scoring and segment naming rules.
// Every table is evaluated top to bottom and the first matching entry wins.
package classify

import (
	"github.com/shopspring/decimal"

	"retail-analytics/pkg/models"
)

// Segment labels, in rule order.
const (
	Champions          = "Champions"
	LoyalCustomers     = "Loyal Customers"
	PotentialLoyalists = "Potential Loyalists"
	AtRisk             = "At Risk"
	CannotLoseThem     = "Cannot Lose Them"
	Hibernating        = "Hibernating"
	Lost               = "Lost"
	NeedAttention      = "Need Attention"
)

type threshold[V any] struct {
	match func(V) bool
	score int
}

var recencyThresholds = []threshold[float64]{
	{func(days float64) bool { return days <= 30 }, 5},
	{func(days float64) bool { return days <= 60 }, 4},
	{func(days float64) bool { return days <= 90 }, 3},
	{func(days float64) bool { return days <= 180 }, 2},
}

var frequencyThresholds = []threshold[int]{
	{func(n int) bool { return n >= 50 }, 5},
	{func(n int) bool { return n >= 20 }, 4},
	{func(n int) bool { return n >= 10 }, 3},
	{func(n int) bool { return n >= 5 }, 2},
}

var monetaryThresholds = []threshold[decimal.Decimal]{
	{func(m decimal.Decimal) bool { return m.GreaterThanOrEqual(decimal.NewFromInt(5000)) }, 5},
	{func(m decimal.Decimal) bool { return m.GreaterThanOrEqual(decimal.NewFromInt(2000)) }, 4},
	{func(m decimal.Decimal) bool { return m.GreaterThanOrEqual(decimal.NewFromInt(1000)) }, 3},
	{func(m decimal.Decimal) bool { return m.GreaterThanOrEqual(decimal.NewFromInt(500)) }, 2},
}

func scoreOf[V any](table []threshold[V], v V) int {
	for _, t := range table {
		if t.match(v) {
			return t.score
		}
	}
	return 1
}

// RecencyScore maps days since the last purchase to 1..5.
func RecencyScore(days float64) int { return scoreOf(recencyThresholds, days) }

// FrequencyScore maps the number of distinct invoices to 1..5.
func FrequencyScore(invoices int) int { return scoreOf(frequencyThresholds, invoices) }

// MonetaryScore maps total revenue to 1..5.
func MonetaryScore(revenue decimal.Decimal) int { return scoreOf(monetaryThresholds, revenue) }

type segmentRule struct {
	label string
	match func(r, f, m int) bool
}

// Rules 3 to 7 overlap; this order decides the label.
var segmentRules = []segmentRule{
	{Champions, func(r, f, m int) bool { return r >= 4 && f >= 4 && m >= 4 }},
	{LoyalCustomers, func(r, f, m int) bool { return r >= 3 && f >= 4 && m >= 3 }},
	{PotentialLoyalists, func(r, f, _ int) bool { return r >= 4 && f <= 2 }},
	{AtRisk, func(r, f, m int) bool { return r >= 3 && f <= 2 && m >= 3 }},
	{CannotLoseThem, func(r, f, _ int) bool { return r <= 2 && f >= 3 }},
	{Hibernating, func(r, f, m int) bool { return r <= 2 && f <= 2 && m >= 3 }},
	{Lost, func(r, _, _ int) bool { return r <= 2 }},
}

// SegmentLabel names the segment of an (r, f, m) score triple.
func SegmentLabel(r, f, m int) string {
	for _, rule := range segmentRules {
		if rule.match(r, f, m) {
			return rule.label
		}
	}
	return NeedAttention
}

// Score computes the full RFM classification of one customer.
func Score(recencyDays float64, frequency int, monetary decimal.Decimal) models.RFMScore {
	s := models.RFMScore{
		Recency:   RecencyScore(recencyDays),
		Frequency: FrequencyScore(frequency),
		Monetary:  MonetaryScore(monetary),
	}
	s.Segment = SegmentLabel(s.Recency, s.Frequency, s.Monetary)
	return s
}
