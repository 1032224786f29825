// Package aggregate holds the grouping, summing and ratio primitives every
// report is composed from. All functions are pure and never mutate their input.
package aggregate

import (
	"sort"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Round2 rounds half away from zero to 2 decimal places.
func Round2(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

// SumWhere sums value(r) over the records matching pred. A nil pred keeps every record.
func SumWhere[T any](records []T, value func(T) decimal.Decimal, pred func(T) bool) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		if pred != nil && !pred(r) {
			continue
		}
		total = total.Add(value(r))
	}
	return total
}

// SumIntWhere is SumWhere for integer measures such as quantities.
func SumIntWhere[T any](records []T, value func(T) int64, pred func(T) bool) int64 {
	var total int64
	for _, r := range records {
		if pred != nil && !pred(r) {
			continue
		}
		total += value(r)
	}
	return total
}

// SafeRatio returns num/den rounded to 2 decimals, or null when den is zero.
func SafeRatio(num, den decimal.Decimal) decimal.NullDecimal {
	if den.IsZero() {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(Round2(num.Div(den)))
}

// SafeRatioNull is SafeRatio over optional operands; any null operand yields null.
func SafeRatioNull(num, den decimal.NullDecimal) decimal.NullDecimal {
	if !num.Valid || !den.Valid {
		return decimal.NullDecimal{}
	}
	return SafeRatio(num.Decimal, den.Decimal)
}

// PercentageOfTotal is SafeRatio(100*count, total).
func PercentageOfTotal(count, total int64) decimal.NullDecimal {
	return SafeRatio(decimal.NewFromInt(count).Mul(hundred), decimal.NewFromInt(total))
}

// Percentage is PercentageOfTotal for decimal quantities.
func Percentage(part, total decimal.Decimal) decimal.NullDecimal {
	return SafeRatio(part.Mul(hundred), total)
}

// Group is one distinct key and the records that share it.
type Group[K comparable, T any] struct {
	Key   K
	Items []T
}

// GroupBy partitions records by key. Groups come back in first-seen order and
// items keep their input order; callers impose any other ordering by sorting.
func GroupBy[T any, K comparable](records []T, key func(T) K) []Group[K, T] {
	index := make(map[K]int)
	var groups []Group[K, T]
	for _, r := range records {
		k := key(r)
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, Group[K, T]{Key: k})
		}
		groups[i].Items = append(groups[i].Items, r)
	}
	return groups
}

// CountDistinct counts distinct keys. Records whose key reports false (null) are ignored.
func CountDistinct[T any, K comparable](records []T, key func(T) (K, bool)) int {
	seen := make(map[K]struct{})
	for _, r := range records {
		if k, ok := key(r); ok {
			seen[k] = struct{}{}
		}
	}
	return len(seen)
}

// TopN orders rows by sortKey and keeps the first n (n <= 0 keeps all).
// Ties are broken by naturalKey ascending so output is reproducible.
func TopN[T any](rows []T, sortKey func(T) decimal.Decimal, naturalKey func(T) string, n int, descending bool) []T {
	out := make([]T, len(rows))
	copy(out, rows)
	sort.SliceStable(out, func(i, j int) bool {
		c := sortKey(out[i]).Cmp(sortKey(out[j]))
		if c != 0 {
			if descending {
				return c > 0
			}
			return c < 0
		}
		return naturalKey(out[i]) < naturalKey(out[j])
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// RunningTotal returns the cumulative sums of values.
func RunningTotal(values []decimal.Decimal) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	acc := decimal.Zero
	for i, v := range values {
		acc = acc.Add(v)
		out[i] = acc
	}
	return out
}

// Average returns the rounded mean of values, null for an empty slice.
func Average(values []decimal.Decimal) decimal.NullDecimal {
	if len(values) == 0 {
		return decimal.NullDecimal{}
	}
	return SafeRatio(decimal.Sum(decimal.Zero, values...), decimal.NewFromInt(int64(len(values))))
}

// MinMax returns the smallest and largest value; ok is false for an empty slice.
func MinMax(values []decimal.Decimal) (lo, hi decimal.Decimal, ok bool) {
	if len(values) == 0 {
		return decimal.Zero, decimal.Zero, false
	}
	return decimal.Min(values[0], values[1:]...), decimal.Max(values[0], values[1:]...), true
}
