package classify

// Bucket is a closed integer range [Min, Max]; Max < 0 means unbounded.
type Bucket struct {
	Label string
	Min   int
	Max   int
}

// Contains reports whether n falls in the bucket, both bounds inclusive.
func (b Bucket) Contains(n int) bool {
	return n >= b.Min && (b.Max < 0 || n <= b.Max)
}

func sizeBuckets(unit, plural string) []Bucket {
	return []Bucket{
		{Label: "1 " + unit, Min: 0, Max: 1},
		{Label: "2-5 " + plural, Min: 2, Max: 5},
		{Label: "6-10 " + plural, Min: 6, Max: 10},
		{Label: "11-20 " + plural, Min: 11, Max: 20},
		{Label: "21-50 " + plural, Min: 21, Max: 50},
		{Label: "50+ " + plural, Min: 51, Max: -1},
	}
}

// BasketSizeBuckets classify the item count of an invoice, ordered by lower bound.
var BasketSizeBuckets = sizeBuckets("item", "items")

// PurchaseFrequencyBuckets classify the invoice count of a customer.
var PurchaseFrequencyBuckets = sizeBuckets("purchase", "purchases")

// BucketIndex returns the position of the first bucket containing n, or -1.
func BucketIndex(buckets []Bucket, n int) int {
	for i, b := range buckets {
		if b.Contains(n) {
			return i
		}
	}
	return -1
}
