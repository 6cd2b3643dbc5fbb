package analysis

import (
	"fmt"
	"math"
	"sort"
)

// counter counts occurrences and remembers first-seen key order, which is
// the tie-break for every ranking in this package.
type counter[K comparable] struct {
	order  []K
	counts map[K]int
}

func newCounter[K comparable]() *counter[K] {
	return &counter[K]{counts: make(map[K]int)}
}

func (c *counter[K]) add(k K, n int) {
	if _, ok := c.counts[k]; !ok {
		c.order = append(c.order, k)
	}
	c.counts[k] += n
}

func (c *counter[K]) get(k K) int { return c.counts[k] }

func (c *counter[K]) len() int { return len(c.order) }

func (c *counter[K]) total() int {
	t := 0
	for _, n := range c.counts {
		t += n
	}
	return t
}

type ranked[K any] struct {
	key   K
	count int
}

// mostCommon returns the n largest counts, descending, first-seen order on
// ties. n < 0 returns everything.
func (c *counter[K]) mostCommon(n int) []ranked[K] {
	out := make([]ranked[K], len(c.order))
	for i, k := range c.order {
		out[i] = ranked[K]{key: k, count: c.counts[k]}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].count > out[j].count })
	if n >= 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

// ordered returns all counts in first-seen order.
func (c *counter[K]) ordered() Ordered[int] {
	out := make(Ordered[int], len(c.order))
	for i, k := range c.order {
		out[i] = Entry[int]{Key: fmt.Sprint(k), Value: c.counts[k]}
	}
	return out
}

func toOrdered[K any](rs []ranked[K]) Ordered[int] {
	out := make(Ordered[int], len(rs))
	for i, r := range rs {
		out[i] = Entry[int]{Key: fmt.Sprint(r.key), Value: r.count}
	}
	return out
}

// ratio divides with the denominator floored at 1.
func ratio(num, den float64) float64 {
	return num / math.Max(den, 1)
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 { return math.Round(v*100) / 100 }

// Round1 rounds half away from zero to one decimal.
func Round1(v float64) float64 { return math.Round(v*10) / 10 }
