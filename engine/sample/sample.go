// Package sample reduces a scored collection to a bounded projection by
// priority class.
package sample

import (
	"github.com/centinela-gamma/centinela/engine/config"
	"github.com/centinela-gamma/centinela/engine/domain"
)

// Class is the priority class of a post.
type Class int

const (
	Critical Class = iota
	HighRelevance
	Regular
)

// Classify returns the class of p. Critical wins over relevance.
func Classify(p domain.ScoredPost, q config.Quotas) Class {
	switch {
	case p.IsCritical:
		return Critical
	case p.RelevanceScore > q.HighRelevanceMin:
		return HighRelevance
	default:
		return Regular
	}
}

// Project keeps up to q.Critical critical posts, then up to q.HighRelevance
// high-relevance posts, then up to q.Regular regular posts, each in input
// order. The result is ordered by class, and the returned info records what
// was kept.
func Project(posts []domain.ScoredPost, q config.Quotas) ([]domain.ScoredPost, domain.SamplingInfo) {
	var buckets [3][]domain.ScoredPost
	limits := [3]int{q.Critical, q.HighRelevance, q.Regular}
	for _, p := range posts {
		c := Classify(p, q)
		if len(buckets[c]) < limits[c] {
			buckets[c] = append(buckets[c], p)
		}
	}
	out := make([]domain.ScoredPost, 0, len(buckets[0])+len(buckets[1])+len(buckets[2]))
	for _, b := range buckets {
		out = append(out, b...)
	}
	return out, domain.SamplingInfo{
		OriginalCount:         len(posts),
		SampledCount:          len(out),
		CriticalIncluded:      len(buckets[Critical]),
		HighRelevanceIncluded: len(buckets[HighRelevance]),
		RegularIncluded:       len(buckets[Regular]),
	}
}
