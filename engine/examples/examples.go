// Package examples picks small named subsets of a scored collection for
// human review.
package examples

import (
	"github.com/centinela-gamma/centinela/engine/analysis"
	"github.com/centinela-gamma/centinela/engine/config"
	"github.com/centinela-gamma/centinela/engine/domain"
	"github.com/centinela-gamma/centinela/pkg/fn"
)

// Subset names that are not configured as keyword subsets.
const (
	MostCritical   = "most_critical"
	HighEngagement = "high_engagement"
)

// DefaultLocation is shown for posts without a location.
const DefaultLocation = "Unknown"

// Engagement is the display form of a post's counters.
type Engagement struct {
	Retweets int `json:"retweets"`
	Likes    int `json:"likes"`
}

// Example is the display form of a post.
type Example struct {
	Text           string     `json:"text"`
	Location       string     `json:"location"`
	RelevanceScore int        `json:"relevance_score"`
	IsCritical     bool       `json:"is_critical"`
	Keywords       []string   `json:"keywords"`
	Engagement     Engagement `json:"engagement"`
}

// Set maps subset names to examples, most_critical first and high_engagement
// last.
type Set = analysis.Ordered[[]Example]

// Select builds every configured subset. Keyword subsets keep input order;
// most_critical and high_engagement are stable sorts, so ties also keep
// input order.
func Select(posts []domain.ScoredPost, cfg config.Examples) Set {
	set := make(Set, 0, len(cfg.Subsets)+2)

	critical := fn.Filter(posts, func(p domain.ScoredPost) bool {
		return p.IsCritical && p.RelevanceScore > cfg.CriticalMinRelevance
	})
	critical = fn.SortedDesc(critical, func(p domain.ScoredPost) int { return p.RelevanceScore })
	set = append(set, analysis.Entry[[]Example]{Key: MostCritical, Value: formatAll(critical, cfg.CriticalLimit, cfg.TextLimit)})

	for _, sub := range cfg.Subsets {
		picked := fn.Filter(posts, func(p domain.ScoredPost) bool { return p.HasAnyKeyword(sub.Keywords) })
		set = append(set, analysis.Entry[[]Example]{Key: sub.Name, Value: formatAll(picked, sub.Limit, cfg.TextLimit)})
	}

	byEngagement := fn.SortedDesc(posts, func(p domain.ScoredPost) int { return p.Metrics.Total() })
	set = append(set, analysis.Entry[[]Example]{Key: HighEngagement, Value: formatAll(byEngagement, cfg.HighEngagementLimit, cfg.TextLimit)})
	return set
}

func formatAll(posts []domain.ScoredPost, limit, textLimit int) []Example {
	if limit >= 0 {
		posts = fn.Take(posts, limit)
	}
	return fn.Map(posts, func(p domain.ScoredPost) Example { return Format(p, textLimit) })
}

// Format renders p for display: text cut at textLimit runes with "..."
// appended, at most three keywords.
func Format(p domain.ScoredPost, textLimit int) Example {
	kws := p.KeywordsDetected
	if len(kws) > 3 {
		kws = kws[:3]
	}
	if kws == nil {
		kws = []string{}
	}
	loc := p.Location
	if loc == "" {
		loc = DefaultLocation
	}
	return Example{
		Text:           Truncate(p.Text, textLimit),
		Location:       loc,
		RelevanceScore: p.RelevanceScore,
		IsCritical:     p.IsCritical,
		Keywords:       kws,
		Engagement:     Engagement{Retweets: p.Metrics.RetweetCount, Likes: p.Metrics.LikeCount},
	}
}

// Truncate cuts s to limit runes and appends "..." when anything was cut.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	n := 0
	for pos := range s {
		if n == limit {
			return s[:pos] + "..."
		}
		n++
	}
	return s
}
