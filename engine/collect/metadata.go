package collect

import (
	"math"
	"time"

	"github.com/centinela-gamma/centinela/engine/analysis"
	"github.com/centinela-gamma/centinela/engine/domain"
)

// Run describes one collection pass.
type Run struct {
	ID           string
	Start, End   time.Time
	RequestsMade int
}

// BuildMetadata computes the collection metadata for posts. Zero fields of
// cfg take their defaults.
func BuildMetadata(posts []domain.ScoredPost, cfg Config, run Run) domain.CollectionMetadata {
	cfg = cfg.WithDefaults()
	total := len(posts)
	n := float64(max(total, 1))

	var critical, withLocation, relevance, keywords int
	authors := make(map[string]bool)
	uniqueKeywords := make(map[string]bool)
	breakdown := make(map[string]queryAcc, len(cfg.Queries))
	for _, q := range cfg.Queries {
		breakdown[q] = queryAcc{}
	}

	for _, p := range posts {
		if p.IsCritical {
			critical++
		}
		if p.Location != "" {
			withLocation++
		}
		relevance += p.RelevanceScore
		keywords += len(p.KeywordsDetected)
		for _, kw := range p.KeywordsDetected {
			uniqueKeywords[kw] = true
		}
		authors[p.AuthorKey()] = true
		if acc, ok := breakdown[p.QuerySource]; ok {
			acc.add(p)
			breakdown[p.QuerySource] = acc
		}
	}

	queries := make(map[string]domain.QueryStats, len(breakdown))
	for q, acc := range breakdown {
		queries[q] = acc.stats()
	}

	budgetUsed := float64(total) * cfg.CostPerPost
	return domain.CollectionMetadata{
		RunID: run.ID,
		ExtractionInfo: domain.ExtractionInfo{
			Timestamp:          run.End.Format(time.RFC3339Nano),
			TotalTweets:        total,
			BudgetUsed:         round(budgetUsed, 6),
			BudgetAllocated:    cfg.Budget,
			RequestsMade:       run.RequestsMade,
			MaxRequests:        cfg.MaxRequests,
			CostPerTweet:       cfg.CostPerPost,
			ExtractionDuration: run.End.Sub(run.Start).Round(time.Millisecond).String(),
			TweetsPerDollar:    float64(total) / math.Max(budgetUsed, 0.001),
			TargetRegion:       cfg.TargetRegion,
			Simulated:          cfg.Simulated,
		},
		Statistics: domain.CollectionStats{
			CriticalTweets:     critical,
			CriticalPercentage: analysis.Round2(float64(critical) / n * 100),
			TotalKeywords:      keywords,
			UniqueKeywords:     len(uniqueKeywords),
			UniqueAuthors:      len(authors),
			QueriesExecuted:    len(cfg.Queries),
			TweetsWithLocation: withLocation,
			AvgRelevance:       analysis.Round2(float64(relevance) / n),
		},
		QueryBreakdown:      queries,
		TopKeywords:         analysis.TopKeywords(posts, cfg.TopKeywords),
		WarCrimesIndicators: analysis.CollectionIndicators(posts, cfg.Indicators),
	}
}

// queryAcc sums the posts of one query.
type queryAcc struct {
	count, critical, relevance int
}

func (a *queryAcc) add(p domain.ScoredPost) {
	a.count++
	if p.IsCritical {
		a.critical++
	}
	a.relevance += p.RelevanceScore
}

func (a queryAcc) stats() domain.QueryStats {
	return domain.QueryStats{
		TweetCount:    a.count,
		CriticalCount: a.critical,
		AvgRelevance:  analysis.Round2(float64(a.relevance) / float64(max(a.count, 1))),
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
