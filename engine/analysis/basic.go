package analysis

import "github.com/centinela-gamma/centinela/engine/domain"

// HighRelevanceThreshold is the exclusive lower bound for a "high relevance"
// post.
const HighRelevanceThreshold = 80

// BasicMetrics are the headline counts of a collection.
type BasicMetrics struct {
	TotalTweets         int                    `json:"total_tweets"`
	CriticalTweets      int                    `json:"critical_tweets"`
	CriticalPercentage  float64                `json:"critical_percentage"`
	UniqueAuthors       int                    `json:"unique_authors"`
	AvgTweetsPerAuthor  float64                `json:"avg_tweets_per_author"`
	AvgRelevanceScore   float64                `json:"avg_relevance_score"`
	HighRelevanceCount  int                    `json:"high_relevance_count"`
	TotalRetweets       int                    `json:"total_retweets"`
	TotalLikes          int                    `json:"total_likes"`
	AvgEngagement       float64                `json:"avg_engagement"`
	ExtractionInfo      domain.ExtractionInfo  `json:"extraction_info"`
	WarCrimesIndicators domain.IndicatorCounts `json:"war_crimes_indicators"`
}

// Basic computes BasicMetrics. Collection-level fields are echoed from meta.
func Basic(posts []domain.ScoredPost, meta domain.CollectionMetadata) BasicMetrics {
	var (
		critical, high  int
		relevance       int
		retweets, likes int
		authors         = make(map[string]struct{})
	)
	for _, p := range posts {
		if p.IsCritical {
			critical++
		}
		if p.RelevanceScore > HighRelevanceThreshold {
			high++
		}
		relevance += p.RelevanceScore
		retweets += p.Metrics.RetweetCount
		likes += p.Metrics.LikeCount
		authors[p.AuthorKey()] = struct{}{}
	}
	total := float64(len(posts))
	return BasicMetrics{
		TotalTweets:         len(posts),
		CriticalTweets:      critical,
		CriticalPercentage:  Round2(ratio(float64(critical), total) * 100),
		UniqueAuthors:       len(authors),
		AvgTweetsPerAuthor:  Round2(ratio(total, float64(len(authors)))),
		AvgRelevanceScore:   Round2(ratio(float64(relevance), total)),
		HighRelevanceCount:  high,
		TotalRetweets:       retweets,
		TotalLikes:          likes,
		AvgEngagement:       Round2(ratio(float64(retweets+likes), total)),
		ExtractionInfo:      meta.ExtractionInfo,
		WarCrimesIndicators: meta.WarCrimesIndicators,
	}
}
