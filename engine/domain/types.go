// Package domain defines the post and collection types shared by every stage
// of the centinela pipeline, together with the validation gate applied at
// ingestion boundaries.
package domain

import (
	"strings"
	"time"
)

// UnknownAuthor is the author key used when a post carries no author fields.
const UnknownAuthor = "unknown"

// Engagement holds the public interaction counters of a post.
type Engagement struct {
	RetweetCount int `json:"retweet_count"`
	LikeCount    int `json:"like_count"`
}

// Total returns reposts plus likes.
func (e Engagement) Total() int { return e.RetweetCount + e.LikeCount }

// Post is a single ingested social-media message. CreatedAt is kept as the
// raw ISO-8601 string because upstream sources are not trusted to send valid
// timestamps.
type Post struct {
	ID          string     `json:"id"`
	Text        string     `json:"text"`
	Author      string     `json:"author,omitempty"`
	AuthorID    string     `json:"author_id,omitempty"`
	CreatedAt   string     `json:"created_at,omitempty"`
	Metrics     Engagement `json:"metrics"`
	Location    string     `json:"location,omitempty"`
	QuerySource string     `json:"query_source,omitempty"`
}

// AuthorKey identifies the author for grouping: the handle when present,
// then the numeric id, then UnknownAuthor.
func (p Post) AuthorKey() string {
	switch {
	case p.Author != "":
		return p.Author
	case p.AuthorID != "":
		return p.AuthorID
	default:
		return UnknownAuthor
	}
}

// ScoredPost is a Post annotated by the scorer.
type ScoredPost struct {
	Post
	RelevanceScore   int      `json:"relevance_score"`
	IsCritical       bool     `json:"is_critical"`
	KeywordsDetected []string `json:"keywords_detected"`
}

// HasKeyword reports whether kw is among the detected keywords (exact match).
func (p ScoredPost) HasKeyword(kw string) bool {
	for _, k := range p.KeywordsDetected {
		if k == kw {
			return true
		}
	}
	return false
}

// HasAnyKeyword reports whether any of kws was detected.
func (p ScoredPost) HasAnyKeyword(kws []string) bool {
	for _, kw := range kws {
		if p.HasKeyword(kw) {
			return true
		}
	}
	return false
}

// timestampLayouts covers ISO-8601 in extended and basic form, with second,
// minute or hour precision, an optional fraction, and a "Z", "+hh:mm" or
// "+hhmm" offset or none.
var timestampLayouts = buildTimestampLayouts()

func buildTimestampLayouts() []string {
	forms := []struct {
		date  string
		times []string
	}{
		{"2006-01-02", []string{"15:04:05.999999999", "15:04", "15"}},
		{"20060102", []string{"150405.999999999", "1504", "15"}},
	}
	var out []string
	for _, f := range forms {
		for _, sep := range []string{"T", " "} {
			for _, tm := range f.times {
				for _, zone := range []string{"Z07:00", "Z0700", ""} {
					out = append(out, f.date+sep+tm+zone)
				}
			}
		}
		out = append(out, f.date)
	}
	return out
}

// ParseTimestamp parses the ISO-8601 variants seen from sources. A trailing
// "Z" means UTC; timestamps without an offset are read as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, NewValidationError("created_at", s, ErrMalformedTimestamp, lastErr)
}

// Collection is the raw document persisted by a collection run.
type Collection struct {
	Metadata CollectionMetadata `json:"metadata"`
	Posts    []ScoredPost       `json:"tweets"`
}

// CollectionMetadata summarises a collection run.
type CollectionMetadata struct {
	RunID               string                `json:"run_id,omitempty"`
	ExtractionInfo      ExtractionInfo        `json:"extraction_info"`
	Statistics          CollectionStats       `json:"statistics"`
	QueryBreakdown      map[string]QueryStats `json:"query_breakdown"`
	TopKeywords         []KeywordCount        `json:"top_keywords"`
	WarCrimesIndicators IndicatorCounts       `json:"war_crimes_indicators"`
	Sampling            *SamplingInfo         `json:"sampling_applied,omitempty"`
}

// ExtractionInfo describes the request budget spent by a collection run.
type ExtractionInfo struct {
	Timestamp          string  `json:"timestamp,omitempty"`
	TotalTweets        int     `json:"total_tweets"`
	BudgetUsed         float64 `json:"budget_used"`
	BudgetAllocated    float64 `json:"budget_allocated"`
	RequestsMade       int     `json:"requests_made"`
	MaxRequests        int     `json:"max_requests"`
	CostPerTweet       float64 `json:"cost_per_tweet"`
	ExtractionDuration string  `json:"extraction_duration,omitempty"`
	TweetsPerDollar    float64 `json:"tweets_per_dollar"`
	TargetRegion       string  `json:"target_region,omitempty"`
	Simulated          bool    `json:"simulated,omitempty"`
}

// CollectionStats are the headline counts of a collection.
type CollectionStats struct {
	CriticalTweets     int     `json:"critical_tweets"`
	CriticalPercentage float64 `json:"critical_percentage"`
	TotalKeywords      int     `json:"total_keywords"`
	UniqueKeywords     int     `json:"unique_keywords"`
	UniqueAuthors      int     `json:"unique_authors"`
	QueriesExecuted    int     `json:"queries_executed"`
	TweetsWithLocation int     `json:"tweets_with_location"`
	AvgRelevance       float64 `json:"avg_relevance"`
}

// QueryStats breaks a collection down by originating query.
type QueryStats struct {
	TweetCount    int     `json:"tweet_count"`
	CriticalCount int     `json:"critical_count"`
	AvgRelevance  float64 `json:"avg_relevance"`
}

// KeywordCount is one row of a keyword frequency table.
type KeywordCount struct {
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
}

// IndicatorCounts are the four coarse violation counters recorded at
// collection time.
type IndicatorCounts struct {
	CivilianCasualties     int `json:"civilian_casualties"`
	InfrastructureAttacks  int `json:"infrastructure_attacks"`
	SettlementActivities   int `json:"settlement_activities"`
	HumanitarianViolations int `json:"humanitarian_violations"`
}

// Sum returns the total of all four counters.
func (c IndicatorCounts) Sum() int {
	return c.CivilianCasualties + c.InfrastructureAttacks + c.SettlementActivities + c.HumanitarianViolations
}

// SamplingInfo records how a collection was reduced by a bounded projection.
type SamplingInfo struct {
	OriginalCount         int `json:"original_count"`
	SampledCount          int `json:"sampled_count"`
	CriticalIncluded      int `json:"critical_included"`
	HighRelevanceIncluded int `json:"high_relevance_included"`
	RegularIncluded       int `json:"regular_included"`
}
