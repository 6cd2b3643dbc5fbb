package analysis

import (
	"fmt"
	"strings"

	"github.com/centinela-gamma/centinela/engine/config"
	"github.com/centinela-gamma/centinela/engine/domain"
)

// Confidence levels.
const (
	ConfidenceHigh   = "HIGH"
	ConfidenceMedium = "MEDIUM"
	ConfidenceLow    = "LOW"
)

// SuspiciousPatterns counts authors tripping each heuristic. TimingClusters
// is reported but never computed.
type SuspiciousPatterns struct {
	HighVolumeAuthors int `json:"high_volume_authors"`
	RepeatedContent   int `json:"repeated_content"`
	TimingClusters    int `json:"timing_clusters"`
	LowEngagementSpam int `json:"low_engagement_spam"`
}

// BotDetails repeats the raw inputs of the probability.
type BotDetails struct {
	AvgTweetsPerAuthor     float64 `json:"avg_tweets_per_author"`
	HighVolumeAuthors      int     `json:"high_volume_authors"`
	RepeatedContentAuthors int     `json:"repeated_content_authors"`
	SpamLikeAuthors        int     `json:"spam_like_authors"`
}

// BotAnalysis is the bot-likelihood section.
type BotAnalysis struct {
	BotProbabilityPercentage float64            `json:"bot_probability_percentage"`
	ConfidenceLevel          string             `json:"confidence_level"`
	Indicators               []string           `json:"indicators"`
	SuspiciousPatterns       SuspiciousPatterns `json:"suspicious_patterns"`
	TotalAuthorsAnalyzed     int                `json:"total_authors_analyzed"`
	ContentSimilaritySamples Ordered[float64]   `json:"content_similarity_samples"`
	Recommendations          []string           `json:"recommendations"`
	AnalysisDetails          BotDetails         `json:"analysis_details"`
}

// BotSignals are the collection-level ratios the probability is a linear
// function of.
type BotSignals struct {
	HighVolumeRatio    float64
	RepeatedRatio      float64
	AvgPostsPerAuthor  float64
	LowEngagementRatio float64
}

type authorStats struct {
	posts      int
	prefixes   map[string]struct{}
	engagement int
}

// Bots runs the per-author heuristics.
func Bots(posts []domain.ScoredPost, cfg config.Bots) BotAnalysis {
	authors := newCounter[string]()
	stats := make(map[string]*authorStats)
	for _, p := range posts {
		key := p.AuthorKey()
		authors.add(key, 1)
		st, ok := stats[key]
		if !ok {
			st = &authorStats{prefixes: make(map[string]struct{})}
			stats[key] = st
		}
		st.posts++
		st.prefixes[ContentPrefix(p.Text, cfg.PrefixLength)] = struct{}{}
		st.engagement += p.Metrics.Total()
	}

	var patterns SuspiciousPatterns
	samples := Ordered[float64]{}
	for _, key := range authors.order {
		st := stats[key]
		if st.posts > cfg.HighVolumePosts {
			patterns.HighVolumeAuthors++
		}
		uniqueness := float64(len(st.prefixes)) / float64(st.posts)
		if st.posts > cfg.RepeatedMinPosts && uniqueness < cfg.UniquenessThreshold {
			patterns.RepeatedContent++
			if len(samples) < cfg.SimilaritySampleLimit {
				samples = append(samples, Entry[float64]{Key: key, Value: Round2(uniqueness)})
			}
		}
		avgEngagement := float64(st.engagement) / float64(st.posts)
		if st.posts > cfg.SpamMinPosts && avgEngagement < cfg.SpamMaxAvgEngagement {
			patterns.LowEngagementSpam++
		}
	}

	n := float64(authors.len())
	sig := BotSignals{
		HighVolumeRatio:    ratio(float64(patterns.HighVolumeAuthors), n),
		RepeatedRatio:      ratio(float64(patterns.RepeatedContent), n),
		AvgPostsPerAuthor:  ratio(float64(len(posts)), n),
		LowEngagementRatio: ratio(float64(patterns.LowEngagementSpam), n),
	}
	prob, indicators := BotProbability(sig, cfg)
	return BotAnalysis{
		BotProbabilityPercentage: prob,
		ConfidenceLevel:          Confidence(prob),
		Indicators:               indicators,
		SuspiciousPatterns:       patterns,
		TotalAuthorsAnalyzed:     authors.len(),
		ContentSimilaritySamples: samples,
		Recommendations:          BotRecommendations(prob),
		AnalysisDetails: BotDetails{
			AvgTweetsPerAuthor:     Round2(sig.AvgPostsPerAuthor),
			HighVolumeAuthors:      patterns.HighVolumeAuthors,
			RepeatedContentAuthors: patterns.RepeatedContent,
			SpamLikeAuthors:        patterns.LowEngagementSpam,
		},
	}
}

// BotProbability is the fixed linear heuristic, capped at cfg.MaxProbability.
// It is non-decreasing in every signal.
func BotProbability(sig BotSignals, cfg config.Bots) (float64, []string) {
	prob := 0.0
	indicators := []string{}
	if sig.HighVolumeRatio > cfg.HighVolumeRatio {
		prob += cfg.HighVolumeWeight
		indicators = append(indicators, fmt.Sprintf("High-volume authors: %.1f%%", sig.HighVolumeRatio*100))
	}
	if sig.RepeatedRatio > cfg.RepeatedRatio {
		prob += cfg.RepeatedWeight
		indicators = append(indicators, fmt.Sprintf("Repeated content: %.1f%%", sig.RepeatedRatio*100))
	}
	if sig.AvgPostsPerAuthor > cfg.AvgPostsPerAuthor {
		prob += cfg.AvgPostsWeight
		indicators = append(indicators, fmt.Sprintf("Average posts per author: %.1f", sig.AvgPostsPerAuthor))
	}
	if sig.LowEngagementRatio > cfg.SpamRatio {
		prob += cfg.SpamWeight
		indicators = append(indicators, fmt.Sprintf("Low engagement: %.1f%%", sig.LowEngagementRatio*100))
	}
	if prob > cfg.MaxProbability {
		prob = cfg.MaxProbability
	}
	return prob, indicators
}

// Confidence maps a probability to HIGH, MEDIUM or LOW.
func Confidence(prob float64) string {
	switch {
	case prob > 70:
		return ConfidenceHigh
	case prob > 40:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// BotRecommendations returns the fixed advice for a probability band.
func BotRecommendations(prob float64) []string {
	switch {
	case prob > 80:
		return []string{
			"HIGH RISK: implement anti-bot filters immediately",
			"Manually validate a sample of the most active users",
			"Increase source verification",
			"Run network analysis to detect coordination",
		}
	case prob > 60:
		return []string{
			"MEDIUM RISK: analyse temporal patterns in detail",
			"Verify the authenticity of the most active accounts",
			"Add automatic alerts for anomalous volume",
			"Consider additional content filters",
		}
	default:
		return []string{
			"LOW RISK: keep regular monitoring",
			"Continue trend analysis",
			"Document patterns for future reference",
		}
	}
}

// ContentPrefix is the lower-cased first n runes of text, the unit of
// repeated-content detection.
func ContentPrefix(text string, n int) string {
	return prefix(strings.ToLower(text), n)
}

// prefix returns the first n runes of s.
func prefix(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
