package analysis

import (
	"math"
	"strings"

	"github.com/centinela-gamma/centinela/engine/config"
	"github.com/centinela-gamma/centinela/engine/domain"
)

// Severity levels.
const (
	SeverityExtreme = "EXTREME"
	SeverityHigh    = "HIGH"
	SeverityMedium  = "MEDIUM"
	SeverityLow     = "LOW"
)

// ViolationAnalysis is the violation indicator section.
type ViolationAnalysis struct {
	Indicators                  Ordered[int] `json:"indicators"`
	TotalViolations             int          `json:"total_violations"`
	SeverityScore               float64      `json:"severity_score"`
	SeverityLevel               string       `json:"severity_level"`
	ViolationsPerThousandTweets float64      `json:"violations_per_thousand_tweets"`
}

// Trips reports whether p trips ind.
func Trips(p domain.ScoredPost, ind config.Indicator) bool {
	if len(ind.Keywords) > 0 && p.HasAnyKeyword(ind.Keywords) {
		return true
	}
	if len(ind.Subjects) == 0 || len(ind.Harms) == 0 {
		return false
	}
	lower := strings.ToLower(p.Text)
	return containsAnyFold(lower, ind.Subjects) && containsAnyFold(lower, ind.Harms)
}

// Violations evaluates every indicator independently on every post.
func Violations(posts []domain.ScoredPost, indicators []config.Indicator) ViolationAnalysis {
	counts := make(Ordered[int], len(indicators))
	for i, ind := range indicators {
		counts[i].Key = ind.Name
	}
	total := 0
	for _, p := range posts {
		for i, ind := range indicators {
			if Trips(p, ind) {
				counts[i].Value++
				total++
			}
		}
	}
	perThousand := float64(total) * 1000 / math.Max(float64(len(posts)), 1)
	severity := math.Min(100, perThousand)
	return ViolationAnalysis{
		Indicators:                  counts,
		TotalViolations:             total,
		SeverityScore:               Round1(severity),
		SeverityLevel:               SeverityLevel(severity),
		ViolationsPerThousandTweets: Round2(perThousand),
	}
}

// SeverityLevel maps a 0-100 score to a level. Bounds are exclusive.
func SeverityLevel(score float64) string {
	switch {
	case score > 80:
		return SeverityExtreme
	case score > 60:
		return SeverityHigh
	case score > 40:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// CollectionIndicators computes the four coarse counters stored in a
// collection document.
func CollectionIndicators(posts []domain.ScoredPost, cfg config.CollectionIndicators) domain.IndicatorCounts {
	var c domain.IndicatorCounts
	for _, p := range posts {
		if p.HasAnyKeyword(cfg.CivilianCasualties) {
			c.CivilianCasualties++
		}
		if p.HasAnyKeyword(cfg.InfrastructureAttacks) {
			c.InfrastructureAttacks++
		}
		if p.HasAnyKeyword(cfg.SettlementActivities) {
			c.SettlementActivities++
		}
		if p.HasAnyKeyword(cfg.HumanitarianViolations) {
			c.HumanitarianViolations++
		}
	}
	return c
}

func containsAnyFold(lower string, subs []string) bool {
	for _, s := range subs {
		if strings.Contains(lower, strings.ToLower(s)) {
			return true
		}
	}
	return false
}
