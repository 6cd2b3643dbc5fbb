package dashboard

import (
	"slices"
	"sort"
	"strings"

	"github.com/centinela-gamma/centinela/engine/analysis"
	"github.com/centinela-gamma/centinela/engine/domain"
	"github.com/centinela-gamma/centinela/pkg/fn"
)

// Incident types.
const (
	IncidentCivilianCasualties    = "CIVILIAN_CASUALTIES"
	IncidentMilitaryAttack        = "MILITARY_ATTACK"
	IncidentInfrastructureAttack  = "INFRASTRUCTURE_ATTACK"
	IncidentSettlementViolation   = "SETTLEMENT_VIOLATION"
	IncidentHumanitarianViolation = "HUMANITARIAN_VIOLATION"
	IncidentOther                 = "OTHER_VIOLATION"
)

// Incident severities.
const (
	SeverityCritical = "CRITICAL"
	SeverityHigh     = "HIGH"
	SeverityMedium   = "MEDIUM"
)

// Documentation confidence levels.
const (
	ConfidenceHigh   = "HIGH"
	ConfidenceMedium = "MEDIUM"
	ConfidenceLow    = "LOW"
)

var incidentRules = []struct {
	kind     string
	keywords []string
}{
	{IncidentCivilianCasualties, []string{"killed", "dead", "murdered", "shot"}},
	{IncidentMilitaryAttack, []string{"bombing", "airstrike", "shelling"}},
	{IncidentInfrastructureAttack, []string{"hospital bombed", "school destroyed", "mosque damaged"}},
	{IncidentSettlementViolation, []string{"home demolition", "illegal settlement"}},
	{IncidentHumanitarianViolation, []string{"siege", "blockade", "collective punishment"}},
}

// ClassifyIncident returns the first incident type whose keywords were
// detected in p.
func ClassifyIncident(p domain.ScoredPost) string {
	for _, r := range incidentRules {
		if p.HasAnyKeyword(r.keywords) {
			return r.kind
		}
	}
	return IncidentOther
}

// IncidentSeverity grades a single post.
func IncidentSeverity(p domain.ScoredPost) string {
	switch {
	case p.RelevanceScore > 90 || p.HasAnyKeyword([]string{"genocide", "war crime", "children killed"}):
		return SeverityCritical
	case p.RelevanceScore > 75 || p.HasAnyKeyword([]string{"killed", "bombing", "airstrike"}):
		return SeverityHigh
	default:
		return SeverityMedium
	}
}

// DocumentationSeverity scores the indicator counters on a 0-100 scale.
func DocumentationSeverity(c domain.IndicatorCounts) int {
	score := 0
	switch {
	case c.CivilianCasualties > 1000:
		score += 40
	case c.CivilianCasualties > 500:
		score += 30
	case c.CivilianCasualties > 100:
		score += 20
	}
	switch {
	case c.InfrastructureAttacks > 50:
		score += 25
	case c.InfrastructureAttacks > 20:
		score += 15
	}
	switch {
	case c.HumanitarianViolations > 100:
		score += 20
	case c.HumanitarianViolations > 50:
		score += 10
	}
	switch {
	case c.SettlementActivities > 50:
		score += 15
	case c.SettlementActivities > 20:
		score += 10
	}
	return min(score, 100)
}

// DocumentationConfidence maps a severity score to a confidence level.
func DocumentationConfidence(score int) string {
	switch {
	case score > 80:
		return ConfidenceHigh
	case score > 50:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// GenevaViolations lists the Geneva Convention provisions the counters
// point at.
func GenevaViolations(c domain.IndicatorCounts) []string {
	out := []string{}
	if c.CivilianCasualties > 100 {
		out = append(out, "Article 51 - Protection of the civilian population")
	}
	if c.InfrastructureAttacks > 20 {
		out = append(out,
			"Article 52 - General protection of civilian objects",
			"Article 54 - Protection of objects indispensable to the survival of the civilian population")
	}
	if c.HumanitarianViolations > 50 {
		out = append(out,
			"Article 55 - Food and medical supplies for the population",
			"Article 69 - Basic needs in occupied territories")
	}
	if c.SettlementActivities > 20 {
		out = append(out, "Article 49 - Deportations, transfers, evacuations")
	}
	return out
}

// RomeStatuteViolations lists the Rome Statute articles the counters point
// at.
func RomeStatuteViolations(c domain.IndicatorCounts) []string {
	out := []string{}
	if c.CivilianCasualties > 200 {
		out = append(out, "Article 8(2)(b)(i) - Intentionally directing attacks against civilians")
	}
	if c.InfrastructureAttacks > 30 {
		out = append(out,
			"Article 8(2)(b)(ii) - Intentionally directing attacks against civilian objects",
			"Article 8(2)(b)(iv) - Excessive incidental death, injury or damage")
	}
	if c.SettlementActivities > 30 {
		out = append(out, "Article 8(2)(b)(viii) - Transfer of the occupying power's population into occupied territory")
	}
	return out
}

// ICJCases lists the International Court of Justice proceedings relevant
// at a documentation severity above 70.
func ICJCases(severity int) []string {
	if severity <= 70 {
		return []string{}
	}
	return []string{
		"Application of the Genocide Convention (South Africa v. Israel)",
		"Legal Consequences of the Construction of a Wall in the Occupied Palestinian Territory",
	}
}

// AlertLevel combines the critical share with the absolute number of
// violation mentions.
func AlertLevel(criticalPct float64, totalViolations int) string {
	switch {
	case criticalPct > 80 && totalViolations > 1000:
		return analysis.SeverityExtreme
	case criticalPct > 60 && totalViolations > 500:
		return analysis.SeverityHigh
	case criticalPct > 40 && totalViolations > 200:
		return analysis.SeverityMedium
	default:
		return analysis.SeverityLow
	}
}

// DetectEscalation inspects a per-day distribution keyed by ISO date. It
// flags a recent increase when the mean of the last three days exceeds the
// mean of the three before (or of every earlier day) by half, and a spike
// when the busiest day exceeds three times the daily mean.
func DetectEscalation(daily analysis.Ordered[int]) []string {
	out := []string{}
	if len(daily) < 3 {
		return out
	}
	days := make(analysis.Ordered[int], len(daily))
	copy(days, daily)
	sort.SliceStable(days, func(i, j int) bool { return days[i].Key < days[j].Key })

	counts := make([]int, len(days))
	total, peak := 0, 0
	for i, d := range days {
		counts[i] = d.Value
		total += d.Value
		peak = max(peak, d.Value)
	}
	recent := mean(counts[len(counts)-3:])
	earlier := counts[:len(counts)-3]
	if len(earlier) > 3 {
		earlier = earlier[len(earlier)-3:]
	}
	if len(earlier) > 0 {
		if prev := mean(earlier); recent > prev*1.5 {
			out = append(out, "Significant increase in documented incidents over the last 3 days")
		}
	}
	if avg := float64(total) / float64(len(counts)); float64(peak) > avg*3 {
		out = append(out, "Unusual spike in incident reports detected")
	}
	return out
}

func mean(xs []int) float64 {
	if len(xs) == 0 {
		return 0
	}
	s := 0
	for _, x := range xs {
		s += x
	}
	return float64(s) / float64(len(xs))
}

// MostActiveDays returns the n busiest days, ties in input order.
func MostActiveDays(daily analysis.Ordered[int], n int) []DayCount {
	days := fn.Map(daily, func(d analysis.Entry[int]) DayCount {
		return DayCount{Date: d.Key, Count: d.Value}
	})
	return fn.Take(fn.SortedDesc(days, func(d DayCount) int { return d.Count }), n)
}

// Evidence summarises how well a set of posts is sourced.
type Evidence struct {
	SourceDiversity   int `json:"source_diversity"`
	WitnessAccounts   int `json:"witness_accounts"`
	VerifiedIncidents int `json:"verified_incidents"`
}

var witnessMarkers = []string{"witness", "saw", "eyewitness"}

// EvidenceQuality counts distinct originating queries, first-hand accounts
// and posts above the verification threshold.
func EvidenceQuality(posts []domain.ScoredPost) Evidence {
	return Evidence{
		SourceDiversity: len(fn.Unique(fn.Map(posts, func(p domain.ScoredPost) string { return p.QuerySource }))),
		WitnessAccounts: fn.Count(posts, func(p domain.ScoredPost) bool {
			lower := strings.ToLower(p.Text)
			return slices.ContainsFunc(witnessMarkers, func(m string) bool { return strings.Contains(lower, m) })
		}),
		VerifiedIncidents: fn.Count(posts, func(p domain.ScoredPost) bool { return p.RelevanceScore > 80 }),
	}
}
