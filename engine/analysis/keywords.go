package analysis

import (
	"github.com/centinela-gamma/centinela/engine/config"
	"github.com/centinela-gamma/centinela/engine/domain"
)

// CriticalIndicators sums three headline categories.
type CriticalIndicators struct {
	ViolenceMentions  int `json:"violence_mentions"`
	VictimMentions    int `json:"victim_mentions"`
	WarCrimesMentions int `json:"war_crimes_mentions"`
}

// KeywordAnalysis is the keyword frequency section.
type KeywordAnalysis struct {
	TopKeywords           Ordered[int]          `json:"top_keywords"`
	TotalKeywordsDetected int                   `json:"total_keywords_detected"`
	UniqueKeywords        int                   `json:"unique_keywords"`
	CategorizedKeywords   Ordered[Ordered[int]] `json:"categorized_keywords"`
	CategoryTotals        Ordered[int]          `json:"category_totals"`
	CriticalIndicators    CriticalIndicators    `json:"critical_indicators"`
}

// keywordFrequencies counts detected keywords over posts. Ties keep
// first-seen order.
func keywordFrequencies(posts []domain.ScoredPost) *counter[string] {
	freq := newCounter[string]()
	for _, p := range posts {
		for _, kw := range p.KeywordsDetected {
			freq.add(kw, 1)
		}
	}
	return freq
}

// TopKeywords returns the n most frequent detected keywords.
func TopKeywords(posts []domain.ScoredPost, n int) []domain.KeywordCount {
	rs := keywordFrequencies(posts).mostCommon(n)
	out := make([]domain.KeywordCount, len(rs))
	for i, r := range rs {
		out[i] = domain.KeywordCount{Keyword: r.key, Count: r.count}
	}
	return out
}

// Keywords computes the keyword section.
func Keywords(posts []domain.ScoredPost, cfg config.Keywords) KeywordAnalysis {
	freq := keywordFrequencies(posts)

	categorized := make(Ordered[Ordered[int]], 0, len(cfg.Categories))
	totals := make(Ordered[int], 0, len(cfg.Categories))
	for _, cat := range cfg.Categories {
		hits := Ordered[int]{}
		sum := 0
		for _, kw := range cat.Keywords {
			if n := freq.get(kw); n > 0 {
				hits = append(hits, Entry[int]{Key: kw, Value: n})
				sum += n
			}
		}
		categorized = append(categorized, Entry[Ordered[int]]{Key: cat.Name, Value: hits})
		totals = append(totals, Entry[int]{Key: cat.Name, Value: sum})
	}

	sumOf := func(name string) int {
		n, _ := totals.Get(name)
		return n
	}
	return KeywordAnalysis{
		TopKeywords:           toOrdered(freq.mostCommon(cfg.Top)),
		TotalKeywordsDetected: freq.total(),
		UniqueKeywords:        freq.len(),
		CategorizedKeywords:   categorized,
		CategoryTotals:        totals,
		CriticalIndicators: CriticalIndicators{
			ViolenceMentions:  sumOf("violence"),
			VictimMentions:    sumOf("victims"),
			WarCrimesMentions: sumOf("legal"),
		},
	}
}
