// Package scoring assigns keyword-derived relevance scores to posts.
package scoring

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/centinela-gamma/centinela/engine/config"
	"github.com/centinela-gamma/centinela/engine/domain"
	"github.com/centinela-gamma/centinela/pkg/fn"
)

// Score bounds.
const (
	MinScore = 0
	MaxScore = 100
)

// KeywordSet is an ordered list of phrases matched by case-insensitive
// substring containment. Overlapping phrases ("killed", "children killed")
// both match.
type KeywordSet struct {
	phrases []string
	lower   []string
}

// NewKeywordSet builds a KeywordSet, dropping empty phrases and phrases
// that repeat an earlier one case-insensitively. The first spelling wins.
func NewKeywordSet(phrases []string) KeywordSet {
	ks := KeywordSet{}
	seen := make(map[string]bool, len(phrases))
	for _, p := range phrases {
		lower := strings.ToLower(p)
		if p == "" || seen[lower] {
			continue
		}
		seen[lower] = true
		ks.phrases = append(ks.phrases, p)
		ks.lower = append(ks.lower, lower)
	}
	return ks
}

// Len returns the number of phrases.
func (ks KeywordSet) Len() int { return len(ks.phrases) }

// Match returns the phrases contained in text, in set order.
func (ks KeywordSet) Match(text string) []string {
	return ks.matchLower(strings.ToLower(text))
}

func (ks KeywordSet) matchLower(lower string) []string {
	var out []string
	for i, p := range ks.lower {
		if strings.Contains(lower, p) {
			out = append(out, ks.phrases[i])
		}
	}
	return out
}

// Result is the scorer output for one text.
type Result struct {
	RelevanceScore  int
	MatchedKeywords []string
	IsCritical      bool
}

// Scorer is pure and safe for concurrent use.
type Scorer struct {
	keywords    KeywordSet
	maxKeywords int
	base        int
	perKeyword  int
	regions     []string
	regionBonus int
	casualty    *regexp.Regexp
	casualtyBon int
	orgs        []string
	orgBonus    int
}

// New builds a Scorer from cfg.
func New(cfg config.Scoring) (*Scorer, error) {
	s := &Scorer{
		keywords:    NewKeywordSet(cfg.Keywords),
		maxKeywords: cfg.MaxKeywords,
		base:        cfg.Base,
		perKeyword:  cfg.PerKeyword,
		regions:     lowerAll(cfg.Regions),
		regionBonus: cfg.RegionBonus,
		casualtyBon: cfg.CasualtyBonus,
		orgs:        lowerAll(cfg.Orgs),
		orgBonus:    cfg.OrgBonus,
	}
	if cfg.CasualtyPattern != "" {
		re, err := regexp.Compile(cfg.CasualtyPattern)
		if err != nil {
			return nil, fmt.Errorf("scoring: casualty pattern: %w", err)
		}
		s.casualty = re
	}
	return s, nil
}

// MustNew is New for tables known to be valid.
func MustNew(cfg config.Scoring) *Scorer {
	s, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return s
}

// Keywords returns the scorer's keyword set.
func (s *Scorer) Keywords() KeywordSet { return s.keywords }

// Score never fails. Every distinct match counts towards the keyword bonus;
// only the first maxKeywords are reported.
func (s *Scorer) Score(text string) Result {
	lower := strings.ToLower(text)
	matched := s.keywords.matchLower(lower)

	score := s.base + s.perKeyword*len(matched)
	if containsAny(lower, s.regions) {
		score += s.regionBonus
	}
	if s.casualty != nil && s.casualty.MatchString(lower) {
		score += s.casualtyBon
	}
	if containsAny(lower, s.orgs) {
		score += s.orgBonus
	}

	kept := matched
	if s.maxKeywords > 0 && len(kept) > s.maxKeywords {
		kept = kept[:s.maxKeywords]
	}
	return Result{
		RelevanceScore:  clamp(score),
		MatchedKeywords: kept,
		IsCritical:      len(matched) > 0,
	}
}

// ScorePost annotates p.
func (s *Scorer) ScorePost(p domain.Post) domain.ScoredPost {
	r := s.Score(p.Text)
	kws := r.MatchedKeywords
	if kws == nil {
		kws = []string{}
	}
	return domain.ScoredPost{
		Post:             p,
		RelevanceScore:   r.RelevanceScore,
		IsCritical:       r.IsCritical,
		KeywordsDetected: kws,
	}
}

// ScoreAll scores posts with up to workers goroutines, preserving order.
func (s *Scorer) ScoreAll(posts []domain.Post, workers int) []domain.ScoredPost {
	return fn.ParMap(posts, workers, s.ScorePost)
}

// Stage adapts the scorer to a pipeline stage.
func (s *Scorer) Stage() fn.Stage[domain.Post, domain.ScoredPost] {
	return fn.MapStage(s.ScorePost)
}

func clamp(v int) int {
	if v < MinScore {
		return MinScore
	}
	if v > MaxScore {
		return MaxScore
	}
	return v
}

func containsAny(lower string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
