// Package config holds the tunable tables that drive scoring, aggregation
// and example selection. Everything the analysis core reads comes from one
// Analysis value so that tests and deployments can swap tables without
// touching code.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned by Validate and LoadFile for unusable tables.
var ErrInvalidConfig = errors.New("invalid analysis config")

// Analysis is the complete set of analysis tables.
type Analysis struct {
	Scoring    Scoring     `yaml:"scoring"`
	Bots       Bots        `yaml:"bots"`
	Keywords   Keywords    `yaml:"keywords"`
	Temporal   Temporal    `yaml:"temporal"`
	Geography  Geography   `yaml:"geography"`
	Violations []Indicator `yaml:"violations"`
	// CollectionIndicators are the four coarse counters written into a
	// collection document's metadata at collection time.
	CollectionIndicators CollectionIndicators `yaml:"collection_indicators"`
	Examples             Examples             `yaml:"examples"`
	Sampling             Quotas               `yaml:"sampling"`
	Queries              []string             `yaml:"queries"`
}

// Scoring configures the relevance scorer.
type Scoring struct {
	Keywords        []string `yaml:"keywords"`
	MaxKeywords     int      `yaml:"max_keywords"`
	Base            int      `yaml:"base"`
	PerKeyword      int      `yaml:"per_keyword"`
	Regions         []string `yaml:"regions"`
	RegionBonus     int      `yaml:"region_bonus"`
	CasualtyPattern string   `yaml:"casualty_pattern"`
	CasualtyBonus   int      `yaml:"casualty_bonus"`
	Orgs            []string `yaml:"orgs"`
	OrgBonus        int      `yaml:"org_bonus"`
}

// Bots configures the linear bot-likelihood heuristic.
type Bots struct {
	PrefixLength          int     `yaml:"prefix_length"`
	HighVolumePosts       int     `yaml:"high_volume_posts"`
	RepeatedMinPosts      int     `yaml:"repeated_min_posts"`
	UniquenessThreshold   float64 `yaml:"uniqueness_threshold"`
	SpamMinPosts          int     `yaml:"spam_min_posts"`
	SpamMaxAvgEngagement  float64 `yaml:"spam_max_avg_engagement"`
	HighVolumeRatio       float64 `yaml:"high_volume_ratio"`
	HighVolumeWeight      float64 `yaml:"high_volume_weight"`
	RepeatedRatio         float64 `yaml:"repeated_ratio"`
	RepeatedWeight        float64 `yaml:"repeated_weight"`
	AvgPostsPerAuthor     float64 `yaml:"avg_posts_per_author"`
	AvgPostsWeight        float64 `yaml:"avg_posts_weight"`
	SpamRatio             float64 `yaml:"spam_ratio"`
	SpamWeight            float64 `yaml:"spam_weight"`
	MaxProbability        float64 `yaml:"max_probability"`
	SimilaritySampleLimit int     `yaml:"similarity_sample_limit"`
}

// Keywords configures keyword frequency analysis.
type Keywords struct {
	Top        int        `yaml:"top"`
	Categories []Category `yaml:"categories"`
}

// Category is a named keyword group.
type Category struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// Temporal configures the time distributions.
type Temporal struct {
	TopHours int `yaml:"top_hours"`
	TopDays  int `yaml:"top_days"`
}

// Geography configures location bucketing.
type Geography struct {
	TopLocations int          `yaml:"top_locations"`
	Excluded     []string     `yaml:"excluded"`
	Regions      []RegionRule `yaml:"regions"`
	Fallback     string       `yaml:"fallback"`
}

// RegionRule maps a location to Name when any pattern is a substring of the
// lower-cased location. Rules are evaluated in order.
type RegionRule struct {
	Name     string   `yaml:"name"`
	Patterns []string `yaml:"patterns"`
}

// Indicator is one violation boolean. A post trips it when it carries any of
// Keywords, or when its lower-cased text contains any Subject together with
// any Harm.
type Indicator struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords,omitempty"`
	Subjects []string `yaml:"subjects,omitempty"`
	Harms    []string `yaml:"harms,omitempty"`
}

// CollectionIndicators lists the keywords behind each collection counter.
type CollectionIndicators struct {
	CivilianCasualties     []string `yaml:"civilian_casualties"`
	InfrastructureAttacks  []string `yaml:"infrastructure_attacks"`
	SettlementActivities   []string `yaml:"settlement_activities"`
	HumanitarianViolations []string `yaml:"humanitarian_violations"`
}

// Examples configures representative example selection.
type Examples struct {
	CriticalMinRelevance int      `yaml:"critical_min_relevance"`
	CriticalLimit        int      `yaml:"critical_limit"`
	Subsets              []Subset `yaml:"subsets"`
	HighEngagementLimit  int      `yaml:"high_engagement_limit"`
	TextLimit            int      `yaml:"text_limit"`
}

// Subset is a named keyword-membership example group.
type Subset struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
	Limit    int      `yaml:"limit"`
}

// Quotas bounds a sampled projection of a collection.
type Quotas struct {
	Critical         int `yaml:"critical"`
	HighRelevance    int `yaml:"high_relevance"`
	Regular          int `yaml:"regular"`
	HighRelevanceMin int `yaml:"high_relevance_min"`
}

// LoadFile overlays the YAML document at path onto Default. Lists in the
// file replace the default lists wholesale. A missing file yields the
// defaults.
func LoadFile(path string) (Analysis, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Analysis{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Analysis{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Analysis{}, err
	}
	return cfg, nil
}

// Validate rejects tables the analysis core cannot run with.
func (a Analysis) Validate() error {
	switch {
	case len(a.Scoring.Keywords) == 0:
		return fmt.Errorf("%w: scoring.keywords is empty", ErrInvalidConfig)
	case a.Scoring.MaxKeywords <= 0:
		return fmt.Errorf("%w: scoring.max_keywords must be positive", ErrInvalidConfig)
	case a.Bots.PrefixLength <= 0:
		return fmt.Errorf("%w: bots.prefix_length must be positive", ErrInvalidConfig)
	case len(a.Geography.Regions) == 0:
		return fmt.Errorf("%w: geography.regions is empty", ErrInvalidConfig)
	case a.Geography.Fallback == "":
		return fmt.Errorf("%w: geography.fallback is empty", ErrInvalidConfig)
	}
	if a.Scoring.CasualtyPattern != "" {
		if _, err := regexp.Compile(a.Scoring.CasualtyPattern); err != nil {
			return fmt.Errorf("%w: scoring.casualty_pattern: %v", ErrInvalidConfig, err)
		}
	}
	seen := make(map[string]bool)
	for _, ind := range a.Violations {
		if ind.Name == "" {
			return fmt.Errorf("%w: violation indicator without name", ErrInvalidConfig)
		}
		if seen[ind.Name] {
			return fmt.Errorf("%w: duplicate violation indicator %q", ErrInvalidConfig, ind.Name)
		}
		seen[ind.Name] = true
		if len(ind.Keywords) == 0 && (len(ind.Subjects) == 0 || len(ind.Harms) == 0) {
			return fmt.Errorf("%w: violation indicator %q matches nothing", ErrInvalidConfig, ind.Name)
		}
	}
	for _, q := range []int{a.Sampling.Critical, a.Sampling.HighRelevance, a.Sampling.Regular} {
		if q < 0 {
			return fmt.Errorf("%w: sampling quotas must not be negative", ErrInvalidConfig)
		}
	}
	return nil
}

// Category returns the named keyword category, or nil.
func (k Keywords) Category(name string) []string {
	for _, c := range k.Categories {
		if c.Name == name {
			return c.Keywords
		}
	}
	return nil
}
