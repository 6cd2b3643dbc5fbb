package analysis

import (
	"strings"

	"github.com/centinela-gamma/centinela/engine/config"
	"github.com/centinela-gamma/centinela/engine/domain"
)

// GeographicAnalysis is the location section.
type GeographicAnalysis struct {
	TopLocations         Ordered[int] `json:"top_locations"`
	RegionalDistribution Ordered[int] `json:"regional_distribution"`
	TotalLocations       int          `json:"total_locations"`
	MostAffectedRegion   string       `json:"most_affected_region"`
}

// ClassifyRegion applies the rules in order and returns the first region
// whose pattern is a substring of the lower-cased location, else fallback.
func ClassifyRegion(location string, cfg config.Geography) string {
	lower := strings.ToLower(location)
	for _, rule := range cfg.Regions {
		for _, pat := range rule.Patterns {
			if strings.Contains(lower, strings.ToLower(pat)) {
				return rule.Name
			}
		}
	}
	return cfg.Fallback
}

// Geographic computes location frequencies and the regional rollup.
func Geographic(posts []domain.ScoredPost, cfg config.Geography) GeographicAnalysis {
	excluded := make(map[string]bool, len(cfg.Excluded))
	for _, e := range cfg.Excluded {
		excluded[e] = true
	}
	locations := newCounter[string]()
	for _, p := range posts {
		loc := strings.TrimSpace(p.Location)
		if loc == "" || excluded[loc] {
			continue
		}
		locations.add(loc, 1)
	}

	regions := make(Ordered[int], 0, len(cfg.Regions)+1)
	index := make(map[string]int, len(cfg.Regions)+1)
	for _, rule := range cfg.Regions {
		if _, ok := index[rule.Name]; !ok {
			index[rule.Name] = len(regions)
			regions = append(regions, Entry[int]{Key: rule.Name})
		}
	}
	if _, ok := index[cfg.Fallback]; !ok {
		index[cfg.Fallback] = len(regions)
		regions = append(regions, Entry[int]{Key: cfg.Fallback})
	}
	for _, loc := range locations.order {
		regions[index[ClassifyRegion(loc, cfg)]].Value += locations.get(loc)
	}

	most := ""
	best := -1
	for _, r := range regions {
		if r.Value > best {
			most, best = r.Key, r.Value
		}
	}
	return GeographicAnalysis{
		TopLocations:         toOrdered(locations.mostCommon(cfg.TopLocations)),
		RegionalDistribution: regions,
		TotalLocations:       locations.len(),
		MostAffectedRegion:   most,
	}
}
