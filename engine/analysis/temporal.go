package analysis

import (
	"fmt"
	"strconv"

	"github.com/centinela-gamma/centinela/engine/config"
	"github.com/centinela-gamma/centinela/engine/domain"
)

// TemporalAnalysis buckets posts by hour of day and calendar date.
type TemporalAnalysis struct {
	HourlyDistribution Ordered[int] `json:"hourly_distribution"`
	DailyDistribution  Ordered[int] `json:"daily_distribution"`
	PeakHours          []string     `json:"peak_hours"`
	PeakDays           []string     `json:"peak_days"`
	TotalTimeSpanDays  int          `json:"total_time_span_days"`
	SkippedTimestamps  int          `json:"skipped_timestamps"`
}

// Temporal computes the time distributions. Posts whose timestamp is
// missing or unparseable are counted in SkippedTimestamps and otherwise
// ignored. Hours and dates are read in the timestamp's own offset.
func Temporal(posts []domain.ScoredPost, cfg config.Temporal) TemporalAnalysis {
	hours := newCounter[int]()
	days := newCounter[string]()
	skipped := 0
	for _, p := range posts {
		if p.CreatedAt == "" {
			skipped++
			continue
		}
		ts, err := domain.ParseTimestamp(p.CreatedAt)
		if err != nil {
			skipped++
			continue
		}
		hours.add(ts.Hour(), 1)
		days.add(ts.Format("2006-01-02"), 1)
	}

	peakHours := []string{}
	for _, r := range hours.mostCommon(cfg.TopHours) {
		peakHours = append(peakHours, fmt.Sprintf("%02d:00 (%d tweets)", r.key, r.count))
	}
	peakDays := []string{}
	for _, r := range days.mostCommon(cfg.TopDays) {
		peakDays = append(peakDays, fmt.Sprintf("%s (%d tweets)", r.key, r.count))
	}

	hourly := make(Ordered[int], 0, hours.len())
	for _, h := range hours.order {
		hourly = append(hourly, Entry[int]{Key: strconv.Itoa(h), Value: hours.get(h)})
	}
	return TemporalAnalysis{
		HourlyDistribution: hourly,
		DailyDistribution:  days.ordered(),
		PeakHours:          peakHours,
		PeakDays:           peakDays,
		TotalTimeSpanDays:  days.len(),
		SkippedTimestamps:  skipped,
	}
}
