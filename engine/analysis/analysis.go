// Package analysis computes the aggregate sections of a report from a scored
// collection. Every section is a pure function of the posts and the
// analysis tables; Aggregator runs them concurrently.
package analysis

import (
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/centinela-gamma/centinela/engine/config"
	"github.com/centinela-gamma/centinela/engine/domain"
)

// Summary holds the six aggregate sections.
type Summary struct {
	Basic      BasicMetrics
	Bots       BotAnalysis
	Keywords   KeywordAnalysis
	Temporal   TemporalAnalysis
	Geographic GeographicAnalysis
	Violations ViolationAnalysis
}

// Aggregator computes a Summary.
type Aggregator struct {
	cfg    config.Analysis
	logger *slog.Logger
}

// NewAggregator creates an Aggregator. A nil logger uses slog.Default().
func NewAggregator(cfg config.Analysis, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{cfg: cfg, logger: logger}
}

// Run computes all sections over c. The posts slice is only read.
func (a *Aggregator) Run(c domain.Collection) Summary {
	start := time.Now()
	posts := c.Posts
	var s Summary
	var g errgroup.Group
	g.Go(func() error { s.Basic = Basic(posts, c.Metadata); return nil })
	g.Go(func() error { s.Bots = Bots(posts, a.cfg.Bots); return nil })
	g.Go(func() error { s.Keywords = Keywords(posts, a.cfg.Keywords); return nil })
	g.Go(func() error { s.Temporal = Temporal(posts, a.cfg.Temporal); return nil })
	g.Go(func() error { s.Geographic = Geographic(posts, a.cfg.Geography); return nil })
	g.Go(func() error { s.Violations = Violations(posts, a.cfg.Violations); return nil })
	_ = g.Wait()

	a.logger.Info("aggregation complete",
		"posts", len(posts),
		"critical", s.Basic.CriticalTweets,
		"bot_probability", s.Bots.BotProbabilityPercentage,
		"severity", s.Violations.SeverityLevel,
		"skipped_timestamps", s.Temporal.SkippedTimestamps,
		"duration", time.Since(start),
	)
	return s
}
