// Package collect runs the configured query list through a page source,
// scores what comes back and assembles a collection document.
package collect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/centinela-gamma/centinela/engine/config"
	"github.com/centinela-gamma/centinela/engine/domain"
	"github.com/centinela-gamma/centinela/engine/scoring"
	"github.com/centinela-gamma/centinela/engine/source"
	"github.com/centinela-gamma/centinela/pkg/metrics"
)

// Defaults applied by New.
const (
	DefaultBudget       = 2.0
	DefaultCostPerPost  = 0.000001
	DefaultConcurrency  = 4
	DefaultTopKeywords  = 10
	DefaultTargetRegion = "Palestine/Israel"
)

// Config controls a collection run.
type Config struct {
	Queries  []string
	PageSize int
	// PagesPerQuery bounds the pages fetched per query; <= 0 pages until
	// the source is exhausted or the request budget runs out.
	PagesPerQuery int
	Budget        float64
	CostPerPost   float64
	// MaxRequests defaults to Budget*1000.
	MaxRequests  int
	Concurrency  int
	ScoreWorkers int
	TopKeywords  int
	TargetRegion string
	Simulated    bool
	Indicators   config.CollectionIndicators
}

// ConfigFrom returns a Config with the query list and indicator tables of a.
func ConfigFrom(a config.Analysis) Config {
	return Config{Queries: a.Queries, Indicators: a.CollectionIndicators}
}

// WithDefaults returns c with zero fields set to their defaults.
func (c Config) WithDefaults() Config {
	if c.PageSize <= 0 {
		c.PageSize = source.MaxPageSize
	}
	if c.Budget <= 0 {
		c.Budget = DefaultBudget
	}
	if c.CostPerPost <= 0 {
		c.CostPerPost = DefaultCostPerPost
	}
	if c.MaxRequests <= 0 {
		c.MaxRequests = int(c.Budget * 1000)
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.TopKeywords <= 0 {
		c.TopKeywords = DefaultTopKeywords
	}
	if c.TargetRegion == "" {
		c.TargetRegion = DefaultTargetRegion
	}
	return c
}

// Deps holds the collaborators of a Collector.
type Deps struct {
	Fetcher source.PageFetcher
	Scorer  *scoring.Scorer
	Metrics *metrics.Pipeline
	Logger  *slog.Logger
	Now     func() time.Time
	NewID   func() string
}

// Collector fetches, deduplicates and scores posts for every query.
type Collector struct {
	cfg      Config
	deps     Deps
	requests atomic.Int64
}

// New creates a Collector. Fetcher and Scorer are required.
func New(cfg Config, deps Deps) (*Collector, error) {
	if deps.Fetcher == nil {
		return nil, errors.New("collect: nil fetcher")
	}
	if deps.Scorer == nil {
		return nil, errors.New("collect: nil scorer")
	}
	if len(cfg.Queries) == 0 {
		return nil, errors.New("collect: no queries")
	}
	cfg = cfg.WithDefaults()
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewPipeline(prometheus.NewRegistry())
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	return &Collector{cfg: cfg, deps: deps}, nil
}

// RequestsMade reports the page requests issued so far.
func (c *Collector) RequestsMade() int { return int(c.requests.Load()) }

// reserve claims one request from the budget.
func (c *Collector) reserve() bool {
	for {
		n := c.requests.Load()
		if n >= int64(c.cfg.MaxRequests) {
			return false
		}
		if c.requests.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Run executes one collection pass. Per-query fetch errors are logged and
// end that query; only cancellation of ctx fails the run.
func (c *Collector) Run(ctx context.Context) (domain.Collection, error) {
	log := c.deps.Logger
	start := c.deps.Now()

	raw, err := c.fetchAll(ctx)
	if err != nil {
		return domain.Collection{}, err
	}
	c.deps.Metrics.ObserveStage("fetch", start)

	posts, dropped := dedupe(raw, log)
	scoreStart := time.Now()
	scored := c.deps.Scorer.ScoreAll(posts, c.cfg.ScoreWorkers)
	c.deps.Metrics.ObserveStage("score", scoreStart)
	c.deps.Metrics.PostsScored.Add(float64(len(scored)))

	meta := BuildMetadata(scored, c.cfg, Run{
		ID:           c.deps.NewID(),
		Start:        start,
		End:          c.deps.Now(),
		RequestsMade: c.RequestsMade(),
	})
	c.deps.Metrics.PostsCritical.Add(float64(meta.Statistics.CriticalTweets))

	log.Info("collection complete",
		"run_id", meta.RunID,
		"posts", len(scored),
		"dropped", dropped,
		"critical", meta.Statistics.CriticalTweets,
		"requests", meta.ExtractionInfo.RequestsMade,
		"duration", meta.ExtractionInfo.ExtractionDuration,
	)
	return domain.Collection{Metadata: meta, Posts: scored}, nil
}

// fetchAll pages every query concurrently. Results are kept per query so
// the flattened order follows the configured query order.
func (c *Collector) fetchAll(ctx context.Context) ([]domain.Post, error) {
	results := make([][]domain.Post, len(c.cfg.Queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)
	for i, q := range c.cfg.Queries {
		g.Go(func() error {
			posts, err := c.fetchQuery(gctx, q)
			results[i] = posts
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var all []domain.Post
	for _, r := range results {
		all = append(all, r...)
	}
	return all, nil
}

func (c *Collector) fetchQuery(ctx context.Context, query string) ([]domain.Post, error) {
	log := c.deps.Logger.With("query", query)
	var out []domain.Post
	for page := 0; c.cfg.PagesPerQuery <= 0 || page < c.cfg.PagesPerQuery; page++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if !c.reserve() {
			log.Warn("request budget exhausted", "max_requests", c.cfg.MaxRequests)
			c.deps.Metrics.Requests.WithLabelValues("budget_exhausted").Inc()
			return out, nil
		}
		posts, err := c.deps.Fetcher.FetchPage(ctx, query, c.cfg.PageSize)
		switch {
		case errors.Is(err, source.ErrNoMorePages):
			c.deps.Metrics.Requests.WithLabelValues("exhausted").Inc()
			return out, nil
		case err != nil:
			if ctx.Err() != nil {
				return out, fmt.Errorf("collect %q: %w", query, ctx.Err())
			}
			log.Error("fetch page failed", "page", page, "error", err)
			c.deps.Metrics.Requests.WithLabelValues("error").Inc()
			return out, nil
		}
		c.deps.Metrics.Requests.WithLabelValues("ok").Inc()
		c.deps.Metrics.PostsFetched.WithLabelValues(query).Add(float64(len(posts)))
		out = append(out, posts...)
	}
	return out, nil
}

// dedupe normalizes posts, drops invalid ones and keeps the first post for
// every ID.
func dedupe(posts []domain.Post, log *slog.Logger) ([]domain.Post, int) {
	seen := make(map[string]bool, len(posts))
	out := make([]domain.Post, 0, len(posts))
	dropped := 0
	for _, p := range posts {
		p = domain.Normalize(p)
		if err := domain.ValidatePost(p); err != nil {
			log.Warn("dropping invalid post", "id", p.ID, "error", err)
			dropped++
			continue
		}
		if seen[p.ID] {
			dropped++
			continue
		}
		seen[p.ID] = true
		out = append(out, p)
	}
	return out, dropped
}
