// Command collector runs the configured query list against the recent-search
// API (or the simulator when no token is set), scores the results and either
// writes a collection document or streams the raw posts to the ingest
// service over NATS.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/centinela-gamma/centinela/engine/collect"
	"github.com/centinela-gamma/centinela/engine/config"
	"github.com/centinela-gamma/centinela/engine/docstore"
	"github.com/centinela-gamma/centinela/engine/domain"
	"github.com/centinela-gamma/centinela/engine/ingest"
	"github.com/centinela-gamma/centinela/engine/network"
	"github.com/centinela-gamma/centinela/engine/report"
	"github.com/centinela-gamma/centinela/engine/scoring"
	"github.com/centinela-gamma/centinela/engine/source"
	"github.com/centinela-gamma/centinela/pkg/env"
	"github.com/centinela-gamma/centinela/pkg/metrics"
	"github.com/centinela-gamma/centinela/pkg/natsutil"
	"github.com/centinela-gamma/centinela/pkg/resilience"
)

// Sinks.
const (
	SinkDocstore = "docstore"
	SinkNATS     = "nats"
)

// Config holds the collector settings.
type Config struct {
	DataDir        string
	AnalysisFile   string
	BearerToken    string
	SearchURL      string
	RequestsPerSec float64
	Budget         float64
	PageSize       int
	PagesPerQuery  int
	Concurrency    int
	SimulatedPosts int
	Sink           string
	NATSURL        string
	Neo4jURL       string
	Neo4jUser      string
	Neo4jPass      string
	MetricsAddr    string
	Interval       time.Duration
}

func loadConfig() Config {
	return Config{
		DataDir:        env.Or("DATA_DIR", "./data"),
		AnalysisFile:   env.Or("ANALYSIS_CONFIG", ""),
		BearerToken:    env.Or("X_BEARER_TOKEN", ""),
		SearchURL:      env.Or("SEARCH_BASE_URL", source.DefaultBaseURL),
		RequestsPerSec: env.Float("SEARCH_RPS", 1),
		Budget:         env.Float("COLLECT_BUDGET", collect.DefaultBudget),
		PageSize:       env.Int("COLLECT_PAGE_SIZE", source.MaxPageSize),
		PagesPerQuery:  env.Int("COLLECT_PAGES_PER_QUERY", 0),
		Concurrency:    env.Int("COLLECT_CONCURRENCY", collect.DefaultConcurrency),
		SimulatedPosts: env.Int("SIM_POSTS", source.DefaultSimulatedPosts),
		Sink:           env.Or("COLLECT_SINK", SinkDocstore),
		NATSURL:        env.Or("NATS_URL", ""),
		Neo4jURL:       env.Or("NEO4J_URL", ""),
		Neo4jUser:      env.Or("NEO4J_USER", "neo4j"),
		Neo4jPass:      env.Or("NEO4J_PASS", "password"),
		MetricsAddr:    env.Or("METRICS_ADDR", ":9091"),
		Interval:       env.Duration("COLLECT_INTERVAL", 0),
	}
}

func main() {
	loaded := env.Load(nil)
	cfg := loadConfig()
	flag.StringVar(&cfg.Sink, "sink", cfg.Sink, "where collected posts go: docstore or nats")
	flag.DurationVar(&cfg.Interval, "interval", cfg.Interval, "polling interval (0 = one-shot)")
	flag.Parse()

	logger := env.NewLogger(os.Stdout, "collector")
	slog.SetDefault(logger)
	logger.Debug("env files loaded", "files", loaded)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("collector exited with error", "err", err)
		os.Exit(1)
	}
}

// deps are the long-lived connections of one collector process.
type deps struct {
	analysis config.Analysis
	scorer   *scoring.Scorer
	repo     *report.Repository
	metrics  *metrics.Pipeline
	nc       *nats.Conn
	graph    *network.Store
	logger   *slog.Logger
}

func run(ctx context.Context, cfg Config, logger *slog.Logger) error {
	if cfg.Sink != SinkDocstore && cfg.Sink != SinkNATS {
		return fmt.Errorf("unknown sink %q", cfg.Sink)
	}
	if cfg.Sink == SinkNATS && cfg.NATSURL == "" {
		return errors.New("sink nats requires NATS_URL")
	}

	acfg, err := config.LoadFile(cfg.AnalysisFile)
	if err != nil {
		return err
	}
	scorer, err := scoring.New(acfg.Scoring)
	if err != nil {
		return fmt.Errorf("scorer: %w", err)
	}
	store, err := docstore.New(cfg.DataDir, logger)
	if err != nil {
		return err
	}

	reg := metrics.NewRegistry()
	d := deps{
		analysis: acfg,
		scorer:   scorer,
		repo:     report.NewRepository(store),
		metrics:  metrics.NewPipeline(reg),
		logger:   logger,
	}

	if cfg.MetricsAddr != "" {
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: metrics.Handler(reg), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "err", err)
			}
		}()
		defer srv.Close()
	}

	if cfg.NATSURL != "" {
		d.nc, err = nats.Connect(cfg.NATSURL, nats.Name("centinela-collector"))
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer d.nc.Close()
		logger.Info("connected to NATS", "url", cfg.NATSURL)
	}

	if cfg.Neo4jURL != "" {
		driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURL, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
		if err != nil {
			return fmt.Errorf("neo4j driver: %w", err)
		}
		defer driver.Close(context.WithoutCancel(ctx))
		d.graph = network.New(driver, acfg)
		if err := d.graph.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("neo4j schema: %w", err)
		}
		logger.Info("author network export enabled", "url", cfg.Neo4jURL)
	}

	if err := collectOnce(ctx, cfg, d); err != nil {
		return err
	}
	if cfg.Interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return nil
		case <-ticker.C:
			if err := collectOnce(ctx, cfg, d); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				logger.Error("collection pass failed", "err", err)
			}
		}
	}
}

// newFetcher returns a fresh page source so every pass starts from the
// newest results with a full request budget.
func newFetcher(cfg Config, d deps) (source.PageFetcher, bool) {
	if cfg.BearerToken == "" {
		return source.NewSimulator(cfg.SimulatedPosts, nil), true
	}
	gauge := d.metrics.BreakerState.WithLabelValues("search")
	return source.NewSearchClient(source.SearchConfig{
		BaseURL:           cfg.SearchURL,
		BearerToken:       cfg.BearerToken,
		RequestsPerSecond: cfg.RequestsPerSec,
		Breaker: resilience.BreakerOpts{
			OnStateChange: func(from, to resilience.State) {
				gauge.Set(float64(to))
				d.logger.Warn("search breaker state changed", "from", from.String(), "to", to.String())
			},
		},
	}, d.logger), false
}

func collectOnce(ctx context.Context, cfg Config, d deps) error {
	fetcher, simulated := newFetcher(cfg, d)
	if simulated {
		d.logger.Info("no bearer token configured, using simulated source", "posts", cfg.SimulatedPosts)
	}

	ccfg := collect.ConfigFrom(d.analysis)
	ccfg.Budget = cfg.Budget
	ccfg.PageSize = cfg.PageSize
	ccfg.PagesPerQuery = cfg.PagesPerQuery
	ccfg.Concurrency = cfg.Concurrency
	ccfg.Simulated = simulated

	c, err := collect.New(ccfg, collect.Deps{
		Fetcher: fetcher,
		Scorer:  d.scorer,
		Metrics: d.metrics,
		Logger:  d.logger,
	})
	if err != nil {
		return err
	}
	coll, err := c.Run(ctx)
	if err != nil {
		return fmt.Errorf("collect: %w", err)
	}

	switch cfg.Sink {
	case SinkNATS:
		if err := publish(ctx, d.nc, coll.Posts); err != nil {
			return err
		}
		d.logger.Info("posts published", "subject", ingest.RawSubject, "posts", len(coll.Posts))
	default:
		fi, err := d.repo.SaveCollection(coll)
		if err != nil {
			return fmt.Errorf("save collection: %w", err)
		}
		d.metrics.DocumentsWritten.WithLabelValues(docstore.KindCollection).Inc()
		d.logger.Info("collection saved", "path", fi.Path, "size_mb", fi.SizeMB(), "posts", len(coll.Posts))
	}

	if d.graph != nil {
		start := time.Now()
		if err := d.graph.SaveCollection(ctx, coll); err != nil {
			d.logger.Error("author network export failed", "err", err)
		} else {
			d.metrics.ObserveStage("network_export", start)
		}
	}
	return nil
}

// publishFlushTimeout bounds the wait for the server to acknowledge a
// published batch.
const publishFlushTimeout = 10 * time.Second

// publish sends the unscored posts; the ingest service scores them again
// with its own tables.
func publish(ctx context.Context, nc *nats.Conn, posts []domain.ScoredPost) error {
	for _, p := range posts {
		if err := natsutil.Publish(ctx, nc, ingest.RawSubject, p.Post); err != nil {
			return fmt.Errorf("publish %s: %w", p.ID, err)
		}
	}
	fctx, cancel := context.WithTimeout(ctx, publishFlushTimeout)
	defer cancel()
	if err := nc.FlushWithContext(fctx); err != nil {
		return fmt.Errorf("flush published posts: %w", err)
	}
	return nil
}
