// Command processor turns the newest collection document into an aggregate
// report. It runs once, or polls and reprocesses whenever a newer
// collection appears.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/centinela-gamma/centinela/engine/analysis"
	"github.com/centinela-gamma/centinela/engine/config"
	"github.com/centinela-gamma/centinela/engine/docstore"
	"github.com/centinela-gamma/centinela/engine/domain"
	"github.com/centinela-gamma/centinela/engine/report"
	"github.com/centinela-gamma/centinela/pkg/env"
	"github.com/centinela-gamma/centinela/pkg/metrics"
)

// Config holds the processor settings.
type Config struct {
	DataDir      string
	AnalysisFile string
	PushURL      string
	Interval     time.Duration
}

func loadConfig() Config {
	return Config{
		DataDir:      env.Or("DATA_DIR", "./data"),
		AnalysisFile: env.Or("ANALYSIS_CONFIG", ""),
		PushURL:      env.Or("PUSHGATEWAY_URL", ""),
		Interval:     env.Duration("PROCESS_INTERVAL", 0),
	}
}

func main() {
	env.Load(nil)
	cfg := loadConfig()
	flag.DurationVar(&cfg.Interval, "interval", cfg.Interval, "polling interval (0 = one-shot)")
	flag.Parse()

	logger := env.NewLogger(os.Stdout, "processor")
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("processor exited with error", "err", err)
		os.Exit(1)
	}
}

// Processor builds and saves reports.
type Processor struct {
	repo    *report.Repository
	builder *report.Builder
	reg     *prometheus.Registry
	metrics *metrics.Pipeline
	pushURL string
	logger  *slog.Logger

	last string
}

func newProcessor(cfg Config, logger *slog.Logger) (*Processor, error) {
	acfg, err := config.LoadFile(cfg.AnalysisFile)
	if err != nil {
		return nil, err
	}
	store, err := docstore.New(cfg.DataDir, logger)
	if err != nil {
		return nil, err
	}
	reg := prometheus.NewRegistry()
	return &Processor{
		repo:    report.NewRepository(store),
		builder: report.NewBuilder(acfg, analysis.NewAggregator(acfg, logger)),
		reg:     reg,
		metrics: metrics.NewPipeline(reg),
		pushURL: cfg.PushURL,
		logger:  logger,
	}, nil
}

// Result describes one processing pass.
type Result struct {
	Report    report.Report
	Source    docstore.FileInfo
	Output    docstore.FileInfo
	Reduction float64
}

// Process reports on the newest collection. It returns skipped=true when
// that collection was already processed by this Processor.
func (p *Processor) Process(ctx context.Context) (res Result, skipped bool, err error) {
	start := time.Now()
	in, err := p.repo.LoadLatestCollection()
	if err != nil {
		return Result{}, false, err
	}
	if in.File.Path == p.last {
		return Result{}, true, nil
	}
	p.metrics.ObserveStage("load", start)

	buildStart := time.Now()
	rep := p.builder.Build(in)
	p.metrics.ObserveStage("report", buildStart)

	out, err := p.repo.SaveReport(rep)
	if err != nil {
		return Result{}, false, fmt.Errorf("save report: %w", err)
	}
	p.last = in.File.Path
	p.metrics.DocumentsWritten.WithLabelValues(docstore.KindReport).Inc()
	p.observe(rep)

	res = Result{Report: rep, Source: in.File, Output: out, Reduction: report.Reduction(in.File.Size, out.Size)}
	p.logger.Info("report written",
		"run_id", rep.Metadata.RunID,
		"source", in.File.Path,
		"output", out.Path,
		"posts", rep.Metadata.OriginalTweetsCount,
		"before_mb", in.File.SizeMB(),
		"after_mb", out.SizeMB(),
		"reduction_pct", analysis.Round1(res.Reduction),
		"severity", rep.WarCrimesAnalysis.SeverityLevel,
	)
	p.push(ctx)
	return res, false, nil
}

// observe exports the headline values of rep.
func (p *Processor) observe(rep report.Report) {
	g := p.metrics.Analysis
	g.WithLabelValues("total_posts").Set(float64(rep.BasicMetrics.TotalTweets))
	g.WithLabelValues("critical_percentage").Set(rep.BasicMetrics.CriticalPercentage)
	g.WithLabelValues("avg_relevance").Set(rep.BasicMetrics.AvgRelevanceScore)
	g.WithLabelValues("bot_probability").Set(rep.BotAnalysis.BotProbabilityPercentage)
	g.WithLabelValues("violation_severity").Set(rep.WarCrimesAnalysis.SeverityScore)
	g.WithLabelValues("skipped_timestamps").Set(float64(rep.TemporalAnalysis.SkippedTimestamps))
}

func (p *Processor) push(ctx context.Context) {
	if p.pushURL == "" {
		return
	}
	err := push.New(p.pushURL, "centinela_processor").Gatherer(p.reg).PushContext(ctx)
	if err != nil {
		p.logger.Warn("metrics push failed", "url", p.pushURL, "err", err)
	}
}

func run(ctx context.Context, cfg Config, logger *slog.Logger) error {
	p, err := newProcessor(cfg, logger)
	if err != nil {
		return err
	}
	if _, _, err := p.Process(ctx); err != nil {
		if cfg.Interval <= 0 || !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		logger.Info("no collection yet, waiting", "dir", cfg.DataDir)
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
			_, skipped, err := p.Process(ctx)
			switch {
			case errors.Is(err, domain.ErrNotFound):
				logger.Debug("no collection yet")
			case err != nil:
				logger.Error("processing pass failed", "err", err)
			case skipped:
				logger.Debug("latest collection already processed")
			}
		}
	}
}
