// Command ingest consumes raw posts from NATS, validates and scores them,
// and writes scored batches as collection documents.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/centinela-gamma/centinela/engine/collect"
	"github.com/centinela-gamma/centinela/engine/config"
	"github.com/centinela-gamma/centinela/engine/docstore"
	"github.com/centinela-gamma/centinela/engine/ingest"
	"github.com/centinela-gamma/centinela/engine/report"
	"github.com/centinela-gamma/centinela/engine/scoring"
	"github.com/centinela-gamma/centinela/pkg/env"
	"github.com/centinela-gamma/centinela/pkg/metrics"
)

// Config holds the ingest service settings.
type Config struct {
	NATSURL       string
	DataDir       string
	AnalysisFile  string
	BatchSize     int
	FlushInterval time.Duration
	MetricsAddr   string
	DrainTimeout  time.Duration
}

func loadConfig() Config {
	return Config{
		NATSURL:       env.Or("NATS_URL", nats.DefaultURL),
		DataDir:       env.Or("DATA_DIR", "./data"),
		AnalysisFile:  env.Or("ANALYSIS_CONFIG", ""),
		BatchSize:     env.Int("INGEST_BATCH_SIZE", ingest.DefaultBatchSize),
		FlushInterval: env.Duration("INGEST_FLUSH_INTERVAL", ingest.DefaultFlushInterval),
		MetricsAddr:   env.Or("METRICS_ADDR", ":9092"),
		DrainTimeout:  env.Duration("INGEST_DRAIN_TIMEOUT", 10*time.Second),
	}
}

func main() {
	env.Load(nil)
	logger := env.NewLogger(os.Stdout, "ingest")
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, loadConfig(), logger); err != nil {
		logger.Error("ingest exited with error", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg Config, logger *slog.Logger) error {
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
	m := metrics.NewPipeline(reg)
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", metrics.Handler(reg))
		mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"ok"}`))
		})
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "err", err)
			}
		}()
		defer srv.Close()
	}

	closed := make(chan struct{})
	nc, err := nats.Connect(cfg.NATSURL,
		nats.Name("centinela-ingest"),
		nats.DrainTimeout(cfg.DrainTimeout),
		nats.ClosedHandler(func(*nats.Conn) { close(closed) }),
	)
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}

	batcher := ingest.NewBatcher(ingest.BatchConfig{
		Size:    cfg.BatchSize,
		Collect: collect.ConfigFrom(acfg),
	}, report.NewRepository(store), m, logger)

	consumer := ingest.NewConsumer(nc, ingest.Deps{
		Scorer:  scorer,
		Batcher: batcher,
		Metrics: m,
		Logger:  logger,
	})
	if _, err := consumer.Start(); err != nil {
		nc.Close()
		return err
	}
	logger.Info("ingest consuming", "subject", ingest.RawSubject, "queue", ingest.QueueGroup,
		"batch_size", cfg.BatchSize, "flush_interval", cfg.FlushInterval)

	// The batcher outlives ctx so messages still draining land in the final
	// flush.
	bctx, bcancel := context.WithCancel(context.WithoutCancel(ctx))
	batchDone := make(chan struct{})
	go func() {
		defer close(batchDone)
		batcher.Run(bctx, cfg.FlushInterval)
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received, draining")
	if err := nc.Drain(); err != nil {
		logger.Error("nats drain failed", "err", err)
		nc.Close()
	}
	<-closed
	bcancel()
	<-batchDone
	logger.Info("ingest stopped", "pending", batcher.Pending())
	return nil
}
