// Package main implements the Centinela dashboard API server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/centinela-gamma/centinela/engine/config"
	"github.com/centinela-gamma/centinela/engine/dashboard"
	"github.com/centinela-gamma/centinela/engine/docstore"
	"github.com/centinela-gamma/centinela/engine/network"
	"github.com/centinela-gamma/centinela/engine/report"
	"github.com/centinela-gamma/centinela/pkg/env"
	"github.com/centinela-gamma/centinela/pkg/metrics"
	"github.com/centinela-gamma/centinela/pkg/mid"
)

// Config holds all environment-based configuration.
type Config struct {
	Port         string
	DataDir      string
	AnalysisFile string
	Region       string
	MaxIncidents int
	Neo4jURL     string
	Neo4jUser    string
	Neo4jPass    string
	CORSOrigin   string
}

func loadConfig() Config {
	return Config{
		Port:         env.Or("PORT", "8080"),
		DataDir:      env.Or("DATA_DIR", "./data"),
		AnalysisFile: env.Or("ANALYSIS_CONFIG", ""),
		Region:       env.Or("TARGET_REGION", "Palestine/Israel"),
		MaxIncidents: env.Int("MAX_INCIDENTS", dashboard.DefaultMaxIncidents),
		Neo4jURL:     env.Or("NEO4J_URL", ""),
		Neo4jUser:    env.Or("NEO4J_USER", "neo4j"),
		Neo4jPass:    env.Or("NEO4J_PASS", "password"),
		CORSOrigin:   env.Or("CORS_ORIGIN", "*"),
	}
}

func main() {
	env.Load(nil)
	logger := env.NewLogger(os.Stdout, "api")
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	acfg, err := config.LoadFile(cfg.AnalysisFile)
	if err != nil {
		return err
	}
	store, err := docstore.New(cfg.DataDir, logger)
	if err != nil {
		return err
	}

	opts := dashboard.Options{
		Analysis:     acfg,
		Region:       cfg.Region,
		MaxIncidents: cfg.MaxIncidents,
		Logger:       logger,
	}

	// --- Optional author network (Neo4j) ---
	if cfg.Neo4jURL != "" {
		driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURL, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
		if err != nil {
			return fmt.Errorf("neo4j driver: %w", err)
		}
		defer driver.Close(context.Background())
		opts.Coordination = network.New(driver, acfg)
		logger.Info("author network enabled", "url", cfg.Neo4jURL)
	}

	reg := metrics.NewRegistry()
	handler := newHandler(cfg, report.NewRepository(store), opts, reg, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port, "data_dir", cfg.DataDir)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// newHandler wires the routes and the middleware chain.
func newHandler(cfg Config, src dashboard.Source, opts dashboard.Options, reg *prometheus.Registry, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.Handle("GET /metrics", metrics.Handler(reg))
	dashboard.New(src, opts).Register(mux)

	route := func(r *http.Request) string {
		if _, pattern := mux.Handler(r); pattern != "" {
			return pattern
		}
		return "unmatched"
	}

	return mid.Chain(mux,
		mid.Recover(logger),
		mid.RequestID(),
		mid.Logger(logger),
		mid.Metrics(metrics.NewHTTP(reg), route),
		mid.CORS(cfg.CORSOrigin),
		mid.OTel("centinela-api"),
	)
}

// --- Handlers ---

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
