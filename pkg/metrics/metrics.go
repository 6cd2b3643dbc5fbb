// Package metrics defines the Prometheus collectors shared by the centinela
// binaries and serves them over HTTP.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "centinela"

// NewRegistry returns a registry with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Pipeline holds collection, ingestion and processing metrics.
type Pipeline struct {
	PostsFetched     *prometheus.CounterVec
	PostsScored      prometheus.Counter
	PostsCritical    prometheus.Counter
	Requests         *prometheus.CounterVec
	Messages         *prometheus.CounterVec
	BatchesFlushed   prometheus.Counter
	DocumentsWritten *prometheus.CounterVec
	StageDuration    *prometheus.HistogramVec
	BreakerState     *prometheus.GaugeVec
	Analysis         *prometheus.GaugeVec
}

// NewPipeline creates and registers the pipeline collectors on reg.
func NewPipeline(reg prometheus.Registerer) *Pipeline {
	m := &Pipeline{
		PostsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace, Name: "posts_fetched_total",
			Help: "Posts returned by the source, by query.",
		}, []string{"query"}),
		PostsScored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace, Name: "posts_scored_total",
			Help: "Posts run through the scorer.",
		}),
		PostsCritical: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace, Name: "posts_critical_total",
			Help: "Scored posts flagged critical.",
		}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace, Name: "source_requests_total",
			Help: "Page requests to the source, by outcome.",
		}, []string{"outcome"}),
		Messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace, Name: "ingest_messages_total",
			Help: "Ingested messages, by outcome.",
		}, []string{"outcome"}),
		BatchesFlushed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace, Name: "ingest_batches_flushed_total",
			Help: "Scored batches written by the ingest service.",
		}),
		DocumentsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace, Name: "documents_written_total",
			Help: "Documents persisted, by kind.",
		}, []string{"kind"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace, Name: "stage_duration_seconds",
			Help:    "Duration of pipeline stages.",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"stage"}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace, Name: "breaker_state",
			Help: "Circuit breaker state (0 closed, 1 open, 2 half-open), by upstream.",
		}, []string{"upstream"}),
		Analysis: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace, Name: "analysis_value",
			Help: "Headline values of the latest report, by name.",
		}, []string{"name"}),
	}
	reg.MustRegister(
		m.PostsFetched, m.PostsScored, m.PostsCritical, m.Requests, m.Messages,
		m.BatchesFlushed, m.DocumentsWritten, m.StageDuration, m.BreakerState, m.Analysis,
	)
	return m
}

// ObserveStage records the time since start for stage.
func (m *Pipeline) ObserveStage(stage string, start time.Time) {
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// HTTP holds request metrics for the API server.
type HTTP struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewHTTP creates and registers the HTTP collectors on reg.
func NewHTTP(reg prometheus.Registerer) *HTTP {
	m := &HTTP{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace, Name: "http_requests_total",
			Help: "HTTP requests, by method, route and status.",
		}, []string{"method", "route", "status"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace, Name: "http_request_duration_seconds",
			Help:    "HTTP request latency, by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	reg.MustRegister(m.Requests, m.Duration)
	return m
}

// Observe records one finished request.
func (m *HTTP) Observe(method, route string, status int, d time.Duration) {
	m.Requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.Duration.WithLabelValues(method, route).Observe(d.Seconds())
}
