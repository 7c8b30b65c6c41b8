// Package metrics defines the Prometheus collectors used by the scoring
// service and the extraction pipeline, and exposes an HTTP handler for
// scraping.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors.
type Metrics struct {
	HTTPRequestsTotal       *prometheus.CounterVec
	HTTPRequestDuration     *prometheus.HistogramVec
	HTTPRequestsInFlight    prometheus.Gauge
	ScoresTotal             *prometheus.CounterVec
	ScoreLatency            *prometheus.HistogramVec
	ScoreErrorsTotal        *prometheus.CounterVec
	FeatureVectorsTotal     *prometheus.CounterVec
	FeatureExtractionErrors *prometheus.CounterVec
	TopicsProcessedTotal    prometheus.Counter
	RM3ExpansionsTotal      prometheus.Counter
	RM3ExpandedTerms        prometheus.Histogram
	CacheHitsTotal          prometheus.Counter
	CacheMissesTotal        prometheus.Counter
	ExtractionJobsTotal     *prometheus.CounterVec
	IndexedDocuments        prometheus.Gauge
}

// New creates the collectors and registers them with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates the collectors and registers them with reg. Tests
// pass a fresh prometheus.NewRegistry() so repeated construction is safe.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		ScoresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scores_total",
				Help: "Relevance scores computed, by model and whether RM3 feedback was applied.",
			},
			[]string{"model", "feedback"},
		),
		ScoreLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "score_latency_seconds",
				Help:    "Latency of a single document score in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
			},
			[]string{"model"},
		),
		ScoreErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "score_errors_total",
				Help: "Failed score requests by error kind.",
			},
			[]string{"kind"},
		),
		FeatureVectorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feature_vectors_total",
				Help: "Feature vectors produced, by provider (live or file).",
			},
			[]string{"provider"},
		),
		FeatureExtractionErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feature_extraction_errors_total",
				Help: "Feature vectors that could not be produced, by provider.",
			},
			[]string{"provider"},
		),
		TopicsProcessedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "topics_processed_total",
				Help: "Topics run through the extraction pipeline.",
			},
		),
		RM3ExpansionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rm3_expansions_total",
				Help: "Queries expanded with RM3 feedback.",
			},
		),
		RM3ExpandedTerms: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rm3_expanded_terms",
				Help:    "Number of terms in RM3-expanded queries.",
				Buckets: []float64{1, 2, 5, 10, 15, 20, 30, 50},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of score cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of score cache misses.",
			},
		),
		ExtractionJobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "extraction_jobs_total",
				Help: "Extraction jobs consumed from Kafka, by status.",
			},
			[]string{"status"},
		),
		IndexedDocuments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "indexed_documents",
				Help: "Documents held by the in-memory index.",
			},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.ScoresTotal,
		m.ScoreLatency,
		m.ScoreErrorsTotal,
		m.FeatureVectorsTotal,
		m.FeatureExtractionErrors,
		m.TopicsProcessedTotal,
		m.RM3ExpansionsTotal,
		m.RM3ExpandedTerms,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.ExtractionJobsTotal,
		m.IndexedDocuments,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// StartServer serves /metrics on port until ctx is cancelled.
func StartServer(ctx context.Context, port int) {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", Handler())
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()
	go func() {
		slog.Info("metrics server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", "error", err)
		}
	}()
}
