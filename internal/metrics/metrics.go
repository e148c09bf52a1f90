// Package metrics defines the Prometheus collectors for ingestion and query
// serving and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	DocumentsIngestedTotal prometheus.Counter
	ChunksIngestedTotal    prometheus.Counter
	IngestErrorsTotal      prometheus.Counter
	QueryDuration          prometheus.Histogram
	QueryResultsCount      prometheus.Histogram
	VectorCount            prometheus.Gauge
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		DocumentsIngestedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "documents_ingested_total",
				Help: "Total source documents ingested into the vector store.",
			},
		),
		ChunksIngestedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "chunks_ingested_total",
				Help: "Total text chunks embedded and stored.",
			},
		),
		IngestErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ingest_errors_total",
				Help: "Total ingest attempts that failed.",
			},
		),
		QueryDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "query_duration_seconds",
				Help:    "Semantic query latency in seconds, embedding included.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
		),
		QueryResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "query_results_count",
				Help:    "Number of results returned per query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
			},
		),
		VectorCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "vector_store_count",
				Help: "Number of vector+record pairs currently in the store.",
			},
		),
	}

	prometheus.MustRegister(
		m.DocumentsIngestedTotal,
		m.ChunksIngestedTotal,
		m.IngestErrorsTotal,
		m.QueryDuration,
		m.QueryResultsCount,
		m.VectorCount,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
