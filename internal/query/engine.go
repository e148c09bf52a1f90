// Package query runs semantic retrieval over the vector store.
package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/shirabe/internal/config"
	"github.com/hyperjump/shirabe/internal/embedding"
	"github.com/hyperjump/shirabe/internal/metrics"
	"github.com/hyperjump/shirabe/internal/models"
	"github.com/hyperjump/shirabe/internal/store"
)

// ErrEmptyQuery is returned when the query text is blank.
var ErrEmptyQuery = fmt.Errorf("query text is empty")

// Engine embeds query text and retrieves the closest stored chunks.
type Engine struct {
	embedder embedding.Embedder
	store    *store.VectorStore
	config   *config.QueryConfig
	metrics  *metrics.Metrics // optional
	logger   *zap.Logger      // optional
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets a logger for per-query debug output.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics sets the Prometheus collectors updated per query.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates a query engine with the given dependencies.
func NewEngine(embedder embedding.Embedder, vs *store.VectorStore, cfg *config.QueryConfig, opts ...Option) *Engine {
	e := &Engine{
		embedder: embedder,
		store:    vs,
		config:   cfg,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Query embeds text and returns the topK most similar chunks.
// topK <= 0 uses the configured default; values above the configured
// maximum are capped.
func (e *Engine) Query(ctx context.Context, text string, topK int) (*models.QueryResponse, error) {
	startTime := time.Now()

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyQuery
	}
	if topK <= 0 {
		topK = e.config.DefaultTopK
	}
	if topK > e.config.MaxTopK {
		topK = e.config.MaxTopK
	}

	queryEmbedding, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}

	results, err := e.store.Search(ctx, queryEmbedding, topK)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	elapsed := time.Since(startTime)
	if e.metrics != nil {
		e.metrics.QueryDuration.Observe(elapsed.Seconds())
		e.metrics.QueryResultsCount.Observe(float64(len(results)))
	}
	if e.logger != nil {
		e.logger.Debug("query executed",
			zap.String("query", text),
			zap.Int("top_k", topK),
			zap.Int("results", len(results)),
			zap.Duration("elapsed", elapsed),
		)
	}

	return &models.QueryResponse{
		Results:   results,
		Total:     len(results),
		QueryTime: elapsed.Milliseconds(),
		Query:     text,
	}, nil
}
