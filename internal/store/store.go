package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hyperjump/shirabe/internal/models"
	"github.com/hyperjump/shirabe/internal/vector"
	"go.uber.org/zap"
)

// ErrCountMismatch is returned when the number of vectors supplied to
// AddDocuments disagrees with the number of chunks.
var ErrCountMismatch = errors.New("vector count does not match chunk count")

// VectorStore owns one vector index and one record store sharing a single
// configured dimension. The invariant is that both hold the same count and
// the entries at each position describe the same chunk; it is restored at
// load time and preserved by every successful mutation.
type VectorStore struct {
	index     vector.Index
	records   *RecordStore
	indexPath string
	dimension int
	logger    *zap.Logger
	// Serializes mutations; searches share the read side.
	mu sync.RWMutex
}

// Option configures a VectorStore.
type Option func(*VectorStore)

// WithLogger sets a logger for repair and persistence events.
func WithLogger(l *zap.Logger) Option {
	return func(s *VectorStore) { s.logger = l }
}

// NewVectorStore loads (or creates) the index and metadata artifacts and
// repairs any count drift left by a partial write: both structures are
// truncated to the smaller count before the store accepts operations. The
// repair favors losing the most recent unacknowledged batch over leaving
// either artifact ahead of the other.
func NewVectorStore(indexPath, metadataPath string, dimension int, opts ...Option) (*VectorStore, error) {
	idx, err := vector.NewFlatIndex(dimension)
	if err != nil {
		return nil, err
	}
	if err := idx.Load(indexPath); err != nil {
		return nil, fmt.Errorf("load vector index: %w", err)
	}
	records := NewRecordStore(metadataPath)
	if err := records.Load(); err != nil {
		return nil, fmt.Errorf("load metadata: %w", err)
	}

	s := &VectorStore{
		index:     idx,
		records:   records,
		indexPath: indexPath,
		dimension: dimension,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.repair(); err != nil {
		return nil, err
	}
	return s, nil
}

// repair truncates both structures to their common prefix length and persists
// the corrected artifacts. Metadata is always rewritten after a repair; the
// index is rewritten only when it was the longer side.
func (s *VectorStore) repair() error {
	indexCount := s.index.Count()
	recordCount := s.records.Count()
	if indexCount == recordCount {
		return nil
	}
	minSize := indexCount
	if recordCount < minSize {
		minSize = recordCount
	}
	if s.logger != nil {
		s.logger.Warn("repairing index/metadata drift",
			zap.Int("index_count", indexCount),
			zap.Int("metadata_count", recordCount),
			zap.Int("repaired_count", minSize),
		)
	}
	if indexCount > minSize {
		if err := s.index.Truncate(minSize); err != nil {
			return fmt.Errorf("repair index: %w", err)
		}
		if err := s.index.Save(s.indexPath); err != nil {
			return fmt.Errorf("persist repaired index: %w", err)
		}
	}
	if err := s.records.Truncate(minSize); err != nil {
		return fmt.Errorf("repair metadata: %w", err)
	}
	if err := s.records.Save(); err != nil {
		return fmt.Errorf("persist repaired metadata: %w", err)
	}
	return nil
}

// AddDocuments appends one vector+chunk pair per position and persists both
// artifacts, index first. A persistence failure after the index write leaves
// the artifacts drifted; the next load repairs that by truncation, so a batch
// is only durable once both writes succeed.
func (s *VectorStore) AddDocuments(ctx context.Context, vectors [][]float32, chunks []models.Chunk) error {
	if len(vectors) == 0 || len(chunks) == 0 {
		return nil
	}
	for i, vec := range vectors {
		if len(vec) != s.dimension {
			return fmt.Errorf("%w: vector %d has %d, store expects %d", vector.ErrDimensionMismatch, i, len(vec), s.dimension)
		}
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("%w: %d vectors, %d chunks", ErrCountMismatch, len(vectors), len(chunks))
	}

	records := make([]models.Record, len(chunks))
	for i, chunk := range chunks {
		records[i] = models.Record{
			Content:  chunk.Content,
			Metadata: chunk.Metadata,
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.index.Add(ctx, vectors); err != nil {
		return fmt.Errorf("add vectors: %w", err)
	}
	s.records.Append(records)

	if err := s.index.Save(s.indexPath); err != nil {
		return fmt.Errorf("persist index: %w", err)
	}
	if err := s.records.Save(); err != nil {
		if s.logger != nil {
			s.logger.Warn("metadata persist failed after index persist; drift will be repaired on next load",
				zap.Error(err))
		}
		return fmt.Errorf("persist metadata: %w", err)
	}
	return nil
}

// Search returns up to topK records ranked by descending inner product of
// their vectors against query. An empty store returns an empty result.
// Positions past the metadata count are skipped; they can only appear inside
// the drift window and never after a clean load.
func (s *VectorStore) Search(ctx context.Context, query []float32, topK int) ([]*models.QueryResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.index.Count() == 0 {
		return nil, nil
	}
	matches, err := s.index.Search(ctx, query, topK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	results := make([]*models.QueryResult, 0, len(matches))
	for _, m := range matches {
		record, err := s.records.Get(m.Position)
		if err != nil {
			continue
		}
		results = append(results, &models.QueryResult{
			Content:  record.Content,
			Metadata: record.Metadata,
			Score:    m.Score,
		})
	}
	return results, nil
}

// Count returns the number of stored vector+record pairs.
func (s *VectorStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Count()
}

// Dimension returns the store's configured vector dimension.
func (s *VectorStore) Dimension() int {
	return s.dimension
}

// Close releases the underlying index.
func (s *VectorStore) Close() error {
	return s.index.Close()
}
