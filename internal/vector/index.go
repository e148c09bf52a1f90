// Package vector provides vector index and similarity search.
package vector

import (
	"context"
	"errors"
)

var (
	// ErrDimensionMismatch is returned when a vector's length disagrees with
	// the index's configured dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrInvalidTruncate is returned when Truncate is asked to grow the index.
	ErrInvalidTruncate = errors.New("truncate size exceeds index count")
)

// Index defines positional vector storage and exact similarity search.
// Positions are dense zero-based integers assigned in append order; they are
// never reassigned or reused. Truncate discards the tail and exists only for
// load-time repair.
type Index interface {
	Add(ctx context.Context, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*Match, error)
	Truncate(count int) error
	Save(path string) error
	Load(path string) error
	Count() int
	Close() error
}

// Match is a single vector search hit.
type Match struct {
	Position int
	Score    float64 // Inner product; equals cosine similarity for normalized vectors.
}
