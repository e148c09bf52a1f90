// Package vector provides a flat (brute-force) vector index with exact
// inner-product search. Exact search is chosen deliberately over approximate
// structures: results are reproducible and there is no recall tuning.
package vector

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// FlatIndex stores fixed-dimension vectors in append order and searches them
// by computing the inner product of the query against every stored vector.
type FlatIndex struct {
	dimension int
	vectors   [][]float32
	mu        sync.RWMutex
}

// NewFlatIndex creates an empty flat index with the given dimension.
func NewFlatIndex(dimension int) (*FlatIndex, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", dimension)
	}
	return &FlatIndex{
		dimension: dimension,
		vectors:   make([][]float32, 0),
	}, nil
}

// Add appends vectors to the end of the index. The append order becomes the
// assigned positions. Fails without modifying the index if any vector's
// length differs from the index dimension.
func (f *FlatIndex) Add(ctx context.Context, vectors [][]float32) error {
	for _, vec := range vectors {
		if len(vec) != f.dimension {
			return fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(vec), f.dimension)
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, vec := range vectors {
		cp := make([]float32, f.dimension)
		copy(cp, vec)
		f.vectors = append(f.vectors, cp)
	}
	return nil
}

// Search returns the top-k stored vectors by inner product against query,
// ordered by descending score with ties broken by lower position. k is
// clamped to [1, count]; an empty index returns an empty result without error.
func (f *FlatIndex) Search(ctx context.Context, query []float32, k int) ([]*Match, error) {
	if len(query) != f.dimension {
		return nil, fmt.Errorf("%w: query has %d, expected %d", ErrDimensionMismatch, len(query), f.dimension)
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if len(f.vectors) == 0 {
		return nil, nil
	}
	if k < 1 {
		k = 1
	}
	if k > len(f.vectors) {
		k = len(f.vectors)
	}
	matches := make([]*Match, len(f.vectors))
	for i, vec := range f.vectors {
		matches[i] = &Match{Position: i, Score: InnerProduct(query, vec)}
	}
	// Stable sort keeps equal scores in ascending position order.
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	return matches[:k], nil
}

// Truncate discards all vectors at positions >= count. It is a no-op when
// count equals the current size and fails when count exceeds it.
func (f *FlatIndex) Truncate(count int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if count > len(f.vectors) {
		return fmt.Errorf("%w: %d > %d", ErrInvalidTruncate, count, len(f.vectors))
	}
	if count < 0 {
		count = 0
	}
	f.vectors = f.vectors[:count]
	return nil
}

// Save persists the index to path. Directory is created if needed.
// Format: dimension (4), n (4), then n vectors of dimension*4 bytes, little endian.
func (f *FlatIndex) Save(path string) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer file.Close()
	if err := binary.Write(file, binary.LittleEndian, uint32(f.dimension)); err != nil {
		return fmt.Errorf("write dimension: %w", err)
	}
	if err := binary.Write(file, binary.LittleEndian, uint32(len(f.vectors))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for i, vec := range f.vectors {
		if _, err := file.Write(float32SliceToBytes(vec)); err != nil {
			return fmt.Errorf("write vector %d: %w", i, err)
		}
	}
	return nil
}

// Load reads the index from path and replaces the in-memory contents.
// The file's dimension must match. A missing file is not an error and leaves
// the index unchanged.
func (f *FlatIndex) Load(path string) error {
	if path == "" {
		return nil
	}
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open index file: %w", err)
	}
	defer file.Close()
	var dim, n uint32
	if err := binary.Read(file, binary.LittleEndian, &dim); err != nil {
		return fmt.Errorf("read dimension: %w", err)
	}
	if int(dim) != f.dimension {
		return fmt.Errorf("%w: file has %d, index expects %d", ErrDimensionMismatch, dim, f.dimension)
	}
	if err := binary.Read(file, binary.LittleEndian, &n); err != nil {
		return fmt.Errorf("read count: %w", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	vectors := make([][]float32, 0, n)
	buf := make([]byte, f.dimension*4)
	for i := uint32(0); i < n; i++ {
		if _, err := io.ReadFull(file, buf); err != nil {
			return fmt.Errorf("read vector %d: %w", i, err)
		}
		vectors = append(vectors, bytesToFloat32Slice(buf))
	}
	f.vectors = vectors
	return nil
}

// Count returns the number of vectors in the index.
func (f *FlatIndex) Count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.vectors)
}

// Close is a no-op for FlatIndex.
func (f *FlatIndex) Close() error {
	return nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
