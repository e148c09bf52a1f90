package vector

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
)

func TestFlatIndex_AddSearch(t *testing.T) {
	idx, err := NewFlatIndex(3)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	ctx := context.Background()

	vecs := [][]float32{
		{1, 0, 0},
		{0.9, 0.1, 0},
		{0, 1, 0},
	}
	if err := idx.Add(ctx, vecs); err != nil {
		t.Fatal(err)
	}
	if idx.Count() != 3 {
		t.Errorf("Count=%d", idx.Count())
	}

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Position != 0 {
		t.Errorf("top result should be position 0, got %d", results[0].Position)
	}
	if results[1].Position != 1 {
		t.Errorf("second result should be position 1, got %d", results[1].Position)
	}
}

func TestFlatIndex_AddDimensionMismatch(t *testing.T) {
	idx, _ := NewFlatIndex(3)
	ctx := context.Background()
	err := idx.Add(ctx, [][]float32{{1, 0, 0}, {1, 0}})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	if idx.Count() != 0 {
		t.Errorf("failed Add must not modify the index, Count=%d", idx.Count())
	}
}

func TestFlatIndex_SearchEmpty(t *testing.T) {
	idx, _ := NewFlatIndex(2)
	results, err := idx.Search(context.Background(), []float32{1, 0}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("empty index should return no results, got %d", len(results))
	}
}

func TestFlatIndex_SearchClampsK(t *testing.T) {
	idx, _ := NewFlatIndex(2)
	ctx := context.Background()
	_ = idx.Add(ctx, [][]float32{{1, 0}, {0, 1}})

	results, err := idx.Search(ctx, []float32{1, 0}, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Errorf("k above count should clamp to count, got %d results", len(results))
	}

	results, err = idx.Search(ctx, []float32{1, 0}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Errorf("k below 1 should clamp to 1, got %d results", len(results))
	}
}

func TestFlatIndex_SearchTieBreak(t *testing.T) {
	idx, _ := NewFlatIndex(2)
	ctx := context.Background()
	// Identical vectors score identically; lower positions must come first.
	_ = idx.Add(ctx, [][]float32{{0, 1}, {0, 1}, {0, 1}})
	results, err := idx.Search(ctx, []float32{0, 1}, 3)
	if err != nil {
		t.Fatal(err)
	}
	for i, m := range results {
		if m.Position != i {
			t.Errorf("tie at rank %d should be position %d, got %d", i, i, m.Position)
		}
	}
}

func TestFlatIndex_SearchSorted(t *testing.T) {
	idx, _ := NewFlatIndex(2)
	ctx := context.Background()
	_ = idx.Add(ctx, [][]float32{{0.5, 0.5}, {1, 0}, {0, 1}, {0.7, 0.3}})
	results, err := idx.Search(ctx, []float32{1, 0}, 4)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("scores not non-increasing at rank %d: %f > %f", i, results[i].Score, results[i-1].Score)
		}
	}
}

func TestFlatIndex_Truncate(t *testing.T) {
	idx, _ := NewFlatIndex(2)
	ctx := context.Background()
	_ = idx.Add(ctx, [][]float32{{1, 0}, {0, 1}, {1, 1}})

	if err := idx.Truncate(3); err != nil {
		t.Fatalf("truncate to current count should be a no-op, got %v", err)
	}
	if err := idx.Truncate(1); err != nil {
		t.Fatal(err)
	}
	if idx.Count() != 1 {
		t.Errorf("Count=%d after truncate", idx.Count())
	}
	if err := idx.Truncate(5); !errors.Is(err, ErrInvalidTruncate) {
		t.Errorf("expected ErrInvalidTruncate, got %v", err)
	}
}

func TestFlatIndex_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.bin")
	idx, _ := NewFlatIndex(3)
	ctx := context.Background()
	vecs := [][]float32{
		{0.1, 0.2, 0.3},
		{-1, 0, 1},
	}
	if err := idx.Add(ctx, vecs); err != nil {
		t.Fatal(err)
	}
	if err := idx.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, _ := NewFlatIndex(3)
	if err := loaded.Load(path); err != nil {
		t.Fatal(err)
	}
	if loaded.Count() != 2 {
		t.Fatalf("loaded Count=%d", loaded.Count())
	}
	// Scores against every stored position must match the original vectors
	// exactly; self-similarity need not win for unnormalized vectors, so
	// round-tripping is checked score by score rather than by top hit.
	for _, query := range vecs {
		results, err := loaded.Search(ctx, query, 2)
		if err != nil {
			t.Fatal(err)
		}
		if len(results) != 2 {
			t.Fatalf("expected 2 results, got %d", len(results))
		}
		for _, m := range results {
			wantScore := InnerProduct(query, vecs[m.Position])
			if math.Abs(m.Score-wantScore) > 1e-6 {
				t.Errorf("position %d score %f, want %f", m.Position, m.Score, wantScore)
			}
		}
	}
}

func TestFlatIndex_LoadMissingFile(t *testing.T) {
	idx, _ := NewFlatIndex(3)
	if err := idx.Load(filepath.Join(t.TempDir(), "nope.bin")); err != nil {
		t.Fatalf("missing file should not error, got %v", err)
	}
	if idx.Count() != 0 {
		t.Errorf("Count=%d", idx.Count())
	}
}

func TestFlatIndex_LoadDimensionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.bin")
	idx, _ := NewFlatIndex(2)
	_ = idx.Add(context.Background(), [][]float32{{1, 0}})
	if err := idx.Save(path); err != nil {
		t.Fatal(err)
	}
	other, _ := NewFlatIndex(3)
	if err := other.Load(path); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}
