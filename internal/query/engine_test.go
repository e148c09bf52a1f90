package query

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hyperjump/shirabe/internal/config"
	"github.com/hyperjump/shirabe/internal/embedding"
	"github.com/hyperjump/shirabe/internal/models"
	"github.com/hyperjump/shirabe/internal/store"
)

func newTestEngine(t *testing.T) (*Engine, *store.VectorStore, embedding.Embedder) {
	t.Helper()

	dir := t.TempDir()
	vs, err := store.NewVectorStore(
		filepath.Join(dir, "index.bin"),
		filepath.Join(dir, "metadata.json"),
		32,
	)
	if err != nil {
		t.Fatalf("NewVectorStore: %v", err)
	}
	t.Cleanup(func() { vs.Close() })

	embedder := embedding.NewMockEmbedder(32)
	cfg := &config.QueryConfig{DefaultTopK: 5, MaxTopK: 10}
	return NewEngine(embedder, vs, cfg), vs, embedder
}

func addChunks(t *testing.T, vs *store.VectorStore, embedder embedding.Embedder, texts ...string) {
	t.Helper()
	vectors, err := embedder.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	chunks := make([]models.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = models.Chunk{Content: text, Metadata: map[string]interface{}{"chunk_index": i}}
	}
	if err := vs.AddDocuments(context.Background(), vectors, chunks); err != nil {
		t.Fatalf("AddDocuments: %v", err)
	}
}

func TestQueryReturnsClosestChunk(t *testing.T) {
	engine, vs, embedder := newTestEngine(t)
	addChunks(t, vs, embedder,
		"the weather today is sunny",
		"stock prices fell sharply",
		"a recipe for miso soup",
	)

	resp, err := engine.Query(context.Background(), "stock prices fell sharply", 1)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if resp.Total != 1 || len(resp.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", resp.Total)
	}
	// The mock embedder is deterministic, so the exact text matches with score 1.
	if resp.Results[0].Content != "stock prices fell sharply" {
		t.Errorf("top result = %q", resp.Results[0].Content)
	}
	if resp.Results[0].Score < 0.999 {
		t.Errorf("score = %f, want ~1.0", resp.Results[0].Score)
	}
	if resp.Query != "stock prices fell sharply" {
		t.Errorf("query echo = %q", resp.Query)
	}
}

func TestQueryDefaultTopK(t *testing.T) {
	engine, vs, embedder := newTestEngine(t)
	addChunks(t, vs, embedder, "one", "two", "three", "four", "five", "six", "seven")

	resp, err := engine.Query(context.Background(), "anything", 0)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if resp.Total != 5 {
		t.Errorf("total = %d, want default top k 5", resp.Total)
	}
}

func TestQueryMaxTopKCap(t *testing.T) {
	engine, vs, embedder := newTestEngine(t)
	texts := make([]string, 20)
	for i := range texts {
		texts[i] = string(rune('a' + i))
	}
	addChunks(t, vs, embedder, texts...)

	resp, err := engine.Query(context.Background(), "anything", 500)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if resp.Total != 10 {
		t.Errorf("total = %d, want max top k 10", resp.Total)
	}
}

func TestQueryEmptyText(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	if _, err := engine.Query(context.Background(), "   ", 5); !errors.Is(err, ErrEmptyQuery) {
		t.Fatalf("expected ErrEmptyQuery, got %v", err)
	}
}

func TestQueryEmptyStore(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	resp, err := engine.Query(context.Background(), "anything", 5)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if resp.Total != 0 || len(resp.Results) != 0 {
		t.Errorf("expected no results, got %+v", resp)
	}
}
