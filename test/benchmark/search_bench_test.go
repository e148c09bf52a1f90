package benchmark

import (
	"context"
	"strings"
	"testing"

	"github.com/hyperjump/shirabe/internal/embedding"
	"github.com/hyperjump/shirabe/internal/ingest"
	"github.com/hyperjump/shirabe/internal/vector"
)

func BenchmarkFlatIndexSearch(b *testing.B) {
	idx, err := vector.NewFlatIndex(384)
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()
	vecs := make([][]float32, 1000)
	for i := 0; i < 1000; i++ {
		vecs[i] = make([]float32, 384)
		vecs[i][0] = float32(i) / 1000
	}
	_ = idx.Add(ctx, vecs)
	query := make([]float32, 384)
	query[0] = 1.0
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = idx.Search(ctx, query, 10)
	}
}

func BenchmarkMockEmbedder_Embed(b *testing.B) {
	e := embedding.NewMockEmbedder(384)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e.Embed(ctx, "benchmark query text for embedding")
	}
}

func BenchmarkChunkerSplit(b *testing.B) {
	chunker, err := ingest.NewChunker(500, 100)
	if err != nil {
		b.Fatal(err)
	}
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 500)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = chunker.Split(text)
	}
}
