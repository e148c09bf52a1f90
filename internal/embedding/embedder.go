// Package embedding provides text embedding via ONNX with an LRU cache, and a
// deterministic mock for builds without a model.
package embedding

import "context"

// Embedder produces fixed-dimension vector embeddings for text. Vectors are
// L2-normalized before they are returned, so inner product over them behaves
// as cosine similarity.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
