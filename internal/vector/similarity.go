package vector

// InnerProduct returns the inner product of two vectors. Embeddings are
// L2-normalized before storage, so this equals cosine similarity.
// Mismatched or empty vectors score zero.
func InnerProduct(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i] * b[i])
	}
	return dot
}
