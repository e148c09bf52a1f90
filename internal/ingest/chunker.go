// Package ingest provides document chunking and the ingestion pipeline.
package ingest

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidChunkConfig is returned when the chunk size does not exceed the overlap.
var ErrInvalidChunkConfig = errors.New("chunk size must be greater than chunk overlap")

// Chunker splits text into overlapping character windows. It is stateless and
// deterministic: the same text and parameters always produce the same chunks.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap (in characters).
// Requires chunkSize > chunkOverlap >= 0.
func NewChunker(chunkSize, chunkOverlap int) (*Chunker, error) {
	if chunkOverlap < 0 || chunkSize <= chunkOverlap {
		return nil, fmt.Errorf("%w: size %d, overlap %d", ErrInvalidChunkConfig, chunkSize, chunkOverlap)
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}, nil
}

// Split slides a window of chunkSize characters across text, advancing by
// chunkSize-chunkOverlap each step. Carriage returns are removed and each
// window is trimmed; windows that trim to empty are dropped without affecting
// the stride. Empty or all-whitespace input yields no chunks.
func (c *Chunker) Split(text string) []string {
	clean := strings.TrimSpace(strings.ReplaceAll(text, "\r", ""))
	if clean == "" {
		return nil
	}
	runes := []rune(clean)
	step := c.chunkSize - c.chunkOverlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + c.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}
