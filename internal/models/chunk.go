// Package models defines core data structures for chunks, queries, and search results.
package models

// Chunk is a bounded window of extracted document text together with its
// provenance metadata. Chunks are immutable once created; the store assigns
// each one a dense position when it is added.
type Chunk struct {
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata"`
}

// Record is the persisted unit of the metadata store: one chunk at one
// position. The position is the record's array index, not a stored field.
type Record struct {
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata"`
}
