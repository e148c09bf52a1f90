package models

// QueryRequest is the payload for a semantic search query.
type QueryRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

// QueryResult is a single ranked hit: the chunk content, its metadata, and the
// inner-product score against the query embedding.
type QueryResult struct {
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata"`
	Score    float64                `json:"score"`
}

// QueryResponse is the response for a query request. Results are ordered by
// descending score.
type QueryResponse struct {
	Results   []*QueryResult `json:"results"`
	Total     int            `json:"total"`
	QueryTime int64          `json:"query_time_ms"`
	Query     string         `json:"query"`
}

// IngestRequest is the payload for ingesting a local file or directory.
type IngestRequest struct {
	Path string `json:"path"`
}

// IngestResponse reports what an ingest call added to the store.
type IngestResponse struct {
	Documents      int `json:"documents"`
	ChunksIngested int `json:"chunks_ingested"`
}
