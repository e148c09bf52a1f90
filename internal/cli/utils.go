// Package cli provides CLI output utilities for Shirabe.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hyperjump/shirabe/internal/models"
	"github.com/hyperjump/shirabe/pkg/utils"
)

// QueryOutputFormat is the format for query result output.
type QueryOutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText QueryOutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON QueryOutputFormat = "json"
)

// WriteQueryResults writes query results to w in the given format.
// Use OutputJSON for parseable output consumable by other apps.
func WriteQueryResults(w io.Writer, response *models.QueryResponse, format QueryOutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(response)
	default:
		writeQueryResultsText(w, response)
		return nil
	}
}

func writeQueryResultsText(w io.Writer, response *models.QueryResponse) {
	fmt.Fprintf(w, "\nFound %d results in %dms\n\n", response.Total, response.QueryTime)
	for i, result := range response.Results {
		writeOneResult(w, i+1, result)
	}
}

func writeOneResult(w io.Writer, rank int, result *models.QueryResult) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Rank: %d | Score: %.4f\n", rank, result.Score)
	if name, ok := result.Metadata["document_name"].(string); ok && name != "" {
		fmt.Fprintf(w, "Document: %s", name)
		if idx, ok := result.Metadata["chunk_index"]; ok {
			fmt.Fprintf(w, " (chunk %v)", idx)
		}
		fmt.Fprintln(w)
	}
	if path, ok := result.Metadata["source_path"].(string); ok && path != "" {
		fmt.Fprintf(w, "Path: %s\n", path)
	}
	fmt.Fprintf(w, "\n%s\n", utils.Truncate(result.Content, 200))
	fmt.Fprintln(w)
}
