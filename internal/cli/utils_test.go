package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hyperjump/shirabe/internal/models"
)

func sampleResponse() *models.QueryResponse {
	return &models.QueryResponse{
		Query:     "test query",
		QueryTime: 42,
		Total:     1,
		Results: []*models.QueryResult{
			{
				Content: "Content here",
				Score:   0.9,
				Metadata: map[string]interface{}{
					"document_name": "doc.txt",
					"source_path":   "/tmp/doc.txt",
					"chunk_index":   0,
				},
			},
		},
	}
}

func TestWriteQueryResults_JSON(t *testing.T) {
	response := sampleResponse()
	var buf bytes.Buffer
	if err := WriteQueryResults(&buf, response, OutputJSON); err != nil {
		t.Fatalf("WriteQueryResults(json): %v", err)
	}
	var decoded models.QueryResponse
	if err := json.NewDecoder(strings.NewReader(buf.String())).Decode(&decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if decoded.Query != response.Query || decoded.QueryTime != response.QueryTime {
		t.Errorf("decoded query=%q query_time=%d, want query=%q query_time=%d",
			decoded.Query, decoded.QueryTime, response.Query, response.QueryTime)
	}
	if len(decoded.Results) != 1 || decoded.Results[0].Content != "Content here" {
		t.Errorf("decoded results: %+v", decoded.Results)
	}
}

func TestWriteQueryResults_JSON_empty(t *testing.T) {
	response := &models.QueryResponse{Query: "q"}
	var buf bytes.Buffer
	if err := WriteQueryResults(&buf, response, OutputJSON); err != nil {
		t.Fatalf("WriteQueryResults(json): %v", err)
	}
	var decoded models.QueryResponse
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("empty response JSON decode: %v", err)
	}
	if decoded.Total != 0 || len(decoded.Results) != 0 {
		t.Errorf("expected empty results, got %+v", decoded)
	}
}

func TestWriteQueryResults_Text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteQueryResults(&buf, sampleResponse(), OutputText); err != nil {
		t.Fatalf("WriteQueryResults(text): %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Found 1 results in 42ms", "Score: 0.9000", "doc.txt", "Content here"} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q:\n%s", want, out)
		}
	}
}
