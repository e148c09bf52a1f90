package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/shirabe/internal/config"
	"github.com/hyperjump/shirabe/internal/embedding"
	"github.com/hyperjump/shirabe/internal/extract"
	"github.com/hyperjump/shirabe/internal/ingest"
	"github.com/hyperjump/shirabe/internal/models"
	"github.com/hyperjump/shirabe/internal/query"
	"github.com/hyperjump/shirabe/internal/registry"
	"github.com/hyperjump/shirabe/internal/store"
	"github.com/hyperjump/shirabe/internal/watcher"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	dir := t.TempDir()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Embedding.Dimensions = 32
	cfg.Storage.IndexPath = filepath.Join(dir, "index.bin")
	cfg.Storage.MetadataPath = filepath.Join(dir, "metadata.json")
	cfg.Storage.RegistryPath = filepath.Join(dir, "registry.db")

	vs, err := store.NewVectorStore(cfg.Storage.IndexPath, cfg.Storage.MetadataPath, 32)
	if err != nil {
		t.Fatalf("NewVectorStore: %v", err)
	}
	t.Cleanup(func() { vs.Close() })

	reg, err := registry.Open(cfg.Storage.RegistryPath)
	if err != nil {
		t.Fatalf("registry.Open: %v", err)
	}
	t.Cleanup(func() { reg.Close() })

	embedder := embedding.NewMockEmbedder(32)
	chunker, err := ingest.NewChunker(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	if err != nil {
		t.Fatalf("NewChunker: %v", err)
	}
	pipeline := ingest.NewPipeline(vs, embedder, chunker, extract.NewExtractor(), reg)
	engine := query.NewEngine(embedder, vs, &cfg.Query)

	return NewServer(engine, pipeline, vs, reg, cfg, zap.NewNop())
}

func postJSON(t *testing.T, handler http.HandlerFunc, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	r := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(data))
	w := httptest.NewRecorder()
	handler(w, r)
	return w
}

func TestHandleIngestAndQuery(t *testing.T) {
	srv := newTestServer(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	if err := os.WriteFile(path, []byte("the capital of france is paris"), 0644); err != nil {
		t.Fatal(err)
	}

	w := postJSON(t, srv.handleIngest, "/api/v1/ingest", models.IngestRequest{Path: path})
	if w.Code != http.StatusCreated {
		t.Fatalf("ingest status: got %d, body %s", w.Code, w.Body.String())
	}
	var ingestResp models.IngestResponse
	if err := json.NewDecoder(w.Body).Decode(&ingestResp); err != nil {
		t.Fatal(err)
	}
	if ingestResp.Documents != 1 || ingestResp.ChunksIngested == 0 {
		t.Errorf("ingest response: %+v", ingestResp)
	}

	w = postJSON(t, srv.handleQuery, "/api/v1/query", models.QueryRequest{
		Query: "the capital of france is paris",
		TopK:  1,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("query status: got %d, body %s", w.Code, w.Body.String())
	}
	var queryResp models.QueryResponse
	if err := json.NewDecoder(w.Body).Decode(&queryResp); err != nil {
		t.Fatal(err)
	}
	if queryResp.Total != 1 {
		t.Fatalf("query total: got %d", queryResp.Total)
	}
	if queryResp.Results[0].Content != "the capital of france is paris" {
		t.Errorf("top result: %q", queryResp.Results[0].Content)
	}
}

func TestHandleQuery_badRequests(t *testing.T) {
	srv := newTestServer(t)

	r := httptest.NewRequest(http.MethodPost, "/api/v1/query", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()
	srv.handleQuery(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("malformed body status: got %d", w.Code)
	}

	w = postJSON(t, srv.handleQuery, "/api/v1/query", models.QueryRequest{Query: "  "})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty query status: got %d", w.Code)
	}
}

func TestHandleIngest_badRequests(t *testing.T) {
	srv := newTestServer(t)

	w := postJSON(t, srv.handleIngest, "/api/v1/ingest", models.IngestRequest{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing path status: got %d", w.Code)
	}

	w = postJSON(t, srv.handleIngest, "/api/v1/ingest", models.IngestRequest{
		Path: filepath.Join(t.TempDir(), "missing.txt"),
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("missing file status: got %d", w.Code)
	}
}

func TestHandleStatus(t *testing.T) {
	srv := newTestServer(t)

	r := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	w := httptest.NewRecorder()
	srv.handleStatus(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if _, ok := out["vectors"]; !ok {
		t.Error("missing vectors field")
	}
	if _, ok := out["config"]; !ok {
		t.Error("missing config field")
	}
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t)
	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.handleHealth(w, r)
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
}

func TestHandleWatchDirectories(t *testing.T) {
	srv := newTestServer(t)

	// Not enabled yet.
	r := httptest.NewRequest(http.MethodGet, "/api/v1/watch/directories", nil)
	w := httptest.NewRecorder()
	srv.handleWatchDirectoriesList(w, r)
	if w.Code != http.StatusNotImplemented {
		t.Fatalf("not enabled status: got %d", w.Code)
	}

	watch := watcher.NewWatcher(nil, []string{".txt"}, true, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := watch.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer watch.Stop()
	srv.EnableWatch(watch, "")

	dir := t.TempDir()
	w = postJSON(t, srv.handleWatchDirectoriesAdd, "/api/v1/watch/directories", watchAddRequest{Path: dir})
	if w.Code != http.StatusCreated {
		t.Fatalf("add status: got %d, body %s", w.Code, w.Body.String())
	}

	r = httptest.NewRequest(http.MethodGet, "/api/v1/watch/directories", nil)
	w2 := httptest.NewRecorder()
	srv.handleWatchDirectoriesList(w2, r)
	var out struct {
		Directories []string `json:"directories"`
	}
	if err := json.NewDecoder(w2.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Directories) != 1 {
		t.Fatalf("directories: got %v", out.Directories)
	}

	r = httptest.NewRequest(http.MethodDelete, "/api/v1/watch/directories?path="+dir, nil)
	w3 := httptest.NewRecorder()
	srv.handleWatchDirectoriesRemove(w3, r)
	if w3.Code != http.StatusOK {
		t.Fatalf("remove status: got %d", w3.Code)
	}
	if len(srv.watch.Directories()) != 0 {
		t.Errorf("directories after remove: %v", srv.watch.Directories())
	}
}
