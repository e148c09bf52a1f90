package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/shirabe/internal/embedding"
	"github.com/hyperjump/shirabe/internal/extract"
	"github.com/hyperjump/shirabe/internal/metrics"
	"github.com/hyperjump/shirabe/internal/models"
	"github.com/hyperjump/shirabe/internal/registry"
	"github.com/hyperjump/shirabe/internal/store"
)

// Metadata keys attached to every stored chunk.
const (
	metaKeySourcePath   = "source_path"
	metaKeyDocumentName = "document_name"
	metaKeyDocumentID   = "document_id"
	metaKeyChunkIndex   = "chunk_index"
)

// Pipeline turns source files into stored vector+chunk pairs:
// extract, chunk, embed, add to the vector store, record in the registry.
type Pipeline struct {
	store     *store.VectorStore
	embedder  embedding.Embedder
	chunker   *Chunker
	extractor *extract.Extractor
	registry  *registry.SQLiteRegistry
	metrics   *metrics.Metrics // optional
	logger    *zap.Logger      // optional
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithLogger sets a logger for debug output (file ingested, file skipped, etc.).
func WithLogger(l *zap.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = l }
}

// WithMetrics sets the Prometheus collectors updated on ingest.
func WithMetrics(m *metrics.Metrics) PipelineOption {
	return func(p *Pipeline) { p.metrics = m }
}

// NewPipeline creates an ingestion pipeline with the given dependencies.
// reg may be nil; without a registry every file is re-ingested unconditionally.
func NewPipeline(
	vs *store.VectorStore,
	embedder embedding.Embedder,
	chunker *Chunker,
	extractor *extract.Extractor,
	reg *registry.SQLiteRegistry,
	opts ...PipelineOption,
) *Pipeline {
	p := &Pipeline{
		store:     vs,
		embedder:  embedder,
		chunker:   chunker,
		extractor: extractor,
		registry:  reg,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// IngestFile ingests one file and returns the number of chunks added.
// A file already ingested at the same mtime and size is skipped (returns 0).
// The store is append-only, so a changed file is ingested again as new
// positions; the registry keeps only the latest ingest record.
func (p *Pipeline) IngestFile(ctx context.Context, path string) (int, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return 0, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return 0, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("not a regular file: %s", absPath)
	}

	if p.registry != nil {
		unchanged, err := p.registry.Unchanged(ctx, absPath, info.ModTime().UnixNano(), info.Size())
		if err != nil {
			return 0, fmt.Errorf("registry lookup: %w", err)
		}
		if unchanged {
			if p.logger != nil {
				p.logger.Debug("skipping unchanged file", zap.String("path", absPath))
			}
			return 0, nil
		}
	}

	text, err := p.extractor.Extract(absPath)
	if err != nil {
		if p.metrics != nil && !errors.Is(err, extract.ErrUnsupportedType) {
			p.metrics.IngestErrorsTotal.Inc()
		}
		return 0, fmt.Errorf("extract content: %w", err)
	}

	texts := p.chunker.Split(text)
	docID := uuid.New().String()
	docName := filepath.Base(absPath)
	if len(texts) == 0 {
		// Nothing to store, but remember the file so it is not re-read.
		if p.registry != nil {
			err := p.registry.Put(ctx, &registry.Source{
				Path:       absPath,
				DocumentID: docID,
				Mtime:      info.ModTime().UnixNano(),
				Size:       info.Size(),
				Chunks:     0,
			})
			if err != nil {
				return 0, fmt.Errorf("registry update: %w", err)
			}
		}
		return 0, nil
	}

	chunks := make([]models.Chunk, len(texts))
	for i, content := range texts {
		chunks[i] = models.Chunk{
			Content: content,
			Metadata: map[string]interface{}{
				metaKeySourcePath:   absPath,
				metaKeyDocumentName: docName,
				metaKeyDocumentID:   docID,
				metaKeyChunkIndex:   i,
			},
		}
	}

	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		if p.metrics != nil {
			p.metrics.IngestErrorsTotal.Inc()
		}
		return 0, fmt.Errorf("embed chunks: %w", err)
	}

	if err := p.store.AddDocuments(ctx, vectors, chunks); err != nil {
		if p.metrics != nil {
			p.metrics.IngestErrorsTotal.Inc()
		}
		return 0, fmt.Errorf("store chunks: %w", err)
	}

	if p.registry != nil {
		err := p.registry.Put(ctx, &registry.Source{
			Path:       absPath,
			DocumentID: docID,
			Mtime:      info.ModTime().UnixNano(),
			Size:       info.Size(),
			Chunks:     len(chunks),
		})
		if err != nil {
			return 0, fmt.Errorf("registry update: %w", err)
		}
	}

	if p.metrics != nil {
		p.metrics.DocumentsIngestedTotal.Inc()
		p.metrics.ChunksIngestedTotal.Add(float64(len(chunks)))
		p.metrics.VectorCount.Set(float64(p.store.Count()))
	}
	if p.logger != nil {
		p.logger.Debug("file ingested",
			zap.String("path", absPath),
			zap.String("document_id", docID),
			zap.Int("chunks", len(chunks)),
		)
	}
	return len(chunks), nil
}

// IngestDirectory walks dir recursively and ingests each regular file with a
// supported extension. Returns the number of files that contributed chunks and
// the total chunks added; the first error encountered stops the walk.
func (p *Pipeline) IngestDirectory(ctx context.Context, dir string) (files, chunks int, err error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return 0, 0, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return 0, 0, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return 0, 0, fmt.Errorf("not a directory: %s", absDir)
	}
	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if !p.extractor.Supported(strings.ToLower(filepath.Ext(path))) {
			return nil
		}
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		n, ingestErr := p.IngestFile(ctx, path)
		if ingestErr != nil {
			return ingestErr
		}
		if n > 0 {
			files++
			chunks += n
		}
		return nil
	})
	return files, chunks, err
}

// IngestPath ingests a single file or a directory tree, whichever path is.
func (p *Pipeline) IngestPath(ctx context.Context, path string) (*models.IngestResponse, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat path: %w", err)
	}
	if info.IsDir() {
		files, chunks, err := p.IngestDirectory(ctx, path)
		if err != nil {
			return nil, err
		}
		return &models.IngestResponse{Documents: files, ChunksIngested: chunks}, nil
	}
	n, err := p.IngestFile(ctx, path)
	if err != nil {
		return nil, err
	}
	docs := 0
	if n > 0 {
		docs = 1
	}
	return &models.IngestResponse{Documents: docs, ChunksIngested: n}, nil
}
