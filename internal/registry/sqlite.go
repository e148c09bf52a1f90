// Package registry tracks which source files have been ingested so unchanged
// files are skipped on re-ingest. The vector store itself is append-only; the
// registry is the only place that knows a source file's latest ingest.
package registry

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Source is one ingested source file and the fingerprint it was ingested at.
type Source struct {
	Path       string
	DocumentID string
	Mtime      int64 // UnixNano at ingest time
	Size       int64
	Chunks     int
	IngestedAt time.Time
}

// SQLiteRegistry stores ingest records in a SQLite database.
type SQLiteRegistry struct {
	db *sql.DB
}

// Open opens or creates the registry database at dbPath and initializes the
// schema. Parent directories are created if they do not exist.
func Open(dbPath string) (*SQLiteRegistry, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create registry directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteRegistry{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sources (
		path TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		mtime INTEGER NOT NULL,
		size INTEGER NOT NULL,
		chunks INTEGER NOT NULL,
		ingested_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_sources_document_id ON sources(document_id);
	`
	_, err := db.Exec(schema)
	return err
}

// Get returns the ingest record for path, or nil if the path was never ingested.
func (r *SQLiteRegistry) Get(ctx context.Context, path string) (*Source, error) {
	var src Source
	err := r.db.QueryRowContext(ctx,
		`SELECT path, document_id, mtime, size, chunks, ingested_at
		 FROM sources WHERE path = ?`, path,
	).Scan(&src.Path, &src.DocumentID, &src.Mtime, &src.Size, &src.Chunks, &src.IngestedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &src, nil
}

// Put inserts or replaces the ingest record for src.Path.
func (r *SQLiteRegistry) Put(ctx context.Context, src *Source) error {
	src.IngestedAt = time.Now()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sources (path, document_id, mtime, size, chunks, ingested_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET
		   document_id = excluded.document_id,
		   mtime = excluded.mtime,
		   size = excluded.size,
		   chunks = excluded.chunks,
		   ingested_at = excluded.ingested_at`,
		src.Path, src.DocumentID, src.Mtime, src.Size, src.Chunks, src.IngestedAt,
	)
	return err
}

// Unchanged reports whether path was already ingested with the given mtime and
// size, meaning ingestion can skip it.
func (r *SQLiteRegistry) Unchanged(ctx context.Context, path string, mtime, size int64) (bool, error) {
	src, err := r.Get(ctx, path)
	if err != nil {
		return false, err
	}
	if src == nil {
		return false, nil
	}
	return src.Mtime == mtime && src.Size == size, nil
}

// CountSources returns the number of ingested source files.
func (r *SQLiteRegistry) CountSources(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sources`).Scan(&count)
	return count, err
}

// CountChunks returns the total number of chunks across all ingested sources.
func (r *SQLiteRegistry) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(chunks), 0) FROM sources`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (r *SQLiteRegistry) Close() error {
	return r.db.Close()
}
