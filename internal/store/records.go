// Package store composes the vector index with an ordered record store and
// keeps the two positionally aligned across restarts.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hyperjump/shirabe/internal/models"
)

var (
	// ErrOutOfRange is returned when a record position is beyond the stored count.
	ErrOutOfRange = errors.New("record position out of range")
	// ErrInvalidTruncate is returned when Truncate is asked to grow the store.
	ErrInvalidTruncate = errors.New("truncate size exceeds record count")
)

// RecordStore holds the ordered sequence of content+metadata records and
// persists it as a JSON array. The array index is each record's position.
type RecordStore struct {
	path    string
	records []models.Record
}

// NewRecordStore creates an empty record store persisting to path.
func NewRecordStore(path string) *RecordStore {
	return &RecordStore{
		path:    path,
		records: make([]models.Record, 0),
	}
}

// Load reads the record sequence from disk. A missing file leaves the store
// empty. A malformed file is treated as empty so recovery stays best-effort;
// other read errors are returned.
func (r *RecordStore) Load() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read metadata file: %w", err)
	}
	var records []models.Record
	if err := json.Unmarshal(data, &records); err != nil {
		r.records = make([]models.Record, 0)
		return nil
	}
	r.records = records
	return nil
}

// Save writes the full record sequence to disk, creating the parent directory
// if needed. The whole artifact is rewritten on every call; appends are
// batch-sized, so the O(total) rewrite is acceptable.
func (r *RecordStore) Save() error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return fmt.Errorf("create metadata dir: %w", err)
	}
	data, err := json.MarshalIndent(r.records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := os.WriteFile(r.path, data, 0644); err != nil {
		return fmt.Errorf("write metadata file: %w", err)
	}
	return nil
}

// Append adds records to the end, preserving order.
func (r *RecordStore) Append(records []models.Record) {
	r.records = append(r.records, records...)
}

// Get returns the record at position.
func (r *RecordStore) Get(position int) (models.Record, error) {
	if position < 0 || position >= len(r.records) {
		return models.Record{}, fmt.Errorf("%w: %d (count %d)", ErrOutOfRange, position, len(r.records))
	}
	return r.records[position], nil
}

// Truncate discards all records at positions >= count.
func (r *RecordStore) Truncate(count int) error {
	if count > len(r.records) {
		return fmt.Errorf("%w: %d > %d", ErrInvalidTruncate, count, len(r.records))
	}
	if count < 0 {
		count = 0
	}
	r.records = r.records[:count]
	return nil
}

// Count returns the number of records.
func (r *RecordStore) Count() int {
	return len(r.records)
}
