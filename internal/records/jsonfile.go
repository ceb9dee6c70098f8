package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

var _ Store = (*FileStore)(nil)

// FileStore keeps all records in one JSON array on disk, newest first.
// Writes are serialized so concurrent appends cannot lose each other.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store backed by the JSON file at path. The file is
// created on first append.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &FileStore{path: path}, nil
}

// Close is a no-op; the file is not held open.
func (s *FileStore) Close() error {
	return nil
}

// Append prepends rec and rewrites the file.
func (s *FileStore) Append(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.readAll()
	if err != nil {
		return err
	}

	items = append([]Record{rec}, items...)
	return s.writeAll(items)
}

// ListRecent returns up to n records, newest first.
func (s *FileStore) ListRecent(ctx context.Context, n int) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	items, err := s.readAll()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if n < 0 {
		n = 0
	}
	if len(items) > n {
		items = items[:n]
	}
	return items, nil
}

// Get scans the file for id.
func (s *FileStore) Get(ctx context.Context, id string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	s.mu.Lock()
	items, err := s.readAll()
	s.mu.Unlock()
	if err != nil {
		return Record{}, err
	}

	for _, rec := range items {
		if rec.ID == id {
			return rec, nil
		}
	}
	return Record{}, ErrNotFound
}

func (s *FileStore) readAll() ([]Record, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read store file: %w", err)
	}
	if len(raw) == 0 {
		return []Record{}, nil
	}

	var items []Record
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode store file: %w", err)
	}
	if items == nil {
		items = []Record{}
	}
	return items, nil
}

// writeAll replaces the file atomically through a temp file in the same directory.
func (s *FileStore) writeAll(items []Record) error {
	raw, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store file: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp store file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp store file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp store file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace store file: %w", err)
	}
	return nil
}
