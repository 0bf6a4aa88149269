package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"ratefeed/internal/fsutil"
	"ratefeed/internal/provider"
)

// FileStore persists all entries as one JSON document so the cache
// survives restarts. Writes replace the file atomically.
type FileStore struct {
	Now func() time.Time

	path  string
	mu    sync.Mutex
	items map[string]Entry
}

// NewFileStore loads path if it exists; a missing file starts empty.
func NewFileStore(path string) (*FileStore, error) {
	fs := &FileStore{path: path, items: make(map[string]Entry)}
	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return fs, nil
	case err != nil:
		return nil, fmt.Errorf("read cache file: %w", err)
	}
	if len(b) == 0 {
		return fs, nil
	}
	if err := json.Unmarshal(b, &fs.items); err != nil {
		return nil, fmt.Errorf("parse cache file: %w", err)
	}
	return fs, nil
}

func (f *FileStore) Read(_ context.Context, symbol string) (*Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.items[symbol]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (f *FileStore) Write(_ context.Context, symbol string, q provider.Quote) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[symbol] = Entry{Symbol: symbol, Quote: q, StoredAt: now(f.Now)}
	b, err := json.MarshalIndent(f.items, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}
	return fsutil.WriteFileAtomic(f.path, b, 0o644)
}
