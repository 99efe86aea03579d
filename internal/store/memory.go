package store

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/blevesearch/bleve/v2"
)

// MemoryBackend keeps corpora in memory, keyed by location.
type MemoryBackend struct {
	mu      sync.Mutex
	indexes map[string]bleve.Index
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{indexes: make(map[string]bleve.Index)}
}

// Create allocates an empty in-memory corpus.
func (b *MemoryBackend) Create(location string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.indexes[location]; ok {
		return fmt.Errorf("storage already exists at %s", location)
	}
	idx, err := bleve.NewMemOnly(BaseMapping())
	if err != nil {
		return fmt.Errorf("failed to create in-memory index: %w", err)
	}
	b.indexes[location] = idx
	return nil
}

// Exists reports whether a corpus was created at location.
func (b *MemoryBackend) Exists(location string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.indexes[location]
	return ok
}

// OpenDirectory returns the corpus at location. Closing the Directory leaves
// the corpus intact; only DeleteRecursive discards it.
func (b *MemoryBackend) OpenDirectory(location string) (*Directory, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx, ok := b.indexes[location]
	if !ok {
		return nil, fmt.Errorf("no corpus at %s: %w", location, bleve.ErrorIndexPathDoesNotExist)
	}
	return newDirectory(location, idx, func() error { return nil }), nil
}

// DeleteRecursive discards the corpus at location.
func (b *MemoryBackend) DeleteRecursive(location string) error {
	b.mu.Lock()
	idx, ok := b.indexes[location]
	delete(b.indexes, location)
	b.mu.Unlock()

	if !ok {
		return nil
	}
	return idx.Close()
}

// List returns the base names of all in-memory corpora.
func (b *MemoryBackend) List() ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	names := make([]string, 0, len(b.indexes))
	for location := range b.indexes {
		names = append(names, filepath.Base(location))
	}
	sort.Strings(names)
	return names, nil
}

var _ Backend = (*MemoryBackend)(nil)
