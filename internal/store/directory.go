package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/blevesearch/bleve/v2"
)

// ErrDirectoryClosed is returned by operations on a closed Directory.
var ErrDirectoryClosed = fmt.Errorf("directory is closed")

// Directory is an open corpus. Writers and searchers opened from the same
// Directory share the underlying bleve index.
type Directory struct {
	location string
	index    bleve.Index
	release  func() error

	mu     sync.RWMutex
	closed bool
}

func newDirectory(location string, idx bleve.Index, release func() error) *Directory {
	return &Directory{location: location, index: idx, release: release}
}

// Location returns where the corpus is stored.
func (d *Directory) Location() string {
	return d.location
}

// OpenWriter returns a writer that analyzes text with a. The caller owns the
// writer exclusively until Close.
func (d *Directory) OpenWriter(a *Analyzer) (*Writer, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, ErrDirectoryClosed
	}
	return &Writer{dir: d, analyzer: a, batch: d.index.NewBatch()}, nil
}

// OpenSearcher returns a read-only searcher. Searchers are safe for
// concurrent use.
func (d *Directory) OpenSearcher() (*Searcher, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, ErrDirectoryClosed
	}
	return &Searcher{dir: d}, nil
}

// DocCount returns the number of documents in the corpus.
func (d *Directory) DocCount() (uint64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return 0, ErrDirectoryClosed
	}
	return d.index.DocCount()
}

// Close releases the corpus. It is safe to call more than once.
func (d *Directory) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	return d.release()
}

func (d *Directory) batch(b *bleve.Batch) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrDirectoryClosed
	}
	return d.index.Batch(b)
}

func (d *Directory) search(ctx context.Context, req *bleve.SearchRequest) (*bleve.SearchResult, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, ErrDirectoryClosed
	}
	return d.index.SearchInContext(ctx, req)
}
