// Package store is the corpus storage layer: it allocates, opens and deletes
// bleve indices and exposes writer and searcher access to an open corpus.
package store

import (
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
)

// Kind selects the storage backend implementation.
type Kind string

const (
	// KindDisk stores each corpus as a scorch directory (default).
	KindDisk Kind = "disk"

	// KindMemory keeps corpora in memory; used for tests and ephemeral runs.
	KindMemory Kind = "memory"
)

// Backend owns physical corpus storage. Locations are opaque strings; the
// coordinator derives them from the data root and the index name.
type Backend interface {
	// Create allocates empty storage at location. It fails if storage exists.
	Create(location string) error

	// Exists reports whether storage is present at location.
	Exists(location string) bool

	// OpenDirectory opens the corpus at location for reading and writing.
	OpenDirectory(location string) (*Directory, error)

	// DeleteRecursive removes all storage at location. Missing storage is not an error.
	DeleteRecursive(location string) error

	// List returns the names of all corpora under the backend's root.
	List() ([]string, error)
}

// NewBackend creates a Backend of the given kind rooted at root.
//
// kind options:
//   - "disk" (default): bleve scorch directories under root
//   - "memory": in-process bleve indices, nothing written to disk
func NewBackend(kind string, root string) (Backend, error) {
	switch Kind(kind) {
	case KindDisk, "":
		return NewDiskBackend(root), nil
	case KindMemory:
		return NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s (valid options: disk, memory)", kind)
	}
}

// BaseMapping is the index mapping new corpora are created with. Fields are
// never mapped dynamically: every document is built from a schema by the
// Writer, and queries bind analyzers explicitly.
func BaseMapping() mapping.IndexMapping {
	docMapping := bleve.NewDocumentStaticMapping()

	im := bleve.NewIndexMapping()
	im.DefaultMapping = docMapping
	im.IndexDynamic = false
	im.StoreDynamic = false
	im.DocValuesDynamic = false
	return im
}

// dirExists checks if a directory exists at the given path.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
