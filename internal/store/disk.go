package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/blevesearch/bleve/v2"

	txerrors "github.com/Aman-CERP/textdex/internal/errors"
)

// DiskBackend stores each corpus as a bleve scorch directory.
type DiskBackend struct {
	root string
}

// NewDiskBackend creates a disk backend whose corpora live under root.
func NewDiskBackend(root string) *DiskBackend {
	return &DiskBackend{root: root}
}

// validateIndexIntegrity checks if a bleve index is valid before opening.
// Returns nil if valid, error describing corruption if not.
func validateIndexIntegrity(path string) error {
	// Check 1: index_meta.json exists and is non-empty
	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing (corrupted index)")
	}
	if err != nil {
		return fmt.Errorf("cannot stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty (corrupted)")
	}

	// Check 2: Validate JSON is parseable
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}

	return nil
}

// isCorruptionError checks if an error indicates bleve index corruption.
func isCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "unexpected end of JSON") ||
		strings.Contains(errStr, "error parsing mapping JSON") ||
		strings.Contains(errStr, "failed to load segment") ||
		strings.Contains(errStr, "error opening bolt") ||
		errors.Is(err, bleve.ErrorIndexMetaCorrupt)
}

// Create allocates a new empty corpus directory at location.
func (b *DiskBackend) Create(location string) error {
	if b.Exists(location) {
		return fmt.Errorf("storage already exists at %s", location)
	}
	if err := os.MkdirAll(filepath.Dir(location), 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", filepath.Dir(location), err)
	}

	idx, err := bleve.New(location, BaseMapping())
	if err != nil {
		return fmt.Errorf("failed to create index at %s: %w", location, err)
	}
	if err := idx.Close(); err != nil {
		return fmt.Errorf("failed to close new index at %s: %w", location, err)
	}

	slog.Debug("corpus_created", slog.String("path", location))
	return nil
}

// Exists reports whether a corpus directory is present at location.
func (b *DiskBackend) Exists(location string) bool {
	return dirExists(location)
}

// OpenDirectory opens the corpus at location. Corrupted corpora are reported,
// never cleared: unlike a derived cache, the corpus is the only copy of the
// indexed documents.
func (b *DiskBackend) OpenDirectory(location string) (*Directory, error) {
	if !b.Exists(location) {
		return nil, txerrors.New(txerrors.ErrCodeFileNotFound,
			fmt.Sprintf("no corpus at %s", location), bleve.ErrorIndexPathDoesNotExist)
	}

	if validErr := validateIndexIntegrity(location); validErr != nil {
		slog.Warn("corpus_corrupted",
			slog.String("path", location),
			slog.String("error", validErr.Error()))
		return nil, txerrors.New(txerrors.ErrCodeCorruptIndex,
			fmt.Sprintf("corpus at %s is corrupted", location), validErr).
			WithSuggestion("Remove the index and recreate it")
	}

	idx, err := bleve.Open(location)
	if err != nil {
		if isCorruptionError(err) {
			slog.Warn("corpus_open_failed",
				slog.String("path", location),
				slog.String("error", err.Error()))
			return nil, txerrors.New(txerrors.ErrCodeCorruptIndex,
				fmt.Sprintf("corpus at %s is corrupted", location), err).
				WithSuggestion("Remove the index and recreate it")
		}
		return nil, fmt.Errorf("failed to open index at %s: %w", location, err)
	}

	return newDirectory(location, idx, idx.Close), nil
}

// DeleteRecursive removes the directory tree at location.
func (b *DiskBackend) DeleteRecursive(location string) error {
	if err := os.RemoveAll(location); err != nil {
		return fmt.Errorf("failed to delete %s: %w", location, err)
	}
	return nil
}

// List returns the names of corpus directories under the root. Hidden
// entries (metadata directories, lock files) are skipped.
func (b *DiskBackend) List() ([]string, error) {
	entries, err := os.ReadDir(b.root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", b.root, err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Verify interface implementation
var _ Backend = (*DiskBackend)(nil)
