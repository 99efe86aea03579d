package schema

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/renameio"
	"gopkg.in/yaml.v3"
)

// FileName is the schema artifact inside an index's metadata directory.
const FileName = "mapping.yaml"

// ErrNotFound is returned by Load when no schema has been saved.
var ErrNotFound = errors.New("schema not found")

// Store persists the schema of each index, keyed by its metadata directory.
type Store interface {
	Load(metaDir string) (*Schema, error)
	Save(metaDir string, s *Schema) error
	Delete(metaDir string) error
}

// FileStore persists one schema per metadata directory as YAML.
type FileStore struct{}

// Path returns the schema file location inside metaDir.
func (FileStore) Path(metaDir string) string {
	return filepath.Join(metaDir, FileName)
}

// Load reads the schema saved in metaDir. It returns ErrNotFound when the
// directory or file does not exist.
func (fs FileStore) Load(metaDir string) (*Schema, error) {
	path := fs.Path(metaDir)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read schema %s: %w", path, err)
	}

	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse schema %s: %w", path, err)
	}
	return &s, nil
}

// Save replaces the schema in metaDir. The previous file is removed first and
// the new one is written atomically; a schema is never patched in place.
func (fs FileStore) Save(metaDir string, s *Schema) error {
	if err := os.MkdirAll(metaDir, 0o755); err != nil {
		return fmt.Errorf("failed to create metadata directory %s: %w", metaDir, err)
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal schema: %w", err)
	}

	path := fs.Path(metaDir)
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove previous schema %s: %w", path, err)
	}
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write schema %s: %w", path, err)
	}
	return nil
}

// Delete removes metaDir and everything in it.
func (FileStore) Delete(metaDir string) error {
	if err := os.RemoveAll(metaDir); err != nil {
		return fmt.Errorf("failed to delete metadata directory %s: %w", metaDir, err)
	}
	return nil
}

// MemoryStore keeps schemas in memory. It pairs with the in-memory corpus
// backend.
type MemoryStore struct {
	mu      sync.Mutex
	schemas map[string]*Schema
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{schemas: make(map[string]*Schema)}
}

// Load returns a copy of the schema saved under metaDir.
func (m *MemoryStore) Load(metaDir string) (*Schema, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.schemas[metaDir]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

// Save replaces the schema under metaDir.
func (m *MemoryStore) Save(metaDir string, s *Schema) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.schemas[metaDir] = s.Clone()
	return nil
}

// Delete forgets the schema under metaDir.
func (m *MemoryStore) Delete(metaDir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.schemas, metaDir)
	return nil
}

var (
	_ Store = FileStore{}
	_ Store = (*MemoryStore)(nil)
)
