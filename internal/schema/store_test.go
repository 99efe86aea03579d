package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_RoundTrip(t *testing.T) {
	// Given: a metadata directory that does not exist yet
	metaDir := filepath.Join(t.TempDir(), ".books")
	var fs FileStore

	// When: saving and loading a schema
	require.NoError(t, fs.Save(metaDir, bookSchema()))
	loaded, err := fs.Load(metaDir)

	// Then: every field survives (name, type, flags, primary)
	require.NoError(t, err)
	assert.True(t, bookSchema().Equal(loaded), "got %+v", loaded.Fields)
}

func TestFileStore_LoadMissing(t *testing.T) {
	var fs FileStore

	_, err := fs.Load(filepath.Join(t.TempDir(), ".nothing"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStore_SaveReplacesWholesale(t *testing.T) {
	metaDir := t.TempDir()
	var fs FileStore
	require.NoError(t, fs.Save(metaDir, bookSchema()))

	replacement := New(Field{Name: "body", Type: Text, Indexed: true, Primary: true})
	require.NoError(t, fs.Save(metaDir, replacement))

	loaded, err := fs.Load(metaDir)
	require.NoError(t, err)
	assert.True(t, replacement.Equal(loaded))
	_, hasTitle := loaded.Field("title")
	assert.False(t, hasTitle)
}

func TestFileStore_UsesTypeNames(t *testing.T) {
	metaDir := t.TempDir()
	var fs FileStore
	require.NoError(t, fs.Save(metaDir, bookSchema()))

	data, err := os.ReadFile(fs.Path(metaDir))
	require.NoError(t, err)
	assert.Contains(t, string(data), "type: text")
	assert.Contains(t, string(data), "type: int32")
}

func TestFileStore_LoadCorrupt(t *testing.T) {
	metaDir := t.TempDir()
	var fs FileStore
	require.NoError(t, os.WriteFile(fs.Path(metaDir), []byte("fields: [\n"), 0o644))

	_, err := fs.Load(metaDir)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestFileStore_Delete(t *testing.T) {
	metaDir := filepath.Join(t.TempDir(), ".books")
	var fs FileStore
	require.NoError(t, fs.Save(metaDir, bookSchema()))

	require.NoError(t, fs.Delete(metaDir))

	assert.NoDirExists(t, metaDir)
	_, err := fs.Load(metaDir)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, fs.Delete(metaDir), "deleting twice is a no-op")
}

func TestMemoryStore(t *testing.T) {
	m := NewMemoryStore()

	_, err := m.Load(".books")
	assert.ErrorIs(t, err, ErrNotFound)

	// Given: a saved schema
	original := bookSchema()
	require.NoError(t, m.Save(".books", original))

	// When: the caller mutates its own copy
	original.Fields[0].Name = "mutated"

	// Then: the stored schema is unaffected
	loaded, err := m.Load(".books")
	require.NoError(t, err)
	assert.True(t, bookSchema().Equal(loaded))

	require.NoError(t, m.Delete(".books"))
	_, err = m.Load(".books")
	assert.ErrorIs(t, err, ErrNotFound)
}
