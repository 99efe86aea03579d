package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	txerrors "github.com/Aman-CERP/textdex/internal/errors"
	"github.com/Aman-CERP/textdex/internal/mapper"
	"github.com/Aman-CERP/textdex/internal/query"
	"github.com/Aman-CERP/textdex/internal/schema"
	"github.com/Aman-CERP/textdex/internal/service"
)

// recordingIndexer accepts every document and remembers the batches.
type recordingIndexer struct {
	mu      sync.Mutex
	batches [][]mapper.Document
	err     error
}

func (r *recordingIndexer) IndexDocuments(_ context.Context, _ string, docs []mapper.Document) (*service.IndexReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	r.batches = append(r.batches, docs)
	return &service.IndexReport{Indexed: len(docs)}, nil
}

func (r *recordingIndexer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func writeDoc(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIngestFile(t *testing.T) {
	// Given: a JSON Lines file with two documents
	dir := t.TempDir()
	path := writeDoc(t, dir, "books.jsonl", "{\"title\":\"Dune\"}\n{\"title\":\"Emma\"}\n")
	idx := &recordingIndexer{}
	in := NewIngester(idx, "books", IngesterOptions{})

	// When: ingesting it twice without changes
	first := in.IngestFile(context.Background(), path)
	second := in.IngestFile(context.Background(), path)

	// Then: the documents are indexed once and the file is kept
	require.NoError(t, first.Err)
	require.NotNil(t, first.Report)
	assert.Equal(t, 2, first.Report.Indexed)
	assert.False(t, first.Removed)
	assert.Nil(t, second.Report)
	assert.Equal(t, 1, idx.count())
	assert.FileExists(t, path)
}

func TestIngestFile_ChangedFileIsIngestedAgain(t *testing.T) {
	dir := t.TempDir()
	path := writeDoc(t, dir, "books.json", `{"title":"Dune"}`)
	idx := &recordingIndexer{}
	in := NewIngester(idx, "books", IngesterOptions{})
	require.NoError(t, in.IngestFile(context.Background(), path).Err)

	writeDoc(t, dir, "books.json", `[{"title":"Dune"},{"title":"Emma"}]`)
	res := in.IngestFile(context.Background(), path)

	require.NoError(t, res.Err)
	require.NotNil(t, res.Report)
	assert.Equal(t, 2, res.Report.Indexed)
	assert.Equal(t, 2, idx.count())
}

func TestIngestFile_RemoveProcessed(t *testing.T) {
	dir := t.TempDir()
	path := writeDoc(t, dir, "books.json", `{"title":"Dune"}`)
	in := NewIngester(&recordingIndexer{}, "books", IngesterOptions{RemoveProcessed: true})

	res := in.IngestFile(context.Background(), path)

	require.NoError(t, res.Err)
	assert.True(t, res.Removed)
	assert.NoFileExists(t, path)
}

func TestIngestFile_Failures(t *testing.T) {
	tests := []struct {
		name    string
		content string
		idxErr  error
		wantCat txerrors.Category
	}{
		{"invalid json", `{"title":`, nil, txerrors.CategoryValidation},
		{"index failure", `{"title":"Dune"}`, txerrors.IndexNotFound("books"), txerrors.CategoryLifecycle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given: a file that cannot be ingested
			dir := t.TempDir()
			path := writeDoc(t, dir, "bad.json", tt.content)
			in := NewIngester(&recordingIndexer{err: tt.idxErr}, "books", IngesterOptions{RemoveProcessed: true})

			// When: ingesting it
			res := in.IngestFile(context.Background(), path)

			// Then: the error is reported and the file stays for inspection
			require.Error(t, res.Err)
			assert.Equal(t, tt.wantCat, txerrors.GetCategory(res.Err))
			assert.False(t, res.Removed)
			assert.FileExists(t, path)
		})
	}
}

func TestIngestFile_Missing(t *testing.T) {
	in := NewIngester(&recordingIndexer{}, "books", IngesterOptions{})

	res := in.IngestFile(context.Background(), filepath.Join(t.TempDir(), "gone.json"))

	assert.Equal(t, txerrors.CategoryIO, txerrors.GetCategory(res.Err))
}

func TestIngestFile_EmptyFileSkipsIndexer(t *testing.T) {
	dir := t.TempDir()
	path := writeDoc(t, dir, "empty.jsonl", "\n")
	idx := &recordingIndexer{}
	in := NewIngester(idx, "books", IngesterOptions{})

	res := in.IngestFile(context.Background(), path)

	require.NoError(t, res.Err)
	require.NotNil(t, res.Report)
	assert.Equal(t, 0, res.Report.Indexed)
	assert.Equal(t, 0, idx.count())
}

func TestScan(t *testing.T) {
	// Given: a drop directory with documents, other files and a subdirectory
	dir := t.TempDir()
	writeDoc(t, dir, "b.json", `{"title":"B"}`)
	writeDoc(t, dir, "a.jsonl", `{"title":"A"}`)
	writeDoc(t, dir, "readme.md", "# drop")
	writeDoc(t, dir, ".partial.json", `{"title":`)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "c.json"), 0o755))

	var reported []string
	in := NewIngester(&recordingIndexer{}, "books", IngesterOptions{
		OnResult: func(r Result) { reported = append(reported, filepath.Base(r.Path)) },
	})

	// When: scanning
	results, err := in.Scan(context.Background(), dir, DefaultOptions())

	// Then: only document files are ingested, in name order
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, []string{"a.jsonl", "b.json"}, reported)
}

func TestScan_MissingDir(t *testing.T) {
	in := NewIngester(&recordingIndexer{}, "books", IngesterOptions{})

	_, err := in.Scan(context.Background(), filepath.Join(t.TempDir(), "nope"), DefaultOptions())

	assert.Equal(t, txerrors.CategoryIO, txerrors.GetCategory(err))
}

func TestRun_ProcessesBatches(t *testing.T) {
	// Given: events for an existing file, a vanished file and a delete
	dir := t.TempDir()
	path := writeDoc(t, dir, "a.json", `{"title":"A"}`)
	idx := &recordingIndexer{}
	in := NewIngester(idx, "books", IngesterOptions{})

	events := make(chan []FileEvent, 2)
	events <- []FileEvent{
		{Path: path, Operation: OpCreate},
		{Path: filepath.Join(dir, "vanished.json"), Operation: OpModify},
	}
	events <- []FileEvent{{Path: path, Operation: OpDelete}}
	close(events)

	// When: running until the channel closes
	err := in.Run(context.Background(), events)

	// Then: the existing file was indexed once
	require.NoError(t, err)
	assert.Equal(t, 1, idx.count())
}

func TestRun_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	in := NewIngester(&recordingIndexer{}, "books", IngesterOptions{})

	err := in.Run(ctx, make(chan []FileEvent))

	assert.True(t, errors.Is(err, context.Canceled))
}

func TestWatchAndIngest_EndToEnd(t *testing.T) {
	// Given: a mapped in-memory index and a watched drop directory
	svc, err := service.Open(service.Options{Backend: "memory", Query: query.DefaultConfig()})
	require.NoError(t, err)
	defer func() { _ = svc.Close() }()
	require.NoError(t, svc.CreateIndex("books"))
	require.NoError(t, svc.SetMapping("books", schema.New(
		schema.Field{Name: "title", Type: schema.Text, Indexed: true, Stored: true, Primary: true},
	)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dir := t.TempDir()
	w := startDirWatcher(t, ctx, dir)
	in := NewIngester(svc, "books", IngesterOptions{RemoveProcessed: true})
	done := make(chan error, 1)
	go func() { done <- in.Run(ctx, w.Events()) }()

	// When: a document file is dropped in
	path := writeDoc(t, dir, "drop.jsonl", "{\"title\":\"Hyperion\"}\n")

	// Then: it becomes searchable and the file is removed
	require.Eventually(t, func() bool {
		records, err := svc.Search(context.Background(), "books", "hyperion")
		return err == nil && len(records) == 1
	}, 3*time.Second, 20*time.Millisecond)
	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return os.IsNotExist(err)
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, w.Stop())
	assert.NoError(t, <-done)
}
