package coordinator

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	txerrors "github.com/Aman-CERP/textdex/internal/errors"
	"github.com/Aman-CERP/textdex/internal/schema"
	"github.com/Aman-CERP/textdex/internal/store"
)

func bookSchema() *schema.Schema {
	return schema.New(
		schema.Field{Name: "title", Type: schema.Text, Indexed: true, Stored: true, Primary: true},
		schema.Field{Name: "year", Type: schema.Int32, Indexed: true, Stored: true},
	)
}

func newMemoryCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	c := New(Config{
		Backend: store.NewMemoryBackend(),
		Schemas: schema.NewMemoryStore(),
	})
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func createMapped(t *testing.T, c *Coordinator, name string) {
	t.Helper()
	require.NoError(t, c.Create(name))
	require.NoError(t, c.SetMapping(name, bookSchema()))
}

// waitDone fails the test unless done is closed within a second.
func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("operation did not complete")
	}
}

// assertBlocked fails the test if done is closed within a short window.
func assertBlocked(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
		t.Fatal("operation completed while it should be blocked")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCreate_Lifecycle(t *testing.T) {
	c := newMemoryCoordinator(t)

	// Given: a never seen name
	assert.False(t, c.Exists("books"))
	assert.Equal(t, Absent, c.State("books"))

	// When: creating it
	require.NoError(t, c.Create("books"))

	// Then: storage exists and a second create is rejected
	assert.True(t, c.Exists("books"))
	assert.Equal(t, Created, c.State("books"))
	assert.ErrorIs(t, c.Create("books"), txerrors.ErrIndexAlreadyExists)
}

func TestCreate_ConcurrentRace(t *testing.T) {
	c := newMemoryCoordinator(t)

	const n = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		success  int
		conflict int
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := c.Create("books")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case errors.Is(err, txerrors.ErrIndexAlreadyExists):
				conflict++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, success)
	assert.Equal(t, n-1, conflict)
}

func TestCreate_InvalidNames(t *testing.T) {
	c := newMemoryCoordinator(t)

	for _, name := range []string{"", ".hidden", "../escape", "a/b", "sp ace", string(make([]byte, 200))} {
		err := c.Create(name)
		require.Error(t, err, "name %q", name)
		assert.Equal(t, txerrors.ErrCodeInvalidIndexName, txerrors.GetCode(err))
		assert.False(t, c.Exists(name))
	}
	assert.NoError(t, c.Create("Books_2024-v1"))
}

func TestUnload_ThenRecreate(t *testing.T) {
	c := newMemoryCoordinator(t)
	createMapped(t, c, "books")

	token, err := c.AcquireHandleForUnload("books")
	require.NoError(t, err)
	assert.True(t, c.IsUnloading("books"))
	require.NoError(t, token.Close())

	assert.False(t, c.Exists("books"))
	assert.False(t, c.IsUnloading("books"))
	assert.Equal(t, Deleted, c.State("books"))

	// When: recreating the name
	require.NoError(t, c.Create("books"))

	// Then: the old mapping did not survive
	_, err = c.GetSchema("books")
	assert.ErrorIs(t, err, txerrors.ErrSchema)
}

func TestUnload_AbsentIndex(t *testing.T) {
	c := newMemoryCoordinator(t)

	_, err := c.AcquireHandleForUnload("missing")
	assert.ErrorIs(t, err, txerrors.ErrIndexNotFound)
}

func TestUnload_SecondAttemptRejected(t *testing.T) {
	c := newMemoryCoordinator(t)
	require.NoError(t, c.Create("books"))

	token, err := c.AcquireHandleForUnload("books")
	require.NoError(t, err)

	_, err = c.AcquireHandleForUnload("books")
	assert.ErrorIs(t, err, txerrors.ErrAlreadyUnloading)

	require.NoError(t, token.Close())
	require.NoError(t, token.Close(), "Close is idempotent")
}

func TestUnload_UnavailableWhileHandlesDrain(t *testing.T) {
	c := newMemoryCoordinator(t)
	createMapped(t, c, "books")

	// Given: a searcher handle in a caller's hand
	h, err := c.GetSearcher("books")
	require.NoError(t, err)

	// When: an unload begins
	token, err := c.AcquireHandleForUnload("books")
	require.NoError(t, err)

	// Then: every new lookup fails fast
	_, err = c.GetSearcher("books")
	assert.ErrorIs(t, err, txerrors.ErrIndexUnavailable)
	_, err = c.GetSchema("books")
	assert.ErrorIs(t, err, txerrors.ErrIndexUnavailable)
	_, err = c.GetAnalyzer("books")
	assert.ErrorIs(t, err, txerrors.ErrIndexUnavailable)
	_, err = c.AcquireWriter("books")
	assert.ErrorIs(t, err, txerrors.ErrIndexUnavailable)
	assert.ErrorIs(t, c.Create("books"), txerrors.ErrIndexUnavailable)

	// And: deletion waits for the outstanding handle
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, token.Close())
	}()
	assertBlocked(t, done)

	// And: the held handle still works
	count, err := h.Searcher.DocCount()
	require.NoError(t, err)
	assert.Zero(t, count)

	h.Release()
	h.Release()
	waitDone(t, done)
	assert.False(t, c.Exists("books"))
}

type failingDeleteBackend struct {
	*store.MemoryBackend
	fail bool
}

func (b *failingDeleteBackend) DeleteRecursive(location string) error {
	if b.fail {
		return errors.New("device busy")
	}
	return b.MemoryBackend.DeleteRecursive(location)
}

func TestUnload_DeletionFailureRevertsToCreated(t *testing.T) {
	backend := &failingDeleteBackend{MemoryBackend: store.NewMemoryBackend(), fail: true}
	c := New(Config{Backend: backend, Schemas: schema.NewMemoryStore()})
	defer func() { _ = c.Close() }()
	createMapped(t, c, "books")

	token, err := c.AcquireHandleForUnload("books")
	require.NoError(t, err)
	err = token.Close()

	require.Error(t, err)
	assert.Equal(t, Created, c.State("books"))
	assert.True(t, c.Exists("books"))

	// The name is usable again and a retry can succeed.
	_, err = c.GetSchema("books")
	require.NoError(t, err)
	backend.fail = false
	token, err = c.AcquireHandleForUnload("books")
	require.NoError(t, err)
	require.NoError(t, token.Close())
	assert.False(t, c.Exists("books"))
}

func TestGetSchema_Errors(t *testing.T) {
	c := newMemoryCoordinator(t)

	_, err := c.GetSchema("missing")
	assert.ErrorIs(t, err, txerrors.ErrIndexNotFound)

	require.NoError(t, c.Create("books"))
	_, err = c.GetSchema("books")
	assert.ErrorIs(t, err, txerrors.ErrSchema)
	assert.Equal(t, Created, c.State("books"))
}

func TestGetSchema_ActivatesAndReturnsCopy(t *testing.T) {
	c := newMemoryCoordinator(t)
	createMapped(t, c, "books")

	s, err := c.GetSchema("books")
	require.NoError(t, err)
	assert.Equal(t, Active, c.State("books"))
	assert.True(t, bookSchema().Equal(s))

	s.Fields[0].Name = "mutated"
	again, err := c.GetSchema("books")
	require.NoError(t, err)
	assert.True(t, bookSchema().Equal(again))
}

func TestSetMapping_RejectsInvalidSchema(t *testing.T) {
	c := newMemoryCoordinator(t)
	require.NoError(t, c.Create("books"))

	err := c.SetMapping("books", schema.New())
	assert.ErrorIs(t, err, txerrors.ErrSchema)

	err = c.SetMapping("missing", bookSchema())
	assert.ErrorIs(t, err, txerrors.ErrIndexNotFound)
}

func TestRemap_InvalidatesCachesButNotHandles(t *testing.T) {
	c := newMemoryCoordinator(t)
	createMapped(t, c, "books")

	h, err := c.GetSearcher("books")
	require.NoError(t, err)
	defer h.Release()
	oldAnalyzer, err := c.GetAnalyzer("books")
	require.NoError(t, err)
	gen := c.Generation("books")

	// When: remapping to a schema with a different primary field
	remapped := schema.New(
		schema.Field{Name: "title", Type: schema.String, Indexed: true, Stored: true},
		schema.Field{Name: "body", Type: schema.Text, Indexed: true, Primary: true},
	)
	require.NoError(t, c.SetMapping("books", remapped))

	// Then: new lookups see the new schema and analyzer
	assert.Greater(t, c.Generation("books"), gen)
	s, err := c.GetSchema("books")
	require.NoError(t, err)
	assert.True(t, remapped.Equal(s))
	newAnalyzer, err := c.GetAnalyzer("books")
	require.NoError(t, err)
	assert.NotSame(t, oldAnalyzer, newAnalyzer)
	assert.Equal(t, "body", newAnalyzer.DefaultField())

	// And: the handle acquired earlier keeps its snapshot
	assert.True(t, bookSchema().Equal(h.Schema))
	assert.Equal(t, "title", h.Analyzer.DefaultField())
	assert.Equal(t, gen, h.Generation)
}

func TestRefreshMapping(t *testing.T) {
	c := newMemoryCoordinator(t)

	assert.ErrorIs(t, c.RefreshMapping("missing"), txerrors.ErrIndexNotFound)

	createMapped(t, c, "books")
	gen := c.Generation("books")
	require.NoError(t, c.RefreshMapping("books"))
	assert.Equal(t, gen+1, c.Generation("books"))

	s, err := c.GetSchema("books")
	require.NoError(t, err)
	assert.True(t, bookSchema().Equal(s))
}

func TestAcquireWriter_Exclusive(t *testing.T) {
	c := newMemoryCoordinator(t)
	createMapped(t, c, "books")

	first, err := c.AcquireWriter("books")
	require.NoError(t, err)
	assert.Equal(t, "books", first.Name())

	acquired := make(chan struct{})
	go func() {
		defer close(acquired)
		second, err := c.AcquireWriter("books")
		if assert.NoError(t, err) {
			second.Release()
		}
	}()
	assertBlocked(t, acquired)

	first.Release()
	first.Release()
	waitDone(t, acquired)
}

func TestAcquireWriter_RemapWaitsForWriter(t *testing.T) {
	c := newMemoryCoordinator(t)
	createMapped(t, c, "books")

	w, err := c.AcquireWriter("books")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, c.SetMapping("books", bookSchema()))
	}()
	assertBlocked(t, done)

	w.Release()
	waitDone(t, done)
}

func TestAcquireWriter_QueuedWriterFailsAfterUnload(t *testing.T) {
	c := newMemoryCoordinator(t)
	createMapped(t, c, "books")

	first, err := c.AcquireWriter("books")
	require.NoError(t, err)

	// Given: a second writer queued behind the first
	result := make(chan error, 1)
	go func() {
		w, err := c.AcquireWriter("books")
		if err == nil {
			w.Release()
		}
		result <- err
	}()
	require.Eventually(t, func() bool {
		first.entry.mu.Lock()
		defer first.entry.mu.Unlock()
		return first.entry.refs == 2
	}, time.Second, 5*time.Millisecond)

	// When: the index is unloaded and the first writer finishes
	token, err := c.AcquireHandleForUnload("books")
	require.NoError(t, err)
	first.Release()

	// Then: the queued writer is refused and deletion completes
	select {
	case err := <-result:
		assert.ErrorIs(t, err, txerrors.ErrIndexUnavailable)
	case <-time.After(time.Second):
		t.Fatal("queued writer never returned")
	}
	require.NoError(t, token.Close())
}

func TestWriterAndSearcher_RoundTrip(t *testing.T) {
	c := newMemoryCoordinator(t)
	createMapped(t, c, "books")

	w, err := c.AcquireWriter("books")
	require.NoError(t, err)
	title, _ := w.Schema.Field("title")
	require.NoError(t, w.Writer.Add("doc-1", []schema.Value{
		schema.TextValue{Attrs: schema.AttrsOf(title), Value: "Hello"},
	}))
	require.NoError(t, w.Writer.Flush())
	w.Release()

	h, err := c.GetSearcher("books")
	require.NoError(t, err)
	defer h.Release()
	count, err := h.Searcher.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestDisk_ExistingStorageIsAdopted(t *testing.T) {
	root := t.TempDir()
	first := New(Config{Root: root, Backend: store.NewDiskBackend(root), Schemas: schema.FileStore{}})
	createMapped(t, first, "books")
	require.NoError(t, first.Close())

	// When: a new coordinator opens the same root
	second := New(Config{Root: root, Backend: store.NewDiskBackend(root), Schemas: schema.FileStore{}})
	defer func() { _ = second.Close() }()

	// Then: the index and its mapping are found
	assert.Equal(t, Created, second.State("books"))
	s, err := second.GetSchema("books")
	require.NoError(t, err)
	assert.True(t, bookSchema().Equal(s))

	names, err := second.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"books"}, names)

	token, err := second.AcquireHandleForUnload("books")
	require.NoError(t, err)
	require.NoError(t, token.Close())
	assert.NoDirExists(t, filepath.Join(root, "books"))
	assert.NoDirExists(t, filepath.Join(root, ".books"))
}

func TestClose_ReleasesLockAndRejectsUse(t *testing.T) {
	root := t.TempDir()
	lock := store.NewRootLock(root)
	require.NoError(t, lock.Acquire())

	c := New(Config{Root: root, Backend: store.NewDiskBackend(root), Schemas: schema.FileStore{}, Lock: lock})
	createMapped(t, c, "books")
	h, err := c.GetSearcher("books")
	require.NoError(t, err)
	h.Release()

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	assert.False(t, lock.IsLocked())
	assert.ErrorIs(t, c.Create("other"), ErrClosed)
	_, err = c.List()
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, txerrors.ErrCodeClosed, txerrors.GetCode(err))
	assert.Contains(t, txerrors.FormatForCLI(err), "Error: coordinator is closed")
}

func TestStat_LeavesLifecycleUntouched(t *testing.T) {
	c := newMemoryCoordinator(t)
	createMapped(t, c, "books")
	require.NoError(t, c.Create("empty"))

	w, err := c.AcquireWriter("books")
	require.NoError(t, err)
	title, _ := w.Schema.Field("title")
	require.NoError(t, w.Writer.Add("doc-1", []schema.Value{
		schema.TextValue{Attrs: schema.AttrsOf(title), Value: "Hello"},
	}))
	require.NoError(t, w.Writer.Flush())
	w.Release()
	require.NoError(t, c.RefreshMapping("books"))

	tests := []struct {
		name string
		want Stat
	}{
		{"books", Stat{State: Active, Documents: 1, Mapped: true}},
		{"empty", Stat{State: Created, Documents: 0, Mapped: false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// When: stating the index
			st, err := c.Stat(tt.name)

			// Then: the count is reported and the state is unchanged
			require.NoError(t, err)
			assert.Equal(t, tt.want, st)
			assert.Equal(t, tt.want.State, c.State(tt.name))
		})
	}
}

func TestStat_DoesNotOpenCorpus(t *testing.T) {
	root := t.TempDir()
	seed := New(Config{Root: root, Backend: store.NewDiskBackend(root), Schemas: schema.FileStore{}})
	createMapped(t, seed, "books")
	require.NoError(t, seed.Close())

	c := New(Config{Root: root, Backend: store.NewDiskBackend(root), Schemas: schema.FileStore{}})
	defer func() { _ = c.Close() }()

	// When: stating an index adopted from disk
	st, err := c.Stat("books")

	// Then: it stays Created with no corpus held open
	require.NoError(t, err)
	assert.Equal(t, Stat{State: Created, Mapped: true}, st)
	assert.Equal(t, Created, c.State("books"))
	c.mu.Lock()
	e := c.entries["books"]
	c.mu.Unlock()
	assert.Nil(t, e.dir)
}

func TestStat_Errors(t *testing.T) {
	c := newMemoryCoordinator(t)

	_, err := c.Stat("missing")
	assert.ErrorIs(t, err, txerrors.ErrIndexNotFound)

	_, err = c.Stat("../escape")
	assert.Equal(t, txerrors.ErrCodeInvalidIndexName, txerrors.GetCode(err))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "unloading", Unloading.String())
	assert.Equal(t, "unknown", State(42).String())
}
