package coordinator

import (
	"sync"

	"github.com/Aman-CERP/textdex/internal/schema"
	"github.com/Aman-CERP/textdex/internal/store"
)

// handle is the reference a caller holds on an index entry.
type handle struct {
	coord  *Coordinator
	entry  *entry
	writer bool
	once   sync.Once
}

func (h *handle) release(before func()) {
	h.once.Do(func() {
		if before != nil {
			before()
		}
		if h.writer {
			h.entry.writer.Unlock()
		}
		h.coord.release(h.entry)
	})
}

// SearcherHandle is a read-only snapshot of an index. It may be shared by any
// number of goroutines until Release.
type SearcherHandle struct {
	handle

	Searcher   *store.Searcher
	Schema     *schema.Schema
	Analyzer   *store.Analyzer
	Generation uint64
}

// Name returns the index the handle was acquired on.
func (h *SearcherHandle) Name() string {
	return h.entry.name
}

// Release returns the handle. It is safe to call more than once.
func (h *SearcherHandle) Release() {
	h.release(nil)
}

// WriterHandle grants exclusive write access to an index until Release.
type WriterHandle struct {
	handle

	Writer     *store.Writer
	Schema     *schema.Schema
	Generation uint64
}

// Name returns the index the handle was acquired on.
func (h *WriterHandle) Name() string {
	return h.entry.name
}

// Release discards unflushed documents and frees the writer. It is safe to
// call more than once.
func (h *WriterHandle) Release() {
	h.release(func() { _ = h.Writer.Close() })
}

// UnloadToken is the scoped right to delete an index. Callers must Close it
// on every path once AcquireHandleForUnload succeeds; Close waits for open
// handles, deletes the corpus and metadata, and frees the name.
type UnloadToken struct {
	coord *Coordinator
	entry *entry
	once  sync.Once
	err   error
}

// Name returns the index being unloaded.
func (t *UnloadToken) Name() string {
	return t.entry.name
}

// Close performs the deletion. If deletion fails the index returns to
// Created so the name is not stuck in Unloading. Later calls return the
// first result.
func (t *UnloadToken) Close() error {
	t.once.Do(func() {
		t.err = t.coord.unload(t.entry)
	})
	return t.err
}
