// Package coordinator owns the lifecycle of named indices: the per-name state
// machine, the cached schema, analyzer and open corpus of each index, and the
// handles callers use to search and write.
//
// Structural operations (create, unload, remap) on one name are serialized by
// that name's entry lock; unrelated names never contend. Once an index enters
// Unloading every new lookup fails fast with IndexUnavailable, while handles
// acquired earlier stay valid until released.
package coordinator

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"sync"

	txerrors "github.com/Aman-CERP/textdex/internal/errors"
	"github.com/Aman-CERP/textdex/internal/schema"
	"github.com/Aman-CERP/textdex/internal/store"
)

// ErrClosed matches, under errors.Is, the error operations on a closed
// Coordinator return.
var ErrClosed = txerrors.ErrClosed

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,127}$`)

// ValidateName checks that name can be used as an index name. Names map to
// directories under the data root, so separators and a leading dot are
// rejected.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return txerrors.InvalidIndexName(name)
	}
	return nil
}

// Config contains configuration for the Coordinator.
type Config struct {
	// Root is the data root. Corpora live at <Root>/<name>, schemas at
	// <Root>/.<name>.
	Root string

	// Backend allocates, opens and deletes corpora.
	Backend store.Backend

	// Schemas persists the schema of each index.
	Schemas schema.Store

	// Lock is released by Close (optional).
	Lock *store.RootLock
}

// Coordinator is the single owner of per-index resources.
type Coordinator struct {
	config Config

	mu      sync.Mutex // guards entries and closed only
	entries map[string]*entry
	closed  bool
}

// New creates a Coordinator. Nothing is opened until first use.
func New(config Config) *Coordinator {
	return &Coordinator{
		config:  config,
		entries: make(map[string]*entry),
	}
}

// entry is the state machine of one name. Entries are never removed from the
// table, so every caller of the same name synchronizes on the same entry.
type entry struct {
	name     string
	location string
	metaDir  string

	mu    sync.Mutex
	cond  *sync.Cond // signalled when refs drops
	state State
	refs  int

	schema     *schema.Schema
	analyzer   *store.Analyzer
	dir        *store.Directory
	generation uint64

	// writer is held by the WriterHandle owner and by SetMapping.
	writer sync.Mutex
}

func (c *Coordinator) entry(name string) (*entry, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, txerrors.Closed("coordinator")
	}
	e, ok := c.entries[name]
	if !ok {
		e = &entry{
			name:     name,
			location: filepath.Join(c.config.Root, name),
			metaDir:  filepath.Join(c.config.Root, "."+name),
		}
		e.cond = sync.NewCond(&e.mu)
		c.entries[name] = e
	}
	return e, nil
}

// resolve promotes an Absent entry whose storage already exists, such as a
// corpus created by an earlier process. Caller holds e.mu.
func (c *Coordinator) resolve(e *entry) {
	if e.state == Absent && c.config.Backend.Exists(e.location) {
		e.state = Created
	}
}

// available fails unless the index exists and is not being unloaded.
// Caller holds e.mu.
func (c *Coordinator) available(e *entry) error {
	c.resolve(e)
	switch e.state {
	case Created, Active:
		return nil
	case Unloading, Deleted:
		return txerrors.IndexUnavailable(e.name, e.state.String())
	default:
		return txerrors.IndexNotFound(e.name)
	}
}

// Exists reports whether storage is present for name. Cached state is not
// consulted.
func (c *Coordinator) Exists(name string) bool {
	if ValidateName(name) != nil {
		return false
	}
	return c.config.Backend.Exists(filepath.Join(c.config.Root, name))
}

// IsUnloading reports whether name is currently being removed.
func (c *Coordinator) IsUnloading(name string) bool {
	e, err := c.entry(name)
	if err != nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == Unloading
}

// State returns the lifecycle state of name.
func (c *Coordinator) State(name string) State {
	e, err := c.entry(name)
	if err != nil {
		return Absent
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	c.resolve(e)
	return e.state
}

// Stat describes an index without activating it.
type Stat struct {
	State     State
	Documents uint64
	Mapped    bool
}

// Stat reports the state, document count and mapping presence of name. It
// leaves the lifecycle state untouched: a corpus that is not already open is
// opened for the count and closed again.
func (c *Coordinator) Stat(name string) (Stat, error) {
	e, err := c.entry(name)
	if err != nil {
		return Stat{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := c.available(e); err != nil {
		return Stat{State: e.state}, err
	}
	st := Stat{State: e.state, Mapped: e.schema != nil}
	if !st.Mapped {
		_, err := c.config.Schemas.Load(e.metaDir)
		switch {
		case err == nil:
			st.Mapped = true
		case !errors.Is(err, schema.ErrNotFound):
			return st, txerrors.IOError(fmt.Sprintf("failed to load mapping for %s", e.name), err)
		}
	}

	st.Documents, err = c.docCount(e)
	return st, err
}

// docCount runs with e.mu held.
func (c *Coordinator) docCount(e *entry) (uint64, error) {
	if e.dir != nil {
		return e.dir.DocCount()
	}
	dir, err := c.config.Backend.OpenDirectory(e.location)
	if err != nil {
		return 0, txerrors.IOError(fmt.Sprintf("failed to open corpus of %s", e.name), err)
	}
	n, err := dir.DocCount()
	if cerr := dir.Close(); err == nil && cerr != nil {
		err = txerrors.IOError(fmt.Sprintf("failed to close corpus of %s", e.name), cerr)
	}
	return n, err
}

// Generation returns the schema generation of name. It changes on every
// create, remap and deletion, so it can key caches derived from the schema.
func (c *Coordinator) Generation(name string) uint64 {
	e, err := c.entry(name)
	if err != nil {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.generation
}

// Create allocates storage for name. Concurrent creates of the same name are
// serialized: exactly one succeeds and the others see IndexAlreadyExists.
func (c *Coordinator) Create(name string) error {
	e, err := c.entry(name)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == Unloading {
		return txerrors.IndexUnavailable(name, e.state.String())
	}
	if c.config.Backend.Exists(e.location) {
		return txerrors.IndexExists(name)
	}

	// A metadata directory without a corpus is left over from an interrupted
	// removal; it must not leak into the new index.
	if err := c.config.Schemas.Delete(e.metaDir); err != nil {
		return txerrors.IOError(fmt.Sprintf("failed to clear stale metadata for %s", name), err)
	}
	if err := c.config.Backend.Create(e.location); err != nil {
		return txerrors.Wrap(txerrors.ErrCodeIndexFailed, err).WithDetail("index", name)
	}

	e.state = Created
	e.schema = nil
	e.analyzer = nil
	e.generation++

	slog.Info("index_created",
		slog.String("index", name),
		slog.String("location", e.location))
	return nil
}

// GetSchema returns a copy of the schema of name, loading it on first use.
// It fails with SchemaError when no mapping has been set.
func (c *Coordinator) GetSchema(name string) (*schema.Schema, error) {
	e, err := c.entry(name)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := c.loadSchema(e)
	if err != nil {
		return nil, err
	}
	return s.Clone(), nil
}

// GetAnalyzer returns the cached analyzer of name, building it from the
// schema on first use.
func (c *Coordinator) GetAnalyzer(name string) (*store.Analyzer, error) {
	e, err := c.entry(name)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	return c.loadAnalyzer(e)
}

// GetSearcher returns a shared read-only handle on name. The handle carries
// the schema and analyzer current at acquisition and stays valid across a
// later remap or unload until Release.
func (c *Coordinator) GetSearcher(name string) (*SearcherHandle, error) {
	e, err := c.entry(name)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	an, err := c.loadAnalyzer(e)
	if err != nil {
		return nil, err
	}
	dir, err := c.openDirectory(e)
	if err != nil {
		return nil, err
	}
	searcher, err := dir.OpenSearcher()
	if err != nil {
		return nil, txerrors.Wrap(txerrors.ErrCodeSearchFailed, err).WithDetail("index", name)
	}

	e.refs++
	return &SearcherHandle{
		handle:     handle{coord: c, entry: e},
		Searcher:   searcher,
		Schema:     e.schema.Clone(),
		Analyzer:   an,
		Generation: e.generation,
	}, nil
}

// AcquireWriter returns the exclusive writer of name, blocking while another
// caller holds it. Writer exclusivity is enforced here rather than left to the
// engine, so that remaps and unloads can wait for writes to drain.
func (c *Coordinator) AcquireWriter(name string) (*WriterHandle, error) {
	e, err := c.entry(name)
	if err != nil {
		return nil, err
	}

	// Take a reference first so an unload started while we wait for the
	// writer lock waits for us instead of deleting underneath.
	e.mu.Lock()
	if err := c.available(e); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	e.refs++
	e.mu.Unlock()

	e.writer.Lock()

	e.mu.Lock()
	defer e.mu.Unlock()

	wh, err := c.openWriter(e)
	if err != nil {
		e.writer.Unlock()
		c.releaseLocked(e)
		return nil, err
	}
	return wh, nil
}

// openWriter runs with e.mu and e.writer held and one reference taken.
func (c *Coordinator) openWriter(e *entry) (*WriterHandle, error) {
	an, err := c.loadAnalyzer(e)
	if err != nil {
		return nil, err
	}
	dir, err := c.openDirectory(e)
	if err != nil {
		return nil, err
	}
	w, err := dir.OpenWriter(an)
	if err != nil {
		return nil, txerrors.Wrap(txerrors.ErrCodeIndexFailed, err).WithDetail("index", e.name)
	}
	return &WriterHandle{
		handle:     handle{coord: c, entry: e, writer: true},
		Writer:     w,
		Schema:     e.schema.Clone(),
		Generation: e.generation,
	}, nil
}

// SetMapping validates s, replaces the persisted schema of name and drops the
// cached schema and analyzer. It waits for an active writer to finish so no
// batch straddles two schemas.
func (c *Coordinator) SetMapping(name string, s *schema.Schema) error {
	if err := schema.Validate(s); err != nil {
		return err
	}
	e, err := c.entry(name)
	if err != nil {
		return err
	}

	e.writer.Lock()
	defer e.writer.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := c.available(e); err != nil {
		return err
	}
	if err := c.config.Schemas.Save(e.metaDir, s); err != nil {
		return txerrors.IOError(fmt.Sprintf("failed to save mapping for %s", name), err)
	}
	c.invalidate(e)
	return nil
}

// RefreshMapping drops the cached schema and analyzer of name. Handles
// already acquired keep their snapshot; the next lookup reloads.
func (c *Coordinator) RefreshMapping(name string) error {
	e, err := c.entry(name)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	c.resolve(e)
	if !e.state.exists() && e.state != Unloading {
		return txerrors.IndexNotFound(name)
	}
	c.invalidate(e)
	return nil
}

// invalidate runs with e.mu held.
func (c *Coordinator) invalidate(e *entry) {
	e.schema = nil
	e.analyzer = nil
	e.generation++
	slog.Info("mapping_refreshed",
		slog.String("index", e.name),
		slog.Uint64("generation", e.generation))
}

// AcquireHandleForUnload moves name to Unloading and returns the token whose
// Close performs the deletion. A second concurrent unload of the same name
// fails with AlreadyUnloading.
func (c *Coordinator) AcquireHandleForUnload(name string) (*UnloadToken, error) {
	e, err := c.entry(name)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	c.resolve(e)
	switch e.state {
	case Unloading:
		return nil, txerrors.AlreadyUnloading(name)
	case Created, Active:
	default:
		return nil, txerrors.IndexNotFound(name)
	}

	e.state = Unloading
	slog.Info("index_unloading",
		slog.String("index", name),
		slog.Int("open_handles", e.refs))
	return &UnloadToken{coord: c, entry: e}, nil
}

// unload runs the Unloading to Deleted transition for e.
func (c *Coordinator) unload(e *entry) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for e.refs > 0 {
		e.cond.Wait()
	}

	if err := c.closeDirectory(e); err != nil {
		slog.Warn("index_close_failed",
			slog.String("index", e.name),
			slog.String("error", err.Error()))
	}
	e.schema = nil
	e.analyzer = nil

	if err := c.config.Backend.DeleteRecursive(e.location); err != nil {
		e.state = Created
		return txerrors.IOError(fmt.Sprintf("failed to delete corpus of %s", e.name), err)
	}
	if err := c.config.Schemas.Delete(e.metaDir); err != nil {
		e.state = Created
		return txerrors.IOError(fmt.Sprintf("failed to delete metadata of %s", e.name), err)
	}

	e.state = Deleted
	e.generation++
	slog.Info("index_deleted", slog.String("index", e.name))
	return nil
}

// List returns the names of all indices with storage under the root.
func (c *Coordinator) List() ([]string, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, txerrors.Closed("coordinator")
	}

	names, err := c.config.Backend.List()
	if err != nil {
		return nil, txerrors.IOError("failed to list indices", err)
	}
	return names, nil
}

// Close waits for outstanding handles, closes every open corpus and releases
// the root lock. Later calls are no-ops.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	entries := make([]*entry, 0, len(c.entries))
	for _, e := range c.entries {
		entries = append(entries, e)
	}
	c.mu.Unlock()

	var errs []error
	for _, e := range entries {
		e.mu.Lock()
		for e.refs > 0 {
			e.cond.Wait()
		}
		if err := c.closeDirectory(e); err != nil {
			errs = append(errs, fmt.Errorf("index %s: %w", e.name, err))
		}
		e.mu.Unlock()
	}

	if c.config.Lock != nil {
		if err := c.config.Lock.Release(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// loadSchema runs with e.mu held.
func (c *Coordinator) loadSchema(e *entry) (*schema.Schema, error) {
	if err := c.available(e); err != nil {
		return nil, err
	}
	if e.schema == nil {
		s, err := c.config.Schemas.Load(e.metaDir)
		if errors.Is(err, schema.ErrNotFound) {
			return nil, txerrors.SchemaError(fmt.Sprintf("index %s has no mapping", e.name)).
				WithSuggestion("Set a mapping before indexing or searching")
		}
		if err != nil {
			return nil, txerrors.IOError(fmt.Sprintf("failed to load mapping for %s", e.name), err)
		}
		e.schema = s
	}
	e.state = Active
	return e.schema, nil
}

// loadAnalyzer runs with e.mu held.
func (c *Coordinator) loadAnalyzer(e *entry) (*store.Analyzer, error) {
	s, err := c.loadSchema(e)
	if err != nil {
		return nil, err
	}
	if e.analyzer == nil {
		an, err := store.NewAnalyzer(s)
		if err != nil {
			return nil, txerrors.SchemaError(err.Error())
		}
		e.analyzer = an
	}
	return e.analyzer, nil
}

// openDirectory runs with e.mu held.
func (c *Coordinator) openDirectory(e *entry) (*store.Directory, error) {
	if e.dir != nil {
		return e.dir, nil
	}
	dir, err := c.config.Backend.OpenDirectory(e.location)
	if err != nil {
		if txerrors.GetCode(err) != "" {
			return nil, err
		}
		return nil, txerrors.IOError(fmt.Sprintf("failed to open corpus of %s", e.name), err)
	}
	e.dir = dir
	slog.Debug("index_opened", slog.String("index", e.name))
	return dir, nil
}

// closeDirectory runs with e.mu held and no references outstanding.
func (c *Coordinator) closeDirectory(e *entry) error {
	if e.dir == nil {
		return nil
	}
	err := e.dir.Close()
	e.dir = nil
	return err
}

func (c *Coordinator) release(e *entry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c.releaseLocked(e)
}

func (c *Coordinator) releaseLocked(e *entry) {
	e.refs--
	if e.refs == 0 {
		e.cond.Broadcast()
	}
}
