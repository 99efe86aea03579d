// Package service implements the index operations exposed to callers:
// creating and removing indices, managing their mappings, indexing documents
// and querying them.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/Aman-CERP/textdex/internal/config"
	"github.com/Aman-CERP/textdex/internal/coordinator"
	txerrors "github.com/Aman-CERP/textdex/internal/errors"
	"github.com/Aman-CERP/textdex/internal/mapper"
	"github.com/Aman-CERP/textdex/internal/query"
	"github.com/Aman-CERP/textdex/internal/schema"
	"github.com/Aman-CERP/textdex/internal/store"
	"github.com/Aman-CERP/textdex/internal/telemetry"
)

// Options configures a Service.
type Options struct {
	// DataDir is the data root. Ignored by the memory backend.
	DataDir string

	// Backend is "disk" (default) or "memory".
	Backend string

	// Query configures search and group-by.
	Query query.Config

	// Batch configures document mapping.
	Batch mapper.BatchOptions

	// Telemetry enables query statistics. The disk backend persists them
	// under the data root; the memory backend keeps them in memory.
	Telemetry bool

	// FlushInterval is how often query statistics are persisted.
	FlushInterval time.Duration
}

// OptionsFromConfig derives service options from loaded configuration.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	mode, err := mapper.ParseBatchMode(cfg.Indexing.BatchMode)
	if err != nil {
		return Options{}, txerrors.ConfigError("invalid indexing.batch_mode", err)
	}
	return Options{
		DataDir: cfg.DataDir,
		Backend: cfg.Backend,
		Query: query.Config{
			MaxResults: cfg.Search.MaxResults,
			MaxGroups:  cfg.Search.MaxGroups,
			CacheSize:  cfg.Search.QueryCacheSize,
		},
		Batch: mapper.BatchOptions{
			Mode:    mode,
			Workers: cfg.Indexing.Workers,
		},
		Telemetry:     cfg.Telemetry.IsEnabled(),
		FlushInterval: cfg.Telemetry.Interval(),
	}, nil
}

// Service is the entry point for index operations. It is safe for
// concurrent use.
type Service struct {
	coord   *coordinator.Coordinator
	facade  *query.Facade
	batch   mapper.BatchOptions
	metrics *telemetry.Metrics
}

// Open creates a Service. The disk backend takes an exclusive lock on the
// data root, held until Close.
func Open(opts Options) (*Service, error) {
	backend, err := store.NewBackend(opts.Backend, opts.DataDir)
	if err != nil {
		return nil, txerrors.ConfigError("invalid storage backend", err)
	}

	cc := coordinator.Config{Root: opts.DataDir, Backend: backend}
	if _, ok := backend.(*store.MemoryBackend); ok {
		cc.Schemas = schema.NewMemoryStore()
	} else {
		lock := store.NewRootLock(opts.DataDir)
		if err := lock.Acquire(); err != nil {
			return nil, err
		}
		cc.Schemas = schema.FileStore{}
		cc.Lock = lock
	}
	coord := coordinator.New(cc)

	facade, err := query.New(coord, opts.Query)
	if err != nil {
		_ = coord.Close()
		return nil, txerrors.InternalError("failed to create query facade", err)
	}

	svc := &Service{coord: coord, facade: facade, batch: opts.Batch}
	if opts.Telemetry {
		metrics, err := openMetrics(backend, opts)
		if err != nil {
			_ = coord.Close()
			return nil, err
		}
		svc.metrics = metrics
	}

	slog.Debug("service_opened",
		slog.String("backend", string(backendKind(backend))),
		slog.String("data_dir", opts.DataDir),
		slog.Bool("telemetry", opts.Telemetry))
	return svc, nil
}

func openMetrics(backend store.Backend, opts Options) (*telemetry.Metrics, error) {
	cfg := telemetry.DefaultConfig()
	cfg.FlushInterval = opts.FlushInterval

	if backendKind(backend) == store.KindMemory {
		return telemetry.New(nil, cfg), nil
	}
	db, err := telemetry.OpenSQLite(filepath.Join(opts.DataDir, telemetry.DatabaseName))
	if err != nil {
		return nil, txerrors.IOError("failed to open query statistics", err)
	}
	return telemetry.New(db, cfg), nil
}

func backendKind(b store.Backend) store.Kind {
	if _, ok := b.(*store.MemoryBackend); ok {
		return store.KindMemory
	}
	return store.KindDisk
}

// CreateIndex allocates a new empty index. It fails with IndexAlreadyExists
// when storage for name exists and IndexUnavailable while name is being
// removed.
func (s *Service) CreateIndex(name string) error {
	if s.coord.IsUnloading(name) {
		return txerrors.IndexUnavailable(name, coordinator.Unloading.String())
	}
	return s.coord.Create(name)
}

// Exists reports whether storage for name is present.
func (s *Service) Exists(name string) bool {
	return s.coord.Exists(name)
}

// RemoveIndex deletes name and all its storage. Removing an index that does
// not exist succeeds.
func (s *Service) RemoveIndex(name string) error {
	token, err := s.coord.AcquireHandleForUnload(name)
	if errors.Is(err, txerrors.ErrIndexNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return token.Close()
}

// SetMapping replaces the schema of name.
func (s *Service) SetMapping(name string, sc *schema.Schema) error {
	return s.coord.SetMapping(name, sc)
}

// GetMapping returns the schema of name.
func (s *Service) GetMapping(name string) (*schema.Schema, error) {
	return s.coord.GetSchema(name)
}

// DocumentResult is the outcome of one submitted document.
type DocumentResult struct {
	// Position is the document's index in the submitted batch.
	Position int `json:"position"`

	// ID is the internal identifier assigned to an indexed document.
	ID string `json:"id,omitempty"`

	// Err is set when the document was rejected.
	Err error `json:"-"`

	// Error is Err rendered for JSON output.
	Error string `json:"error,omitempty"`
}

// IndexReport summarizes an IndexDocuments call.
type IndexReport struct {
	Indexed int              `json:"indexed"`
	Failed  int              `json:"failed"`
	Results []DocumentResult `json:"results"`
}

// Merge appends the results of a later chunk, shifting its positions past
// the documents already reported.
func (r *IndexReport) Merge(next *IndexReport) {
	offset := len(r.Results)
	for _, res := range next.Results {
		res.Position += offset
		r.Results = append(r.Results, res)
	}
	r.Indexed += next.Indexed
	r.Failed += next.Failed
}

// IndexDocuments maps docs through the schema of name and writes them in one
// batch. With the best_effort batch mode, documents that fail to map are
// skipped and reported; with fail_fast, the first failure rejects the whole
// batch and nothing is written.
func (s *Service) IndexDocuments(ctx context.Context, name string, docs []mapper.Document) (*IndexReport, error) {
	start := time.Now()

	w, err := s.coord.AcquireWriter(name)
	if err != nil {
		return nil, err
	}
	defer w.Release()

	mapped, err := mapper.MapBatch(ctx, w.Schema, docs, s.batch)
	if err != nil {
		return nil, err
	}

	report := &IndexReport{Results: make([]DocumentResult, len(docs))}
	for _, f := range mapped.Failures {
		report.Results[f.Position] = DocumentResult{Position: f.Position, Err: f.Err, Error: f.Err.Error()}
		report.Failed++
	}
	for _, m := range mapped.Mapped {
		id := uuid.NewString()
		if err := w.Writer.Add(id, m.Values); err != nil {
			return nil, txerrors.Wrap(txerrors.ErrCodeIndexFailed, err).WithDetail("index", name)
		}
		report.Results[m.Position] = DocumentResult{Position: m.Position, ID: id}
	}

	if err := w.Writer.Flush(); err != nil {
		return nil, txerrors.Wrap(txerrors.ErrCodeIndexFailed, err).WithDetail("index", name)
	}
	report.Indexed = len(mapped.Mapped)

	for _, f := range mapped.Failures {
		slog.Warn("document_rejected",
			slog.String("index", name),
			slog.Int("position", f.Position),
			slog.String("error", f.Err.Error()))
	}
	slog.Info("documents_indexed",
		slog.String("index", name),
		slog.Int("indexed", report.Indexed),
		slog.Int("failed", report.Failed),
		slog.Duration("duration", time.Since(start)))
	return report, nil
}

// Search returns the top ranked records of name matching text.
func (s *Service) Search(ctx context.Context, name, text string) ([]mapper.Record, error) {
	start := time.Now()
	records, err := s.facade.Search(ctx, name, text)
	s.record(telemetry.KindSearch, name, text, len(records), start, err)
	return records, err
}

// GroupBy returns the distinct values of field among records of name
// matching text.
func (s *Service) GroupBy(ctx context.Context, name, field, text string) ([]string, error) {
	start := time.Now()
	keys, err := s.facade.GroupBy(ctx, name, field, text)
	s.record(telemetry.KindGroupBy, name, text, len(keys), start, err)
	return keys, err
}

func (s *Service) record(kind telemetry.QueryKind, name, text string, results int, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.Record(telemetry.QueryEvent{
		Index:     name,
		Kind:      kind,
		Query:     text,
		Results:   results,
		Latency:   time.Since(start),
		Failed:    err != nil,
		Timestamp: start,
	})
}

// QueryMetrics returns the in-memory query statistics collected since Open.
// It returns nil when telemetry is disabled.
func (s *Service) QueryMetrics() *telemetry.Snapshot {
	if s.metrics == nil {
		return nil
	}
	return s.metrics.Snapshot()
}

// QueryStats returns persisted query statistics for the inclusive date range
// [from, to] (YYYY-MM-DD, either may be empty). It fails with a config error
// when telemetry is disabled or not persisted.
func (s *Service) QueryStats(from, to string, limit int) (*telemetry.Summary, error) {
	if s.metrics == nil {
		return nil, txerrors.ConfigError("query statistics are disabled", nil)
	}
	for _, d := range []string{from, to} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(telemetry.DateLayout, d); err != nil {
			return nil, txerrors.ValidationError(fmt.Sprintf("invalid date %q, want YYYY-MM-DD", d), err)
		}
	}
	summary, err := s.metrics.Summary(from, to, limit)
	if errors.Is(err, telemetry.ErrNoStore) {
		return nil, txerrors.ConfigError("query statistics are not persisted by the memory backend", err)
	}
	if err != nil {
		return nil, txerrors.IOError("failed to read query statistics", err)
	}
	return summary, nil
}

// IndexInfo describes one index.
type IndexInfo struct {
	Name      string `json:"name"`
	State     string `json:"state"`
	Documents uint64 `json:"documents"`
	Mapped    bool   `json:"mapped"`
}

// ListIndices returns every index under the data root.
func (s *Service) ListIndices() ([]IndexInfo, error) {
	names, err := s.coord.List()
	if err != nil {
		return nil, err
	}

	infos := make([]IndexInfo, 0, len(names))
	for _, name := range names {
		st, err := s.coord.Stat(name)
		if err != nil {
			slog.Warn("index_stat_failed", slog.String("index", name), txerrors.LogAttr(err))
		}
		infos = append(infos, IndexInfo{
			Name:      name,
			State:     st.State.String(),
			Documents: st.Documents,
			Mapped:    st.Mapped,
		})
	}
	return infos, nil
}

// Close waits for in-flight operations and releases every resource.
func (s *Service) Close() error {
	var errs []error
	if err := s.coord.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close indices: %w", err))
	}
	if s.metrics != nil {
		if err := s.metrics.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close query statistics: %w", err))
		}
	}
	return errors.Join(errs...)
}
