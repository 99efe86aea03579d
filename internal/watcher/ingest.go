package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	txerrors "github.com/Aman-CERP/textdex/internal/errors"
	"github.com/Aman-CERP/textdex/internal/mapper"
	"github.com/Aman-CERP/textdex/internal/service"
)

// DocumentIndexer writes documents into a named index.
type DocumentIndexer interface {
	IndexDocuments(ctx context.Context, name string, docs []mapper.Document) (*service.IndexReport, error)
}

// Result is the outcome of ingesting one file.
type Result struct {
	Path   string
	Report *service.IndexReport
	Err    error

	// Removed is set when the file was deleted after a successful ingest.
	Removed bool
}

// IngesterOptions configures an Ingester.
type IngesterOptions struct {
	// RemoveProcessed deletes a file once its documents are indexed.
	// Files that fail to decode or index are left in place.
	RemoveProcessed bool

	// OnResult, when set, is called after every file.
	OnResult func(Result)
}

// Ingester indexes the documents of files reported by a DirWatcher.
type Ingester struct {
	indexer DocumentIndexer
	index   string
	opts    IngesterOptions

	mu   sync.Mutex
	seen map[string]fileStamp
}

// fileStamp identifies a file version already ingested.
type fileStamp struct {
	modTime time.Time
	size    int64
}

// NewIngester creates an ingester writing into index.
func NewIngester(indexer DocumentIndexer, index string, opts IngesterOptions) *Ingester {
	return &Ingester{
		indexer: indexer,
		index:   index,
		opts:    opts,
		seen:    make(map[string]fileStamp),
	}
}

// IngestFile decodes path and indexes its documents. A file version that
// was already ingested is skipped and reported with a nil Report.
func (i *Ingester) IngestFile(ctx context.Context, path string) Result {
	res := Result{Path: path}

	info, err := os.Stat(path)
	if err != nil {
		res.Err = txerrors.IOError(fmt.Sprintf("failed to stat %s", path), err)
		return res
	}
	stamp := fileStamp{modTime: info.ModTime(), size: info.Size()}
	i.mu.Lock()
	prev, done := i.seen[path]
	i.mu.Unlock()
	if done && prev == stamp {
		return res
	}

	docs, err := decodeFile(path)
	if err != nil {
		res.Err = err
		return res
	}

	report := &service.IndexReport{}
	if len(docs) > 0 {
		report, err = i.indexer.IndexDocuments(ctx, i.index, docs)
		if err != nil {
			res.Err = err
			return res
		}
	}
	res.Report = report

	i.mu.Lock()
	i.seen[path] = stamp
	i.mu.Unlock()

	if i.opts.RemoveProcessed {
		if err := os.Remove(path); err != nil {
			slog.Warn("ingest_remove_failed", slog.String("path", path), slog.String("error", err.Error()))
		} else {
			res.Removed = true
			i.mu.Lock()
			delete(i.seen, path)
			i.mu.Unlock()
		}
	}
	return res
}

func decodeFile(path string) ([]mapper.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, txerrors.IOError(fmt.Sprintf("failed to open %s", path), err)
	}
	defer func() { _ = f.Close() }()
	return mapper.Decode(f)
}

// Scan ingests the document files already present in dir, in name order.
func (i *Ingester) Scan(ctx context.Context, dir string, opts Options) ([]Result, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, txerrors.IOError(fmt.Sprintf("failed to read %s", dir), err)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, txerrors.IOError("failed to resolve directory", err)
	}

	var results []Result
	for _, e := range entries {
		if ctx.Err() != nil {
			return results, ctx.Err()
		}
		if !e.Type().IsRegular() || !opts.Accepts(e.Name()) {
			continue
		}
		results = append(results, i.handle(ctx, filepath.Join(absDir, e.Name())))
	}
	return results, nil
}

// Run ingests every created or modified file reported on events until the
// channel closes or ctx is done.
func (i *Ingester) Run(ctx context.Context, events <-chan []FileEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-events:
			if !ok {
				return nil
			}
			sort.Slice(batch, func(a, b int) bool { return batch[a].Path < batch[b].Path })
			for _, ev := range batch {
				if ev.Operation == OpDelete {
					i.mu.Lock()
					delete(i.seen, ev.Path)
					i.mu.Unlock()
					continue
				}
				if _, err := os.Stat(ev.Path); err != nil {
					continue
				}
				i.handle(ctx, ev.Path)
			}
		}
	}
}

func (i *Ingester) handle(ctx context.Context, path string) Result {
	res := i.IngestFile(ctx, path)
	switch {
	case res.Err != nil:
		slog.Warn("ingest_failed",
			slog.String("index", i.index),
			slog.String("path", path),
			txerrors.LogAttr(res.Err))
	case res.Report != nil:
		slog.Info("ingest_completed",
			slog.String("index", i.index),
			slog.String("path", path),
			slog.Int("indexed", res.Report.Indexed),
			slog.Int("failed", res.Report.Failed))
	default:
		return res
	}
	if i.opts.OnResult != nil {
		i.opts.OnResult(res)
	}
	return res
}
