package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrNotDirectory is returned by Start when the watched path is not a
// directory.
var ErrNotDirectory = errors.New("not a directory")

// DirWatcher reports debounced document file events for a single directory.
// Subdirectories are not watched.
type DirWatcher struct {
	fsWatcher *fsnotify.Watcher
	debouncer *Debouncer
	errors    chan error
	stopCh    chan struct{}
	done      sync.WaitGroup
	dir       string
	opts      Options
	mu        sync.Mutex
	started   bool
	stopped   bool
}

// NewDirWatcher creates a watcher with the given options.
func NewDirWatcher(opts Options) (*DirWatcher, error) {
	opts = opts.WithDefaults()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	return &DirWatcher{
		fsWatcher: fsw,
		debouncer: NewDebouncer(opts.DebounceWindow, opts.EventBufferSize),
		errors:    make(chan error, 10),
		stopCh:    make(chan struct{}),
		opts:      opts,
	}, nil
}

// Start begins watching dir. It returns once the directory is registered;
// events are delivered on Events until Stop is called or ctx is done.
func (w *DirWatcher) Start(ctx context.Context, dir string) error {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve absolute path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return fmt.Errorf("stat watch directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: %w", absPath, ErrNotDirectory)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return errors.New("watcher stopped")
	}
	if w.started {
		return errors.New("watcher already started")
	}
	if err := w.fsWatcher.Add(absPath); err != nil {
		return fmt.Errorf("add directory to watcher: %w", err)
	}
	w.dir = absPath
	w.started = true

	w.done.Add(1)
	go w.loop(ctx)

	slog.Debug("watch_started", slog.String("dir", absPath))
	return nil
}

func (w *DirWatcher) loop(ctx context.Context) {
	defer w.done.Done()
	for {
		select {
		case <-ctx.Done():
			go func() { _ = w.Stop() }()
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.emitError(err)
		}
	}
}

// handleEvent converts and filters an fsnotify event.
func (w *DirWatcher) handleEvent(event fsnotify.Event) {
	if filepath.Dir(event.Name) != w.dir || !w.opts.Accepts(event.Name) {
		return
	}

	var op Operation
	switch {
	case event.Op&fsnotify.Create != 0:
		op = OpCreate
	case event.Op&fsnotify.Write != 0:
		op = OpModify
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		// A rename reports the old name; the new name arrives as Create.
		op = OpDelete
	default:
		return
	}

	if op != OpDelete {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			return
		}
	}

	w.debouncer.Add(FileEvent{
		Path:      event.Name,
		Operation: op,
		Timestamp: time.Now(),
	})
}

func (w *DirWatcher) emitError(err error) {
	select {
	case w.errors <- err:
	default:
		slog.Warn("watch_error_dropped", slog.String("error", err.Error()))
	}
}

// Events returns the channel of debounced event batches. It is closed when
// the watcher stops.
func (w *DirWatcher) Events() <-chan []FileEvent {
	return w.debouncer.Output()
}

// Errors returns a channel of non-fatal watcher errors. It is never closed.
func (w *DirWatcher) Errors() <-chan error {
	return w.errors
}

// Dir returns the watched directory, empty before Start.
func (w *DirWatcher) Dir() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dir
}

// Stop stops the watcher and releases resources. Safe to call multiple
// times.
func (w *DirWatcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	w.mu.Unlock()

	err := w.fsWatcher.Close()
	w.done.Wait()
	w.debouncer.Stop()
	return err
}
