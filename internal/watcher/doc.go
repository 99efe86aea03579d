// Package watcher ingests JSON document files dropped into a directory.
//
// A DirWatcher reports file events for one directory through fsnotify.
// Events are debounced so a file written in several chunks is reported once
// it settles, and filtered to visible files with a document extension
// (.json, .jsonl, .ndjson by default). An Ingester decodes each reported
// file and indexes its documents into a named index.
//
// Usage:
//
//	w, err := watcher.NewDirWatcher(watcher.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//	if err := w.Start(ctx, "/srv/drop"); err != nil {
//	    return err
//	}
//
//	in := watcher.NewIngester(svc, "books", watcher.IngesterOptions{RemoveProcessed: true})
//	in.Scan(ctx, "/srv/drop", watcher.DefaultOptions())
//	return in.Run(ctx, w.Events())
package watcher
