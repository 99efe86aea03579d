package store

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/document"
	index "github.com/blevesearch/bleve_index_api"

	"github.com/Aman-CERP/textdex/internal/schema"
)

// Writer accumulates documents and commits them in one batch on Flush.
type Writer struct {
	dir      *Directory
	analyzer *Analyzer
	batch    *bleve.Batch
	pending  int
	closed   bool
}

// Add queues a document built from values under id.
func (w *Writer) Add(id string, values []schema.Value) error {
	if w.closed {
		return fmt.Errorf("writer is closed")
	}
	if id == "" {
		return fmt.Errorf("document id cannot be empty")
	}

	doc := document.NewDocument(id)
	for _, v := range values {
		field, err := w.field(v)
		if err != nil {
			return fmt.Errorf("document %s: %w", id, err)
		}
		doc.AddField(field)
	}

	if err := w.batch.IndexAdvanced(doc); err != nil {
		return fmt.Errorf("failed to queue document %s: %w", id, err)
	}
	w.pending++
	return nil
}

// Pending returns the number of documents queued since the last Flush.
func (w *Writer) Pending() int {
	return w.pending
}

// Flush commits all queued documents.
func (w *Writer) Flush() error {
	if w.closed {
		return fmt.Errorf("writer is closed")
	}
	if w.pending == 0 {
		return nil
	}
	if err := w.dir.batch(w.batch); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}
	w.batch.Reset()
	w.pending = 0
	return nil
}

// Close discards anything not flushed.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.batch.Reset()
	w.pending = 0
	return nil
}

func (w *Writer) field(v schema.Value) (document.Field, error) {
	opts := indexingOptions(v)
	name := v.FieldName()

	switch tv := v.(type) {
	case schema.StringValue:
		return document.NewTextFieldCustom(name, nil, []byte(tv.Value), opts, w.analyzer.For(name)), nil
	case schema.TextValue:
		return document.NewTextFieldCustom(name, nil, []byte(tv.Value), opts|index.IncludeTermVectors, w.analyzer.For(name)), nil
	case schema.Int32Value:
		return document.NewNumericFieldWithIndexingOptions(name, nil, float64(tv.Value), opts), nil
	case schema.DoubleValue:
		return document.NewNumericFieldWithIndexingOptions(name, nil, tv.Value, opts), nil
	case schema.SingleValue:
		return document.NewNumericFieldWithIndexingOptions(name, nil, float64(tv.Value), opts), nil
	default:
		return nil, fmt.Errorf("field %q: unsupported value %T", name, v)
	}
}

// indexingOptions translates the schema flags. Indexed fields also get doc
// values so they can be grouped on.
func indexingOptions(v schema.Value) index.FieldIndexingOptions {
	var opts index.FieldIndexingOptions
	if v.IsIndexed() {
		opts |= index.IndexField | index.DocValues
	}
	if v.IsStored() {
		opts |= index.StoreField
	}
	return opts
}
