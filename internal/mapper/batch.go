package mapper

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/textdex/internal/schema"
)

// BatchMode selects how coercion failures affect a submitted batch.
type BatchMode string

const (
	// BestEffort skips documents that fail to map and reports them per document.
	BestEffort BatchMode = "best_effort"
	// FailFast aborts the whole batch on the first failing document.
	FailFast BatchMode = "fail_fast"
)

// ParseBatchMode validates a configured batch mode. Empty means BestEffort.
func ParseBatchMode(s string) (BatchMode, error) {
	switch BatchMode(s) {
	case "", BestEffort:
		return BestEffort, nil
	case FailFast:
		return FailFast, nil
	default:
		return "", fmt.Errorf("unknown batch mode %q (valid: best_effort, fail_fast)", s)
	}
}

// BatchOptions configures MapBatch.
type BatchOptions struct {
	Mode BatchMode
	// Workers bounds concurrent mapping. Zero means runtime.NumCPU().
	Workers int
}

// Mapped is one successfully mapped document.
type Mapped struct {
	Position int
	Values   []schema.Value
}

// Failure is one document that could not be mapped.
type Failure struct {
	Position int
	Err      error
}

// BatchResult holds the outcome of MapBatch in submission order.
type BatchResult struct {
	Mapped   []Mapped
	Failures []Failure
}

// MapBatch maps docs concurrently. In FailFast mode the first failure is
// returned as an error and no documents are reported as mapped. In
// BestEffort mode failures are collected and only ctx errors are returned.
func MapBatch(ctx context.Context, s *schema.Schema, docs []Document, opts BatchOptions) (*BatchResult, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	values := make([][]schema.Value, len(docs))
	errs := make([]error, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, doc := range docs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			v, err := ToIndexedFields(s, doc)
			if err != nil {
				if opts.Mode == FailFast {
					return fmt.Errorf("document %d: %w", i, err)
				}
				errs[i] = err
				return nil
			}
			values[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &BatchResult{Mapped: make([]Mapped, 0, len(docs))}
	for i := range docs {
		if errs[i] != nil {
			res.Failures = append(res.Failures, Failure{Position: i, Err: errs[i]})
			continue
		}
		res.Mapped = append(res.Mapped, Mapped{Position: i, Values: values[i]})
	}
	return res, nil
}
