package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	txerrors "github.com/Aman-CERP/textdex/internal/errors"
	"github.com/Aman-CERP/textdex/internal/mapper"
	"github.com/Aman-CERP/textdex/internal/service"
	"github.com/Aman-CERP/textdex/internal/ui"
)

type indexFlags struct {
	chunkSize int
	plain     bool
	noColor   bool
}

func newIndexCmd(opts *rootOptions) *cobra.Command {
	var flags indexFlags

	cmd := &cobra.Command{
		Use:   "index <index> <file|->",
		Short: "Index JSON documents",
		Long: `Index documents read from a file, or stdin with "-". The input may be a
JSON array of objects, a single object, or one object per line (JSONL).

Documents whose values cannot be converted to their field types are skipped
and reported when indexing.batch_mode is best_effort (the default). With
fail_fast the whole batch is rejected instead.

With --chunk-size, documents are written in batches of that many and
progress is shown on stderr. Under fail_fast, a failing chunk stops the
import; chunks written before it stay indexed.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.chunkSize < 0 {
				return txerrors.ValidationError("--chunk-size must not be negative", nil)
			}
			docs, err := readDocuments(cmd.InOrStdin(), args[1])
			if err != nil {
				return err
			}

			return opts.withService(func(svc *service.Service) error {
				return runIndex(cmd, opts, flags, svc, args[0], docs)
			})
		},
	}

	cmd.Flags().IntVar(&flags.chunkSize, "chunk-size", 0, "Documents per batch (0 writes everything in one batch)")
	cmd.Flags().BoolVar(&flags.plain, "plain", false, "Plain progress lines instead of the interactive panel")
	cmd.Flags().BoolVar(&flags.noColor, "no-color", false, "Disable colors in progress output")

	return cmd
}

func runIndex(cmd *cobra.Command, opts *rootOptions, flags indexFlags, svc *service.Service, name string, docs []mapper.Document) error {
	ctx := cmd.Context()
	start := time.Now()

	var progress ui.Renderer
	if flags.chunkSize > 0 && !opts.jsonOutput {
		progress = ui.NewRenderer(ui.NewConfig(cmd.ErrOrStderr(),
			ui.WithForcePlain(flags.plain),
			ui.WithNoColor(flags.noColor),
			ui.WithTitle(name),
		))
		if err := progress.Start(ctx); err != nil {
			return err
		}
		defer func() { _ = progress.Stop() }()
		progress.UpdateProgress(ui.ProgressEvent{
			Stage:   ui.StageDecoding,
			Message: fmt.Sprintf("decoded %d documents", len(docs)),
		})
	}

	report, chunks, err := indexChunks(ctx, svc, name, docs, flags.chunkSize, progress)
	out := opts.writer(cmd.OutOrStdout())
	if err != nil {
		if progress != nil {
			progress.AddError(ui.ErrorEvent{Position: -1, Err: err})
		}
		if report.Indexed > 0 {
			out.Warningf("%d documents from earlier chunks remain indexed in %s", report.Indexed, name)
		}
		return err
	}

	if progress != nil {
		progress.Complete(ui.CompletionStats{
			Index:    name,
			Total:    len(docs),
			Indexed:  report.Indexed,
			Failed:   report.Failed,
			Chunks:   chunks,
			Duration: time.Since(start),
		})
	}

	if opts.jsonOutput {
		return out.JSON(report)
	}
	out.Successf("Indexed %d of %d documents into %s", report.Indexed, len(docs), name)
	if progress == nil {
		for _, r := range report.Results {
			if r.Err != nil {
				out.Warningf("document %d skipped: %s", r.Position, r.Error)
			}
		}
	}
	return nil
}

// indexChunks writes docs in batches of size, or all at once when size is
// zero. On error the returned report covers the chunks already written.
func indexChunks(ctx context.Context, svc *service.Service, name string, docs []mapper.Document, size int, progress ui.Renderer) (*service.IndexReport, int, error) {
	if size <= 0 || size > len(docs) {
		size = max(len(docs), 1)
	}
	total := (len(docs) + size - 1) / size
	if total == 0 {
		total = 1
	}

	merged := &service.IndexReport{Results: []service.DocumentResult{}}
	for chunk := 0; chunk < total; chunk++ {
		if err := ctx.Err(); err != nil {
			return merged, chunk, err
		}
		lo := chunk * size
		hi := min(lo+size, len(docs))

		report, err := svc.IndexDocuments(ctx, name, docs[lo:hi])
		if err != nil {
			return merged, chunk, err
		}
		merged.Merge(report)

		if progress == nil {
			continue
		}
		for _, r := range report.Results {
			if r.Err != nil {
				progress.AddError(ui.ErrorEvent{Position: lo + r.Position, Err: r.Err, IsWarn: true})
			}
		}
		progress.UpdateProgress(ui.ProgressEvent{
			Stage:   ui.StageIndexing,
			Current: hi,
			Total:   len(docs),
			Message: fmt.Sprintf("chunk %d of %d", chunk+1, total),
		})
	}
	return merged, total, nil
}

// readDocuments decodes documents from path, or stdin when path is "-".
func readDocuments(stdin io.Reader, path string) ([]mapper.Document, error) {
	if path == "-" {
		return mapper.Decode(stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, txerrors.IOError(fmt.Sprintf("failed to open %s", path), err)
	}
	defer func() { _ = f.Close() }()
	return mapper.Decode(f)
}
