package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/textdex/internal/output"
	"github.com/Aman-CERP/textdex/internal/service"
	"github.com/Aman-CERP/textdex/internal/watcher"
)

type watchOptions struct {
	remove   bool
	once     bool
	debounce time.Duration
}

// watchResult is the JSON form of one ingested file.
type watchResult struct {
	Path    string `json:"path"`
	Indexed int    `json:"indexed"`
	Failed  int    `json:"failed"`
	Removed bool   `json:"removed,omitempty"`
	Error   string `json:"error,omitempty"`
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var wo watchOptions

	cmd := &cobra.Command{
		Use:   "watch <index> <dir>",
		Short: "Index JSON files dropped into a directory",
		Long: `Index every .json, .jsonl and .ndjson file in a directory, then keep
watching it and index files as they are written. Hidden files are ignored.

With --remove, files are deleted once their documents are indexed; files that
fail to decode or index are left in place.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return opts.withService(func(svc *service.Service) error {
				return runWatch(ctx, opts.writer(cmd.OutOrStdout()), opts.jsonOutput, svc, args[0], args[1], wo)
			})
		},
	}

	cmd.Flags().BoolVar(&wo.remove, "remove", false, "Delete files after their documents are indexed")
	cmd.Flags().BoolVar(&wo.once, "once", false, "Index the files present now and exit")
	cmd.Flags().DurationVar(&wo.debounce, "debounce", watcher.DefaultOptions().DebounceWindow, "Quiet period before a written file is indexed")
	return cmd
}

func runWatch(ctx context.Context, out *output.Writer, jsonOutput bool, svc *service.Service, index, dir string, wo watchOptions) error {
	if _, err := svc.GetMapping(index); err != nil {
		return err
	}

	wopts := watcher.Options{DebounceWindow: wo.debounce}.WithDefaults()
	in := watcher.NewIngester(svc, index, watcher.IngesterOptions{
		RemoveProcessed: wo.remove,
		OnResult:        func(r watcher.Result) { printWatchResult(out, jsonOutput, r) },
	})

	if wo.once {
		_, err := in.Scan(ctx, dir, wopts)
		return err
	}

	w, err := watcher.NewDirWatcher(wopts)
	if err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()
	if err := w.Start(ctx, dir); err != nil {
		return err
	}
	if _, err := in.Scan(ctx, dir, wopts); err != nil {
		return err
	}
	if !jsonOutput {
		out.Dimf("watching %s for documents (Ctrl+C to stop)", w.Dir())
	}

	err = in.Run(ctx, w.Events())
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func printWatchResult(out *output.Writer, jsonOutput bool, r watcher.Result) {
	name := filepath.Base(r.Path)
	if jsonOutput {
		res := watchResult{Path: r.Path, Removed: r.Removed}
		if r.Report != nil {
			res.Indexed, res.Failed = r.Report.Indexed, r.Report.Failed
		}
		if r.Err != nil {
			res.Error = r.Err.Error()
		}
		_ = out.JSON(res)
		return
	}

	if r.Err != nil {
		out.Errorf("%s: %v", name, r.Err)
		return
	}
	out.Successf("%s: indexed %d documents", name, r.Report.Indexed)
	for _, d := range r.Report.Results {
		if d.Err != nil {
			out.Warningf("%s: document %d skipped: %s", name, d.Position, d.Error)
		}
	}
}
