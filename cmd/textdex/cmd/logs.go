package cmd

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	txerrors "github.com/Aman-CERP/textdex/internal/errors"
	"github.com/Aman-CERP/textdex/internal/logging"
)

func newLogsCmd(opts *rootOptions) *cobra.Command {
	var (
		lines int
		level string
		file  string
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent log records",
		Long: `Show the most recent records from the textdex log file. The file is
written when running with --debug or with log.file enabled.`,
		Example: `  textdex logs
  textdex logs -n 200 --level warn`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := file
			if path == "" {
				path = logging.DefaultLogPath()
			}
			if _, err := os.Stat(path); err != nil {
				return txerrors.New(txerrors.ErrCodeFileNotFound, fmt.Sprintf("no log file at %s", path), err).
					WithSuggestion("Run with --debug or set log.file: true to write logs")
			}

			entries, err := logging.Tail(path, lines, logging.ParseLevel(level))
			if err != nil {
				return txerrors.IOError("failed to read log file", err)
			}

			out := opts.writer(cmd.OutOrStdout())
			if opts.jsonOutput {
				return out.JSON(entries)
			}
			for _, e := range entries {
				out.Raw(formatEntry(e))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of records to show (0 for all)")
	cmd.Flags().StringVar(&level, "level", "debug", "Minimum level: debug, info, warn or error")
	cmd.Flags().StringVar(&file, "file", "", "Log file to read (default ~/.textdex/logs/textdex.log)")
	return cmd
}

func formatEntry(e logging.Entry) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %-5s %s", e.Time.Local().Format("2006-01-02 15:04:05"), e.Level, e.Message)
	for _, k := range slices.Sorted(maps.Keys(e.Attrs)) {
		fmt.Fprintf(&sb, " %s=%v", k, e.Attrs[k])
	}
	return sb.String()
}
