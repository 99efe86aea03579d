package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/textdex/internal/mapper"
	"github.com/Aman-CERP/textdex/internal/service"
)

func newSearchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "search <index> [query...]",
		Short: "Search an index",
		Long: `Search an index with the query-string syntax:

  hello world            terms on the primary field
  title:dune             term on a named field
  "science fiction"      phrase
  +must -must_not        required and excluded clauses
  year:>1960             numeric range

An empty query matches every document.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args[1:], " ")
			return opts.withService(func(svc *service.Service) error {
				records, err := svc.Search(cmd.Context(), args[0], text)
				if err != nil {
					return err
				}

				out := opts.writer(cmd.OutOrStdout())
				if opts.jsonOutput {
					return out.JSON(records)
				}
				if len(records) == 0 {
					out.Warningf("No matches")
					return nil
				}
				for _, r := range records {
					out.Status(fmt.Sprintf("%.3f", r[mapper.ScoreKey]), fmt.Sprint(r[mapper.IDKey]))
					for _, line := range recordLines(r) {
						out.Dimf("%s", line)
					}
				}
				return nil
			})
		},
	}
}

// recordLines renders the fields of r as sorted key=value lines, leaving out
// the synthetic id and score.
func recordLines(r mapper.Record) []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		if k == mapper.IDKey || k == mapper.ScoreKey {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s=%v", k, r[k]))
	}
	return lines
}

func newGroupByCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "groupby <index> <field> [query...]",
		Short: "List the distinct values of a field among matching documents",
		Long: `List the distinct values of a field, most frequent first, among documents
matching the query. An empty query matches every document. Only text values
are listed; numeric fields produce no groups.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args[2:], " ")
			return opts.withService(func(svc *service.Service) error {
				keys, err := svc.GroupBy(cmd.Context(), args[0], args[1], text)
				if err != nil {
					return err
				}

				out := opts.writer(cmd.OutOrStdout())
				if opts.jsonOutput {
					return out.JSON(keys)
				}
				for _, k := range keys {
					out.Raw(k)
				}
				return nil
			})
		},
	}
}
