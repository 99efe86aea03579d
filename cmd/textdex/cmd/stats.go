package cmd

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/textdex/internal/output"
	"github.com/Aman-CERP/textdex/internal/service"
	"github.com/Aman-CERP/textdex/internal/telemetry"
)

func newStatsCmd(opts *rootOptions) *cobra.Command {
	var days, limit int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show query statistics",
		Long: `Display query statistics recorded under the data root:
  - Query counts per kind and per index
  - Latency distribution
  - Top query terms
  - Recent zero-result queries`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			from := ""
			if days > 0 {
				from = time.Now().AddDate(0, 0, -(days - 1)).Format(telemetry.DateLayout)
			}
			return opts.withService(func(svc *service.Service) error {
				summary, err := svc.QueryStats(from, "", limit)
				if err != nil {
					return err
				}
				out := opts.writer(cmd.OutOrStdout())
				if opts.jsonOutput {
					return out.JSON(summary)
				}
				return printSummary(out, summary, days)
			})
		},
	}

	cmd.Flags().IntVar(&days, "days", 7, "Number of days to include (0 for all)")
	cmd.Flags().IntVar(&limit, "limit", 10, "Number of terms and zero-result queries to show")
	return cmd
}

func printSummary(out *output.Writer, s *telemetry.Summary, days int) error {
	period := "all time"
	if days > 0 {
		period = fmt.Sprintf("last %d days", days)
	}
	out.Raw(fmt.Sprintf("Query statistics (%s)", period))
	out.Dimf("total queries: %d", s.TotalQueries)
	if s.TotalQueries == 0 {
		return nil
	}

	out.Raw("")
	rows := make([][]string, 0, len(s.Kinds)+len(s.Indices))
	for _, k := range sortedKeys(s.Kinds) {
		rows = append(rows, []string{"kind", string(k), fmt.Sprint(s.Kinds[k])})
	}
	for _, k := range sortedKeys(s.Indices) {
		rows = append(rows, []string{"index", k, fmt.Sprint(s.Indices[k])})
	}
	for _, b := range []telemetry.LatencyBucket{
		telemetry.BucketP10, telemetry.BucketP50, telemetry.BucketP100,
		telemetry.BucketP500, telemetry.BucketP1000,
	} {
		if n, ok := s.Latency[b]; ok {
			rows = append(rows, []string{"latency", string(b), fmt.Sprint(n)})
		}
	}
	if err := out.Table([]string{"GROUP", "KEY", "QUERIES"}, rows); err != nil {
		return err
	}

	if len(s.TopTerms) > 0 {
		out.Raw("")
		out.Raw("Top terms:")
		for i, tc := range s.TopTerms {
			out.Dimf("%d. %s (%d)", i+1, tc.Term, tc.Count)
		}
	}
	if len(s.ZeroResults) > 0 {
		out.Raw("")
		out.Raw("Recent zero-result queries:")
		for _, z := range s.ZeroResults {
			out.Dimf("%s: %q", z.Index, z.Query)
		}
	}
	return nil
}

func sortedKeys[K ~string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
