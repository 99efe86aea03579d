package cmd

import (
	"time"

	"github.com/spf13/cobra"

	txerrors "github.com/Aman-CERP/textdex/internal/errors"
	"github.com/Aman-CERP/textdex/internal/preflight"
	"github.com/Aman-CERP/textdex/internal/service"
)

// doctorReport is the JSON form of a doctor run.
type doctorReport struct {
	Status     string                  `json:"status"`
	Checks     []preflight.CheckResult `json:"checks"`
	LastPassed *time.Time              `json:"last_passed,omitempty"`
}

func newDoctorCmd(opts *rootOptions) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the data root and indices",
		Long: `Run diagnostics against the configured data root.

Checks:
  - Data root exists and is writable
  - Disk space (100MB minimum)
  - File descriptor limits (1024 minimum)
  - Data root lock is free
  - Every index has a mapping

When another process holds the data root, the index check is skipped.`,
		Example: `  textdex doctor
  textdex doctor --verbose
  textdex --json doctor`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, opts, verbose)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed diagnostic info")
	return cmd
}

func runDoctor(cmd *cobra.Command, opts *rootOptions, verbose bool) error {
	dataDir := opts.cfg.DataDir
	checker := preflight.New(
		preflight.WithVerbose(verbose),
		preflight.WithOutput(cmd.OutOrStdout()),
	)

	results := checker.RunAll(cmd.Context(), dataDir)
	if lockFree(results) {
		err := opts.withService(func(svc *service.Service) error {
			results = append(results, checker.CheckIndices(svc))
			return nil
		})
		if err != nil {
			results = append(results, preflight.CheckResult{
				Name:     "indices",
				Status:   preflight.StatusFail,
				Message:  err.Error(),
				Required: true,
			})
		}
	}

	last := preflight.LastPassed(dataDir)
	failed := checker.HasCriticalFailures(results)
	if !failed {
		_ = preflight.MarkPassed(dataDir, time.Now())
	}

	out := opts.writer(cmd.OutOrStdout())
	if opts.jsonOutput {
		report := doctorReport{Status: checker.SummaryStatus(results), Checks: results}
		if !last.IsZero() {
			report.LastPassed = &last
		}
		if err := out.JSON(report); err != nil {
			return err
		}
	} else {
		checker.PrintResults(results)
		if !last.IsZero() {
			out.Dimf("last successful check: %s ago", time.Since(last).Round(time.Second))
		}
	}

	if failed {
		return txerrors.New(txerrors.ErrCodeUnhealthyRoot, "system check failed", nil).
			WithDetail("data_dir", dataDir).
			WithSuggestion("Run 'textdex doctor --verbose' for details")
	}
	return nil
}

func lockFree(results []preflight.CheckResult) bool {
	for _, r := range results {
		if r.Name == "data_lock" {
			return r.Status == preflight.StatusPass
		}
	}
	return false
}
