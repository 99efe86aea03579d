// Package cmd provides the CLI commands for textdex.
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/textdex/internal/config"
	txerrors "github.com/Aman-CERP/textdex/internal/errors"
	"github.com/Aman-CERP/textdex/internal/logging"
	"github.com/Aman-CERP/textdex/internal/output"
	"github.com/Aman-CERP/textdex/internal/profiling"
	"github.com/Aman-CERP/textdex/internal/service"
	"github.com/Aman-CERP/textdex/pkg/version"
)

// rootOptions carries persistent flags and per-invocation state to
// subcommands.
type rootOptions struct {
	dataDir    string
	backend    string
	jsonOutput bool
	debug      bool
	profile    profiling.Options

	cfg            *config.Config
	loggingCleanup func()
	profiler       *profiling.Session
}

// NewRootCmd creates the root command for the textdex CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&rootOptions{})
}

func newRootCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "textdex",
		Short: "Schema-driven named text indices",
		Long: `textdex manages named full-text indices. Each index has a field mapping
that turns loosely typed JSON documents into typed, searchable fields.

  textdex create books --mapping books.yaml
  textdex index books books.jsonl
  textdex search books 'title:dune year:>1960'
  textdex groupby books category`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.start(cmd)
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return opts.stop()
		},
	}

	cmd.SetVersionTemplate("textdex version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "Data root (overrides config data_dir)")
	cmd.PersistentFlags().StringVar(&opts.backend, "backend", "", "Storage backend: disk or memory (overrides config)")
	cmd.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "Output results as JSON")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging to ~/.textdex/logs/")
	cmd.PersistentFlags().StringVar(&opts.profile.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&opts.profile.Heap, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&opts.profile.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.AddCommand(newCreateCmd(opts))
	cmd.AddCommand(newRemoveCmd(opts))
	cmd.AddCommand(newMappingCmd(opts))
	cmd.AddCommand(newIndexCmd(opts))
	cmd.AddCommand(newSearchCmd(opts))
	cmd.AddCommand(newGroupByCmd(opts))
	cmd.AddCommand(newListCmd(opts))
	cmd.AddCommand(newStatsCmd(opts))
	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newWatchCmd(opts))
	cmd.AddCommand(newDoctorCmd(opts))
	cmd.AddCommand(newLogsCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command and prints any error to stderr, as JSON
// when --json is set.
func Execute() error {
	opts := &rootOptions{}
	err := newRootCmd(opts).Execute()
	if err != nil {
		printError(os.Stderr, err, opts.jsonOutput)
	}
	return err
}

func printError(w io.Writer, err error, asJSON bool) {
	if asJSON {
		if data, jerr := txerrors.FormatJSON(err); jerr == nil {
			_, _ = fmt.Fprintln(w, string(data))
			return
		}
	}
	_, _ = fmt.Fprint(w, txerrors.FormatForCLI(err))
}

// start loads configuration, then sets up logging and profiling.
func (o *rootOptions) start(cmd *cobra.Command) error {
	wd, err := os.Getwd()
	if err != nil {
		return txerrors.IOError("failed to determine working directory", err)
	}
	cfg, err := config.Load(wd)
	if err != nil {
		return txerrors.ConfigError("failed to load configuration", err)
	}
	if o.dataDir != "" {
		cfg.DataDir = o.dataDir
	}
	if o.backend != "" {
		cfg.Backend = o.backend
	}
	if err := cfg.Validate(); err != nil {
		return txerrors.ConfigError("invalid configuration", err)
	}
	o.cfg = cfg

	logCfg := logging.StderrConfig(cfg.Log.Level)
	switch {
	case o.debug:
		logCfg = logging.DebugConfig()
	case cfg.Log.File:
		logCfg = logging.DefaultConfig()
		logCfg.Level = cfg.Log.Level
		logCfg.WriteToStderr = false
	}
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	o.loggingCleanup = cleanup
	slog.SetDefault(logger)
	if o.debug {
		slog.Debug("debug_logging_enabled",
			slog.String("log_file", logging.DefaultLogPath()),
			slog.String("command", cmd.CommandPath()),
			slog.String("version", version.Version))
	}

	if o.profile.Enabled() {
		session, err := profiling.Start(o.profile)
		if err != nil {
			return err
		}
		o.profiler = session
	}
	return nil
}

// stop flushes profiles and closes the log file.
func (o *rootOptions) stop() error {
	var err error
	if o.profiler != nil {
		err = o.profiler.Stop()
		o.profiler = nil
	}
	if o.loggingCleanup != nil {
		o.loggingCleanup()
		o.loggingCleanup = nil
	}
	return err
}

// openService opens the service described by the loaded configuration.
func (o *rootOptions) openService() (*service.Service, error) {
	svcOpts, err := service.OptionsFromConfig(o.cfg)
	if err != nil {
		return nil, err
	}
	return service.Open(svcOpts)
}

// withService runs fn against an open service and closes it afterwards.
func (o *rootOptions) withService(fn func(*service.Service) error) (err error) {
	svc, err := o.openService()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := svc.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(svc)
}

func (o *rootOptions) writer(out io.Writer) *output.Writer {
	return output.New(out)
}
