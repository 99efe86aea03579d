// Package ui renders progress for long document imports: a bubbletea
// panel on interactive terminals and plain lines for pipes and CI.
package ui

import (
	"context"
	"io"
	"os"
	"slices"
	"time"

	"github.com/mattn/go-isatty"
)

// Stage represents an import stage.
type Stage int

const (
	// StageDecoding is reading and decoding the input documents.
	StageDecoding Stage = iota
	// StageIndexing is mapping and writing documents in chunks.
	StageIndexing
	// StageComplete indicates the import is complete.
	StageComplete
)

// String returns the human-readable stage name.
func (s Stage) String() string {
	switch s {
	case StageDecoding:
		return "Decoding"
	case StageIndexing:
		return "Indexing"
	case StageComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// Icon returns the short stage tag for plain text output.
func (s Stage) Icon() string {
	switch s {
	case StageDecoding:
		return "DECODE"
	case StageIndexing:
		return "INDEX"
	case StageComplete:
		return "DONE"
	default:
		return "???"
	}
}

// ProgressEvent represents a progress update. Current and Total count
// documents.
type ProgressEvent struct {
	Stage   Stage
	Current int
	Total   int
	Message string
}

// ErrorEvent represents a rejected document or a failed chunk.
type ErrorEvent struct {
	// Position is the document's position in the input, or -1 when the
	// error is not tied to one document.
	Position int
	Err      error
	IsWarn   bool
}

// CompletionStats contains final import statistics.
type CompletionStats struct {
	Index    string
	Total    int
	Indexed  int
	Failed   int
	Chunks   int
	Duration time.Duration
}

// Renderer defines the interface for progress display.
type Renderer interface {
	// Start initializes the renderer.
	Start(ctx context.Context) error

	// UpdateProgress updates progress display.
	UpdateProgress(event ProgressEvent)

	// AddError adds an error to display.
	AddError(event ErrorEvent)

	// Complete marks rendering as complete with summary.
	Complete(stats CompletionStats)

	// Stop stops the renderer and cleans up.
	Stop() error
}

// Config selects where and how progress is drawn.
type Config struct {
	Output io.Writer

	// ForcePlain disables the interactive panel even on a terminal.
	ForcePlain bool
	// NoColor drops colors from the panel. NO_COLOR has the same effect.
	NoColor bool
	// Title is shown in the panel header, typically the index name.
	Title string
}

// ConfigOption adjusts a Config.
type ConfigOption func(*Config)

// WithForcePlain sets Config.ForcePlain.
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) { c.ForcePlain = force }
}

// WithNoColor sets Config.NoColor.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) { c.NoColor = noColor }
}

// WithTitle sets Config.Title.
func WithTitle(title string) ConfigOption {
	return func(c *Config) { c.Title = title }
}

// NewConfig returns a Config writing to output.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{Output: output}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// NewRenderer returns the panel renderer on an interactive terminal outside
// CI, and the plain renderer otherwise.
func NewRenderer(cfg Config) Renderer {
	if !cfg.ForcePlain && IsTTY(cfg.Output) && !DetectCI() {
		if tui, err := NewTUIRenderer(cfg); err == nil {
			return tui
		}
	}
	return NewPlainRenderer(cfg)
}

// IsTTY reports whether w is a terminal file.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// DetectNoColor reports whether NO_COLOR is set, to any value.
func DetectNoColor() bool {
	_, set := os.LookupEnv("NO_COLOR")
	return set
}

// ciVariables are set by common CI systems.
var ciVariables = []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"}

// DetectCI reports whether a CI environment variable is set.
func DetectCI() bool {
	return slices.ContainsFunc(ciVariables, func(v string) bool {
		_, set := os.LookupEnv(v)
		return set
	})
}
