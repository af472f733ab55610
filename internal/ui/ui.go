// Package ui renders ingestion progress: a bubbletea TUI with one progress
// bar per worker for terminals, and line-oriented text for pipes and CI.
package ui

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// Phase is the coarse state of an ingestion run.
type Phase int

const (
	// PhasePreparing covers validation, partitioning and opening the sink.
	PhasePreparing Phase = iota
	// PhaseIngesting is set once the workers run.
	PhaseIngesting
	// PhaseComplete indicates all workers finished.
	PhaseComplete
)

// String returns the human-readable phase name.
func (p Phase) String() string {
	switch p {
	case PhasePreparing:
		return "Preparing"
	case PhaseIngesting:
		return "Ingesting"
	case PhaseComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// WorkerState is the lifecycle state reported in a WorkerEvent.
type WorkerState int

const (
	WorkerRunning WorkerState = iota
	WorkerDone
	WorkerFailed
)

// String returns the state label.
func (s WorkerState) String() string {
	switch s {
	case WorkerRunning:
		return "running"
	case WorkerDone:
		return "done"
	case WorkerFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// WorkerEvent is a snapshot of one worker's counters.
type WorkerEvent struct {
	Worker     int
	Partition  string
	State      WorkerState
	BytesRead  uint64
	BytesTotal uint64
	Written    int64
	Skipped    int64
	Commits    int64
}

// Progress returns the fraction of the partition read (0.0-1.0).
func (e WorkerEvent) Progress() float64 {
	if e.BytesTotal == 0 {
		if e.State == WorkerRunning {
			return 0
		}
		return 1
	}
	p := float64(e.BytesRead) / float64(e.BytesTotal)
	if p > 1 {
		return 1
	}
	return p
}

// ErrorEvent represents an error during ingestion. Warnings are skipped
// lines; errors stop a worker.
type ErrorEvent struct {
	Worker int
	Err    error
	IsWarn bool
}

// ReasonCount is a parse-error reason with its frequency.
type ReasonCount struct {
	Reason string
	Count  int64
}

// CompletionStats contains the final summary of a run.
type CompletionStats struct {
	Workers       int
	FailedWorkers int
	Written       int64
	Skipped       int64
	Commits       int64
	Bytes         uint64
	Duration      time.Duration
	Backend       string
	Output        string
	TopErrors     []ReasonCount
}

// Renderer defines the interface for progress display. Implementations
// must be safe for concurrent use by all workers.
type Renderer interface {
	// Start initializes the renderer.
	Start(ctx context.Context) error

	// UpdateProgress publishes a worker snapshot.
	UpdateProgress(event WorkerEvent)

	// AddError adds an error or warning to display.
	AddError(event ErrorEvent)

	// Complete marks rendering as complete with summary.
	Complete(stats CompletionStats)

	// Stop stops the renderer and cleans up.
	Stop() error
}

// Config configures the UI renderer.
type Config struct {
	Output       io.Writer
	ForcePlain   bool
	NoColor      bool
	SpinnerStyle string
	Title        string // Shown in the TUI header, usually the input path
	Quiet        bool   // Plain mode: suppress per-commit lines
}

// ConfigOption is a function that modifies Config.
type ConfigOption func(*Config)

// WithForcePlain forces plain text output.
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) {
		c.ForcePlain = force
	}
}

// WithNoColor disables color output.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) {
		c.NoColor = noColor
	}
}

// WithSpinnerStyle sets the spinner style.
func WithSpinnerStyle(style string) ConfigOption {
	return func(c *Config) {
		c.SpinnerStyle = style
	}
}

// WithTitle sets the header title.
func WithTitle(title string) ConfigOption {
	return func(c *Config) {
		c.Title = title
	}
}

// WithQuiet suppresses per-commit progress lines in plain mode.
func WithQuiet(quiet bool) ConfigOption {
	return func(c *Config) {
		c.Quiet = quiet
	}
}

// NewConfig creates a new Config with the given output and options.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{
		Output:       output,
		SpinnerStyle: "dots",
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// NewRenderer creates an appropriate renderer based on config and environment.
// It returns a TUI renderer for interactive terminals, and a plain text
// renderer for CI environments, pipes, or when --no-tui is specified.
func NewRenderer(cfg Config) Renderer {
	if cfg.ForcePlain {
		return NewPlainRenderer(cfg)
	}
	if !IsTTY(cfg.Output) {
		return NewPlainRenderer(cfg)
	}
	if DetectCI() {
		return NewPlainRenderer(cfg)
	}

	tui, err := NewTUIRenderer(cfg)
	if err != nil {
		return NewPlainRenderer(cfg)
	}
	return tui
}

// IsTTY checks if output is a terminal.
func IsTTY(w io.Writer) bool {
	if w == nil {
		return false
	}
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// DetectNoColor checks if NO_COLOR environment variable is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI checks if running in a CI environment.
func DetectCI() bool {
	ciVars := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"}
	for _, v := range ciVars {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}

// NopRenderer discards all events.
type NopRenderer struct{}

func (NopRenderer) Start(context.Context) error { return nil }
func (NopRenderer) UpdateProgress(WorkerEvent) {}
func (NopRenderer) AddError(ErrorEvent) {}
func (NopRenderer) Complete(CompletionStats) {}
func (NopRenderer) Stop() error { return nil }
