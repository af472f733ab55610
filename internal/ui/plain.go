package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// PlainRenderer outputs plain text progress (for CI/pipes), one line per
// worker event.
type PlainRenderer struct {
	mu      sync.Mutex
	out     io.Writer
	noColor bool
	quiet   bool
	seen    map[int]bool
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{
		out:     cfg.Output,
		noColor: cfg.NoColor,
		quiet:   cfg.Quiet,
		seen:    make(map[int]bool),
	}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(ctx context.Context) error {
	return nil
}

// UpdateProgress implements Renderer.
// Format: [W<n>] <what> - written/skipped/commits (percent)
func (r *PlainRenderer) UpdateProgress(event WorkerEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tag := fmt.Sprintf("[W%d]", event.Worker)
	switch {
	case event.State == WorkerFailed:
		_, _ = fmt.Fprintf(r.out, "%s failed after %d written, %d skipped, %d commits\n",
			tag, event.Written, event.Skipped, event.Commits)
	case event.State == WorkerDone:
		_, _ = fmt.Fprintf(r.out, "%s done: %d written, %d skipped, %d commits\n",
			tag, event.Written, event.Skipped, event.Commits)
	case !r.seen[event.Worker]:
		r.seen[event.Worker] = true
		_, _ = fmt.Fprintf(r.out, "%s started %s (%s)\n",
			tag, event.Partition, FormatBytes(int64(event.BytesTotal)))
	case !r.quiet:
		_, _ = fmt.Fprintf(r.out, "%s commit #%d - %d written, %d skipped (%3.0f%%)\n",
			tag, event.Commits, event.Written, event.Skipped, event.Progress()*100)
	}
}

// AddError implements Renderer.
func (r *PlainRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prefix := "ERROR"
	if event.IsWarn {
		prefix = "WARN"
	}
	_, _ = fmt.Fprintf(r.out, "%s: [W%d] %v\n", prefix, event.Worker, event.Err)
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, _ = fmt.Fprintf(r.out, "Complete: %d documents written, %d lines skipped, %d commits in %s",
		stats.Written, stats.Skipped, stats.Commits, stats.Duration.Round(100*time.Millisecond))
	if stats.FailedWorkers > 0 {
		_, _ = fmt.Fprintf(r.out, " (%d of %d workers failed)", stats.FailedWorkers, stats.Workers)
	}
	_, _ = fmt.Fprintln(r.out)

	if stats.Duration > 0 && stats.Written > 0 {
		_, _ = fmt.Fprintf(r.out, "Throughput: %.0f docs/sec, %s read\n",
			float64(stats.Written)/stats.Duration.Seconds(), FormatBytes(int64(stats.Bytes)))
	}
	if stats.Output != "" {
		_, _ = fmt.Fprintf(r.out, "Index: %s (%s)\n", stats.Output, stats.Backend)
	}

	if len(stats.TopErrors) > 0 {
		_, _ = fmt.Fprintln(r.out)
		_, _ = fmt.Fprintln(r.out, "Most frequent parse errors:")
		for _, rc := range stats.TopErrors {
			_, _ = fmt.Fprintf(r.out, "  %6d  %s\n", rc.Count, rc.Reason)
		}
	}
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error {
	return nil
}
