// Package index runs the parallel ingestion pipeline: it splits the input
// file into byte ranges, streams each range through its own worker and
// writes the resulting documents to a shared index sink.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/Aman-CERP/taxidx/internal/errors"
	"github.com/Aman-CERP/taxidx/internal/store"
	"github.com/Aman-CERP/taxidx/internal/taxi"
	"github.com/Aman-CERP/taxidx/internal/telemetry"
	"github.com/Aman-CERP/taxidx/internal/ui"
)

// topErrorsInSummary is how many parse-error reasons the summary lists.
const topErrorsInSummary = 5

// RunnerConfig configures an ingestion run.
type RunnerConfig struct {
	// Input is the NDJSON file to ingest.
	Input string

	// Output is the index location. Run only reports it; Ingest opens it.
	Output string

	// Workers is the number of partitions and goroutines.
	Workers int

	// CommitThreshold is the number of documents a worker adds between
	// commits.
	CommitThreshold int

	// BufferSize is the chunk capacity in bytes (0 selects DefaultBufferSize).
	BufferSize int

	// Backend selects the index engine for Ingest.
	Backend string

	// StrictBoundaries aligns partitions to line starts so that no line is
	// split between workers.
	StrictBoundaries bool
}

// Validate checks the job before any worker starts.
func (c RunnerConfig) Validate() error {
	if c.Workers < 1 {
		return errors.New(errors.ErrCodeInvalidWorkers,
			fmt.Sprintf("workers must be at least 1, got %d", c.Workers), nil)
	}
	if c.CommitThreshold < 1 {
		return errors.New(errors.ErrCodeInvalidBatchSize,
			fmt.Sprintf("commit threshold must be at least 1, got %d", c.CommitThreshold), nil)
	}
	if c.BufferSize < 0 {
		return errors.New(errors.ErrCodeInvalidBufferSize,
			fmt.Sprintf("buffer size must be at least 1, got %d", c.BufferSize), nil)
	}
	if c.Input == "" {
		return errors.New(errors.ErrCodeInputNotFound, "no input file given", nil)
	}
	if _, err := store.ParseBackend(c.Backend); err != nil {
		return err
	}
	return nil
}

func (c RunnerConfig) bufferSize() int {
	if c.BufferSize == 0 {
		return DefaultBufferSize
	}
	return c.BufferSize
}

// RunnerResult contains the outcome of an ingestion run.
type RunnerResult struct {
	// Workers holds one outcome per partition, ordered by index.
	Workers []WorkerOutcome

	// Written is the number of documents added to the sink.
	Written int64

	// Skipped is the number of malformed lines.
	Skipped int64

	// Commits is the number of commits issued by all workers.
	Commits int64

	// Bytes is the number of input bytes read.
	Bytes uint64

	// Failed is the number of workers that stopped early.
	Failed int

	// Duration is the total run time.
	Duration time.Duration
}

// RunnerDependencies contains the injected dependencies for Runner.
type RunnerDependencies struct {
	// Sink receives the documents (required).
	Sink store.IndexSink

	// Renderer for progress display (defaults to ui.NopRenderer).
	Renderer ui.Renderer

	// Metrics records counters (optional).
	Metrics *telemetry.IngestMetrics
}

// Runner executes ingestion runs against one sink.
type Runner struct {
	sink     store.IndexSink
	renderer ui.Renderer
	metrics  *telemetry.IngestMetrics
}

// NewRunner creates a Runner with injected dependencies.
func NewRunner(deps RunnerDependencies) (*Runner, error) {
	if deps.Sink == nil {
		return nil, errors.InternalError("index sink is required", nil)
	}
	renderer := deps.Renderer
	if renderer == nil {
		renderer = ui.NopRenderer{}
	}
	return &Runner{
		sink:     deps.Sink,
		renderer: renderer,
		metrics:  deps.Metrics,
	}, nil
}

// Run partitions the input, runs one worker per partition and waits for
// all of them. A failing worker does not stop the others; their errors are
// aggregated and returned together with the result.
func (r *Runner) Run(ctx context.Context, cfg RunnerConfig) (*RunnerResult, error) {
	startTime := time.Now()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	parts, size, err := PartitionFile(cfg.Input, cfg.Workers)
	if err != nil {
		return nil, err
	}
	if cfg.StrictBoundaries {
		if parts, err = AlignPartitions(ctx, cfg.Input, parts); err != nil {
			return nil, err
		}
	}

	slog.Info("ingest_started",
		slog.String("input", cfg.Input),
		slog.Int64("size", size),
		slog.Int("workers", cfg.Workers),
		slog.Int("commit_threshold", cfg.CommitThreshold),
		slog.Int("buffer_size", cfg.bufferSize()),
		slog.Bool("strict_boundaries", cfg.StrictBoundaries))

	outcomes := make([]WorkerOutcome, len(parts))
	var wg sync.WaitGroup
	for i, part := range parts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes[i] = r.runWorker(ctx, cfg, part)
		}()
	}
	wg.Wait()

	result := &RunnerResult{Workers: outcomes}
	var merr *multierror.Error
	for _, o := range outcomes {
		result.Written += o.Progress.Written
		result.Skipped += o.Progress.Skipped
		result.Commits += o.Progress.Commits
		result.Bytes += o.Progress.BytesRead
		if o.Err != nil {
			result.Failed++
			merr = multierror.Append(merr, fmt.Errorf("worker %d: %w", o.Worker, o.Err))
		}
	}
	result.Duration = time.Since(startTime)

	for _, sample := range r.metrics.RecentParseErrors() {
		slog.Debug("ingest_parse_sample",
			slog.Int("worker", sample.Worker),
			slog.String("reason", sample.Reason),
			slog.String("line", sample.Line))
	}

	r.renderer.Complete(ui.CompletionStats{
		Workers:       len(outcomes),
		FailedWorkers: result.Failed,
		Written:       result.Written,
		Skipped:       result.Skipped,
		Commits:       result.Commits,
		Bytes:         result.Bytes,
		Duration:      result.Duration,
		Backend:       backendName(cfg.Backend),
		Output:        cfg.Output,
		TopErrors:     topErrors(r.metrics),
	})

	slog.Info("ingest_complete",
		slog.Int64("written", result.Written),
		slog.Int64("skipped", result.Skipped),
		slog.Int64("commits", result.Commits),
		slog.Uint64("bytes", result.Bytes),
		slog.Int("failed_workers", result.Failed),
		slog.String("duration", result.Duration.String()),
		slog.Int64("duration_ms", result.Duration.Milliseconds()))

	return result, merr.ErrorOrNil()
}

func (r *Runner) runWorker(ctx context.Context, cfg RunnerConfig, part Partition) WorkerOutcome {
	start := time.Now()
	w := &worker{
		part:      part,
		input:     cfg.Input,
		capacity:  cfg.bufferSize(),
		threshold: cfg.CommitThreshold,
		strict:    cfg.StrictBoundaries,
		sink:      r.sink,
		renderer:  r.renderer,
		metrics:   r.metrics,
	}

	err := w.run(ctx)
	outcome := WorkerOutcome{
		Worker:    part.Index,
		Partition: part,
		Progress:  w.progress,
		Duration:  time.Since(start),
		Err:       err,
	}

	if err != nil {
		r.metrics.WorkerFailed()
		attrs := append([]any{
			slog.Int("worker", part.Index),
			slog.Int64("written", w.progress.Written),
			slog.Int("uncommitted", w.progress.Buffered),
		}, errors.LogAttrs(err)...)
		slog.Error("ingest_worker_failed", attrs...)
		r.renderer.AddError(ui.ErrorEvent{Worker: part.Index, Err: err})
		w.publish(ui.WorkerFailed)
		return outcome
	}

	slog.Info("ingest_worker_done",
		slog.Int("worker", part.Index),
		slog.Int64("written", w.progress.Written),
		slog.Int64("skipped", w.progress.Skipped),
		slog.Int64("commits", w.progress.Commits),
		slog.Int64("duration_ms", outcome.Duration.Milliseconds()))
	w.publish(ui.WorkerDone)
	return outcome
}

// Ingest runs a complete job against the index at cfg.Output: it validates
// the job and its input, locks the output, opens the engine, runs the workers and closes
// the index, which performs a last commit.
func Ingest(ctx context.Context, cfg RunnerConfig, renderer ui.Renderer, metrics *telemetry.IngestMetrics) (*RunnerResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Output == "" {
		return nil, errors.New(errors.ErrCodeOutputInvalid, "no output index given", nil)
	}
	// A missing or unreadable input must fail before anything is written.
	if _, _, err := PartitionFile(cfg.Input, cfg.Workers); err != nil {
		return nil, err
	}

	lock := store.NewIndexLock(cfg.Output)
	if err := lock.TryLock(); err != nil {
		return nil, err
	}
	defer func() { _ = lock.Unlock() }()

	idx, err := store.Open(cfg.Backend, cfg.Output, taxi.Schema())
	if err != nil {
		return nil, err
	}

	runner, err := NewRunner(RunnerDependencies{
		Sink:     idx,
		Renderer: renderer,
		Metrics:  metrics,
	})
	if err != nil {
		_ = idx.Close()
		return nil, err
	}

	result, runErr := runner.Run(ctx, cfg)
	if closeErr := idx.Close(); closeErr != nil {
		runErr = multierror.Append(runErr, closeErr).ErrorOrNil()
	}
	return result, runErr
}

func backendName(name string) string {
	b, err := store.ParseBackend(name)
	if err != nil {
		return name
	}
	return string(b)
}

func topErrors(m *telemetry.IngestMetrics) []ui.ReasonCount {
	top := m.TopParseErrors(topErrorsInSummary)
	out := make([]ui.ReasonCount, len(top))
	for i, rc := range top {
		out[i] = ui.ReasonCount{Reason: rc.Reason, Count: rc.Count}
	}
	return out
}
