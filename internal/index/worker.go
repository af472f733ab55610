package index

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Aman-CERP/taxidx/internal/errors"
	"github.com/Aman-CERP/taxidx/internal/store"
	"github.com/Aman-CERP/taxidx/internal/taxi"
	"github.com/Aman-CERP/taxidx/internal/telemetry"
	"github.com/Aman-CERP/taxidx/internal/ui"
)

// WorkerProgress holds one worker's counters. Only the owning goroutine
// mutates it; the renderer receives copies.
type WorkerProgress struct {
	// BytesRead is the number of input bytes consumed.
	BytesRead uint64

	// Buffered is the number of documents added since the last commit.
	Buffered int

	// Written is the number of documents handed to the sink.
	Written int64

	// Skipped is the number of lines rejected by the parser.
	Skipped int64

	// Commits is the number of commits this worker issued.
	Commits int64
}

// WorkerOutcome is how one worker ended.
type WorkerOutcome struct {
	Worker    int
	Partition Partition
	Progress  WorkerProgress
	Duration  time.Duration

	// Err is nil when the partition was read to the end.
	Err error
}

// worker streams one partition into the sink.
type worker struct {
	part      Partition
	input     string
	capacity  int
	threshold int
	strict    bool

	sink     store.IndexSink
	renderer ui.Renderer
	metrics  *telemetry.IngestMetrics

	progress WorkerProgress
	seq      int64
	total    uint64
}

// run reads the partition to the end. Any error it returns stops this
// worker only; parse errors never do.
func (w *worker) run(ctx context.Context) error {
	var opts []ChunkOption
	if w.strict {
		opts = append(opts, WithExactStart())
	}
	reader, err := NewChunkReader(w.input, w.part, w.capacity, opts...)
	if err != nil {
		return err
	}
	defer func() { _ = reader.Close() }()
	w.total = reader.Budget()

	slog.Info("ingest_worker_started",
		slog.Int("worker", w.part.Index),
		slog.Uint64("start", w.part.Start),
		slog.Uint64("length", w.part.Length))
	w.publish(ui.WorkerRunning)

	emit := func(line string) error {
		return w.handleLine(ctx, line)
	}

	var lines LineReconstructor
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		chunk, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		w.progress.BytesRead += uint64(len(chunk))
		w.metrics.BytesRead(len(chunk))

		if err := lines.Feed(chunk, emit); err != nil {
			return err
		}
	}
	if err := lines.Flush(emit); err != nil {
		return err
	}

	if w.progress.Buffered > 0 {
		return w.commit(ctx)
	}
	return nil
}

// handleLine parses, builds and adds one line, committing when the
// threshold is reached.
func (w *worker) handleLine(ctx context.Context, line string) error {
	rec, err := taxi.Parse(line)
	if err != nil {
		w.skip(line, err)
		return nil
	}

	doc := taxi.Build(rec)
	doc.ID = fmt.Sprintf("%d-%d", w.part.Index, w.seq)
	w.seq++

	if err := w.sink.Add(ctx, doc); err != nil {
		return err
	}
	w.progress.Buffered++
	w.progress.Written++
	w.metrics.DocumentAdded(w.part.Index)

	if w.progress.Buffered >= w.threshold {
		return w.commit(ctx)
	}
	return nil
}

func (w *worker) skip(line string, err error) {
	w.progress.Skipped++

	reason := err.Error()
	if te, ok := errors.As(err); ok {
		reason = te.Message
	}
	w.metrics.ParseError(w.part.Index, reason, line)

	slog.Warn("ingest_parse_skipped",
		slog.Int("worker", w.part.Index),
		slog.Int64("skipped", w.progress.Skipped),
		slog.String("reason", reason),
		slog.String("error", err.Error()))
	w.renderer.AddError(ui.ErrorEvent{Worker: w.part.Index, Err: err, IsWarn: true})
}

func (w *worker) commit(ctx context.Context) error {
	start := time.Now()
	if err := w.sink.Commit(ctx); err != nil {
		return err
	}
	elapsed := time.Since(start)
	w.metrics.Commit(elapsed)

	w.progress.Commits++
	slog.Debug("ingest_commit",
		slog.Int("worker", w.part.Index),
		slog.Int("documents", w.progress.Buffered),
		slog.Int64("commits", w.progress.Commits),
		slog.Int64("duration_ms", elapsed.Milliseconds()))
	w.progress.Buffered = 0

	w.publish(ui.WorkerRunning)
	return nil
}

func (w *worker) publish(state ui.WorkerState) {
	w.renderer.UpdateProgress(ui.WorkerEvent{
		Worker:     w.part.Index,
		Partition:  w.part.String(),
		State:      state,
		BytesRead:  w.progress.BytesRead,
		BytesTotal: max(w.total, w.part.Length),
		Written:    w.progress.Written,
		Skipped:    w.progress.Skipped,
		Commits:    w.progress.Commits,
	})
}
