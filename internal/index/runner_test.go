package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/taxidx/internal/errors"
	"github.com/Aman-CERP/taxidx/internal/store"
	"github.com/Aman-CERP/taxidx/internal/taxi"
	"github.com/Aman-CERP/taxidx/internal/telemetry"
	"github.com/Aman-CERP/taxidx/internal/ui"
)

// MockRenderer implements ui.Renderer for testing.
type MockRenderer struct {
	mu             sync.Mutex
	Events         []ui.WorkerEvent
	ErrorEvents    []ui.ErrorEvent
	CompleteCalled bool
	Stats          ui.CompletionStats
}

func (m *MockRenderer) Start(ctx context.Context) error { return nil }

func (m *MockRenderer) UpdateProgress(event ui.WorkerEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, event)
}

func (m *MockRenderer) AddError(event ui.ErrorEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ErrorEvents = append(m.ErrorEvents, event)
}

func (m *MockRenderer) Complete(stats ui.CompletionStats) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CompleteCalled = true
	m.Stats = stats
}

func (m *MockRenderer) Stop() error { return nil }

func (m *MockRenderer) warnings() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.ErrorEvents {
		if e.IsWarn {
			n++
		}
	}
	return n
}

// countingSink records adds and commits. failPrefix makes Add fail for
// documents whose ID starts with it.
type countingSink struct {
	mu         sync.Mutex
	added      []string
	pending    int
	committed  int
	commits    int
	failPrefix string
}

func (s *countingSink) Add(ctx context.Context, doc store.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPrefix != "" && strings.HasPrefix(doc.ID, s.failPrefix) {
		return errors.New(errors.ErrCodeIndexWrite, "disk full", nil)
	}
	s.added = append(s.added, doc.ID)
	s.pending++
	return nil
}

func (s *countingSink) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commits++
	s.committed += s.pending
	s.pending = 0
	return nil
}

func (s *countingSink) Close() error { return nil }

func tripLine(total float64) string {
	return fmt.Sprintf(`{"total_amount":%v,"pickup_location":[-73.92,40.75],`+
		`"dropoff_location":[-73.91,40.76],"pickup_datetime":"2015-01-01 00:34:42",`+
		`"dropoff_datetime":"2015-01-01 00:38:34","passenger_count":1,"trip_distance":0.88,`+
		`"payment_type":"2","vendor_id":"2","store_and_fwd_flag":"N"}`, total)
}

func tripFile(t *testing.T, n int) string {
	t.Helper()
	var sb strings.Builder
	for i := range n {
		sb.WriteString(tripLine(float64(i)))
		sb.WriteByte('\n')
	}
	return writeFile(t, sb.String())
}

func newTestRunner(t *testing.T, sink store.IndexSink, r ui.Renderer, m *telemetry.IngestMetrics) *Runner {
	t.Helper()
	runner, err := NewRunner(RunnerDependencies{Sink: sink, Renderer: r, Metrics: m})
	require.NoError(t, err)
	return runner
}

func TestNewRunner_RequiresSink(t *testing.T) {
	_, err := NewRunner(RunnerDependencies{})
	require.Error(t, err)
}

func TestRunnerConfig_Validate(t *testing.T) {
	valid := RunnerConfig{Input: "in.json", Workers: 1, CommitThreshold: 1}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*RunnerConfig)
		code   string
	}{
		{"zero workers", func(c *RunnerConfig) { c.Workers = 0 }, errors.ErrCodeInvalidWorkers},
		{"zero threshold", func(c *RunnerConfig) { c.CommitThreshold = 0 }, errors.ErrCodeInvalidBatchSize},
		{"negative buffer", func(c *RunnerConfig) { c.BufferSize = -1 }, errors.ErrCodeInvalidBufferSize},
		{"no input", func(c *RunnerConfig) { c.Input = "" }, errors.ErrCodeInputNotFound},
		{"bad backend", func(c *RunnerConfig) { c.Backend = "lucene" }, errors.ErrCodeInvalidBackend},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsConfig(err))
			assert.Equal(t, tt.code, errors.GetCode(err))
		})
	}
}

func TestRunner_CommitBatching(t *testing.T) {
	tests := []struct {
		docs, threshold, wantCommits int
	}{
		{10, 3, 4},
		{9, 3, 3},
		{1, 1, 1},
		{5, 100, 1},
		{0, 5, 0},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("D=%d,T=%d", tt.docs, tt.threshold), func(t *testing.T) {
			// Given: a file with D valid lines and one worker
			path := tripFile(t, tt.docs)
			sink := &countingSink{}
			runner := newTestRunner(t, sink, nil, nil)

			// When: running with threshold T
			res, err := runner.Run(t.Context(), RunnerConfig{
				Input: path, Workers: 1, CommitThreshold: tt.threshold, BufferSize: 64,
			})

			// Then: ceil(D/T) commits persist every document
			require.NoError(t, err)
			assert.Equal(t, tt.wantCommits, sink.commits)
			assert.Equal(t, int64(tt.wantCommits), res.Commits)
			assert.Equal(t, tt.docs, sink.committed)
			assert.Zero(t, sink.pending)
			assert.Equal(t, int64(tt.docs), res.Written)
		})
	}
}

func TestRunner_StrictBoundariesKeepEveryLine(t *testing.T) {
	// Given: 40 lines split over 4 aligned workers
	path := tripFile(t, 40)
	sink := &countingSink{}
	runner := newTestRunner(t, sink, nil, nil)

	// When: running
	res, err := runner.Run(t.Context(), RunnerConfig{
		Input: path, Workers: 4, CommitThreshold: 7, BufferSize: 13, StrictBoundaries: true,
	})

	// Then: every line becomes exactly one document with a unique ID
	require.NoError(t, err)
	assert.Equal(t, int64(40), res.Written)
	assert.Zero(t, res.Skipped)
	assert.Equal(t, 40, sink.committed)
	seen := make(map[string]bool)
	for _, id := range sink.added {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	require.Len(t, res.Workers, 4)
	for i, o := range res.Workers {
		assert.Equal(t, i, o.Worker)
		assert.NoError(t, o.Err)
	}
}

func TestRunner_ParseErrorsAreSkipped(t *testing.T) {
	// Given: valid lines mixed with malformed ones
	content := tripLine(1) + "\n" +
		"not json\n" +
		tripLine(2) + "\n" +
		`{"total_amount":3}` + "\n" +
		tripLine(4) + "\n"
	path := writeFile(t, content)
	sink := &countingSink{}
	renderer := &MockRenderer{}
	metrics := telemetry.NewIngestMetrics()
	runner := newTestRunner(t, sink, renderer, metrics)

	// When: running
	res, err := runner.Run(t.Context(), RunnerConfig{Input: path, Workers: 1, CommitThreshold: 2})

	// Then: malformed lines are counted, not fatal
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Written)
	assert.Equal(t, int64(2), res.Skipped)
	assert.Equal(t, 2, renderer.warnings())
	assert.Len(t, metrics.TopParseErrors(10), 2)
	assert.Len(t, metrics.RecentParseErrors(), 2)
}

func TestRunner_PartialFailure(t *testing.T) {
	// Given: a sink that rejects worker 1's documents
	path := tripFile(t, 20)
	sink := &countingSink{failPrefix: "1-"}
	renderer := &MockRenderer{}
	runner := newTestRunner(t, sink, renderer, nil)

	// When: running two aligned workers
	res, err := runner.Run(t.Context(), RunnerConfig{
		Input: path, Workers: 2, CommitThreshold: 3, StrictBoundaries: true,
	})

	// Then: worker 0 finishes, worker 1 fails, both are reported
	require.Error(t, err)
	assert.Contains(t, err.Error(), "worker 1")
	assert.ErrorIs(t, err, errors.New(errors.ErrCodeIndexWrite, "", nil))
	require.NotNil(t, res)
	assert.Equal(t, 1, res.Failed)
	assert.NoError(t, res.Workers[0].Err)
	assert.Error(t, res.Workers[1].Err)
	assert.Positive(t, sink.committed)
	assert.Equal(t, int(res.Workers[0].Progress.Written), sink.committed)
	assert.True(t, renderer.CompleteCalled)
	assert.Equal(t, 1, renderer.Stats.FailedWorkers)
}

func TestRunner_InvalidConfigStartsNothing(t *testing.T) {
	// Given: a runner
	sink := &countingSink{}
	renderer := &MockRenderer{}
	runner := newTestRunner(t, sink, renderer, nil)

	// When: the input does not exist
	res, err := runner.Run(t.Context(), RunnerConfig{
		Input: filepath.Join(t.TempDir(), "missing.json"), Workers: 2, CommitThreshold: 1,
	})

	// Then: a config error is returned before any worker ran
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, errors.IsConfig(err))
	assert.Empty(t, renderer.Events)
	assert.Zero(t, sink.commits)
}

func TestRunner_Cancelled(t *testing.T) {
	// Given: a cancelled context
	path := tripFile(t, 10)
	sink := &countingSink{}
	runner := newTestRunner(t, sink, nil, nil)
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	// When: running
	res, err := runner.Run(ctx, RunnerConfig{Input: path, Workers: 3, CommitThreshold: 1})

	// Then: every worker stops with context.Canceled and nothing is committed
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, res.Failed)
	assert.Zero(t, sink.commits)
}

func TestRunner_DocumentIDs(t *testing.T) {
	// Given: three lines for one worker
	path := tripFile(t, 3)
	sink := &countingSink{}
	runner := newTestRunner(t, sink, nil, nil)

	// When: running
	_, err := runner.Run(t.Context(), RunnerConfig{Input: path, Workers: 1, CommitThreshold: 10})

	// Then: IDs follow partition and sequence in file order
	require.NoError(t, err)
	assert.Equal(t, []string{"0-0", "0-1", "0-2"}, sink.added)
}

func TestRunner_LastRecordWithoutTrailingNewline(t *testing.T) {
	// Given: two trips and no terminator after the second, so the boundary
	// sits on the first trip's closing brace
	path := writeFile(t, tripLine(1)+"\n"+tripLine(2))
	sink := &countingSink{}
	runner := newTestRunner(t, sink, nil, nil)

	// When: two workers read in default boundary mode
	res, err := runner.Run(t.Context(), RunnerConfig{Input: path, Workers: 2, CommitThreshold: 10})

	// Then: both trips are indexed; only the re-read brace is skipped
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Written)
	assert.Equal(t, int64(1), res.Skipped)
	assert.ElementsMatch(t, []string{"0-0", "1-0"}, sink.added)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(info.Size())+1, res.Bytes)
}

func TestIngest_EndToEnd(t *testing.T) {
	outputs := map[store.Backend]string{
		store.BackendBleve:  "trips.bleve",
		store.BackendSQLite: "trips.db",
	}
	for backend, name := range outputs {
		t.Run(string(backend), func(t *testing.T) {
			// Given: one valid line and one malformed line
			input := writeFile(t, tripLine(10.0)+"\n"+`{"total_amount": oops}`+"\n")
			output := filepath.Join(t.TempDir(), name)
			metrics := telemetry.NewIngestMetrics()

			// When: ingesting with one worker and threshold 1
			res, err := Ingest(t.Context(), RunnerConfig{
				Input: input, Output: output, Workers: 1, CommitThreshold: 1, Backend: string(backend),
			}, ui.NopRenderer{}, metrics)

			// Then: one document is written and one line skipped
			require.NoError(t, err)
			assert.Equal(t, int64(1), res.Written)
			assert.Equal(t, int64(1), res.Skipped)
			assert.Equal(t, backend, store.DetectBackend(output))

			idx, err := store.Open(string(backend), output, taxi.Schema())
			require.NoError(t, err)
			defer func() { _ = idx.Close() }()

			count, err := idx.DocCount(t.Context())
			require.NoError(t, err)
			assert.Equal(t, uint64(1), count)

			hits, err := idx.NumericRange(t.Context(), "totalAmount", 5, 15, 10)
			require.NoError(t, err)
			require.Equal(t, uint64(1), hits.Total)

			fields, err := idx.Stored(t.Context(), hits.Hits[0].ID)
			require.NoError(t, err)
			assert.Equal(t, 10.0, fields["totalAmount"])
		})
	}
}

func TestIngest_LockedOutput(t *testing.T) {
	// Given: an output locked by another run
	input := tripFile(t, 1)
	output := filepath.Join(t.TempDir(), "trips.bleve")
	lock := store.NewIndexLock(output)
	require.NoError(t, lock.TryLock())
	defer func() { _ = lock.Unlock() }()

	// When: ingesting into it
	_, err := Ingest(t.Context(), RunnerConfig{
		Input: input, Output: output, Workers: 1, CommitThreshold: 1,
	}, nil, nil)

	// Then: the lock error is returned
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeIndexLocked, errors.GetCode(err))
}

func TestIngest_RequiresOutput(t *testing.T) {
	_, err := Ingest(t.Context(), RunnerConfig{Input: "x", Workers: 1, CommitThreshold: 1}, nil, nil)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeOutputInvalid, errors.GetCode(err))
}

func TestIngest_MissingInputWritesNothing(t *testing.T) {
	// Given: an input that does not exist
	output := filepath.Join(t.TempDir(), "out", "trips.bleve")

	// When: ingesting
	_, err := Ingest(t.Context(), RunnerConfig{
		Input:           filepath.Join(t.TempDir(), "missing.json"),
		Output:          output,
		Workers:         2,
		CommitThreshold: 1,
	}, nil, nil)

	// Then: a config error is returned and neither index nor lock exists
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInputNotFound, errors.GetCode(err))
	assert.True(t, errors.IsConfig(err))
	assert.NoFileExists(t, output)
	assert.NoDirExists(t, output)
	assert.NoFileExists(t, output+".lock")
}
