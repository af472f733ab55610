package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestMetrics_Counters(t *testing.T) {
	m := NewIngestMetrics()

	// When: two workers record activity
	m.DocumentAdded(0)
	m.DocumentAdded(0)
	m.DocumentAdded(1)
	m.BytesRead(1024)
	m.BytesRead(10)
	m.Commit(5 * time.Millisecond)
	m.WorkerFailed()

	// Then: counters reflect it
	assert.Equal(t, 2.0, testutil.ToFloat64(m.documentsAdded.WithLabelValues("0")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.documentsAdded.WithLabelValues("1")))
	assert.Equal(t, 1034.0, testutil.ToFloat64(m.bytesRead))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commits))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.workerFailures))
	assert.Equal(t, 1, testutil.CollectAndCount(m.commitDuration))
}

func TestIngestMetrics_ParseErrorsAggregated(t *testing.T) {
	m := NewIngestMetrics()

	// Given: repeated reasons from several workers
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 5; i++ {
				m.ParseError(w, "invalid trip json", "{oops")
			}
			m.ParseError(w, "missing required field pickup_location", "{}")
		}(w)
	}
	wg.Wait()

	// Then: reasons are ranked by frequency
	top := m.TopParseErrors(5)
	require.Len(t, top, 2)
	assert.Equal(t, ReasonCount{Reason: "invalid trip json", Count: 20}, top[0])
	assert.Equal(t, ReasonCount{Reason: "missing required field pickup_location", Count: 4}, top[1])
	assert.Equal(t, 24.0, testutil.ToFloat64(m.parseErrors))

	// And: only the most recent samples are kept
	assert.Len(t, m.RecentParseErrors(), DefaultSampleCapacity)

	assert.Len(t, m.TopParseErrors(1), 1)
}

func TestIngestMetrics_ReasonsAreBounded(t *testing.T) {
	m := NewIngestMetrics()

	for i := 0; i < DefaultReasonCapacity*2; i++ {
		m.ParseError(0, strings.Repeat("r", i+1), "")
	}

	assert.Len(t, m.TopParseErrors(-1), DefaultReasonCapacity)
}

func TestIngestMetrics_LongLinesTruncated(t *testing.T) {
	m := NewIngestMetrics()

	m.ParseError(2, "bad", strings.Repeat("x", 500))

	samples := m.RecentParseErrors()
	require.Len(t, samples, 1)
	assert.Equal(t, 2, samples[0].Worker)
	assert.Len(t, samples[0].Line, 203)
}

func TestIngestMetrics_WriteTextfile(t *testing.T) {
	m := NewIngestMetrics()
	m.DocumentAdded(3)
	m.Commit(time.Millisecond)

	path := filepath.Join(t.TempDir(), "taxidx.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `taxidx_documents_added_total{worker="3"} 1`)
	assert.Contains(t, string(data), "taxidx_commits_total 1")
	assert.Contains(t, string(data), "taxidx_commit_duration_seconds_bucket")
}

func TestIngestMetrics_NilIsNoop(t *testing.T) {
	var m *IngestMetrics

	assert.NotPanics(t, func() {
		m.DocumentAdded(0)
		m.ParseError(0, "x", "y")
		m.Commit(time.Second)
		m.BytesRead(1)
		m.WorkerFailed()
	})
	assert.Nil(t, m.TopParseErrors(3))
	assert.Nil(t, m.RecentParseErrors())
	assert.NoError(t, m.WriteTextfile("/nonexistent/x"))
}
