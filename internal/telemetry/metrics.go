// Package telemetry collects ingestion metrics. Counters live on a private
// Prometheus registry and can be written to a textfile at the end of a run;
// nothing is exported over the network.
package telemetry

import (
	"sort"
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "taxidx"

// DefaultReasonCapacity bounds the number of distinct parse-error reasons
// kept for the summary.
const DefaultReasonCapacity = 64

// DefaultSampleCapacity is the number of recent rejected lines kept.
const DefaultSampleCapacity = 10

// ReasonCount is a parse-error reason with its number of occurrences.
type ReasonCount struct {
	Reason string
	Count  int64
}

// ParseSample is a rejected line kept for diagnostics.
type ParseSample struct {
	Worker int
	Reason string
	Line   string
}

// IngestMetrics records what ingestion workers do. All methods are safe for
// concurrent use, and a nil *IngestMetrics is a valid no-op recorder.
type IngestMetrics struct {
	registry *prometheus.Registry

	documentsAdded *prometheus.CounterVec
	parseErrors    prometheus.Counter
	commits        prometheus.Counter
	bytesRead      prometheus.Counter
	workerFailures prometheus.Counter
	commitDuration prometheus.Histogram

	mu      sync.Mutex
	reasons *lru.Cache[string, int64]
	samples *sampleRing[ParseSample]
}

// NewIngestMetrics registers the ingestion metrics on a fresh registry.
func NewIngestMetrics() *IngestMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	reasons, _ := lru.New[string, int64](DefaultReasonCapacity)

	return &IngestMetrics{
		registry: reg,
		documentsAdded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_added_total",
			Help:      "Documents added to the index sink, per worker.",
		}, []string{"worker"}),
		parseErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_errors_total",
			Help:      "Input lines skipped because they could not be parsed.",
		}),
		commits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commits_total",
			Help:      "Commits issued to the index sink.",
		}),
		bytesRead: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_read_total",
			Help:      "Bytes read from the input file.",
		}),
		workerFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_failures_total",
			Help:      "Workers stopped by an I/O error or cancellation.",
		}),
		commitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "commit_duration_seconds",
			Help:      "Time spent in index sink commits.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		reasons: reasons,
		samples: newSampleRing[ParseSample](DefaultSampleCapacity),
	}
}

// DocumentAdded counts one document added by worker.
func (m *IngestMetrics) DocumentAdded(worker int) {
	if m == nil {
		return
	}
	m.documentsAdded.WithLabelValues(strconv.Itoa(worker)).Inc()
}

// ParseError counts one skipped line and remembers its reason.
func (m *IngestMetrics) ParseError(worker int, reason, line string) {
	if m == nil {
		return
	}
	m.parseErrors.Inc()

	m.mu.Lock()
	count, _ := m.reasons.Get(reason)
	m.reasons.Add(reason, count+1)
	m.samples.push(ParseSample{Worker: worker, Reason: reason, Line: truncate(line, 200)})
	m.mu.Unlock()
}

// Commit records one commit and its duration.
func (m *IngestMetrics) Commit(d time.Duration) {
	if m == nil {
		return
	}
	m.commits.Inc()
	m.commitDuration.Observe(d.Seconds())
}

// BytesRead adds n bytes read from the input.
func (m *IngestMetrics) BytesRead(n int) {
	if m == nil {
		return
	}
	m.bytesRead.Add(float64(n))
}

// WorkerFailed counts a worker that stopped early.
func (m *IngestMetrics) WorkerFailed() {
	if m == nil {
		return
	}
	m.workerFailures.Inc()
}

// TopParseErrors returns up to n reasons, most frequent first.
func (m *IngestMetrics) TopParseErrors(n int) []ReasonCount {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	var out []ReasonCount
	for _, key := range m.reasons.Keys() {
		if count, ok := m.reasons.Peek(key); ok {
			out = append(out, ReasonCount{Reason: key, Count: count})
		}
	}
	m.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Reason < out[j].Reason
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// RecentParseErrors returns the most recently rejected lines, oldest first.
func (m *IngestMetrics) RecentParseErrors() []ParseSample {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.samples.snapshot()
}

// Registry exposes the underlying registry for gathering.
func (m *IngestMetrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// WriteTextfile writes all metrics in the text exposition format.
func (m *IngestMetrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
