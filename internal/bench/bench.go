// Package bench times repeated queries against a committed index: a
// match-all query and a numeric range query, each run a fixed number of
// times with a fixed result size.
package bench

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/taxidx/internal/errors"
	"github.com/Aman-CERP/taxidx/internal/store"
)

// Config configures a benchmark run.
type Config struct {
	Iterations  int
	ResultSize  int
	Concurrency int

	RangeField string
	RangeMin   float64
	RangeMax   float64
}

// DefaultConfig matches the classic taxi benchmark: 500 iterations,
// 2000 hits per query, totalAmount in [5, 15].
func DefaultConfig() Config {
	return Config{
		Iterations:  500,
		ResultSize:  2000,
		Concurrency: 1,
		RangeField:  "totalAmount",
		RangeMin:    5,
		RangeMax:    15,
	}
}

// Validate checks the run parameters.
func (c Config) Validate() error {
	if c.Iterations < 1 {
		return errors.ConfigError(fmt.Sprintf("iterations must be at least 1, got %d", c.Iterations), nil)
	}
	if c.Concurrency < 1 {
		return errors.ConfigError(fmt.Sprintf("concurrency must be at least 1, got %d", c.Concurrency), nil)
	}
	if c.ResultSize < 0 {
		return errors.ConfigError(fmt.Sprintf("result size must not be negative, got %d", c.ResultSize), nil)
	}
	if c.RangeMin > c.RangeMax {
		return errors.ConfigError(fmt.Sprintf("range min %g is greater than max %g", c.RangeMin, c.RangeMax), nil)
	}
	return nil
}

// Query is one benchmarked query kind.
type Query struct {
	Name string
	Run  func(ctx context.Context, s store.Searcher, size int) (*store.Result, error)
}

// Queries returns the match-all and range queries for cfg.
func Queries(cfg Config) []Query {
	return []Query{
		{
			Name: "match_all",
			Run: func(ctx context.Context, s store.Searcher, size int) (*store.Result, error) {
				return s.MatchAll(ctx, size)
			},
		},
		{
			Name: fmt.Sprintf("range %s [%g, %g]", cfg.RangeField, cfg.RangeMin, cfg.RangeMax),
			Run: func(ctx context.Context, s store.Searcher, size int) (*store.Result, error) {
				return s.NumericRange(ctx, cfg.RangeField, cfg.RangeMin, cfg.RangeMax, size)
			},
		},
	}
}

// QueryResult is the timing of one query kind.
type QueryResult struct {
	Name       string        `json:"name"`
	Iterations int           `json:"iterations"`
	Elapsed    time.Duration `json:"elapsed_ns"`
	Total      uint64        `json:"total_hits"`
	Returned   int           `json:"returned_hits"`
	P50        time.Duration `json:"p50_ns"`
	P99        time.Duration `json:"p99_ns"`
}

// Mean returns the mean latency per iteration.
func (r QueryResult) Mean() time.Duration {
	if r.Iterations == 0 {
		return 0
	}
	return r.Elapsed / time.Duration(r.Iterations)
}

// Report holds the results of a run.
type Report struct {
	Documents uint64        `json:"documents"`
	Queries   []QueryResult `json:"queries"`
}

// Run executes every query of Queries(cfg) cfg.Iterations times.
// Iterations of one query run with up to cfg.Concurrency in flight;
// query kinds run one after the other so their timings do not mix.
func Run(ctx context.Context, s store.Searcher, cfg Config) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	docs, err := s.DocCount(ctx)
	if err != nil {
		return nil, err
	}
	report := &Report{Documents: docs}

	for _, q := range Queries(cfg) {
		res, err := runQuery(ctx, s, q, cfg)
		if err != nil {
			return report, fmt.Errorf("bench %s: %w", q.Name, err)
		}
		slog.Info("bench_query_done",
			slog.String("query", q.Name),
			slog.Int("iterations", res.Iterations),
			slog.Duration("elapsed", res.Elapsed),
			slog.Uint64("total_hits", res.Total))
		report.Queries = append(report.Queries, res)
	}
	return report, nil
}

func runQuery(ctx context.Context, s store.Searcher, q Query, cfg Config) (QueryResult, error) {
	latencies := make([]time.Duration, cfg.Iterations)

	// Warm the searcher once and keep the hit counts of a single run.
	first, err := q.Run(ctx, s, cfg.ResultSize)
	if err != nil {
		return QueryResult{}, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Concurrency)

	start := time.Now()
	for i := range cfg.Iterations {
		g.Go(func() error {
			t0 := time.Now()
			if _, err := q.Run(gctx, s, cfg.ResultSize); err != nil {
				return err
			}
			latencies[i] = time.Since(t0)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return QueryResult{}, err
	}
	elapsed := time.Since(start)

	slices.Sort(latencies)
	return QueryResult{
		Name:       q.Name,
		Iterations: cfg.Iterations,
		Elapsed:    elapsed,
		Total:      first.Total,
		Returned:   len(first.Hits),
		P50:        percentile(latencies, 0.50),
		P99:        percentile(latencies, 0.99),
	}, nil
}

// percentile expects sorted input.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}
