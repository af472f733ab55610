//go:build ignore

// Package main compares two `taxidx bench --json` reports and fails on
// query latency regressions.
// Usage: go run scripts/bench-compare.go <current.json> <baseline.json>
//
// A query whose mean latency grew by more than the threshold (20% by
// default) is a regression.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
)

const (
	// RegressionThreshold is the maximum allowed slowdown (20%).
	RegressionThreshold = 0.20

	// ImprovementThreshold for highlighting significant speedups.
	ImprovementThreshold = 0.10
)

// benchReport mirrors the JSON written by taxidx bench.
type benchReport struct {
	Documents uint64 `json:"documents"`
	Queries   []struct {
		Name       string `json:"name"`
		Iterations int    `json:"iterations"`
		ElapsedNs  int64  `json:"elapsed_ns"`
		P99Ns      int64  `json:"p99_ns"`
	} `json:"queries"`
}

// ComparisonResult is the comparison of one query kind.
type ComparisonResult struct {
	Name         string  `json:"name"`
	CurrentMean  float64 `json:"current_mean_ns"`
	BaselineMean float64 `json:"baseline_mean_ns"`
	DeltaPct     float64 `json:"delta_percent"`
	Status       string  `json:"status"`
}

// Report contains all comparison results.
type Report struct {
	Regressions      int                 `json:"regressions"`
	Improvements     int                 `json:"improvements"`
	Results          []*ComparisonResult `json:"results"`
	DocumentsDiffer  bool                `json:"documents_differ"`
	RegressionFailed bool                `json:"regression_failed"`
}

var (
	outputJSON    = flag.Bool("json", false, "Output results as JSON")
	threshold     = flag.Float64("threshold", RegressionThreshold, "Regression threshold (0.0-1.0)")
	failOnRegress = flag.Bool("fail", true, "Exit with code 1 on regression")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <current.json> <baseline.json>\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() < 2 {
		flag.Usage()
		os.Exit(1)
	}

	current, err := load(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", flag.Arg(0), err)
		os.Exit(1)
	}
	baseline, err := load(flag.Arg(1))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", flag.Arg(1), err)
		os.Exit(1)
	}

	report := compare(current, baseline, *threshold)
	if *outputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(report)
	} else {
		printReport(report)
	}

	if *failOnRegress && report.RegressionFailed {
		os.Exit(1)
	}
}

func load(path string) (*benchReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r benchReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func means(r *benchReport) map[string]float64 {
	out := make(map[string]float64, len(r.Queries))
	for _, q := range r.Queries {
		if q.Iterations > 0 {
			out[q.Name] = float64(q.ElapsedNs) / float64(q.Iterations)
		}
	}
	return out
}

func compare(current, baseline *benchReport, threshold float64) *Report {
	report := &Report{DocumentsDiffer: current.Documents != baseline.Documents}
	cur, base := means(current), means(baseline)

	names := make([]string, 0, len(cur))
	for name := range cur {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		res := &ComparisonResult{Name: name, CurrentMean: cur[name], Status: "NEW"}
		if b, ok := base[name]; ok && b > 0 {
			res.BaselineMean = b
			delta := (cur[name] - b) / b
			res.DeltaPct = delta * 100
			switch {
			case delta > threshold:
				res.Status = "REGRESSION"
				report.Regressions++
				report.RegressionFailed = true
			case delta < -ImprovementThreshold:
				res.Status = "IMPROVED"
				report.Improvements++
			default:
				res.Status = "OK"
			}
		}
		report.Results = append(report.Results, res)
	}
	return report
}

func printReport(r *Report) {
	if r.DocumentsDiffer {
		fmt.Println("warning: reports were taken on indexes of different size")
	}
	fmt.Printf("%-40s %14s %14s %9s  %s\n", "query", "baseline", "current", "delta", "status")
	for _, res := range r.Results {
		fmt.Printf("%-40s %12.0fns %12.0fns %+8.1f%%  %s\n",
			res.Name, res.BaselineMean, res.CurrentMean, res.DeltaPct, res.Status)
	}
	fmt.Printf("\n%d regressions, %d improvements\n", r.Regressions, r.Improvements)
}
