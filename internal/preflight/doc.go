// Package preflight checks that the machine can run an ingest job before
// any worker starts.
//
// The checks cover:
//   - Input file is a readable regular file
//   - Free disk space at the output location
//   - Write permissions in the output directory
//   - File descriptor limit against the worker count
//   - Memory for the uncommitted batch (advisory)
//
// Use the Checker type to run all validations:
//
//	checker := preflight.New()
//	results := checker.RunAll(ctx, preflight.Target{Input: in, Output: out, Workers: 8})
//	if checker.HasCriticalFailures(results) {
//	    // Handle failures
//	}
package preflight
