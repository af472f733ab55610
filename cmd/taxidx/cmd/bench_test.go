package cmd

import (
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/taxidx/internal/bench"
)

func TestBenchCmd_JSON(t *testing.T) {
	for _, backend := range []string{"bleve", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			// Given: an index of 20 trips
			path := ingestIndex(t, backend, 20)

			// When: benchmarking with a few iterations and a custom range
			stdout, _, err := execute(t, "bench", path, "-n", "3", "--size", "50",
				"--concurrency", "2", "--range", "0,4", "--json")
			require.NoError(t, err)

			// Then: both query kinds are reported with their hit counts
			var report bench.Report
			require.NoError(t, jsoniter.UnmarshalFromString(stdout, &report))
			assert.Equal(t, uint64(20), report.Documents)
			require.Len(t, report.Queries, 2)
			assert.Equal(t, uint64(20), report.Queries[0].Total)
			assert.Equal(t, uint64(5), report.Queries[1].Total)
			for _, q := range report.Queries {
				assert.Equal(t, 3, q.Iterations)
			}
		})
	}
}

func TestBenchCmd_Table(t *testing.T) {
	path := ingestIndex(t, "bleve", 5)

	stdout, _, err := execute(t, "bench", path, "-n", "2")

	require.NoError(t, err)
	assert.Contains(t, stdout, "5 documents, 2 iterations")
	assert.Contains(t, stdout, "match_all")
	assert.Contains(t, stdout, "range totalAmount")
}

func TestBenchCmd_InvalidIterations(t *testing.T) {
	path := ingestIndex(t, "bleve", 2)

	_, _, err := execute(t, "bench", path, "-n", "0")

	require.Error(t, err)
	assert.Equal(t, ExitConfig, ExitCode(err))
}
