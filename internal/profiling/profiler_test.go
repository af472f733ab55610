package profiling

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func burn() int {
	sum := 0
	for i := range 1000000 {
		sum += i % 7
	}
	return sum
}

func nonEmpty(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0), path)
}

func TestOptions_Enabled(t *testing.T) {
	assert.False(t, Options{}.Enabled())
	assert.True(t, Options{HeapPath: "heap.prof"}.Enabled())
}

func TestSession_AllProfiles(t *testing.T) {
	// Given: every profile requested
	dir := t.TempDir()
	opts := Options{
		CPUPath:   filepath.Join(dir, "cpu.prof"),
		HeapPath:  filepath.Join(dir, "heap.prof"),
		TracePath: filepath.Join(dir, "trace.out"),
	}

	// When: a session runs some work
	s, err := Start(opts)
	require.NoError(t, err)
	_ = burn()
	require.NoError(t, s.Stop())

	// Then: all three files have content
	nonEmpty(t, opts.CPUPath)
	nonEmpty(t, opts.HeapPath)
	nonEmpty(t, opts.TracePath)
}

func TestSession_NothingRequested(t *testing.T) {
	s, err := Start(Options{})
	require.NoError(t, err)
	assert.NoError(t, s.Stop())
}

func TestStart_BadPath(t *testing.T) {
	dir := t.TempDir()

	_, err := Start(Options{CPUPath: filepath.Join(dir, "missing", "cpu.prof")})
	assert.Error(t, err)

	// A failing trace must not leave the CPU profile running.
	_, err = Start(Options{
		CPUPath:   filepath.Join(dir, "cpu.prof"),
		TracePath: filepath.Join(dir, "missing", "trace.out"),
	})
	require.Error(t, err)

	s, err := Start(Options{CPUPath: filepath.Join(dir, "cpu2.prof")})
	require.NoError(t, err, "CPU profiling should be free again")
	require.NoError(t, s.Stop())
}

func TestWriteHeap_BadPath(t *testing.T) {
	err := WriteHeap(filepath.Join(t.TempDir(), "missing", "heap.prof"))
	assert.Error(t, err)
}

func TestSession_HeapFailureReported(t *testing.T) {
	s, err := Start(Options{HeapPath: filepath.Join(t.TempDir(), "missing", "heap.prof")})
	require.NoError(t, err)

	assert.Error(t, s.Stop())
}

func TestLogMemStats(t *testing.T) {
	assert.NotPanics(t, func() { LogMemStats("mem") })
}
