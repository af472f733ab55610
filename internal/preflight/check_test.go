package preflight

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckStatus_String(t *testing.T) {
	tests := []struct {
		status CheckStatus
		want   string
	}{
		{StatusPass, "PASS"},
		{StatusWarn, "WARN"},
		{StatusFail, "FAIL"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.String())
		})
	}
}

func TestCheckResult_IsCritical(t *testing.T) {
	tests := []struct {
		name     string
		result   CheckResult
		expected bool
	}{
		{"required pass is not critical", CheckResult{Status: StatusPass, Required: true}, false},
		{"required fail is critical", CheckResult{Status: StatusFail, Required: true}, true},
		{"optional fail is not critical", CheckResult{Status: StatusFail, Required: false}, false},
		{"required warn is not critical", CheckResult{Status: StatusWarn, Required: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.result.IsCritical())
		})
	}
}

func TestChecker_NewWithOptions(t *testing.T) {
	// Given: custom options
	buf := &bytes.Buffer{}
	checker := New(
		WithVerbose(true),
		WithOutput(buf),
		WithMinDiskSpace(1),
	)

	// Then: options are applied
	assert.True(t, checker.verbose)
	assert.Equal(t, buf, checker.output)
	assert.Equal(t, uint64(1), checker.minDisk)
	assert.Equal(t, uint64(MinDiskSpaceBytes), New().minDisk)
}

func TestChecker_HasCriticalFailures(t *testing.T) {
	checker := New()

	tests := []struct {
		name     string
		results  []CheckResult
		expected bool
	}{
		{"no results", []CheckResult{}, false},
		{"all pass", []CheckResult{{Status: StatusPass, Required: true}, {Status: StatusPass, Required: true}}, false},
		{"optional failure", []CheckResult{{Status: StatusPass, Required: true}, {Status: StatusFail}}, false},
		{"required failure", []CheckResult{{Status: StatusPass, Required: true}, {Status: StatusFail, Required: true}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, checker.HasCriticalFailures(tt.results))
			assert.Equal(t, tt.expected, len(checker.Failures(tt.results)) > 0)
		})
	}
}

func TestChecker_CheckInput(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "trips.json")
	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(data, []byte("{}\n"), 0o644))
	require.NoError(t, os.WriteFile(empty, nil, 0o644))

	checker := New()

	tests := []struct {
		name string
		path string
		want CheckStatus
	}{
		{"regular file", data, StatusPass},
		{"empty file", empty, StatusWarn},
		{"missing file", filepath.Join(dir, "missing.json"), StatusFail},
		{"directory", dir, StatusFail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := checker.CheckInput(tt.path)
			assert.Equal(t, tt.want, result.Status, result.Message)
			assert.True(t, result.Required)
		})
	}
}

func TestChecker_CheckWritePermissions_Writable(t *testing.T) {
	// Given: a writable directory
	tmpDir := t.TempDir()

	// When: checking write permissions
	result := New().CheckWritePermissions(tmpDir)

	// Then: passes and leaves no probe file behind
	assert.Equal(t, StatusPass, result.Status)
	assert.Equal(t, "write_permissions", result.Name)
	entries, err := os.ReadDir(tmpDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestChecker_CheckWritePermissions_ReadOnly(t *testing.T) {
	// Given: a read-only directory (skip on CI/root)
	if os.Getuid() == 0 {
		t.Skip("Skipping read-only test when running as root")
	}

	readOnlyDir := filepath.Join(t.TempDir(), "readonly")
	require.NoError(t, os.Mkdir(readOnlyDir, 0o555))
	defer func() { _ = os.Chmod(readOnlyDir, 0o755) }()

	// When: checking write permissions
	result := New().CheckWritePermissions(readOnlyDir)

	// Then: fails
	assert.Equal(t, StatusFail, result.Status)
	assert.Contains(t, result.Message, "permission denied")
}

func TestChecker_CheckDiskSpace(t *testing.T) {
	dir := t.TempDir()

	t.Run("no minimum passes", func(t *testing.T) {
		result := New(WithMinDiskSpace(0)).CheckDiskSpace(dir, 0)
		assert.Equal(t, StatusPass, result.Status)
		assert.Contains(t, result.Message, "free")
	})

	t.Run("impossible minimum fails", func(t *testing.T) {
		result := New(WithMinDiskSpace(1 << 62)).CheckDiskSpace(dir, 0)
		assert.Equal(t, StatusFail, result.Status)
		assert.True(t, result.IsCritical())
	})

	t.Run("input larger than free space warns", func(t *testing.T) {
		result := New(WithMinDiskSpace(0)).CheckDiskSpace(dir, 1<<62)
		assert.Equal(t, StatusWarn, result.Status)
		assert.Contains(t, result.Details, "may not fit")
	})

	t.Run("missing directory fails", func(t *testing.T) {
		result := New().CheckDiskSpace(filepath.Join(dir, "nope"), 0)
		assert.Equal(t, StatusFail, result.Status)
	})
}

func TestChecker_CheckFileDescriptors(t *testing.T) {
	checker := New()

	// Given: one worker, which any sane limit allows
	result := checker.CheckFileDescriptors(1)
	assert.Equal(t, StatusPass, result.Status, result.Message)

	var rLimit syscall.Rlimit
	require.NoError(t, syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit))
	if uint64(rLimit.Cur) >= 1<<50 {
		t.Skip("file descriptor limit is unlimited")
	}

	// Given: an absurd worker count
	result = checker.CheckFileDescriptors(1 << 40)
	assert.Equal(t, StatusFail, result.Status)
	assert.Contains(t, result.Details, "ulimit -n")
}

func TestRequiredFileDescriptors(t *testing.T) {
	assert.Equal(t, uint64(MinFileDescriptors), RequiredFileDescriptors(0))
	assert.Equal(t, uint64(MinFileDescriptors+4*descriptorsPerWorker), RequiredFileDescriptors(4))
}

func TestChecker_CheckMemory(t *testing.T) {
	dir := t.TempDir()
	orig := meminfoPath
	t.Cleanup(func() { meminfoPath = orig })

	meminfo := filepath.Join(dir, "meminfo")
	require.NoError(t, os.WriteFile(meminfo, []byte("MemTotal:  4096 kB\nMemAvailable:    1024 kB\n"), 0o644))
	meminfoPath = meminfo

	// 1 MB available, 1 worker x 100 docs x 2 KB fits
	result := New().CheckMemory(1, 100)
	assert.Equal(t, StatusPass, result.Status)
	assert.Contains(t, result.Message, "1.0 MB available")

	// 4 workers x 10000 docs does not
	result = New().CheckMemory(4, 10000)
	assert.Equal(t, StatusWarn, result.Status)
	assert.False(t, result.Required)

	// Unknown available memory never warns
	meminfoPath = filepath.Join(dir, "missing")
	result = New().CheckMemory(4, 10000)
	assert.Equal(t, StatusPass, result.Status)
	assert.Contains(t, result.Message, "unknown")
}

func TestOutputDir(t *testing.T) {
	dir := t.TempDir()

	assert.Equal(t, dir, OutputDir(filepath.Join(dir, "trips.bleve")))
	assert.Equal(t, dir, OutputDir(filepath.Join(dir, "a", "b", "trips.db")))
}

func TestChecker_RunAll_ReturnsAllChecks(t *testing.T) {
	// Given: a valid job
	dir := t.TempDir()
	input := filepath.Join(dir, "trips.json")
	require.NoError(t, os.WriteFile(input, []byte("{}\n"), 0o644))
	checker := New(WithMinDiskSpace(0))

	// When: running all checks
	results := checker.RunAll(context.Background(), Target{
		Input:           input,
		Output:          filepath.Join(dir, "trips.bleve"),
		Workers:         2,
		CommitThreshold: 10,
	})

	// Then: every check runs and none is critical
	names := make([]string, 0, len(results))
	for _, r := range results {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"input", "disk_space", "write_permissions", "file_descriptors", "memory"}, names)
	assert.False(t, checker.HasCriticalFailures(results))
}

func TestChecker_RunAll_MissingInputIsCritical(t *testing.T) {
	dir := t.TempDir()
	checker := New(WithMinDiskSpace(0))

	results := checker.RunAll(context.Background(), Target{
		Input:   filepath.Join(dir, "missing.json"),
		Output:  filepath.Join(dir, "out.bleve"),
		Workers: 1,
	})

	require.True(t, checker.HasCriticalFailures(results))
	assert.Equal(t, "input", checker.Failures(results)[0].Name)
}

func TestChecker_PrintResults(t *testing.T) {
	// Given: some check results
	results := []CheckResult{
		{Name: "disk_space", Status: StatusPass, Message: "50 GB free"},
		{Name: "memory", Status: StatusWarn, Message: "tight", Details: "Lower --commit-threshold"},
		{Name: "input", Status: StatusFail, Message: "missing", Required: true},
	}

	buf := &bytes.Buffer{}
	checker := New(WithOutput(buf), WithVerbose(true))

	// When: printing results
	checker.PrintResults(results)

	// Then: output contains formatted results
	output := buf.String()
	assert.Contains(t, output, "[PASS] disk_space")
	assert.Contains(t, output, "[WARN] memory")
	assert.Contains(t, output, "[FAIL] input")
	assert.Contains(t, output, "Lower --commit-threshold")
	assert.Contains(t, output, "Status: FAILED")
	assert.Contains(t, output, "1 error(s)")
	assert.Contains(t, output, "1 warning(s)")
}

func TestChecker_SummaryStatus(t *testing.T) {
	checker := New()

	tests := []struct {
		name     string
		results  []CheckResult
		expected string
	}{
		{"all pass", []CheckResult{{Status: StatusPass}, {Status: StatusPass}}, "ready"},
		{"with warnings", []CheckResult{{Status: StatusPass}, {Status: StatusWarn}}, "ready_with_warnings"},
		{"with critical failure", []CheckResult{{Status: StatusPass}, {Status: StatusFail, Required: true}}, "failed"},
		{"with optional failure", []CheckResult{{Status: StatusPass}, {Status: StatusFail}}, "ready_with_warnings"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, checker.SummaryStatus(tt.results))
		})
	}
}
