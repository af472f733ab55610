package preflight

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// EstimatedDocBytes approximates the in-memory size of one buffered trip
// document, including index structures built before commit.
const EstimatedDocBytes = 2 * 1024

// meminfoPath is replaced in tests.
var meminfoPath = "/proc/meminfo"

// EstimateBatchMemory returns the memory held by uncommitted documents when
// every worker fills its batch at once.
func EstimateBatchMemory(workers, commitThreshold int) uint64 {
	return uint64(max(workers, 0)) * uint64(max(commitThreshold, 0)) * EstimatedDocBytes
}

// CheckMemory compares the batch estimate with available memory. It is
// advisory: a large batch slows ingestion down but does not break it.
func (c *Checker) CheckMemory(workers, commitThreshold int) CheckResult {
	result := CheckResult{
		Name:     "memory",
		Required: false,
	}

	needed := EstimateBatchMemory(workers, commitThreshold)
	available, ok := availableMemory()
	if !ok {
		result.Status = StatusPass
		result.Message = fmt.Sprintf("~%s for uncommitted batches (available memory unknown)", formatBytes(needed))
		return result
	}

	result.Message = fmt.Sprintf("~%s for uncommitted batches, %s available", formatBytes(needed), formatBytes(available))
	if needed > available {
		result.Status = StatusWarn
		result.Details = "Lower --commit-threshold or --workers"
		return result
	}
	result.Status = StatusPass
	return result
}

// availableMemory reads MemAvailable from /proc/meminfo. Platforms without
// it report ok == false.
func availableMemory() (uint64, bool) {
	f, err := os.Open(meminfoPath)
	if err != nil {
		return 0, false
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 || fields[0] != "MemAvailable:" {
			continue
		}
		kb, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return 0, false
		}
		return kb * 1024, true
	}
	return 0, false
}
