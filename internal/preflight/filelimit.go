package preflight

import (
	"fmt"
	"syscall"
)

// MinFileDescriptors is the minimum required file descriptor limit.
const MinFileDescriptors = 256

// descriptorsPerWorker covers the input handle each worker opens plus
// index segment files touched by its commits.
const descriptorsPerWorker = 8

// RequiredFileDescriptors returns the descriptor budget for a worker count.
func RequiredFileDescriptors(workers int) uint64 {
	return MinFileDescriptors + uint64(max(workers, 0))*descriptorsPerWorker
}

// CheckFileDescriptors checks the file descriptor limit against workers.
func (c *Checker) CheckFileDescriptors(workers int) CheckResult {
	result := CheckResult{
		Name:     "file_descriptors",
		Required: true,
	}

	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("failed to check file descriptor limit: %v", err)
		return result
	}

	needed := RequiredFileDescriptors(workers)
	result.Message = fmt.Sprintf("%d (needed for %d workers: %d)", rLimit.Cur, workers, needed)

	if uint64(rLimit.Cur) < needed {
		result.Status = StatusFail
		result.Details = fmt.Sprintf("Run 'ulimit -n %d' or lower --workers", needed*2)
		return result
	}

	result.Status = StatusPass
	return result
}
