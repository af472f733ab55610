// Package errors provides structured error handling for taxidx.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors (fatal before any worker starts)
//   - 2XX: IO errors (fatal to the worker that hit them)
//   - 4XX: Parse errors (one malformed input line, recovered locally)
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file read and index write errors.
	CategoryIO Category = "IO"
	// CategoryParse indicates a malformed input line.
	CategoryParse Category = "PARSE"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates the whole job must not start or continue.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates the originating worker stopped.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates a skipped line, processing continues.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound    = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid     = "ERR_102_CONFIG_INVALID"
	ErrCodeInvalidWorkers    = "ERR_103_INVALID_WORKERS"
	ErrCodeInvalidBatchSize  = "ERR_104_INVALID_BATCH_SIZE"
	ErrCodeInputNotFound     = "ERR_105_INPUT_NOT_FOUND"
	ErrCodeInputUnreadable   = "ERR_106_INPUT_UNREADABLE"
	ErrCodeInvalidBackend    = "ERR_107_INVALID_BACKEND"
	ErrCodeOutputInvalid     = "ERR_108_OUTPUT_INVALID"
	ErrCodeInvalidBufferSize = "ERR_109_INVALID_BUFFER_SIZE"
	ErrCodeIndexNotFound     = "ERR_110_INDEX_NOT_FOUND"
	ErrCodeUnknownField      = "ERR_111_UNKNOWN_FIELD"

	// IO errors (200-299)
	ErrCodeReadFailed   = "ERR_201_READ_FAILED"
	ErrCodeIndexOpen    = "ERR_202_INDEX_OPEN"
	ErrCodeIndexWrite   = "ERR_203_INDEX_WRITE"
	ErrCodeIndexCommit  = "ERR_204_INDEX_COMMIT"
	ErrCodeCorruptIndex = "ERR_205_CORRUPT_INDEX"
	ErrCodeIndexClosed  = "ERR_206_INDEX_CLOSED"
	ErrCodeIndexLocked  = "ERR_207_INDEX_LOCKED"
	ErrCodeIndexQuery   = "ERR_208_INDEX_QUERY"
	ErrCodePreflight    = "ERR_209_PREFLIGHT_FAILED"

	// Parse errors (400-499)
	ErrCodeParseFailed  = "ERR_401_PARSE_FAILED"
	ErrCodeMissingField = "ERR_402_MISSING_FIELD"

	// Internal errors (500-599)
	ErrCodeInternal = "ERR_501_INTERNAL"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Extract numeric portion (e.g., "101" from "ERR_101_CONFIG_NOT_FOUND")
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '4':
		return CategoryParse
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch categoryFromCode(code) {
	case CategoryConfig:
		return SeverityFatal
	case CategoryParse:
		return SeverityWarning
	default:
		return SeverityError
	}
}
