package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaxidxError_Unwrap_PreservesOriginalError(t *testing.T) {
	// Given: an original error
	originalErr := errors.New("short read")

	// When: wrapping with TaxidxError
	err := New(ErrCodeReadFailed, "reading partition 2", originalErr)

	// Then: unwrapping returns original error
	require.NotNil(t, err)
	assert.Equal(t, originalErr, errors.Unwrap(err))
	assert.True(t, errors.Is(err, originalErr))
}

func TestTaxidxError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		cause    error
		expected string
	}{
		{
			name:     "config error",
			code:     ErrCodeInvalidWorkers,
			message:  "workers must be at least 1",
			expected: "[ERR_103_INVALID_WORKERS] workers must be at least 1",
		},
		{
			name:     "io error with cause",
			code:     ErrCodeIndexCommit,
			message:  "commit failed",
			cause:    errors.New("disk full"),
			expected: "[ERR_204_INDEX_COMMIT] commit failed: disk full",
		},
		{
			name:     "parse error",
			code:     ErrCodeParseFailed,
			message:  "invalid json",
			expected: "[ERR_401_PARSE_FAILED] invalid json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, tt.cause)
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestWrap_DoesNotRepeatCause(t *testing.T) {
	err := Wrap(ErrCodeReadFailed, errors.New("boom"))
	assert.Equal(t, "[ERR_201_READ_FAILED] boom", err.Error())
	assert.Nil(t, Wrap(ErrCodeReadFailed, nil))
}

func TestTaxidxError_Is_MatchesByCode(t *testing.T) {
	err1 := New(ErrCodeIndexCommit, "commit A", nil)
	err2 := New(ErrCodeIndexCommit, "commit B", nil)
	err3 := New(ErrCodeIndexWrite, "add", nil)

	assert.True(t, errors.Is(err1, err2))
	assert.False(t, errors.Is(err1, err3))
}

func TestCategory_DerivedFromCode(t *testing.T) {
	tests := []struct {
		code     string
		category Category
		severity Severity
	}{
		{ErrCodeConfigInvalid, CategoryConfig, SeverityFatal},
		{ErrCodeInputNotFound, CategoryConfig, SeverityFatal},
		{ErrCodeReadFailed, CategoryIO, SeverityError},
		{ErrCodeIndexLocked, CategoryIO, SeverityError},
		{ErrCodeParseFailed, CategoryParse, SeverityWarning},
		{ErrCodeInternal, CategoryInternal, SeverityError},
		{"BAD", CategoryInternal, SeverityError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "msg", nil)
			assert.Equal(t, tt.category, err.Category)
			assert.Equal(t, tt.severity, err.Severity)
		})
	}
}

func TestPredicates_SeeThroughWrapping(t *testing.T) {
	// Given: taxidx errors wrapped with fmt.Errorf
	cfg := fmt.Errorf("startup: %w", ConfigError("bad workers", nil))
	io := fmt.Errorf("worker 3: %w", IOError("read failed", nil))
	parse := fmt.Errorf("line 7: %w", ParseError("not json", nil))

	// Then: predicates still classify them
	assert.True(t, IsConfig(cfg))
	assert.True(t, IsFatal(cfg))
	assert.True(t, IsIO(io))
	assert.False(t, IsFatal(io))
	assert.True(t, IsParse(parse))
	assert.Equal(t, ErrCodeParseFailed, GetCode(parse))

	// And: plain errors have no category
	plain := errors.New("plain")
	assert.False(t, IsIO(plain))
	assert.Equal(t, "", GetCode(plain))
	assert.Equal(t, Category(""), GetCategory(plain))
}

func TestTaxidxError_WithDetail_AddsContext(t *testing.T) {
	err := IOError("read failed", nil).
		WithDetail("worker", "2").
		WithSuggestion("check the input file")

	assert.Equal(t, "2", err.Details["worker"])
	assert.Equal(t, "check the input file", err.Suggestion)
}
