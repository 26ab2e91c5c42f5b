package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TS01: Error wrapping preserves original error
func TestSeekError_Unwrap_PreservesOriginalError(t *testing.T) {
	// Given: an original error
	originalErr := errors.New("permission denied")

	// When: wrapping with SeekError
	seekErr := IOFailure(ErrCodeDirCreate, "create account directory", originalErr)

	// Then: unwrapping returns original error
	require.NotNil(t, seekErr)
	assert.Equal(t, originalErr, errors.Unwrap(seekErr))
	assert.True(t, errors.Is(seekErr, originalErr))
}

func TestSeekError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      *SeekError
		expected string
	}{
		{
			name:     "config error",
			err:      New(ErrCodeConfigNotFound, "config file not found", nil),
			expected: "[ERR_101_CONFIG_NOT_FOUND] config file not found",
		},
		{
			name:     "not found",
			err:      NotFound(ErrCodeIndexNotFound, "index 7 not found"),
			expected: "[ERR_302_INDEX_NOT_FOUND] index 7 not found",
		},
		{
			name:     "with cause",
			err:      EngineFailure("commit failed", errors.New("segment locked")),
			expected: "[ERR_502_ENGINE_FAILURE] commit failed: segment locked",
		},
		{
			name:     "wrapped cause is not repeated",
			err:      Wrap(ErrCodeInternal, errors.New("boom")),
			expected: "[ERR_501_INTERNAL] boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestSeekError_Is_MatchesByCode(t *testing.T) {
	// Given: two errors with same code
	err1 := NotFound(ErrCodeApikeyNotFound, "apikey A")
	err2 := NotFound(ErrCodeApikeyNotFound, "apikey B")

	// Then: they match by code
	assert.True(t, errors.Is(err1, err2))
	assert.False(t, errors.Is(err1, NotFound(ErrCodeIndexNotFound, "index")))
}

func TestSeekError_WithDetailAndSuggestion(t *testing.T) {
	err := NotFound(ErrCodeIndexNotFound, "index not found").
		WithDetail("index_id", "3").
		WithSuggestion("List indices with 'seekhost index list'")

	assert.Equal(t, "3", err.Details["index_id"])
	assert.Contains(t, err.Suggestion, "index list")
}

func TestSeekError_CategoryFromCode(t *testing.T) {
	tests := []struct {
		code         string
		wantCategory Category
	}{
		{ErrCodeConfigNotFound, CategoryConfig},
		{ErrCodeConfigInvalid, CategoryConfig},
		{ErrCodeDirCreate, CategoryIO},
		{ErrCodeFileRename, CategoryIO},
		{ErrCodeApikeyNotFound, CategoryNotFound},
		{ErrCodeIndexClosed, CategoryNotFound},
		{ErrCodeInvalidInput, CategoryValidation},
		{ErrCodeQuotaExceeded, CategoryValidation},
		{ErrCodeEngineFailure, CategoryEngine},
		{ErrCodeSchemaInvalid, CategoryEngine},
		{ErrCodeInternal, CategoryInternal},
		{"BOGUS", CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantCategory, err.Category)
		})
	}
}

func TestSeekError_RetryableFromCode(t *testing.T) {
	tests := []struct {
		code          string
		wantRetryable bool
		wantSeverity  Severity
	}{
		{ErrCodeFileRename, true, SeverityWarning},
		{ErrCodeRateLimited, true, SeverityWarning},
		{ErrCodeFileWrite, false, SeverityError},
		{ErrCodeEngineFailure, false, SeverityError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantRetryable, err.Retryable)
			assert.Equal(t, tt.wantSeverity, err.Severity)
		})
	}
}

func TestCategoryHelpers_SeeThroughWrapping(t *testing.T) {
	// Given: coded errors wrapped by fmt.Errorf
	notFound := fmt.Errorf("lookup: %w", NotFound(ErrCodeDocumentNotFound, "document 9"))
	ioErr := fmt.Errorf("save: %w", IOFailure(ErrCodeFileWrite, "write apikey.json", nil))
	engineErr := fmt.Errorf("search: %w", EngineFailure("query failed", nil))

	// Then: helpers classify through the chain
	assert.True(t, IsNotFound(notFound))
	assert.False(t, IsNotFound(ioErr))
	assert.True(t, IsIOFailure(ioErr))
	assert.True(t, IsEngineFailure(engineErr))
	assert.False(t, IsEngineFailure(errors.New("plain")))
	assert.Equal(t, ErrCodeDocumentNotFound, GetCode(notFound))
	assert.Equal(t, "", GetCode(nil))
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestIsRetryable_ChecksRetryableFlag(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"retryable rename", New(ErrCodeFileRename, "rename", nil), true},
		{"non-retryable", NotFound(ErrCodeIndexNotFound, "missing"), false},
		{"wrapped retryable", fmt.Errorf("ctx: %w", New(ErrCodeRateLimited, "slow down", nil)), true},
		{"standard error", errors.New("standard error"), false},
		{"nil error", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRetryable(tt.err))
		})
	}
}
