// Package errors provides structured error handling for seekhost.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (directories, metadata files, locks)
//   - 3XX: Not-found errors (apikeys, indices, documents)
//   - 4XX: Validation, authorization and quota errors
//   - 5XX: Engine and internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file and disk I/O errors.
	CategoryIO Category = "IO"
	// CategoryNotFound indicates an unknown apikey, index or document.
	CategoryNotFound Category = "NOT_FOUND"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryEngine indicates a failure reported by the search engine.
	CategoryEngine Category = "ENGINE"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// IO errors (200-299)
	ErrCodeDirCreate   = "ERR_201_DIR_CREATE"
	ErrCodeFileWrite   = "ERR_202_FILE_WRITE"
	ErrCodeFileRename  = "ERR_203_FILE_RENAME"
	ErrCodeFileRead    = "ERR_204_FILE_READ"
	ErrCodeDirRemove   = "ERR_205_DIR_REMOVE"
	ErrCodeFileCorrupt = "ERR_206_FILE_CORRUPT"
	ErrCodeLockHeld    = "ERR_207_LOCK_HELD"
	ErrCodeDirExists   = "ERR_208_DIR_EXISTS"

	// Not-found errors (300-399)
	ErrCodeApikeyNotFound   = "ERR_301_APIKEY_NOT_FOUND"
	ErrCodeIndexNotFound    = "ERR_302_INDEX_NOT_FOUND"
	ErrCodeIndexClosed      = "ERR_303_INDEX_CLOSED"
	ErrCodeDocumentNotFound = "ERR_304_DOCUMENT_NOT_FOUND"

	// Validation errors (400-499)
	ErrCodeInvalidInput   = "ERR_401_INVALID_INPUT"
	ErrCodeUnauthorized   = "ERR_402_UNAUTHORIZED"
	ErrCodeQuotaExceeded  = "ERR_403_QUOTA_EXCEEDED"
	ErrCodeRateLimited    = "ERR_404_RATE_LIMITED"
	ErrCodeInvalidRequest = "ERR_405_INVALID_REQUEST"

	// Engine and internal errors (500-599)
	ErrCodeInternal      = "ERR_501_INTERNAL"
	ErrCodeEngineFailure = "ERR_502_ENGINE_FAILURE"
	ErrCodeSchemaInvalid = "ERR_503_SCHEMA_INVALID"
	ErrCodeExtractFailed = "ERR_504_EXTRACT_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}
	if code == ErrCodeInternal {
		return CategoryInternal
	}

	// Extract numeric portion (e.g., "101" from "ERR_101_CONFIG_NOT_FOUND")
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryNotFound
	case '4':
		return CategoryValidation
	case '5':
		return CategoryEngine
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	if isRetryableCode(code) {
		return SeverityWarning
	}
	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeFileRename, ErrCodeRateLimited, ErrCodeLockHeld:
		return true
	default:
		return false
	}
}
