// Package errors provides structured error types for the FraudLake system.
// All errors include a category, code, message, and retryable flag for
// consistent error handling across components.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by system component.
type ErrorCategory string

const (
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	ErrCategoryLoad       ErrorCategory = "LOAD"
	ErrCategoryStorage    ErrorCategory = "STORAGE"
	ErrCategoryCatalog    ErrorCategory = "CATALOG"
	ErrCategoryQuery      ErrorCategory = "QUERY"
	ErrCategoryView       ErrorCategory = "VIEW"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Validation codes
	CodeInvalidSchema = "INVALID_SCHEMA"
	CodeInvalidLayout = "INVALID_LAYOUT"
	CodeEmptyBatch    = "EMPTY_BATCH"

	// Load codes
	CodeMalformedRow   = "MALFORMED_ROW"
	CodeSourceNotFound = "SOURCE_NOT_FOUND"

	// Storage codes
	CodeUploadFailed   = "UPLOAD_FAILED"
	CodeDownloadFailed = "DOWNLOAD_FAILED"
	CodeObjectNotFound = "OBJECT_NOT_FOUND"

	// Catalog codes
	CodePartitionNotFound = "PARTITION_NOT_FOUND"
	CodeViewNotFound      = "VIEW_NOT_FOUND"
	CodeDuplicateSegment  = "DUPLICATE_SEGMENT"

	// Query codes
	CodeUnknownColumn    = "UNKNOWN_COLUMN"
	CodeInvalidPlan      = "INVALID_PLAN"
	CodeSegmentScan      = "SEGMENT_SCAN_FAILED"
	CodeExecutionTimeout = "EXECUTION_TIMEOUT"

	// View codes
	CodeRebuildFailed = "REBUILD_FAILED"
	CodeStaleView     = "STALE_VIEW"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// LakeError is the structured error type used throughout the system.
type LakeError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *LakeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *LakeError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *LakeError) Is(target error) bool {
	var t *LakeError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new LakeError.
func New(category ErrorCategory, code, message string) *LakeError {
	return &LakeError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new LakeError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *LakeError {
	return &LakeError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *LakeError) WithDetails(details map[string]interface{}) *LakeError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var le *LakeError
	if errors.As(err, &le) {
		return le.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a LakeError.
func GetCategory(err error) ErrorCategory {
	var le *LakeError
	if errors.As(err, &le) {
		return le.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a LakeError.
func GetCode(err error) string {
	var le *LakeError
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}

// isRetryable determines if an error code is transient. Storage transfers
// can be retried; malformed input and catalog misses cannot.
func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryStorage && code == CodeUploadFailed:
		return true
	case category == ErrCategoryStorage && code == CodeDownloadFailed:
		return true
	case category == ErrCategoryQuery && code == CodeExecutionTimeout:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewValidationError(code, message string) *LakeError {
	return New(ErrCategoryValidation, code, message)
}

func NewLoadError(code, message string, cause error) *LakeError {
	return Wrap(ErrCategoryLoad, code, message, cause)
}

func NewStorageError(code, message string, cause error) *LakeError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewCatalogError(code, message string, cause error) *LakeError {
	return Wrap(ErrCategoryCatalog, code, message, cause)
}

func NewQueryError(code, message string) *LakeError {
	return New(ErrCategoryQuery, code, message)
}

func NewViewError(code, message string, cause error) *LakeError {
	return Wrap(ErrCategoryView, code, message, cause)
}

func NewInternalError(message string, cause error) *LakeError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
