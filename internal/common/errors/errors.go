// Package errors provides the closed error taxonomy shared by the endpoint
// handler, the batch runner and the workflow worker.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Request errors
	ErrCodeParse          ErrorCode = "PARSE_ERROR"
	ErrCodeSchemaMismatch ErrorCode = "SCHEMA_MISMATCH"

	// Model errors
	ErrCodePredictionFailed ErrorCode = "PREDICTION_FAILED"
	ErrCodeModelNotLoaded   ErrorCode = "MODEL_NOT_LOADED"
	ErrCodeModelNotFound    ErrorCode = "MODEL_NOT_FOUND"
	ErrCodeModelLoadFailed  ErrorCode = "MODEL_LOAD_FAILED"
	ErrCodeRegistryFailed   ErrorCode = "REGISTRY_UNAVAILABLE"

	// Batch I/O errors
	ErrCodeInputReadFailed   ErrorCode = "INPUT_READ_FAILED"
	ErrCodeOutputWriteFailed ErrorCode = "OUTPUT_WRITE_FAILED"

	// Workflow engine errors
	ErrCodeWorkflowUnavailable ErrorCode = "WORKFLOW_UNAVAILABLE"
	ErrCodeWorkflowRejected    ErrorCode = "WORKFLOW_REJECTED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Details)
	}
	return e.Message
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// Is matches any StandardError carrying the same code, so callers can test
// with errors.Is(err, &StandardError{Code: ErrCodeParse}).
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// ==========================
// 2. Error Constructors
// ==========================

// NewParseError reports a request body that is not valid JSON or lacks the
// expected shape.
func NewParseError(details string, cause error) *StandardError {
	return newError(ErrCodeParse, "Invalid scoring request", details, false, cause)
}

// NewSchemaMismatchError reports a row that does not line up with the column
// schema. row is the zero-based row index, -1 when not row specific.
func NewSchemaMismatchError(row, expected, actual int, details string) *StandardError {
	e := newError(ErrCodeSchemaMismatch, "Row does not match the column schema", details, false, nil)
	e.Metadata = map[string]interface{}{
		"row":      row,
		"expected": expected,
		"actual":   actual,
	}
	return e
}

// NewUnknownColumnError reports a column name the schema does not define.
func NewUnknownColumnError(row int, column string) *StandardError {
	e := newError(ErrCodeSchemaMismatch, "Row does not match the column schema",
		fmt.Sprintf("unknown column %q", column), false, nil)
	e.Metadata = map[string]interface{}{
		"row":    row,
		"column": column,
	}
	return e
}

// NewMissingColumnError reports a column the operation needs but the table
// lacks.
func NewMissingColumnError(column string) *StandardError {
	e := newError(ErrCodeSchemaMismatch, "Column not found", fmt.Sprintf("column %q", column), false, nil)
	e.Metadata = map[string]interface{}{"column": column}
	return e
}

// NewPredictionFailedError wraps a failure raised by the model.
func NewPredictionFailedError(row int, err error) *StandardError {
	details := err.Error()
	if row >= 0 {
		details = fmt.Sprintf("row %d: %s", row, details)
	}
	e := newError(ErrCodePredictionFailed, "Model prediction failed", details, false, err)
	if row >= 0 {
		e.Metadata = map[string]interface{}{"row": row}
	}
	return e
}

// NewModelNotLoadedError is returned when a handler is used before Init.
func NewModelNotLoadedError() *StandardError {
	return newError(ErrCodeModelNotLoaded, "Model is not loaded", "", true, nil)
}

// NewModelNotFoundError reports a model name/version the registry does not know.
func NewModelNotFoundError(name, version string) *StandardError {
	details := fmt.Sprintf("model: %s", name)
	if version != "" {
		details += fmt.Sprintf(", version: %s", version)
	}
	return newError(ErrCodeModelNotFound, "Model not found in registry", details, false, nil)
}

// NewModelLoadFailedError wraps a failure to read or decode an artifact.
func NewModelLoadFailedError(path string, err error) *StandardError {
	return newError(ErrCodeModelLoadFailed, "Model artifact could not be loaded",
		fmt.Sprintf("path: %s, error: %v", path, err), false, err)
}

// NewRegistryFailedError wraps a transient registry failure.
func NewRegistryFailedError(err error) *StandardError {
	return newError(ErrCodeRegistryFailed, "Model registry unavailable", err.Error(), true, err)
}

func NewInputReadFailedError(path string, err error) *StandardError {
	return newError(ErrCodeInputReadFailed, "Input table could not be read",
		fmt.Sprintf("path: %s, error: %v", path, err), false, err)
}

func NewOutputWriteFailedError(path string, err error) *StandardError {
	return newError(ErrCodeOutputWriteFailed, "Output table could not be written",
		fmt.Sprintf("path: %s, error: %v", path, err), true, err)
}

// NewWorkflowError wraps a failed call to the workflow engine. Connection
// and timeout failures are retryable, rejected commands are not.
func NewWorkflowError(operation string, retryable bool, err error) *StandardError {
	code, message := ErrCodeWorkflowRejected, "Workflow engine rejected the command"
	if retryable {
		code, message = ErrCodeWorkflowUnavailable, "Workflow engine unavailable"
	}
	e := newError(code, message, fmt.Sprintf("operation: %s, error: %v", operation, err), retryable, err)
	e.Metadata = map[string]interface{}{"operation": operation}
	return e
}

// ==========================
// 3. Normalization & Mapping
// ==========================

// AsStandardError normalizes any error into a StandardError.
func AsStandardError(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false, err)
}

// HasCode reports whether err is a StandardError with the given code.
func HasCode(err error, code ErrorCode) bool {
	var stdErr *StandardError
	return stderrors.As(err, &stdErr) && stdErr.Code == code
}

// HTTPStatus maps an error code to the response status of the scoring endpoint.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeParse:
		return http.StatusBadRequest
	case ErrCodeSchemaMismatch:
		return http.StatusUnprocessableEntity
	case ErrCodeModelNotLoaded, ErrCodeRegistryFailed, ErrCodeWorkflowUnavailable:
		return http.StatusServiceUnavailable
	case ErrCodeModelNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// GetRetryCount returns the recommended retry count for workflow jobs.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeRegistryFailed, ErrCodeOutputWriteFailed, ErrCodeWorkflowUnavailable:
		return 3
	case ErrCodeModelNotLoaded:
		return 1
	default:
		return 0 // request and model errors: no retry
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case code == ErrCodeParse || code == ErrCodeSchemaMismatch:
		return "REQUEST"
	case strings.HasPrefix(codeStr, "MODEL") || code == ErrCodePredictionFailed || code == ErrCodeRegistryFailed:
		return "MODEL"
	case strings.HasPrefix(codeStr, "INPUT") || strings.HasPrefix(codeStr, "OUTPUT"):
		return "IO"
	case strings.HasPrefix(codeStr, "WORKFLOW"):
		return "WORKFLOW"
	default:
		return "OTHER"
	}
}
