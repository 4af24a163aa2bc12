package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a namespaced error code for Conductor errors.
type ErrorCode string

// Configuration error codes
const (
	CONFIG_LOAD_FAILED       ErrorCode = "CONFIG_LOAD_FAILED"
	CONFIG_PARSE_FAILED      ErrorCode = "CONFIG_PARSE_FAILED"
	CONFIG_VALIDATION_FAILED ErrorCode = "CONFIG_VALIDATION_FAILED"
)

// Database error codes
const (
	DB_OPEN_FAILED      ErrorCode = "DB_OPEN_FAILED"
	DB_MIGRATION_FAILED ErrorCode = "DB_MIGRATION_FAILED"
	DB_QUERY_FAILED     ErrorCode = "DB_QUERY_FAILED"
)

// Workflow error codes. These map one-to-one onto the failure taxonomy of
// the orchestration engine: classification issues degrade, step and policy
// failures end the current run, lock and liveness failures are recoverable.
const (
	CLASSIFICATION_AMBIGUOUS    ErrorCode = "CLASSIFICATION_AMBIGUOUS"
	CLASSIFICATION_EMPTY        ErrorCode = "CLASSIFICATION_EMPTY"
	EVIDENCE_FETCH_PARTIAL      ErrorCode = "EVIDENCE_FETCH_PARTIAL"
	PLAN_GENERATION_FAILED      ErrorCode = "PLAN_GENERATION_FAILED"
	STEP_FAILED                 ErrorCode = "STEP_FAILED"
	POLICY_VIOLATION            ErrorCode = "POLICY_VIOLATION"
	APPROVAL_REJECTED           ErrorCode = "APPROVAL_REJECTED"
	WORKFLOW_CANCELLED          ErrorCode = "WORKFLOW_CANCELLED"
	WORKFLOW_NOT_FOUND          ErrorCode = "WORKFLOW_NOT_FOUND"
	WORKFLOW_NOT_INTERRUPTED    ErrorCode = "WORKFLOW_NOT_INTERRUPTED"
	CHECKPOINT_SAVE_FAILED      ErrorCode = "CHECKPOINT_SAVE_FAILED"
	CHECKPOINT_RESTORE_FAILED   ErrorCode = "CHECKPOINT_RESTORE_FAILED"
	CHECKPOINT_VERSION_CONFLICT ErrorCode = "CHECKPOINT_VERSION_CONFLICT"
	CHECKPOINT_CORRUPT          ErrorCode = "CHECKPOINT_CORRUPT"
)

// Model gateway error codes
const (
	MODEL_UNAVAILABLE    ErrorCode = "MODEL_UNAVAILABLE"
	MODEL_RESPONSE_EMPTY ErrorCode = "MODEL_RESPONSE_EMPTY"
	LIVENESS_TIMEOUT     ErrorCode = "LIVENESS_TIMEOUT"
)

// Concurrency error codes
const (
	LOCK_CONTENTION ErrorCode = "LOCK_CONTENTION"
	LOCK_NOT_HELD   ErrorCode = "LOCK_NOT_HELD"
	LOCK_LOST       ErrorCode = "LOCK_LOST"
)

// Delegation error codes
const (
	DELEGATION_DEPTH_EXCEEDED ErrorCode = "DELEGATION_DEPTH_EXCEEDED"
	DELEGATION_CYCLE_DETECTED ErrorCode = "DELEGATION_CYCLE_DETECTED"
	DELEGATION_AGENT_UNKNOWN  ErrorCode = "DELEGATION_AGENT_UNKNOWN"
)

// External collaborator error codes
const (
	TRACKER_CALL_FAILED   ErrorCode = "TRACKER_CALL_FAILED"
	EXEC_UNIT_FAILED      ErrorCode = "EXEC_UNIT_FAILED"
	EXEC_UNIT_UNAVAILABLE ErrorCode = "EXEC_UNIT_UNAVAILABLE"
)

// ConductorError represents a structured error with error code, message, and
// optional cause. It supports error wrapping and retryability hints for
// error handling logic.
type ConductorError struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	Cause     error
}

// Error implements the error interface, returning a formatted error message.
// Format: "[CODE] message" or "[CODE] message: cause" if cause exists.
func (e *ConductorError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error for error unwrapping chains.
// This enables using errors.Is() and errors.As() with wrapped errors.
func (e *ConductorError) Unwrap() error {
	return e.Cause
}

// Is checks if the target error matches this error by error code.
// Returns true if target is a ConductorError with the same Code.
func (e *ConductorError) Is(target error) bool {
	var condErr *ConductorError
	if errors.As(target, &condErr) {
		return e.Code == condErr.Code
	}
	return false
}

// NewError creates a new non-retryable ConductorError with the given code and message.
func NewError(code ErrorCode, message string) *ConductorError {
	return &ConductorError{
		Code:      code,
		Message:   message,
		Retryable: false,
		Cause:     nil,
	}
}

// NewRetryableError creates a new retryable ConductorError with the given code and message.
// Use this for transient errors that may succeed on retry (e.g., network timeouts).
func NewRetryableError(code ErrorCode, message string) *ConductorError {
	return &ConductorError{
		Code:      code,
		Message:   message,
		Retryable: true,
		Cause:     nil,
	}
}

// WrapError creates a new non-retryable ConductorError that wraps an existing error.
// The wrapped error is accessible via Unwrap() for error chain inspection.
func WrapError(code ErrorCode, message string, cause error) *ConductorError {
	return &ConductorError{
		Code:      code,
		Message:   message,
		Retryable: false,
		Cause:     cause,
	}
}

// CodeOf extracts the error code from an error chain.
// Returns an empty code if the chain contains no ConductorError.
func CodeOf(err error) ErrorCode {
	var condErr *ConductorError
	if errors.As(err, &condErr) {
		return condErr.Code
	}
	return ""
}

// IsRetryable reports whether the error chain contains a retryable ConductorError.
func IsRetryable(err error) bool {
	var condErr *ConductorError
	if errors.As(err, &condErr) {
		return condErr.Retryable
	}
	return false
}
