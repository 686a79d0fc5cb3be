// Package errors provides the standardized error type shared by the store,
// the sync queue and the remote client.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeSyncFailed  ErrorCode = "SYNC_FAILED"
	ErrCodeFetchFailed ErrorCode = "FETCH_FAILED"

	ErrCodeRemoteStatus      ErrorCode = "REMOTE_STATUS_ERROR"
	ErrCodeRemoteUnavailable ErrorCode = "REMOTE_UNAVAILABLE"
	ErrCodeRemoteTimeout     ErrorCode = "REMOTE_TIMEOUT"
	ErrCodeRemotePayload     ErrorCode = "REMOTE_PAYLOAD_INVALID"

	ErrCodeStorageReadFailed  ErrorCode = "STORAGE_READ_FAILED"
	ErrCodeStorageWriteFailed ErrorCode = "STORAGE_WRITE_FAILED"
	ErrCodeSnapshotInvalid    ErrorCode = "SNAPSHOT_INVALID"

	ErrCodeTransitionNotAllowed ErrorCode = "TRANSITION_NOT_ALLOWED"
	ErrCodeConfigInvalid        ErrorCode = "CONFIG_INVALID"

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

	cause error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata attaches a key/value pair and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

func newError(code ErrorCode, message string, cause error, retryable bool) *StandardError {
	details := ""
	if cause != nil {
		details = cause.Error()
	}
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

// NewSyncFailedError wraps a failed background propagation of a local change.
// Retryability is inherited from the remote cause.
func NewSyncFailedError(operation, applicationID string, cause error) *StandardError {
	e := newError(ErrCodeSyncFailed, fmt.Sprintf("Failed to sync %s", operation), cause, IsRetryable(cause))
	return e.WithMetadata("operation", operation).WithMetadata("applicationId", applicationID)
}

// NewFetchFailedError wraps a failed full-collection fetch.
func NewFetchFailedError(cause error) *StandardError {
	return newError(ErrCodeFetchFailed, "Failed to fetch applications", cause, IsRetryable(cause))
}

// NewRemoteStatusError is returned for non-2xx responses. Server errors and
// throttling are retryable, client errors are not.
func NewRemoteStatusError(method, path string, status int, body string) *StandardError {
	e := &StandardError{
		Code:      ErrCodeRemoteStatus,
		Message:   fmt.Sprintf("Remote API returned %d", status),
		Details:   fmt.Sprintf("%s %s: %s", method, path, strings.TrimSpace(body)),
		Retryable: status >= 500 || status == 429,
		Timestamp: time.Now().UTC(),
	}
	return e.WithMetadata("status", status)
}

func NewRemoteUnavailableError(cause error) *StandardError {
	return newError(ErrCodeRemoteUnavailable, "Remote API unreachable", cause, true)
}

func NewRemoteTimeoutError(cause error) *StandardError {
	return newError(ErrCodeRemoteTimeout, "Remote API timeout", cause, true)
}

func NewRemotePayloadError(cause error) *StandardError {
	return newError(ErrCodeRemotePayload, "Remote API returned an invalid payload", cause, false)
}

func NewStorageReadFailedError(key string, cause error) *StandardError {
	return newError(ErrCodeStorageReadFailed, "Failed to read durable storage", cause, true).
		WithMetadata("key", key)
}

func NewStorageWriteFailedError(key string, cause error) *StandardError {
	return newError(ErrCodeStorageWriteFailed, "Failed to write durable storage", cause, false).
		WithMetadata("key", key)
}

func NewSnapshotInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSnapshotInvalid,
		Message:   "Stored snapshot is invalid",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewTransitionNotAllowedError(applicationID, from, to string) *StandardError {
	e := &StandardError{
		Code:      ErrCodeTransitionNotAllowed,
		Message:   "Status transition not allowed",
		Details:   fmt.Sprintf("%s -> %s", from, to),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
	return e.WithMetadata("applicationId", applicationID)
}

func NewConfigInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConfigInvalid,
		Message:   "Invalid configuration",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// Normalize ensures we always have a StandardError.
func Normalize(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return newError(ErrCodeInternal, "Unexpected error", err, false)
}

// CodeOf returns the code of the first StandardError in the chain.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ""
}

// IsRetryable reports whether a manual retry may succeed.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Retryable
	}
	return false
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "SYNC") || strings.HasPrefix(codeStr, "FETCH"):
		return "SYNC"
	case strings.HasPrefix(codeStr, "REMOTE"):
		return "REMOTE"
	case strings.HasPrefix(codeStr, "STORAGE") || strings.HasPrefix(codeStr, "SNAPSHOT"):
		return "STORAGE"
	case strings.Contains(codeStr, "TRANSITION") || strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
