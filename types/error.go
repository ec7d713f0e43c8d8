package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the core.
type ErrorCode string

// Core error codes
const (
	ErrInvalidRequest       ErrorCode = "INVALID_REQUEST"
	ErrClassificationFailed ErrorCode = "CLASSIFICATION_FAILED"
	ErrRetrievalUnavailable ErrorCode = "RETRIEVAL_UNAVAILABLE"
	ErrGenerationFailed     ErrorCode = "GENERATION_FAILED"
	ErrEmbeddingFailed      ErrorCode = "EMBEDDING_FAILED"
	ErrRequestCancelled     ErrorCode = "REQUEST_CANCELLED"
	ErrInternalError        ErrorCode = "INTERNAL_ERROR"

	// ErrRateLimited 仅由接入层产生，不进入编排图。
	ErrRateLimited ErrorCode = "RATE_LIMITED"
)

// Error represents a structured error with code, message, and cause.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// GetErrorCode extracts the error code from an error, unwrapping as needed.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
