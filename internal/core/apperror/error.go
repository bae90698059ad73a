// Package apperror provides structured error handling for the terminal.
// All business errors must use AppError so the UI can present them consistently.
package apperror

import (
	"errors"
	"fmt"
)

// Error codes following domain-driven design
const (
	// Infrastructure errors
	CodeInternal = "INTERNAL_ERROR"
	CodeStorage  = "STORAGE_ERROR"
	CodeUpstream = "UPSTREAM_ERROR"

	// Validation errors
	CodeValidation   = "VALIDATION_ERROR"
	CodeInvalidInput = "INVALID_INPUT"

	// Business rule violations
	CodeBusinessRule       = "BUSINESS_RULE_VIOLATION"
	CodeTransferBlocked    = "TRANSFER_BLOCKED"
	CodeDuplicateReceipt   = "DUPLICATE_RECEIPT_NUMBER"
	CodeSubmitInProgress   = "SUBMIT_IN_PROGRESS"
	CodeAlreadyTransferred = "ALREADY_TRANSFERRED"

	// Authorization errors
	CodeUnauthorized = "UNAUTHORIZED"

	// Not found
	CodeNotFound = "NOT_FOUND"
)

// AppError is the standard error type for the application.
// It implements error interface and provides structured details for the UI.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (field errors, identifiers, etc.)
	Details map[string]any `json:"details,omitempty"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions for common errors ---

// NewValidation creates a validation error
func NewValidation(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

// NewNotFound creates a not found error
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found", entity),
		Details: map[string]any{"entity": entity, "id": id},
	}
}

// NewBusinessRule creates a business rule violation error
func NewBusinessRule(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// NewDuplicateReceipt is returned when a receipt number collides with
// a queued pending receipt.
func NewDuplicateReceipt(fisno string) *AppError {
	return &AppError{
		Code:    CodeDuplicateReceipt,
		Message: "A pending receipt with this number already exists",
		Details: map[string]any{"fisno": fisno},
	}
}

// NewSubmitInProgress is returned when a submit is attempted while another
// one is still in flight.
func NewSubmitInProgress() *AppError {
	return &AppError{
		Code:    CodeSubmitInProgress,
		Message: "Submission already in progress",
	}
}

// NewUpstream wraps a backend API failure. Local state is left untouched
// so the user may retry.
func NewUpstream(operation string, err error) *AppError {
	return &AppError{
		Code:    CodeUpstream,
		Message: "Backend request failed",
		Details: map[string]any{"operation": operation},
		Err:     err,
	}
}

// NewStorage wraps a local storage failure.
func NewStorage(key string, err error) *AppError {
	return &AppError{
		Code:    CodeStorage,
		Message: "Local storage operation failed",
		Details: map[string]any{"key": key},
		Err:     err,
	}
}

// NewInternal creates an internal error (hides details from the user)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "Internal error",
		Err:     err,
	}
}

// NewUnauthorized creates an authentication error
func NewUnauthorized(message string) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
	}
}

// --- Helper functions ---

// IsAppError checks if error is AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == CodeNotFound
	}
	return false
}

// IsCode checks if error carries the given code
func IsCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}
