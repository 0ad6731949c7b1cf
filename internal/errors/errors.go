// Package errors provides error handling for the BizChat backend.
package errors

import (
	"errors"
	"strings"
)

// ============================================================
// Error Categories
// ============================================================

// Category defines the type of error for handling decisions.
type Category int

const (
	// CategoryTemporary errors are transient (network timeouts, connection refused)
	CategoryTemporary Category = iota

	// CategoryPermanent errors are not recoverable for this request
	CategoryPermanent

	// CategoryUser errors are due to user input (validation, oversized payloads)
	CategoryUser

	// CategorySystem errors are system-level (storage, permissions)
	CategorySystem
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryTemporary:
		return "temporary"
	case CategoryPermanent:
		return "permanent"
	case CategoryUser:
		return "user"
	case CategorySystem:
		return "system"
	default:
		return "unknown"
	}
}

// ============================================================
// AppError - Main Error Type
// ============================================================

// AppError is the main error type for all BizChat errors.
type AppError struct {
	// Code is a unique error code for programmatic handling
	Code string

	// Message is a user-friendly error message
	Message string

	// Category determines how the error should be handled
	Category Category

	// Inner is the underlying error
	Inner error

	// HTTPStatus is the status code the HTTP surface should answer with (0 = default)
	HTTPStatus int
}

// Error returns the error message.
func (e *AppError) Error() string {
	var sb strings.Builder

	if e.Code != "" {
		sb.WriteString("[")
		sb.WriteString(e.Code)
		sb.WriteString("] ")
	}

	sb.WriteString(e.Message)

	if e.Inner != nil {
		innerMsg := e.Inner.Error()
		if innerMsg != "" && innerMsg != e.Message {
			sb.WriteString(": ")
			sb.WriteString(innerMsg)
		}
	}

	return sb.String()
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Inner
}

// Is checks if the target error is contained in this error.
func (e *AppError) Is(target error) bool {
	return errors.Is(e.Inner, target)
}

// WithStatus sets the HTTP status the error should surface as.
func (e *AppError) WithStatus(status int) *AppError {
	e.HTTPStatus = status
	return e
}

// WithInner attaches the underlying error.
func (e *AppError) WithInner(err error) *AppError {
	e.Inner = err
	return e
}

// ============================================================
// Error Constructors
// ============================================================

// New creates a new AppError.
func New(code, message string, category Category) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		Category: category,
	}
}

// Wrap wraps an existing error with context.
func Wrap(err error, code, message string, category Category) *AppError {
	if err == nil {
		return nil
	}

	// If it's already an AppError, keep its HTTP mapping
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Code:       code,
			Message:    message,
			Category:   category,
			Inner:      appErr,
			HTTPStatus: appErr.HTTPStatus,
		}
	}

	return &AppError{
		Code:     code,
		Message:  message,
		Category: category,
		Inner:    err,
	}
}

// Temporary creates a transient error.
func Temporary(code, message string) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		Category: CategoryTemporary,
	}
}

// Permanent creates a non-recoverable error.
func Permanent(code, message string) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		Category: CategoryPermanent,
	}
}

// User creates a user input error.
func User(code, message string) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		Category: CategoryUser,
	}
}

// System creates a system-level error.
func System(code, message string) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		Category: CategorySystem,
	}
}

// ============================================================
// Error Codes
// ============================================================

const (
	// Model errors
	CodeModelUnavailable     = "MODEL_UNAVAILABLE"
	CodeModelTimeout         = "MODEL_TIMEOUT"
	CodeModelInvalidResponse = "MODEL_INVALID_RESPONSE"
	CodeModelContextOverflow = "MODEL_CONTEXT_OVERFLOW"

	// Request errors
	CodeRequestTooLarge  = "REQUEST_TOO_LARGE"
	CodeRequestNotFound  = "REQUEST_NOT_FOUND"
	CodeRequestMalformed = "REQUEST_MALFORMED"

	// Moderation errors
	CodeModerationBlocked = "MODERATION_BLOCKED"

	// Storage errors
	CodeStorageUnavailable = "STORAGE_UNAVAILABLE"
	CodeStorageFailed      = "STORAGE_FAILED"

	// File errors
	CodeFileUnsupported = "FILE_UNSUPPORTED"
	CodeFileDecode      = "FILE_DECODE_FAILED"

	// Config errors
	CodeConfigInvalid = "CONFIG_INVALID"

	// Validation errors
	CodeInvalidInput = "INVALID_INPUT"
)

// ============================================================
// Helpers
// ============================================================

// GetCategory extracts the category from an error.
// Returns CategoryTemporary for non-AppError errors.
func GetCategory(err error) Category {
	if err == nil {
		return CategoryTemporary
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Category
	}

	return CategoryTemporary
}

// GetHTTPStatus returns the HTTP status an error maps to, or 0.
func GetHTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus
	}
	return 0
}

// UserMessage returns the message to surface to the end user.
// Inner error details are kept out of user-facing text.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}

	return err.Error()
}
