package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrUnauthorized
	ErrInternal

	// Compliance error codes. Validation violations and access denials are
	// expected and frequent; decryption and audit sink failures are
	// exceptional and alertable, so each carries its own code.
	ErrValidationViolation
	ErrAccessDenied
	ErrDecryption
	ErrAuditSinkUnavailable
)

func NotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func BadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func Internal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

func Unauthorized(err error) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: "unauthorized",
		Err:     err,
	}
}

// NewValidationViolation reports a rejected query. The message must describe
// the violation without echoing the query text, which may embed PHI literals.
func NewValidationViolation(message string) *AppError {
	return &AppError{
		Code:    ErrValidationViolation,
		Message: message,
	}
}

// NewAccessDenied reports a role that lacks the capability for an operation.
func NewAccessDenied(message string) *AppError {
	return &AppError{
		Code:    ErrAccessDenied,
		Message: message,
	}
}

// NewDecryptionError reports malformed or tampered ciphertext, or an unknown
// key version. Callers must treat it as a potential tampering signal.
func NewDecryptionError(err error) *AppError {
	return &AppError{
		Code:    ErrDecryption,
		Message: "decryption failed",
		Err:     err,
	}
}

// NewAuditSinkUnavailable reports a durable audit transport failure.
func NewAuditSinkUnavailable(err error) *AppError {
	return &AppError{
		Code:    ErrAuditSinkUnavailable,
		Message: "audit sink unavailable",
		Err:     err,
	}
}

// CodeOf returns the application error code carried by err, or 0.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return 0
}

func IsValidationViolation(err error) bool { return CodeOf(err) == ErrValidationViolation }
func IsAccessDenied(err error) bool        { return CodeOf(err) == ErrAccessDenied }
func IsDecryptionError(err error) bool     { return CodeOf(err) == ErrDecryption }
