package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
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

// StatusCode maps the error code onto an HTTP status.
func (e *AppError) StatusCode() int {
	switch e.Code {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrBadRequest, ErrValidation:
		return http.StatusBadRequest
	case ErrUnauthorized, ErrMalformed, ErrExpired:
		return http.StatusUnauthorized
	case ErrForbidden:
		return http.StatusForbidden
	case ErrInvalidTransition, ErrSlotConflict:
		return http.StatusConflict
	case ErrUnreachable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrUnauthorized
	ErrForbidden
	ErrInternal
	ErrValidation
	ErrInvalidTransition
	ErrSlotConflict
	ErrMalformed
	ErrExpired
	ErrUnreachable
)

var codeNames = map[ErrorCode]string{
	ErrNotFound:          "not_found",
	ErrBadRequest:        "bad_request",
	ErrUnauthorized:      "unauthorized",
	ErrForbidden:         "forbidden",
	ErrInternal:          "internal",
	ErrValidation:        "validation",
	ErrInvalidTransition: "invalid_transition",
	ErrSlotConflict:      "slot_conflict",
	ErrMalformed:         "malformed",
	ErrExpired:           "expired",
	ErrUnreachable:       "unreachable",
}

func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("code_%d", int(c))
}

// Error constructors
func NewNotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func NewBadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func NewInternal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

// Common errors
func NotFound(resource string, err error) *AppError {
	return NewNotFound(resource, err)
}

func BadRequest(message string, err error) *AppError {
	return NewBadRequest(message, err)
}

func Internal(err error) *AppError {
	return NewInternal(err)
}

func Unauthorized(err error) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: "unauthorized",
		Err:     err,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Code:    ErrForbidden,
		Message: message,
	}
}

// Validation reports bad input shape or range. Not retried.
func Validation(format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    ErrValidation,
		Message: fmt.Sprintf(format, args...),
	}
}

// InvalidTransition reports an illegal appointment status change.
func InvalidTransition(from, to string) *AppError {
	return &AppError{
		Code:    ErrInvalidTransition,
		Message: fmt.Sprintf("invalid transition from %q to %q", from, to),
	}
}

// SlotConflict reports a lost booking race; callers should re-select a slot.
func SlotConflict(date, clock string) *AppError {
	return &AppError{
		Code:    ErrSlotConflict,
		Message: fmt.Sprintf("slot %s %s is no longer available", date, clock),
	}
}

func Malformed(reason string) *AppError {
	return &AppError{
		Code:    ErrMalformed,
		Message: "malformed credential: " + reason,
	}
}

func Expired() *AppError {
	return &AppError{
		Code:    ErrExpired,
		Message: "credential expired",
	}
}

// Unreachable wraps a transport failure. It is the only retryable code.
func Unreachable(err error) *AppError {
	return &AppError{
		Code:    ErrUnreachable,
		Message: "service unreachable",
		Err:     err,
	}
}

// CodeOf returns the code of the first AppError in err's chain, or ErrInternal.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}
	var appErr *AppError
	return stderrors.As(err, &appErr) && appErr.Code == code
}

// IsRetryable reports whether err may be retried by the transport.
func IsRetryable(err error) bool {
	return Is(err, ErrUnreachable)
}

// As is errors.As, re-exported so callers need not import both packages.
func As(err error, target interface{}) bool {
	return stderrors.As(err, target)
}

// ParseCode is the inverse of ErrorCode.String.
func ParseCode(name string) (ErrorCode, bool) {
	for code, n := range codeNames {
		if n == name {
			return code, true
		}
	}
	return 0, false
}

// CodeForStatus picks the code a client should assume for an HTTP status that
// arrived without a code name.
func CodeForStatus(status int) ErrorCode {
	switch status {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ErrValidation
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusConflict:
		return ErrSlotConflict
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout, http.StatusTooManyRequests:
		return ErrUnreachable
	default:
		return ErrInternal
	}
}
