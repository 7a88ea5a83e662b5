package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the HTTP boundary
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindAuthorization
	KindUnauthenticated
)

// Machine-readable error codes returned alongside the message
const (
	CodeInvalidInput             = "INVALID_INPUT"
	CodeMissingField             = "MISSING_FIELD"
	CodeInvalidDeadlines         = "INVALID_DEADLINES"
	CodeNotFound                 = "NOT_FOUND"
	CodeOrderNotFound            = "ORDER_NOT_FOUND"
	CodeProcessStepNotFound      = "PROCESS_STEP_NOT_FOUND"
	CodeTransferNotFound         = "TRANSFER_NOT_FOUND"
	CodeItemNotFound             = "ITEM_NOT_FOUND"
	CodeProcessAlreadyActive     = "PROCESS_ALREADY_ACTIVE"
	CodeInvalidTransition        = "INVALID_TRANSITION"
	CodeCurrentProcessIncomplete = "CURRENT_PROCESS_INCOMPLETE"
	CodeInvalidStepState         = "INVALID_STEP_STATE"
	CodeOrderDelivered           = "ORDER_DELIVERED"
	CodeOrderOnHold              = "ORDER_ON_HOLD"
	CodeInsufficientStock        = "INSUFFICIENT_STOCK"
	CodeDuplicate                = "DUPLICATE"
	CodeForbidden                = "FORBIDDEN"
	CodeUnauthorized             = "UNAUTHORIZED"
	CodeInternal                 = "INTERNAL_ERROR"
)

// Error is the error type services hand to handlers
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Status maps the error kind to its HTTP status code
func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation, KindConflict:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindAuthorization:
		return http.StatusForbidden
	case KindUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func Validation(code, format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: fmt.Sprintf(format, args...)}
}

func NotFound(code, format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: fmt.Sprintf(format, args...)}
}

func Conflict(code, format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: fmt.Sprintf(format, args...)}
}

func Forbidden(format string, args ...interface{}) *Error {
	return &Error{Kind: KindAuthorization, Code: CodeForbidden, Message: fmt.Sprintf(format, args...)}
}

func Unauthorized(format string, args ...interface{}) *Error {
	return &Error{Kind: KindUnauthenticated, Code: CodeUnauthorized, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps an unexpected failure; the message is logged, never shown to callers
func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Code: CodeInternal, Message: message, Err: err}
}

// As extracts an *Error from err, wrapping anything else as internal
func As(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("unexpected error", err)
}

// HasCode reports whether err carries the given code
func HasCode(err error, code string) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Code == code
}
