package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

const (
	CodeNotFound           = "NOT_FOUND"
	CodeValidation         = "VALIDATION_ERROR"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeConflict           = "CONFLICT"
	CodePreconditionFailed = "PRECONDITION_FAILED"
	CodeInternal           = "INTERNAL_ERROR"
	CodeTimeout            = "TIMEOUT"
	CodeUnavailable        = "SERVICE_UNAVAILABLE"
	CodeInvalidInput       = "INVALID_INPUT"
)

// statusByCode is the HTTP status every code renders with.
var statusByCode = map[string]int{
	CodeNotFound:           http.StatusNotFound,
	CodeValidation:         http.StatusBadRequest,
	CodeInvalidInput:       http.StatusBadRequest,
	CodePreconditionFailed: http.StatusBadRequest,
	CodeUnauthorized:       http.StatusUnauthorized,
	CodeForbidden:          http.StatusForbidden,
	CodeConflict:           http.StatusConflict,
	CodeInternal:           http.StatusInternalServerError,
	CodeTimeout:            http.StatusGatewayTimeout,
	CodeUnavailable:        http.StatusServiceUnavailable,
}

// AppError is the error every service returns to its handler. Message is safe
// to show to API callers; Err is only logged.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) StatusCode() int {
	if e.HTTPStatus == 0 {
		return http.StatusInternalServerError
	}
	return e.HTTPStatus
}

// WithDetails merges details into the error, keeping keys already set.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any, len(details))
	}
	for k, v := range details {
		if _, exists := e.Details[k]; !exists {
			e.Details[k] = v
		}
	}
	return e
}

// WithCause attaches the underlying error without changing what callers see.
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

func newError(code, message string) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: statusByCode[code]}
}

func NotFound(resource string) *AppError {
	return newError(CodeNotFound, resource+" not found")
}

func NotFoundWithID(resource, id string) *AppError {
	return NotFound(resource).WithDetails(map[string]any{"resource": resource, "id": id})
}

func Validation(message string, details map[string]any) *AppError {
	e := newError(CodeValidation, message)
	e.Details = details
	return e
}

func InvalidInput(message string) *AppError {
	return newError(CodeInvalidInput, message)
}

// PreconditionFailed reports a request that is well formed but blocked by the
// current state of the target (cancelled, already started, open tab).
func PreconditionFailed(message, reason string) *AppError {
	return newError(CodePreconditionFailed, message).WithDetails(map[string]any{"reason": reason})
}

func Unauthorized(message string) *AppError { return newError(CodeUnauthorized, message) }

func Forbidden(message string) *AppError { return newError(CodeForbidden, message) }

func Conflict(message string) *AppError { return newError(CodeConflict, message) }

func Timeout(message string) *AppError { return newError(CodeTimeout, message) }

func Internal(message string, err error) *AppError {
	return newError(CodeInternal, message).WithCause(err)
}

func Unavailable(service string) *AppError {
	return newError(CodeUnavailable, service+" is temporarily unavailable")
}

func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// AsAppError finds the AppError in err's chain. Anything else becomes a
// generic internal error carrying err as its cause.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return Internal("An unexpected error occurred", err)
}

// HasCode reports whether err is an AppError carrying code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr) && appErr.Code == code
}
