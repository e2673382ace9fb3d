package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound   = NewError("NOT_FOUND", "resource not found", http.StatusNotFound)
	ErrValidation = NewError("VALIDATION_ERROR", "validation failed", http.StatusBadRequest)
	ErrConfig     = NewError("CONFIG_ERROR", "integration configuration unusable", http.StatusUnprocessableEntity)
	ErrAuth       = NewError("AUTH_ERROR", "token acquisition failed", http.StatusUnauthorized)
	ErrTransform  = NewError("TRANSFORM_ERROR", "payload cannot be transformed", http.StatusUnprocessableEntity)
	ErrTransport  = NewError("TRANSPORT_ERROR", "delivery transport failed", http.StatusBadGateway)
	ErrConflict   = NewError("CONFLICT", "resource conflict", http.StatusConflict)
	ErrInternal   = NewError("INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
)

type RetryableError interface {
	error
	IsRetryable() bool
}

type FatalError interface {
	error
	IsFatal() bool
}

// Error is the layered error type used at component boundaries. Consumers
// match on Code to classify an outcome instead of parsing log strings.
type Error struct {
	Code      string
	Message   string
	Status    int
	Details   map[string]interface{}
	Cause     error
	retryable *bool
}

func NewError(code, message string, status int) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Status:  status,
		Details: make(map[string]interface{}),
	}
}

func (e *Error) Error() string {
	msg := e.Message

	if len(e.Details) > 0 {
		if detailMsg, ok := e.Details["message"].(string); ok && detailMsg != "" {
			msg = detailMsg
		}
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsRetryable reports whether a retry policy may re-attempt the operation.
// Validation, config and transform failures describe the input itself and
// never become retryable.
func (e *Error) IsRetryable() bool {
	if e.retryable != nil {
		return *e.retryable
	}
	if e.Cause != nil {
		var retryableErr RetryableError
		if errors.As(e.Cause, &retryableErr) {
			return retryableErr.IsRetryable()
		}
		var fatalErr FatalError
		if errors.As(e.Cause, &fatalErr) {
			return !fatalErr.IsFatal()
		}
	}
	switch e.Code {
	case ErrValidation.Code, ErrConfig.Code, ErrTransform.Code, ErrNotFound.Code:
		return false
	}
	return true
}

func (e *Error) IsFatal() bool {
	if e.retryable != nil {
		return !*e.retryable
	}

	if e.Cause != nil {
		var fatalErr FatalError
		if errors.As(e.Cause, &fatalErr) {
			return fatalErr.IsFatal()
		}
	}

	return !e.IsRetryable()
}

func (e *Error) WithCause(cause error) *Error {
	err := *e
	err.Cause = cause
	return &err
}

func (e *Error) WithDetail(key string, value interface{}) *Error {
	err := *e
	if err.Details == nil {
		err.Details = make(map[string]interface{})
	}
	err.Details[key] = value
	return &err
}

func (e *Error) WithMessage(msg string) *Error {
	err := *e
	err.Message = msg
	return &err
}

func (e *Error) AsRetryable() *Error {
	err := *e
	retryable := true
	err.retryable = &retryable
	return &err
}

func (e *Error) AsFatal() *Error {
	err := *e
	retryable := false
	err.retryable = &retryable
	return &err
}

func Wrap(err error, appErr *Error) *Error {
	if err == nil {
		return nil
	}
	return appErr.WithCause(err)
}

func hasCode(err error, code string) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

func IsNotFound(err error) bool   { return hasCode(err, ErrNotFound.Code) }
func IsValidation(err error) bool { return hasCode(err, ErrValidation.Code) }
func IsConfig(err error) bool     { return hasCode(err, ErrConfig.Code) }
func IsAuth(err error) bool       { return hasCode(err, ErrAuth.Code) }
func IsTransform(err error) bool  { return hasCode(err, ErrTransform.Code) }
func IsTransport(err error) bool  { return hasCode(err, ErrTransport.Code) }
func IsConflict(err error) bool   { return hasCode(err, ErrConflict.Code) }

func ToHTTPStatus(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

func ToErrorResponse(err error) map[string]interface{} {
	var appErr *Error
	if !errors.As(err, &appErr) {
		appErr = ErrInternal.WithCause(err)
	}

	response := map[string]interface{}{
		"error":      appErr.Message,
		"error_code": appErr.Code,
	}

	if len(appErr.Details) > 0 {
		response["details"] = appErr.Details
	}

	return response
}

func RecoverPanic(r interface{}) error {
	return ErrInternal.WithCause(fmt.Errorf("panic: %v", r))
}
