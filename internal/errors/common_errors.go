package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorType classifies failures raised below the HTTP layer.
type ErrorType string

const (
	ErrTypeParsing     ErrorType = "PARSING"
	ErrTypeStorage     ErrorType = "STORAGE"
	ErrTypeValidation  ErrorType = "VALIDATION"
	ErrTypeNotFound    ErrorType = "NOT_FOUND"
	ErrTypeConfig      ErrorType = "CONFIG"
	ErrTypeUnavailable ErrorType = "UNAVAILABLE"
)

// kind is how an ErrorType surfaces as a problem response. When exposeCause
// is set the detail carries the wrapped cause, otherwise only the message.
type kind struct {
	status      int
	problemType string
	title       string
	exposeCause bool
}

var kinds = map[ErrorType]kind{
	ErrTypeValidation:  {http.StatusBadRequest, TypeValidation, "Validation Failed", false},
	ErrTypeNotFound:    {http.StatusNotFound, TypeDataNotFound, "Not Found", false},
	ErrTypeParsing:     {http.StatusInternalServerError, TypeParsing, "Parsing Failed", true},
	ErrTypeStorage:     {http.StatusInternalServerError, TypeStorage, "Storage Failure", true},
	ErrTypeUnavailable: {http.StatusServiceUnavailable, TypeServiceDown, "Service Unavailable", false},
}

var internalKind = kind{http.StatusInternalServerError, TypeInternal, "Internal Server Error", true}

func (t ErrorType) kind() kind {
	if k, ok := kinds[t]; ok {
		return k
	}
	return internalKind
}

// Status returns the HTTP status used when an error of this type reaches a client.
func (t ErrorType) Status() int { return t.kind().status }

// AppError is a typed failure from the pipeline, storage or configuration.
// Op names the step that failed (publish, upload, nightly, ...).
type AppError struct {
	Type    ErrorType
	Op      string
	Message string
	Cause   error
	Context map[string]interface{}
}

func (e *AppError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] ", e.Type)
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *AppError) Unwrap() error { return e.Cause }

// WithOp records the failing step.
func (e *AppError) WithOp(op string) *AppError {
	e.Op = op
	return e
}

// WithContext attaches a key/value pair reported in problem responses.
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates an AppError of the given type.
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{Type: errType, Message: message, Cause: cause}
}

// TypeOf returns the ErrorType of the first AppError in err's chain, or "".
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

// IsType reports whether err wraps an AppError of type t.
func IsType(err error, t ErrorType) bool {
	return err != nil && TypeOf(err) == t
}

func NewParsingError(message string, cause error) *AppError {
	return NewAppError(ErrTypeParsing, message, cause)
}

func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// NewAppValidationError creates a validation failure without a cause.
func NewAppValidationError(message string) *AppError {
	return NewAppError(ErrTypeValidation, message, nil)
}

func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrTypeNotFound, resource+" not found", nil)
}

func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}

// NewUnavailableError reports a feature that is switched off or not ready.
func NewUnavailableError(message string, cause error) *AppError {
	return NewAppError(ErrTypeUnavailable, message, cause)
}
