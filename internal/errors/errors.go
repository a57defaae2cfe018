package errors

import (
	"fmt"
	"net/http"

	"github.com/go-chi/render"
)

// Error codes carried in the error_code extension of problem responses.
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeUnsupportedFile    = "UNSUPPORTED_FILE"
	CodeUnsupportedMedia   = "UNSUPPORTED_MEDIA_TYPE"
	CodeMissingContentType = "MISSING_CONTENT_TYPE"
	CodeNotFound           = "NOT_FOUND"
	CodePayloadTooLarge    = "PAYLOAD_TOO_LARGE"
	CodeRateLimitExceeded  = "RATE_LIMIT_EXCEEDED"
	CodeProcessingFailed   = "PROCESSING_FAILED"
	CodeUnavailable        = "SERVICE_UNAVAILABLE"
)

var problemTypes = map[string]string{
	CodeInvalidRequest:     TypeValidation,
	CodeValidationFailed:   TypeValidation,
	CodeMissingContentType: TypeValidation,
	CodeUnsupportedFile:    TypeUnsupportedFile,
	CodeUnsupportedMedia:   TypeUnsupportedFile,
	CodeNotFound:           TypeNotFound,
	CodePayloadTooLarge:    TypePayloadTooLarge,
	CodeRateLimitExceeded:  TypeRateLimit,
	CodeProcessingFailed:   TypeProcessing,
	CodeUnavailable:        TypeServiceDown,
}

// APIError is an error raised at the HTTP boundary with a fixed status.
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

// Render implements the render.Renderer interface for chi/render
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// ProblemType returns the RFC 7807 type URI for the error code.
func (e *APIError) ProblemType() string {
	if t, ok := problemTypes[e.ErrorCode]; ok {
		return t
	}
	return TypeInternal
}

// ValidationError describes one rejected field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors groups the rejected fields of one request.
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{StatusCode: statusCode, ErrorCode: errorCode, Message: message}
}

func NewWithDetails(statusCode int, errorCode, message string, details interface{}) *APIError {
	return &APIError{StatusCode: statusCode, ErrorCode: errorCode, Message: message, Details: details}
}

var (
	ErrUnsupportedFile    = New(http.StatusBadRequest, CodeUnsupportedFile, "Only CSV files are supported")
	ErrRateLimitExceeded  = New(http.StatusTooManyRequests, CodeRateLimitExceeded, "Rate limit exceeded")
	ErrMissingContentType = New(http.StatusBadRequest, CodeMissingContentType, "Content-Type header is required")
)

// InvalidRequestWithError reports a malformed request, such as a broken
// multipart body.
func InvalidRequestWithError(err error) *APIError {
	return NewWithDetails(http.StatusBadRequest, CodeInvalidRequest, "Invalid request format", err.Error())
}

// ErrValidation rejects a single field.
func ErrValidation(field, message string) *APIError {
	return NewWithDetails(http.StatusBadRequest, CodeValidationFailed, message, ValidationError{
		Field:   field,
		Message: message,
	})
}

// NewValidationErrors rejects several fields at once. A single failure
// becomes the message.
func NewValidationErrors(errs []ValidationError) *APIError {
	message := "Request validation failed"
	if len(errs) == 1 {
		message = errs[0].Message
	}
	return NewWithDetails(http.StatusBadRequest, CodeValidationFailed, message, ValidationErrors{Errors: errs})
}

// UnsupportedMediaType rejects a request body whose Content-Type is not allowed.
func UnsupportedMediaType(contentType string, allowed []string) *APIError {
	return NewWithDetails(http.StatusUnsupportedMediaType, CodeUnsupportedMedia, "Unsupported content type",
		map[string]interface{}{
			"content_type": contentType,
			"allowed":      allowed,
		})
}

func NotFoundError(resource string) *APIError {
	return NewWithDetails(http.StatusNotFound, CodeNotFound, fmt.Sprintf("%s not found", resource), resource)
}

// ProcessingError wraps a failure while ingesting an upload
func ProcessingError(err error) *APIError {
	return New(http.StatusInternalServerError, CodeProcessingFailed, fmt.Sprintf("Error processing upload: %v", err))
}
