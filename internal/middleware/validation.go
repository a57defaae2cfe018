package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/scscodes/flsd/internal/config"
	apierrors "github.com/scscodes/flsd/internal/errors"
)

// NamingConventionMessage is returned for uploads whose name has fewer than
// three underscore-separated parts.
var NamingConventionMessage = fmt.Sprintf("Filename should follow convention: %s", config.NamingConvention)

// UploadRequest is the validated view of a multipart upload.
type UploadRequest struct {
	Filename string `json:"filename" validate:"required,csvfile,csvname"`
}

// Validator provides request validation using struct tags
type Validator struct {
	validator *validator.Validate
	logger    *slog.Logger
}

// NewValidator creates a validator with the upload tags registered
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New()

	v.RegisterValidation("csvfile", isCSVFile)
	v.RegisterValidation("csvname", isConventionalName)

	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{
		validator: v,
		logger:    logger.With(slog.String("component", "validator")),
	}
}

// ValidateUpload checks an uploaded filename. The suffix check runs before
// the naming convention so a non-CSV file always gets the unsupported-file
// error.
func (m *Validator) ValidateUpload(filename string) error {
	err := m.validator.Struct(UploadRequest{Filename: filename})
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apierrors.InvalidRequestWithError(err)
	}

	m.logger.Debug("upload rejected",
		slog.String("filename", filename),
		slog.String("tag", fieldErrs[0].Tag()),
	)

	switch fieldErrs[0].Tag() {
	case "required", "csvfile":
		return apierrors.ErrUnsupportedFile
	case "csvname":
		return apierrors.ErrValidation("filename", NamingConventionMessage)
	}
	return m.toAPIError(fieldErrs)
}

func (m *Validator) toAPIError(fieldErrs validator.ValidationErrors) error {
	validationErrors := make([]apierrors.ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		validationErrors = append(validationErrors, apierrors.ValidationError{
			Field:   fe.Field(),
			Message: formatValidationError(fe),
		})
	}
	return apierrors.NewValidationErrors(validationErrors)
}

// ContentTypeValidator rejects bodies whose Content-Type does not start with
// one of contentTypes. GET, HEAD and DELETE pass through.
func ContentTypeValidator(errorHandler *apierrors.ErrorHandler, contentTypes ...string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodDelete {
				next.ServeHTTP(w, r)
				return
			}

			contentType := r.Header.Get("Content-Type")
			if contentType == "" {
				errorHandler.HandleError(w, r, apierrors.ErrMissingContentType)
				return
			}

			for _, allowed := range contentTypes {
				if strings.HasPrefix(contentType, allowed) {
					next.ServeHTTP(w, r)
					return
				}
			}

			errorHandler.HandleError(w, r, apierrors.UnsupportedMediaType(contentType, contentTypes))
		})
	}
}

// formatValidationError formats validation error messages
func formatValidationError(err validator.FieldError) string {
	field := err.Field()
	param := err.Param()

	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(param, " ", ", "))
	case "csvfile":
		return apierrors.ErrUnsupportedFile.Message
	case "csvname":
		return NamingConventionMessage
	default:
		return fmt.Sprintf("%s failed %s validation", field, err.Tag())
	}
}

// isCSVFile reports whether the name carries the lower-case .csv suffix
func isCSVFile(fl validator.FieldLevel) bool {
	return strings.HasSuffix(fl.Field().String(), ".csv")
}

// isConventionalName validates {type}_{description}_{date}.csv names
func isConventionalName(fl validator.FieldLevel) bool {
	filename := fl.Field().String()
	if len(filename) > 255 {
		return false
	}
	if strings.ContainsAny(filename, `/\`) {
		return false
	}
	return len(strings.Split(filename, "_")) >= 3
}

// QueryParamValidator validates query parameters
type QueryParamValidator struct {
	errorHandler *apierrors.ErrorHandler
}

// NewQueryParamValidator creates a new query parameter validator
func NewQueryParamValidator(errorHandler *apierrors.ErrorHandler) *QueryParamValidator {
	return &QueryParamValidator{errorHandler: errorHandler}
}

// ValidateInt validates an integer query parameter. On failure the problem
// response has already been written and ok is false.
func (v *QueryParamValidator) ValidateInt(w http.ResponseWriter, r *http.Request, param string, min, max int, defaultValue int) (int, bool) {
	value := r.URL.Query().Get(param)
	if value == "" {
		return defaultValue, true
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		v.errorHandler.HandleError(w, r, apierrors.ErrValidation(param, fmt.Sprintf("%s must be a valid integer", param)))
		return 0, false
	}

	if intValue < min || intValue > max {
		v.errorHandler.HandleError(w, r, apierrors.ErrValidation(param, fmt.Sprintf("%s must be between %d and %d", param, min, max)))
		return 0, false
	}

	return intValue, true
}
