package utils

import (
	"errors"
	"net/http"
	"reflect"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"logitrack/internal/store"
	"logitrack/pkg/cache"
)

// APIResponse represents a standard API response structure. Query responses
// also carry the cache state the data was served in.
type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	IsLoading bool        `json:"isLoading"`
	Stale     bool        `json:"stale"`
	Error     interface{} `json:"error,omitempty"`
}

// SuccessResponse sends a successful response
func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ErrorResponse sends an error response
func ErrorResponse(c *gin.Context, statusCode int, message string, err error) {
	response := APIResponse{
		Success: false,
		Message: message,
	}

	if err != nil {
		response.Error = err.Error()
	}

	c.JSON(statusCode, response)
}

// FailureResponse maps err onto a status and writes the error envelope.
// Validation failures keep their per-field messages.
func FailureResponse(c *gin.Context, message string, err error) {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		ValidationErrorResponse(c, fieldErrs)
		return
	}
	ErrorResponse(c, StatusFor(err), message, err)
}

// QueryResponse writes a cache result. A failure with nothing cached is an
// error response; otherwise the data is sent along with its stale and
// loading flags and any error the cache chose to surface.
func QueryResponse[T any](c *gin.Context, message string, res cache.Result[T]) {
	if res.Err != nil && res.UpdatedAt.IsZero() {
		FailureResponse(c, "Failed to load "+message, res.Err)
		return
	}

	response := APIResponse{
		Success:   true,
		Message:   message + " retrieved",
		Data:      res.Data,
		IsLoading: res.IsLoading,
		Stale:     res.IsStale,
	}
	if res.Err != nil {
		response.Error = res.Err.Error()
	}
	c.JSON(http.StatusOK, response)
}

// StatusFor maps the store error kinds onto HTTP statuses.
func StatusFor(err error) int {
	switch store.KindOf(err) {
	case store.KindValidation:
		return http.StatusBadRequest
	case store.KindNotFound:
		return http.StatusNotFound
	case store.KindUnauthorized:
		return http.StatusForbidden
	case store.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ValidationErrorResponse sends a validation error response
func ValidationErrorResponse(c *gin.Context, err error) {
	var errors []string

	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, fieldError := range validationErrors {
			errors = append(errors, getValidationErrorMessage(fieldError))
		}
	} else {
		errors = append(errors, err.Error())
	}

	c.JSON(http.StatusBadRequest, APIResponse{
		Success: false,
		Message: "Validation failed",
		Error:   errors,
	})
}

// lengthUnit qualifies min/max on strings, where the bound is a length.
func lengthUnit(fieldError validator.FieldError) string {
	if fieldError.Kind() == reflect.String {
		return " characters long"
	}
	return ""
}

// getValidationErrorMessage returns a user-friendly validation error message
func getValidationErrorMessage(fieldError validator.FieldError) string {
	field := fieldError.Field()
	tag := fieldError.Tag()

	switch tag {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "min":
		return field + " must be at least " + fieldError.Param() + lengthUnit(fieldError)
	case "max":
		return field + " must be at most " + fieldError.Param() + lengthUnit(fieldError)
	case "oneof":
		return field + " must be one of: " + fieldError.Param()
	case "gte":
		return field + " must be at least " + fieldError.Param()
	case "lte":
		return field + " must be at most " + fieldError.Param()
	case "gt":
		return field + " must be greater than " + fieldError.Param()
	case "lt":
		return field + " must be less than " + fieldError.Param()
	case "latitude", "longitude":
		return field + " must be a valid " + tag
	case "gtefield", "gtfield":
		return field + " must not be before " + fieldError.Param()
	default:
		return field + " is invalid"
	}
}
