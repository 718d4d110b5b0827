package services

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"

	"github.com/go-playground/validator/v10"
)

// Entry timestamps are fixed-width strings; lexicographic order on these
// formats coincides with chronological order, which the report engine
// relies on. Anything else is rejected at the request boundary.
var (
	entryDateRe = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])-(0[1-9]|[12]\d|3[01])$`)
	entryTimeRe = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)
)

// ErrorResponse represents error response structure
type ErrorResponse struct {
	Error   string            `json:"error"`             // Error message
	Details map[string]string `json:"details,omitempty"` // Validation details
}

// ValidationHelper provides shared validation functionality
type ValidationHelper struct {
	validator *validator.Validate
}

// NewValidationHelper creates a new validation helper
func NewValidationHelper() *ValidationHelper {
	v := validator.New()
	v.RegisterValidation("entrydate", func(fl validator.FieldLevel) bool {
		return entryDateRe.MatchString(fl.Field().String())
	})
	v.RegisterValidation("entrytime", func(fl validator.FieldLevel) bool {
		return entryTimeRe.MatchString(fl.Field().String())
	})
	return &ValidationHelper{
		validator: v,
	}
}

// ValidateStruct validates a struct and returns validation errors
func (vh *ValidationHelper) ValidateStruct(s any) error {
	return vh.validator.Struct(s)
}

// SendErrorResponse sends a JSON error response
func SendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResp := ErrorResponse{Error: message}
	if validationErr != nil {
		errorResp.Details = make(map[string]string)
		for _, err := range validationErr.(validator.ValidationErrors) {
			errorResp.Details[err.Field()] = fmt.Sprintf("Field Validation Failed on '%s' tag", err.Tag())
		}
	}

	json.NewEncoder(w).Encode(errorResp)
}
