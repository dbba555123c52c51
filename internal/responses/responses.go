package responses

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
)

type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationErrorResponse struct {
	Success bool              `json:"success"`
	Errors  []ValidationError `json:"errors"`
}

func SendErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{
		Success: false,
		Message: message,
	})
}

// SendSuccessResponse writes the uniform envelope. Extra payload fields are
// merged at the top level next to "success".
func SendSuccessResponse(w http.ResponseWriter, statusCode int, payload map[string]interface{}) {
	body := map[string]interface{}{"success": true}
	for k, v := range payload {
		body[k] = v
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

func SendMessageResponse(w http.ResponseWriter, statusCode int, message string) {
	SendSuccessResponse(w, statusCode, map[string]interface{}{"message": message})
}

func SendValidationError(w http.ResponseWriter, err error) {
	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		SendErrorResponse(w, http.StatusBadRequest, "Invalid request")
		return
	}

	var errors []ValidationError
	for _, fieldErr := range validationErrs {
		errors = append(errors, ValidationError{
			Field:   fieldErr.Field(),
			Message: fieldErr.Tag(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(ValidationErrorResponse{
		Success: false,
		Errors:  errors,
	})
}
