package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/boreallogic/delphi-app/pkg/apperrors"
	"github.com/boreallogic/delphi-app/pkg/logging"
)

// ApiResponse is the envelope for every JSON API response.
type ApiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	return WriteJSON(w, statusCode, ApiResponse{
		Success: false,
		Error:   errorCode,
		Message: message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// writeOK wraps data in a successful ApiResponse.
func writeOK(w http.ResponseWriter, statusCode int, data any, logger *zap.Logger) {
	if err := WriteJSON(w, statusCode, ApiResponse{Success: true, Data: data}); err != nil {
		logger.Error("Failed to write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, statusCode int, errorCode, message string, logger *zap.Logger) {
	if err := ErrorResponse(w, statusCode, errorCode, message); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}

// errorStatus maps a service error to an HTTP status and error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, apperrors.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, apperrors.ErrUnknownAction):
		return http.StatusBadRequest, "unknown_action"
	case errors.Is(err, apperrors.ErrValidation):
		return http.StatusBadRequest, "validation_failed"
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperrors.ErrRoundNotOpen):
		return http.StatusConflict, "round_not_open"
	case errors.Is(err, apperrors.ErrConflict):
		return http.StatusConflict, "conflict"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeServiceError writes the response for an error returned by a service.
// Storage failures are logged and reported without their cause.
func writeServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	status, code := errorStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error("Request failed", logging.Error(err))
		message = "The operation failed and was rolled back"
	}
	writeError(w, status, code, message, logger)
}
