package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/riders-api/riders"
)

// ErrorResponse represents a JSON error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// MessageResponse is the body of acknowledgement responses.
type MessageResponse struct {
	Message string `json:"message"`
}

// WriteError writes a JSON error response
func WriteError(w http.ResponseWriter, code int, errCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:   errCode,
		Message: message,
	}); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// HandleError writes appropriate error response based on error type
func HandleError(w http.ResponseWriter, err error) {
	status, code, message := classify(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request error", "error", err)
	} else {
		slog.Debug("request rejected", "status", status, "error", err)
	}
	WriteError(w, status, code, message)
}

func classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, riders.ErrNotFound):
		return http.StatusNotFound, "not_found", "Object not found"
	case errors.Is(err, riders.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input", "Invalid bucket or key"
	case errors.Is(err, riders.ErrAuthentication), errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized", "Authentication required"
	case errors.Is(err, riders.ErrRouting):
		return http.StatusUnprocessableEntity, "unroutable", "Event could not be routed"
	case errors.Is(err, riders.ErrSerialization):
		return http.StatusBadRequest, "invalid_payload", "Payload could not be decoded"
	case errors.Is(err, riders.ErrConnectivity), errors.Is(err, riders.ErrNotConnected):
		return http.StatusServiceUnavailable, "unavailable", "Upstream service unavailable"
	case errors.Is(err, riders.ErrPartialBatch):
		return http.StatusBadGateway, "partial_failure", "Some upstream requests failed"
	default:
		return http.StatusInternalServerError, "internal_error", "Internal server error"
	}
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, code int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(data)
}
