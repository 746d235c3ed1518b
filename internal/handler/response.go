package handler

// RESPONSE HELPERS:
// Every JSON response goes through writeJSON, and every error goes through
// writeError, so error bodies always have the same shape:
//
//	{"error": "not_found", "message": "pantry item not found with id abc123"}
//
// The recipe proxy is the one exception: it mirrors the upstream body and
// the {"error": "..."} shape the browser client already expects.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/foodsaver/internal/apperror"
)

// ErrorResponse is the error body of every non-proxy endpoint.
type ErrorResponse struct {
	Error   string `json:"error"`           // machine-readable type, e.g. "not_found"
	Message string `json:"message"`         // human-readable description
	Field   string `json:"field,omitempty"` // offending input field, if known
}

// writeJSON sends data with the given status. Headers must be set before
// WriteHeader; the body comes last.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// statusFor maps an apperror sentinel to its HTTP status and error type.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrRecipeService):
		return http.StatusBadGateway, "recipe_service_error"
	}
	return http.StatusInternalServerError, "internal_error"
}

// writeError translates a service error into an HTTP response.
//
// Only *apperror.AppError messages reach the client. Anything else is a
// bug or an infrastructure failure: it is logged and answered with a
// generic 500, since raw errors can carry file paths or storage details.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status, errorType := statusFor(err)
		if status >= http.StatusInternalServerError {
			logger.Warn("request failed", slog.String("error", err.Error()))
		}
		writeJSON(w, status, ErrorResponse{
			Error:   errorType,
			Message: appErr.Message,
			Field:   appErr.Field,
		})
		return
	}

	logger.Error("unhandled error", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}
