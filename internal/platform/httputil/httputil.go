package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"bloodlink/pkg/platform/sentinel"
)

// WriteJSON encodes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

// StatusFor maps service errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, sentinel.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, sentinel.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, sentinel.ErrRoleMismatch), errors.Is(err, sentinel.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, sentinel.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, sentinel.ErrDuplicateEmail), errors.Is(err, sentinel.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, sentinel.ErrIncompatibleBloodGroup):
		return http.StatusUnprocessableEntity
	case errors.Is(err, sentinel.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes err as a JSON error body. Internal errors are logged and
// replaced by a generic message.
func WriteError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		if logger != nil {
			logger.ErrorContext(r.Context(), "request failed", "error", err, "path", r.URL.Path)
		}
		msg = "internal error"
	}
	WriteJSON(w, status, errorBody{Error: msg})
}

// MaxBodyBytes caps every decoded request body.
const MaxBodyBytes = 1 << 20

// DecodeJSON decodes the request body into v and wraps failures as validation errors.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", sentinel.ErrValidation, err)
	}
	return nil
}
