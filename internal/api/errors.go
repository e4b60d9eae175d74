package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/UnknownOlympus/dispatch/internal/apperr"
	"github.com/UnknownOlympus/dispatch/internal/report"
)

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps an error to its HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errMissingToken), errors.Is(err, errInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, errForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrNotFound), errors.Is(err, report.ErrNoOrders):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrDispatch):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(log *slog.Logger, w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	message := err.Error()

	switch {
	case code == http.StatusInternalServerError:
		log.ErrorContext(r.Context(), "Request failed", "path", r.URL.Path, "error", err)
		message = http.StatusText(code)
	case code == http.StatusUnauthorized:
		message = errInvalidToken.Error()
		if errors.Is(err, errMissingToken) {
			message = errMissingToken.Error()
		}
	}

	writeJSON(log, w, r, code, errorResponse{Error: message})
}

func writeJSON(log *slog.Logger, w http.ResponseWriter, r *http.Request, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.ErrorContext(r.Context(), "Failed to write response", "error", err)
	}
}
