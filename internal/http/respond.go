package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/runnerr0/webwatch/internal/recorder"
	"github.com/runnerr0/webwatch/internal/storage"
)

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, recorder.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError responds with the mapped status. Server errors are logged.
func writeError(w http.ResponseWriter, log logrus.FieldLogger, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.WithError(err).Error("request error")
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// decodeJSON reads a JSON body into v. Malformed or oversized bodies are
// validation errors.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return storage.Invalid("body", "required")
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return storage.Invalid("body", err.Error())
	}
	return nil
}
