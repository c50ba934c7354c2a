package web

// errors.go maps pipeline errors onto the HTTP surface. Technical detail
// is logged server-side with the request id; clients get a stable
// machine-readable code and a short message.

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/portal-alcaldia/ruea-api/internal/dataset"
	"github.com/portal-alcaldia/ruea-api/internal/logging"
)

// ErrorResponse is the JSON body for every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// respondError classifies err, logs it and writes the JSON error reply.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	code := "INTERNAL"

	var decodeErr *dataset.DecodeError
	switch {
	case errors.Is(err, dataset.ErrRefreshInProgress):
		status = http.StatusConflict
		code = "REFRESH_IN_PROGRESS"
	case errors.Is(err, dataset.ErrValidationFailed):
		status = http.StatusUnprocessableEntity
		code = "VALIDATION_FAILED"
	case errors.As(err, &decodeErr):
		status = http.StatusBadRequest
		code = "DECODE_FAILED"
	}

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", code,
	)

	msg := err.Error()
	if code == "INTERNAL" {
		// Unclassified errors stay in the logs; clients get no internals.
		msg = "internal server error"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: msg, Code: code})
}

// respondJSON writes a JSON body with the given status.
func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// logExportError records a failure that struck after response headers were
// already streamed to the client.
func (s *Server) logExportError(r *http.Request, err error) {
	logging.FromContext(r.Context()).Error("export failed mid-stream",
		"path", r.URL.Path,
		"error", err.Error(),
	)
}
