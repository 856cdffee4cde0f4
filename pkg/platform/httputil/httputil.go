// Package httputil writes JSON responses and the error envelope shared by all
// HTTP handlers.
package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"

	dErrors "contactgraph/pkg/domain-errors"
)

// ErrorResponse is the JSON error envelope. Description is omitted for 5xx
// responses so storage internals never leak to clients.
type ErrorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
	Detail      string `json:"error_detail,omitempty"`
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// WriteError maps a domain error to its HTTP status and writes the envelope.
func WriteError(w http.ResponseWriter, err error) {
	writeError(w, err, false)
}

// WriteErrorWithDetail behaves like WriteError but, for server-side failures,
// adds the underlying error text as error_detail. Only enabled in diagnostics mode.
func WriteErrorWithDetail(w http.ResponseWriter, err error) {
	writeError(w, err, true)
}

func writeError(w http.ResponseWriter, err error, detail bool) {
	code := dErrors.CodeOf(err)
	status := StatusFor(code)

	resp := ErrorResponse{Error: string(code)}
	if status < http.StatusInternalServerError {
		resp.Description = dErrors.MessageOf(err)
	} else if detail && err != nil {
		resp.Detail = err.Error()
	}
	WriteJSON(w, status, resp)
}

// StatusFor returns the HTTP status for an error code.
func StatusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeBadRequest, dErrors.CodeValidation, dErrors.CodeInvalidInput:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeRateLimited:
		return http.StatusTooManyRequests
	case dErrors.CodeTimeout:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
