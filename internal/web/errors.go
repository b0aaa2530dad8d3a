package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/mastr-ingest/internal/core"
)

var errRunLogUnavailable = errors.New("run log not available")

// ErrorResponse represents the JSON structure for API error responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// respondError logs the technical error with the request ID and returns a
// JSON error body. Database details are not sent to the client.
func respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	code := core.CodeOf(err)

	slog.Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", code,
		"request_id", middleware.GetReqID(r.Context()),
	)

	msg := http.StatusText(statusCode)
	if errors.Is(err, errRunLogUnavailable) {
		msg = err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: msg, Code: code})
}
