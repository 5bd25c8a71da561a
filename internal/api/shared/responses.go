package shared

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/phrazzld/taskcore/internal/platform/logger"
)

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// RespondWithJSON writes data as the JSON body of a reply with status
func RespondWithJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.FromContext(r.Context()).ErrorContext(r.Context(), "failed to encode JSON response", "error", err)
	}
}

// RespondWithError replies with message and the request's trace ID.
// err is logged but never sent: archive errors can name database hosts.
// Server errors are logged at error level, client errors at debug.
func RespondWithError(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	ctx := r.Context()

	level := slog.LevelDebug
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	args := []any{
		"method", r.Method,
		"path", r.URL.Path,
		"status_code", status,
		"user_message", message,
	}
	if err != nil {
		args = append(args, "error", err)
	}
	logger.FromContext(ctx).Log(ctx, level, "admin request failed", args...)

	RespondWithJSON(w, r, status, ErrorResponse{
		Error:   message,
		TraceID: TraceID(ctx),
	})
}
