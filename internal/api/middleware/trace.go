package middleware

import (
	"log/slog"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/taskcore/internal/api/shared"
	"github.com/phrazzld/taskcore/internal/platform/logger"
)

// NewTraceMiddleware tags each admin request with a trace ID, puts a
// request-scoped logger in the context and logs the outcome of the request.
// The trace ID is the one set by chi's RequestID middleware when present.
func NewTraceMiddleware(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()

			ctx := shared.WithTraceID(r.Context(), chimiddleware.GetReqID(r.Context()))
			ctx = logger.WithLogger(ctx, log)
			ctx = logger.WithCorrelationID(ctx, shared.TraceID(ctx))
			reqLog := logger.FromContext(ctx)

			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			reqLog.Debug("admin request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(started)))
		})
	}
}
