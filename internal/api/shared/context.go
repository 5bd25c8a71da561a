package shared

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/taskcore/internal/platform/logger"
)

type traceIDKey struct{}

// WithTraceID tags ctx with the trace ID of a request: the upstream request
// ID when there is one, a fresh UUID otherwise. Records logged with the
// returned context carry it as trace_id.
func WithTraceID(ctx context.Context, requestID string) context.Context {
	traceID := requestID
	if traceID == "" {
		traceID = uuid.NewString()
	}
	ctx = context.WithValue(ctx, traceIDKey{}, traceID)
	return logger.AppendAttrs(ctx, "trace_id", traceID)
}

// TraceID returns the trace ID set by WithTraceID, or ""
func TraceID(ctx context.Context) string {
	traceID, _ := ctx.Value(traceIDKey{}).(string)
	return traceID
}
