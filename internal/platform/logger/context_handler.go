package logger

import (
	"context"
	"log/slog"
)

type attrsKey struct{}

// AppendAttrs returns a copy of ctx carrying args as log attributes, in
// addition to those already present. Records logged through a
// ContextHandler with that context include them.
func AppendAttrs(ctx context.Context, args ...any) context.Context {
	if len(args) == 0 {
		return ctx
	}
	existing := Attrs(ctx)
	record := slog.Record{}
	record.Add(args...)

	attrs := make([]slog.Attr, 0, len(existing)+record.NumAttrs())
	attrs = append(attrs, existing...)
	record.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)
		return true
	})
	return context.WithValue(ctx, attrsKey{}, attrs)
}

// Attrs returns the attributes stored by AppendAttrs
func Attrs(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	attrs, _ := ctx.Value(attrsKey{}).([]slog.Attr)
	return attrs
}

// ContextHandler adds the attributes carried by the record's context.
// Collaborators called from a task body log with InfoContext and friends and
// get the task_id of the running task without knowing about it.
type ContextHandler struct {
	next slog.Handler
}

// NewContextHandler wraps next
func NewContextHandler(next slog.Handler) *ContextHandler {
	return &ContextHandler{next: next}
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *ContextHandler) Handle(ctx context.Context, record slog.Record) error {
	if attrs := Attrs(ctx); len(attrs) > 0 {
		record = record.Clone()
		record.AddAttrs(attrs...)
	}
	return h.next.Handle(ctx, record)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{next: h.next.WithAttrs(attrs)}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{next: h.next.WithGroup(name)}
}
