package events

import (
	"context"
	"log/slog"
	"slices"
	"sync"
)

type subscription struct {
	handler EventHandler
	kinds   []Kind
}

func (s subscription) wants(kind Kind) bool {
	return len(s.kinds) == 0 || slices.Contains(s.kinds, kind)
}

// InMemoryEventEmitter dispatches events synchronously to its subscribers,
// in registration order, on the goroutine that emits them.
type InMemoryEventEmitter struct {
	mu            sync.RWMutex
	subscriptions []subscription
	logger        *slog.Logger
}

// NewInMemoryEventEmitter creates an emitter without subscribers
func NewInMemoryEventEmitter(logger *slog.Logger) *InMemoryEventEmitter {
	return &InMemoryEventEmitter{
		logger: logger.With("component", "task_event_emitter"),
	}
}

// RegisterHandler subscribes handler to the given kinds, or to every kind
// when none are given.
func (e *InMemoryEventEmitter) RegisterHandler(handler EventHandler, kinds ...Kind) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subscriptions = append(e.subscriptions, subscription{
		handler: handler,
		kinds:   slices.Clone(kinds),
	})
	e.logger.Debug("event handler registered",
		"subscriptions", len(e.subscriptions),
		"kinds", kinds)
}

// EmitEvent delivers event to every interested subscriber. A failing handler
// does not stop delivery; the first error is returned so that the manager
// can refuse a task whose archive write failed.
func (e *InMemoryEventEmitter) EmitEvent(ctx context.Context, event *TaskEvent) error {
	e.mu.RLock()
	subscriptions := e.subscriptions
	e.mu.RUnlock()

	var firstErr error
	for _, sub := range subscriptions {
		if !sub.wants(event.Kind) {
			continue
		}
		if err := sub.handler.HandleEvent(ctx, event); err != nil {
			e.logger.Error("task event handler failed",
				"event_kind", event.Kind,
				"task_id", event.TaskID,
				"task_type", event.TaskType,
				"error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
