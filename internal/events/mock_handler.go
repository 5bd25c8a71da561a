package events

import (
	"context"
	"sync"
)

// MockEventHandler records the events it receives
type MockEventHandler struct {
	mu     sync.Mutex
	events []*TaskEvent

	// HandleFn, when set, decides the result of HandleEvent
	HandleFn func(ctx context.Context, event *TaskEvent) error
}

// HandleEvent implements the EventHandler interface
func (h *MockEventHandler) HandleEvent(ctx context.Context, event *TaskEvent) error {
	h.mu.Lock()
	h.events = append(h.events, event)
	h.mu.Unlock()
	if h.HandleFn != nil {
		return h.HandleFn(ctx, event)
	}
	return nil
}

// Events returns a copy of the received events
func (h *MockEventHandler) Events() []*TaskEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*TaskEvent, len(h.events))
	copy(out, h.events)
	return out
}

// Kinds returns the kinds of the received events in order
func (h *MockEventHandler) Kinds() []Kind {
	h.mu.Lock()
	defer h.mu.Unlock()
	kinds := make([]Kind, len(h.events))
	for i, event := range h.events {
		kinds[i] = event.Kind
	}
	return kinds
}
