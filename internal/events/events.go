package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Kind identifies the lifecycle transition an event reports
type Kind string

// Possible event kinds
const (
	KindQueued     Kind = "queued"
	KindRejected   Kind = "rejected"
	KindStarted    Kind = "started"
	KindCheckpoint Kind = "checkpoint"
	KindCompleted  Kind = "completed"
	KindSkipped    Kind = "skipped"
	KindFailed     Kind = "failed"
	KindCancelled  Kind = "cancelled"
)

// TaskEvent reports a lifecycle transition of a task.
// It carries the task's archive encoding instead of the task itself,
// so handlers need no dependency on the task package.
type TaskEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Kind is the transition being reported
	Kind Kind `json:"kind"`

	// TaskID identifies the task within the current process
	TaskID uuid.UUID `json:"task_id"`

	// TaskType is the task type identifier
	TaskType string `json:"task_type"`

	// Encoding is the canonical archive encoding of the task at the time of the
	// event, empty for tasks that are not persisted
	Encoding string `json:"encoding,omitempty"`

	// Attempt is the 1-based attempt number for started and finished events
	Attempt int `json:"attempt,omitempty"`

	// Error holds the failure message of failed events
	Error string `json:"error,omitempty"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// NewTaskEvent creates a TaskEvent of the given kind
func NewTaskEvent(kind Kind, taskID uuid.UUID, taskType, encoding string) *TaskEvent {
	return &TaskEvent{
		ID:        uuid.New(),
		Kind:      kind,
		TaskID:    taskID,
		TaskType:  taskType,
		Encoding:  encoding,
		CreatedAt: time.Now(),
	}
}

// Persisted reports whether the event refers to an archived task
func (e *TaskEvent) Persisted() bool {
	return e.Encoding != ""
}

// EventHandler defines an interface for components that can handle events.
// Handlers are responsible for processing events and taking appropriate actions.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *TaskEvent) error
}

// HandlerFunc adapts a function to the EventHandler interface
type HandlerFunc func(ctx context.Context, event *TaskEvent) error

// HandleEvent calls f
func (f HandlerFunc) HandleEvent(ctx context.Context, event *TaskEvent) error {
	return f(ctx, event)
}

// EventEmitter defines an interface for components that can emit events.
// This allows the task manager to publish events without direct knowledge of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	// Returns an error if the event cannot be emitted.
	EmitEvent(ctx context.Context, event *TaskEvent) error
}
