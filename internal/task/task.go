package task

import (
	"context"

	"github.com/google/uuid"
)

// Func is the execution body of a task.
// The context is cancelled when the task cancels itself or the runner shuts down.
type Func func(ctx context.Context) (any, error)

// Result is the outcome of a single task invocation
type Result struct {
	// Value is whatever the task body returned
	Value any

	// Skipped is set when a multi-device gate prevented the body from running.
	// A skipped task yields no value and no error.
	Skipped bool
}

// Data is the encodable snapshot of a persistable task.
// Implementations are plain structs with json tags; field order is the encoding order.
type Data interface {
	// TaskType returns the stable type tag written into the encoding
	TaskType() string
}

// Serializer returns the current snapshot of a persistable task,
// or nil when the task must not be persisted (transient tasks).
type Serializer func() (Data, error)

// Task represents a unit of asynchronous work executed by a Runner.
// Capabilities are optional records that compose on the same value:
// a task may be gated, transactional and persistable at once.
// Version: 1.0
type Task struct {
	// ID identifies the task for the lifetime of the process.
	// The manager assigns one when the task is queued with a nil ID.
	ID uuid.UUID

	// Type is the task type identifier used in logs and events
	Type string

	// Body runs the task logic
	Body Func

	// Gate restricts execution to a multi-device mode, evaluated at invocation time
	Gate *Gate

	// Transaction wraps the body in a remote transaction
	Transaction *Transaction

	// Persist marks the task as persistable
	Persist Serializer

	// MaxAttempts bounds how often a failing body is run.
	// Zero uses the runner default.
	MaxAttempts int
}

// New creates a plain task running body once
func New(taskType string, body Func) *Task {
	return &Task{
		Type: taskType,
		Body: body,
	}
}

// Compat creates a task from a synchronous function that has no use for a context.
func Compat(taskType string, run func() (any, error)) *Task {
	return New(taskType, func(ctx context.Context) (any, error) {
		return run()
	})
}

// IsPersistable reports whether the task declares the persistable capability.
// A persistable task may still be transient when its serializer returns nil.
func (t *Task) IsPersistable() bool {
	return t.Persist != nil
}

// Serialize returns the task snapshot, or nil when the task is not persisted.
func (t *Task) Serialize() (Data, error) {
	if t.Persist == nil {
		return nil, nil
	}
	data, err := t.Persist()
	if err != nil {
		return nil, err
	}
	if isNilData(data) {
		return nil, nil
	}
	return data, nil
}

// Invoke runs the task once with its capabilities applied.
// The gate is checked first, then the transaction wraps the body.
func (t *Task) Invoke(ctx context.Context) (Result, error) {
	if t.Body == nil {
		return Result{}, ErrNilBody
	}

	if t.Gate != nil && !t.Gate.Allows() {
		return Result{Skipped: true}, nil
	}

	if t.Transaction == nil {
		value, err := t.Body(ctx)
		return Result{Value: value}, err
	}

	var value any
	err := t.Transaction.Run(ctx, func(ctx context.Context) error {
		var bodyErr error
		value, bodyErr = t.Body(ctx)
		return bodyErr
	})
	return Result{Value: value}, err
}
