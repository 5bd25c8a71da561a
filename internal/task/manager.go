package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/taskcore/internal/events"
	"go.opentelemetry.io/otel/trace"
)

// ManagerConfig holds configuration for the task manager
type ManagerConfig struct {
	// QueueCapacity bounds the number of pending tasks. Zero means unbounded.
	QueueCapacity int

	// Runner configures retries of failing tasks
	Runner RunnerConfig
}

// DefaultManagerConfig returns a ManagerConfig with reasonable defaults
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		QueueCapacity: 0,
		Runner:        DefaultRunnerConfig(),
	}
}

type managerOptions struct {
	emitter events.EventEmitter
	tracer  trace.Tracer
}

// ManagerOption configures optional manager collaborators
type ManagerOption func(*managerOptions)

// WithEventEmitter sets the emitter that receives task lifecycle events.
// The task archive subscribes through it.
func WithEventEmitter(emitter events.EventEmitter) ManagerOption {
	return func(o *managerOptions) {
		o.emitter = emitter
	}
}

// WithManagerTracer sets the tracer passed to the runner
func WithManagerTracer(tracer trace.Tracer) ManagerOption {
	return func(o *managerOptions) {
		o.tracer = tracer
	}
}

// Manager owns one queue and one runner and is the entry point for callers.
// QueueTask never waits for task execution.
type Manager struct {
	queue   *Queue
	runner  *Runner
	emitter events.EventEmitter
	logger  *slog.Logger

	mu     sync.Mutex
	closed bool
}

// NewManager creates a manager and starts its runner
func NewManager(config ManagerConfig, logger *slog.Logger, opts ...ManagerOption) (*Manager, error) {
	if logger == nil {
		return nil, ErrNilLogger
	}

	options := managerOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	m := &Manager{
		logger: logger.With("component", "task_manager"),
	}
	m.emitter = options.emitter
	if m.emitter == nil {
		m.emitter = events.NewInMemoryEventEmitter(logger)
	}

	m.queue = NewQueue(config.QueueCapacity, logger)
	m.runner = NewRunner(m.queue, config.Runner, logger,
		WithTracer(options.tracer),
		WithExecutionListener(m),
	)
	m.queue.OnAdd(func(*Entry) {
		m.runner.Notify()
	})
	m.runner.Start()

	return m, nil
}

// QueueTask assigns the task an ID if it has none, announces it to the event
// handlers and appends it to the queue.
//
// A persistable task is archived by the handlers before it can run. If any
// handler fails, or the queue refuses the task, the handlers receive a
// rejected event and the error is returned.
func (m *Manager) QueueTask(ctx context.Context, t *Task) (*Deferred, error) {
	if t == nil || t.Body == nil {
		return nil, fmt.Errorf("%w: task must have a body", ErrInvalidTask)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrManagerClosed
	}

	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}

	encoding, err := m.encode(t)
	if err != nil {
		return nil, fmt.Errorf("failed to encode task: %w", err)
	}

	if err := m.emitter.EmitEvent(ctx, events.NewTaskEvent(events.KindQueued, t.ID, t.Type, encoding)); err != nil {
		m.reject(ctx, t, encoding)
		return nil, fmt.Errorf("failed to archive task: %w", err)
	}

	entry := NewEntry(t)
	if err := m.queue.Add(entry); err != nil {
		m.reject(ctx, t, encoding)
		return nil, fmt.Errorf("failed to queue task: %w", err)
	}

	return entry.Deferred, nil
}

// reject tells the handlers that a queued event they saw did not lead to a
// queued task, so they can undo what they did for it.
func (m *Manager) reject(ctx context.Context, t *Task, encoding string) {
	rejected := events.NewTaskEvent(events.KindRejected, t.ID, t.Type, encoding)
	if err := m.emitter.EmitEvent(ctx, rejected); err != nil {
		m.logger.Error("failed to report rejected task",
			"task_id", t.ID,
			"task_type", t.Type,
			"error", err)
	}
}

// Close shuts the runner down and rejects further tasks.
// Tasks still queued after the runner stopped resolve with ErrRunnerClosed;
// persistable ones stay archived and run again after the next start.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	closeErr := m.runner.Close(ctx)

	remaining := m.queue.Close()
	for _, entry := range remaining {
		entry.Deferred.resolve(Result{}, ErrRunnerClosed)
	}
	if len(remaining) > 0 {
		m.logger.Info("task manager closed with pending tasks", "pending", len(remaining))
	}

	if closeErr != nil {
		return fmt.Errorf("failed to close task manager: %w", closeErr)
	}
	return nil
}

// Pending returns the number of queued tasks that have not started
func (m *Manager) Pending() int {
	return m.queue.Len()
}

// State returns the state of the runner
func (m *Manager) State() State {
	return m.runner.State()
}

// TaskStarted implements ExecutionListener
func (m *Manager) TaskStarted(ctx context.Context, entry *Entry, attempt int) {
	event := events.NewTaskEvent(events.KindStarted, entry.Task.ID, entry.Task.Type, "")
	event.Attempt = attempt
	m.emit(ctx, event)
}

// TaskCheckpoint implements ExecutionListener
func (m *Manager) TaskCheckpoint(ctx context.Context, entry *Entry) error {
	encoding, err := m.encode(entry.Task)
	if err != nil {
		return fmt.Errorf("failed to encode task: %w", err)
	}
	if encoding == "" {
		return nil
	}
	event := events.NewTaskEvent(events.KindCheckpoint, entry.Task.ID, entry.Task.Type, encoding)
	event.Attempt = Attempt(ctx)
	return m.emitter.EmitEvent(ctx, event)
}

// TaskFinished implements ExecutionListener
func (m *Manager) TaskFinished(ctx context.Context, entry *Entry, outcome Outcome) {
	kind := events.KindCompleted
	switch {
	case outcome.Cancelled:
		kind = events.KindCancelled
	case outcome.Err != nil:
		kind = events.KindFailed
	case outcome.Result.Skipped:
		kind = events.KindSkipped
	}

	encoding, err := m.encode(entry.Task)
	if err != nil {
		m.logger.Warn("failed to encode finished task",
			"task_id", entry.Task.ID,
			"task_type", entry.Task.Type,
			"error", err)
	}

	event := events.NewTaskEvent(kind, entry.Task.ID, entry.Task.Type, encoding)
	event.Attempt = outcome.Attempts
	if outcome.Err != nil {
		event.Error = outcome.Err.Error()
	}
	m.emit(ctx, event)
}

func (m *Manager) emit(ctx context.Context, event *events.TaskEvent) {
	if err := m.emitter.EmitEvent(context.WithoutCancel(ctx), event); err != nil {
		m.logger.Error("failed to emit task event",
			"task_id", event.TaskID,
			"event_kind", event.Kind,
			"error", err)
	}
}

// encode returns the archive encoding, or "" when the task is not persisted
func (m *Manager) encode(t *Task) (string, error) {
	if !t.IsPersistable() {
		return "", nil
	}
	encoding, err := Encode(t)
	if errors.Is(err, ErrNotPersistable) {
		return "", nil
	}
	return encoding, err
}
