package archive

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/phrazzld/taskcore/internal/task"
	"github.com/tidwall/gjson"
)

// RecoveryHandler reconstructs a task from an encoding that failed ordinary decoding.
//
// TryRecovery returns (nil, nil) when the encoding is not one the handler knows,
// so that the next handler is asked. An error means the handler recognized the
// encoding but could not rebuild it; the entry is then considered unrecoverable.
type RecoveryHandler interface {
	TryRecovery(ctx context.Context, encoding string) (*task.Task, error)
}

// RecoveryHandlerFunc adapts a function to the RecoveryHandler interface
type RecoveryHandlerFunc func(ctx context.Context, encoding string) (*task.Task, error)

// TryRecovery calls f
func (f RecoveryHandlerFunc) TryRecovery(ctx context.Context, encoding string) (*task.Task, error) {
	return f(ctx, encoding)
}

// ForType returns a handler that only considers encodings tagged with tag.
// rebuild receives the parsed encoding and reads fields from it one by one.
func ForType(tag string, rebuild func(ctx context.Context, doc gjson.Result) (*task.Task, error)) RecoveryHandler {
	return RecoveryHandlerFunc(func(ctx context.Context, encoding string) (*task.Task, error) {
		found, err := TypeTag(encoding)
		if err != nil || found != tag {
			return nil, nil
		}
		return rebuild(ctx, gjson.Parse(encoding))
	})
}

// RecoveryManager asks its handlers in registration order until one recovers the task
type RecoveryManager struct {
	mu       sync.RWMutex
	handlers []RecoveryHandler
	logger   *slog.Logger
}

// NewRecoveryManager creates a RecoveryManager with the given handlers
func NewRecoveryManager(logger *slog.Logger, handlers ...RecoveryHandler) (*RecoveryManager, error) {
	if logger == nil {
		return nil, ErrNilLogger
	}
	return &RecoveryManager{
		handlers: append([]RecoveryHandler(nil), handlers...),
		logger:   logger.With("component", "task_recovery"),
	}, nil
}

// Register appends a handler
func (m *RecoveryManager) Register(handler RecoveryHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, handler)
}

// RecoverTask returns the task rebuilt by the first matching handler,
// or (nil, nil) when no handler matches.
func (m *RecoveryManager) RecoverTask(ctx context.Context, encoding string) (*task.Task, error) {
	m.mu.RLock()
	handlers := append([]RecoveryHandler(nil), m.handlers...)
	m.mu.RUnlock()

	for i, handler := range handlers {
		t, err := handler.TryRecovery(ctx, encoding)
		if err != nil {
			return nil, fmt.Errorf("failed to recover task: %w", err)
		}
		if t != nil {
			m.logger.Debug("task recovered", "task_type", t.Type, "handler_index", i)
			return t, nil
		}
	}
	return nil, nil
}
