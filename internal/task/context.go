package task

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
)

// runContext is attached by the runner to the context of every attempt
type runContext struct {
	taskID     uuid.UUID
	attempt    int
	cancel     context.CancelFunc
	cancelled  atomic.Bool
	checkpoint func(ctx context.Context) error
}

type runContextKey struct{}

func withRunContext(ctx context.Context, rc *runContext) context.Context {
	return context.WithValue(ctx, runContextKey{}, rc)
}

func fromRunContext(ctx context.Context) *runContext {
	rc, _ := ctx.Value(runContextKey{}).(*runContext)
	return rc
}

// CancelSelf cancels the context of the running task and nothing else.
// The runner and the tasks after it are unaffected, and the task is not retried.
// It reports false when ctx does not belong to a running task.
func CancelSelf(ctx context.Context) bool {
	rc := fromRunContext(ctx)
	if rc == nil {
		return false
	}
	rc.cancelled.Store(true)
	rc.cancel()
	return true
}

// Checkpoint asks the manager to re-archive the running task with its current snapshot.
// Outside a runner it does nothing.
func Checkpoint(ctx context.Context) error {
	rc := fromRunContext(ctx)
	if rc == nil || rc.checkpoint == nil {
		return nil
	}
	return rc.checkpoint(ctx)
}

// Attempt returns the 1-based attempt number of the running task, or 0 outside a runner
func Attempt(ctx context.Context) int {
	rc := fromRunContext(ctx)
	if rc == nil {
		return 0
	}
	return rc.attempt
}

// CurrentTaskID returns the ID of the running task
func CurrentTaskID(ctx context.Context) (uuid.UUID, bool) {
	rc := fromRunContext(ctx)
	if rc == nil {
		return uuid.Nil, false
	}
	return rc.taskID, true
}
