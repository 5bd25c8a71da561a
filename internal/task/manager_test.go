package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskcore/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, config ManagerConfig, handler events.EventHandler) *Manager {
	t.Helper()
	logger := setupTestLogger()
	emitter := events.NewInMemoryEventEmitter(logger)
	if handler != nil {
		emitter.RegisterHandler(handler)
	}
	manager, err := NewManager(config, logger, WithEventEmitter(emitter))
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = manager.Close(ctx)
	})
	return manager
}

func TestNewManager_NilLogger(t *testing.T) {
	t.Parallel()

	_, err := NewManager(DefaultManagerConfig(), nil)
	assert.ErrorIs(t, err, ErrNilLogger)
}

func TestManager_QueueTask(t *testing.T) {
	t.Parallel()

	t.Run("returns the task value", func(t *testing.T) {
		t.Parallel()

		manager := newTestManager(t, DefaultManagerConfig(), nil)
		deferred, err := manager.QueueTask(context.Background(), New("echo", func(ctx context.Context) (any, error) {
			return "echo", nil
		}))
		require.NoError(t, err)

		value, ok, err := AwaitValue[string](context.Background(), deferred)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "echo", value)
	})

	t.Run("assigns an id", func(t *testing.T) {
		t.Parallel()

		manager := newTestManager(t, DefaultManagerConfig(), nil)
		task := New("noop", func(ctx context.Context) (any, error) { return nil, nil })
		_, err := manager.QueueTask(context.Background(), task)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, task.ID)

		id := uuid.New()
		kept := New("noop", func(ctx context.Context) (any, error) { return nil, nil })
		kept.ID = id
		_, err = manager.QueueTask(context.Background(), kept)
		require.NoError(t, err)
		assert.Equal(t, id, kept.ID)
	})

	t.Run("rejects a task without body", func(t *testing.T) {
		t.Parallel()

		manager := newTestManager(t, DefaultManagerConfig(), nil)
		_, err := manager.QueueTask(context.Background(), &Task{Type: "empty"})
		assert.ErrorIs(t, err, ErrInvalidTask)
		_, err = manager.QueueTask(context.Background(), nil)
		assert.ErrorIs(t, err, ErrInvalidTask)
	})

	t.Run("archive failure aborts queueing", func(t *testing.T) {
		t.Parallel()

		archiveErr := errors.New("disk full")
		handler := &events.MockEventHandler{
			HandleFn: func(ctx context.Context, event *events.TaskEvent) error {
				if event.Kind == events.KindQueued && event.Persisted() {
					return archiveErr
				}
				return nil
			},
		}
		manager := newTestManager(t, DefaultManagerConfig(), handler)

		mock := NewMockTask("never runs")
		_, err := manager.QueueTask(context.Background(), mock.Task())
		require.ErrorIs(t, err, archiveErr)
		assert.ErrorContains(t, err, "failed to archive task")
		assert.Equal(t, 0, manager.Pending())
		assert.Equal(t, 0, mock.Calls())
		assert.Equal(t, []events.Kind{events.KindQueued, events.KindRejected}, handler.Kinds())
	})

	t.Run("full queue emits rejected", func(t *testing.T) {
		t.Parallel()

		handler := &events.MockEventHandler{}
		config := DefaultManagerConfig()
		config.QueueCapacity = 1
		manager := newTestManager(t, config, handler)

		release := make(chan struct{})
		started := make(chan struct{})
		_, err := manager.QueueTask(context.Background(), New("blocker", func(ctx context.Context) (any, error) {
			close(started)
			<-release
			return nil, nil
		}))
		require.NoError(t, err)
		<-started

		_, err = manager.QueueTask(context.Background(), NewMockTask("first").Task())
		require.NoError(t, err)

		_, err = manager.QueueTask(context.Background(), NewMockTask("second").Task())
		assert.ErrorIs(t, err, ErrQueueFull)
		close(release)

		var rejected *events.TaskEvent
		for _, event := range handler.Events() {
			if event.Kind == events.KindRejected {
				rejected = event
			}
		}
		require.NotNil(t, rejected)
		assert.Equal(t, `{"type":"MockTask","label":"second","step":0}`, rejected.Encoding)
	})

	t.Run("closed manager", func(t *testing.T) {
		t.Parallel()

		manager := newTestManager(t, DefaultManagerConfig(), nil)
		require.NoError(t, manager.Close(context.Background()))

		_, err := manager.QueueTask(context.Background(), New("late", func(ctx context.Context) (any, error) { return nil, nil }))
		assert.ErrorIs(t, err, ErrManagerClosed)
	})
}

func TestManager_Events(t *testing.T) {
	t.Parallel()

	t.Run("persistable task", func(t *testing.T) {
		t.Parallel()

		handler := &events.MockEventHandler{}
		manager := newTestManager(t, DefaultManagerConfig(), handler)

		deferred, err := manager.QueueTask(context.Background(), NewMockTask("hello").Task())
		require.NoError(t, err)
		_, err = deferred.Await(context.Background())
		require.NoError(t, err)

		assert.Equal(t, []events.Kind{events.KindQueued, events.KindStarted, events.KindCompleted}, handler.Kinds())
		received := handler.Events()
		assert.Equal(t, `{"type":"MockTask","label":"hello","step":0}`, received[0].Encoding)
		assert.Equal(t, MockTaskType, received[0].TaskType)
		assert.Equal(t, 1, received[2].Attempt)
	})

	t.Run("plain task carries no encoding", func(t *testing.T) {
		t.Parallel()

		handler := &events.MockEventHandler{}
		manager := newTestManager(t, DefaultManagerConfig(), handler)

		deferred, err := manager.QueueTask(context.Background(), New("plain", func(ctx context.Context) (any, error) {
			return nil, nil
		}))
		require.NoError(t, err)
		_, err = deferred.Await(context.Background())
		require.NoError(t, err)

		for _, event := range handler.Events() {
			assert.False(t, event.Persisted())
		}
	})

	t.Run("failed task", func(t *testing.T) {
		t.Parallel()

		handler := &events.MockEventHandler{}
		manager := newTestManager(t, DefaultManagerConfig(), handler)

		mock := NewMockTask("fails")
		mock.ExecuteFn = func(ctx context.Context) (any, error) {
			return nil, errors.New("remote rejected message")
		}
		deferred, err := manager.QueueTask(context.Background(), mock.Task())
		require.NoError(t, err)
		_, err = deferred.Await(context.Background())
		require.Error(t, err)

		received := handler.Events()
		last := received[len(received)-1]
		assert.Equal(t, events.KindFailed, last.Kind)
		assert.Equal(t, "remote rejected message", last.Error)
		assert.True(t, last.Persisted())
	})

	t.Run("skipped task", func(t *testing.T) {
		t.Parallel()

		handler := &events.MockEventHandler{}
		manager := newTestManager(t, DefaultManagerConfig(), handler)

		task := New("md-only", func(ctx context.Context) (any, error) { return nil, nil })
		task.Gate = OnlyWithMultiDevice(func() bool { return false })
		deferred, err := manager.QueueTask(context.Background(), task)
		require.NoError(t, err)
		result, err := deferred.Await(context.Background())
		require.NoError(t, err)
		assert.True(t, result.Skipped)

		assert.Equal(t, events.KindSkipped, handler.Kinds()[len(handler.Kinds())-1])
	})

	t.Run("cancelled task", func(t *testing.T) {
		t.Parallel()

		handler := &events.MockEventHandler{}
		manager := newTestManager(t, DefaultManagerConfig(), handler)

		deferred, err := manager.QueueTask(context.Background(), New("quits", func(ctx context.Context) (any, error) {
			CancelSelf(ctx)
			return nil, ctx.Err()
		}))
		require.NoError(t, err)
		_, err = deferred.Await(context.Background())
		assert.ErrorIs(t, err, ErrTaskCancelled)

		assert.Equal(t, events.KindCancelled, handler.Kinds()[len(handler.Kinds())-1])
	})

	t.Run("checkpoint carries the new snapshot", func(t *testing.T) {
		t.Parallel()

		handler := &events.MockEventHandler{}
		manager := newTestManager(t, DefaultManagerConfig(), handler)

		mock := NewMockTask("steps")
		lifecycle := NewLifecycle(0)
		mock.ExecuteFn = func(ctx context.Context) (any, error) {
			for _, marker := range []int{1, 2} {
				marker := marker
				err := lifecycle.Section(ctx, marker, func(ctx context.Context) error {
					mock.SetStep(marker)
					return nil
				})
				if err != nil {
					return nil, err
				}
			}
			return nil, nil
		}

		deferred, err := manager.QueueTask(context.Background(), mock.Task())
		require.NoError(t, err)
		_, err = deferred.Await(context.Background())
		require.NoError(t, err)

		var checkpoints []string
		for _, event := range handler.Events() {
			if event.Kind == events.KindCheckpoint {
				checkpoints = append(checkpoints, event.Encoding)
			}
		}
		assert.Equal(t, []string{
			`{"type":"MockTask","label":"steps","step":1}`,
			`{"type":"MockTask","label":"steps","step":2}`,
		}, checkpoints)
	})
}

func TestManager_CloseDrainsQueuedTasks(t *testing.T) {
	t.Parallel()

	logger := setupTestLogger()
	manager, err := NewManager(DefaultManagerConfig(), logger)
	require.NoError(t, err)

	release := make(chan struct{})
	started := make(chan struct{})
	first, err := manager.QueueTask(context.Background(), New("blocker", func(ctx context.Context) (any, error) {
		close(started)
		<-release
		return "first", nil
	}))
	require.NoError(t, err)
	<-started

	second, err := manager.QueueTask(context.Background(), New("waiting", func(ctx context.Context) (any, error) {
		return "second", nil
	}))
	require.NoError(t, err)

	closed := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		closed <- manager.Close(ctx)
	}()

	// Close waits for the tasks queued before it
	select {
	case <-closed:
		t.Fatal("close returned while a task was running")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	require.NoError(t, <-closed)

	for expected, deferred := range map[string]*Deferred{"first": first, "second": second} {
		value, ok, err := AwaitValue[string](context.Background(), deferred)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, expected, value)
	}
	assert.Equal(t, StateClosed, manager.State())
	assert.Equal(t, 0, manager.Pending())
}
