package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/phrazzld/taskcore/internal/platform/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// State is the lifecycle state of a Runner
type State int32

// Possible runner states
const (
	StateCreated State = iota
	StateDraining
	StateIdle
	StateClosing
	StateClosed
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateDraining:
		return "draining"
	case StateIdle:
		return "idle"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// RunnerConfig holds configuration for the task runner
type RunnerConfig struct {
	// DefaultMaxAttempts applies to tasks that leave MaxAttempts at zero
	DefaultMaxAttempts int

	// RetryInitialInterval is the delay before the second attempt of a failing task
	RetryInitialInterval time.Duration

	// RetryMaxInterval caps the delay between attempts
	RetryMaxInterval time.Duration
}

// DefaultRunnerConfig returns a RunnerConfig with reasonable defaults
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		DefaultMaxAttempts:   1,
		RetryInitialInterval: 500 * time.Millisecond,
		RetryMaxInterval:     30 * time.Second,
	}
}

// Outcome describes how a dequeued entry finished
type Outcome struct {
	Result    Result
	Err       error
	Attempts  int
	Cancelled bool
}

// ExecutionListener observes task execution on the runner goroutine.
// Implementations must not call back into the runner.
type ExecutionListener interface {
	TaskStarted(ctx context.Context, entry *Entry, attempt int)
	TaskFinished(ctx context.Context, entry *Entry, outcome Outcome)
	TaskCheckpoint(ctx context.Context, entry *Entry) error
}

type messageKind int

const (
	msgInitialize messageKind = iota
	msgNewTaskAvailable
	msgClose
)

type message struct {
	kind messageKind
	done chan struct{}
}

// controlBuffer holds at most one Initialize, one coalesced NewTaskAvailable and one Close
const controlBuffer = 4

// Runner drains a Queue on a single goroutine, executing one task at a time.
// A failing, panicking or self-cancelling task never stops the runner.
type Runner struct {
	queue    *Queue
	config   RunnerConfig
	logger   *slog.Logger
	tracer   trace.Tracer
	listener ExecutionListener

	control  chan message
	loopDone chan struct{}
	state    atomic.Int32
	pending  atomic.Bool

	// mu guards sends on control against closing it
	mu      sync.Mutex
	started bool
	closing bool

	ctx        context.Context
	cancelFunc context.CancelFunc
}

// RunnerOption configures optional runner collaborators
type RunnerOption func(*Runner)

// WithTracer sets the tracer used for per-attempt spans
func WithTracer(tracer trace.Tracer) RunnerOption {
	return func(r *Runner) {
		if tracer != nil {
			r.tracer = tracer
		}
	}
}

// WithExecutionListener sets the listener notified about task progress
func WithExecutionListener(listener ExecutionListener) RunnerOption {
	return func(r *Runner) {
		r.listener = listener
	}
}

// NewRunner creates a Runner draining queue. Call Start to begin processing.
func NewRunner(queue *Queue, config RunnerConfig, logger *slog.Logger, opts ...RunnerOption) *Runner {
	if config.DefaultMaxAttempts <= 0 {
		config.DefaultMaxAttempts = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	r := &Runner{
		queue:      queue,
		config:     config,
		logger:     logger.With("component", "task_runner"),
		tracer:     noop.NewTracerProvider().Tracer("taskcore/task"),
		listener:   noopListener{},
		control:    make(chan message, controlBuffer),
		loopDone:   make(chan struct{}),
		ctx:        ctx,
		cancelFunc: cancel,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns the current runner state
func (r *Runner) State() State {
	return State(r.state.Load())
}

// Start launches the actor goroutine and sends Initialize
func (r *Runner) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started || r.closing {
		return
	}
	r.started = true
	go r.loop()
	r.control <- message{kind: msgInitialize}
}

// Notify tells the runner that a task is available.
// Notifications coalesce while one is already pending, so Notify never blocks.
func (r *Runner) Notify() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closing {
		return
	}
	if !r.pending.CompareAndSwap(false, true) {
		return
	}
	r.control <- message{kind: msgNewTaskAvailable}
}

// Close sends a Close message and waits until the actor processed it.
// Tasks ahead of the message complete first. If ctx expires before that,
// the running task's context is cancelled and the error is returned.
func (r *Runner) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closing {
		r.mu.Unlock()
		return r.awaitLoop(ctx)
	}
	r.closing = true
	if !r.started {
		r.started = true
		go r.loop()
	}
	done := make(chan struct{})
	r.control <- message{kind: msgClose, done: done}
	r.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		r.cancelFunc()
		return fmt.Errorf("failed to close task runner: %w", ctx.Err())
	}

	r.mu.Lock()
	close(r.control)
	r.mu.Unlock()

	r.cancelFunc()
	return r.awaitLoop(ctx)
}

func (r *Runner) awaitLoop(ctx context.Context) error {
	select {
	case <-r.loopDone:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to close task runner: %w", ctx.Err())
	}
}

func (r *Runner) loop() {
	defer close(r.loopDone)

	initialized := false
	for msg := range r.control {
		switch msg.kind {
		case msgInitialize:
			r.logger.Debug("task runner initialized")
			initialized = true
			r.drain()

		case msgNewTaskAvailable:
			r.pending.Store(false)
			if initialized {
				r.drain()
			}

		case msgClose:
			r.state.Store(int32(StateClosing))
			r.logger.Info("task runner closing")
			r.state.Store(int32(StateClosed))
			close(msg.done)
			return
		}
	}
}

// drain runs queued entries until the queue is empty
func (r *Runner) drain() {
	r.state.Store(int32(StateDraining))
	for {
		entry, ok := r.queue.RemoveFirst()
		if !ok {
			break
		}
		r.execute(entry)
	}
	r.state.Store(int32(StateIdle))
}

// execute runs one entry to completion, retrying failed attempts up to the task's budget
func (r *Runner) execute(entry *Entry) {
	t := entry.Task
	log := r.logger.With(
		"task_id", t.ID,
		"task_type", t.Type,
	)

	maxAttempts := t.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = r.config.DefaultMaxAttempts
	}

	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = r.config.RetryInitialInterval
	retry.MaxInterval = r.config.RetryMaxInterval
	retry.MaxElapsedTime = 0
	retry.Reset()

	var outcome Outcome
attemptLoop:
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		r.listener.TaskStarted(r.ctx, entry, attempt)
		log.Info("processing task", "attempt", attempt, "max_attempts", maxAttempts)

		result, cancelled, err := r.runAttempt(entry, attempt, log)
		outcome = Outcome{Result: result, Err: err, Attempts: attempt, Cancelled: cancelled}

		if err == nil || cancelled || attempt == maxAttempts || !isRetryable(err) {
			break
		}

		delay := retry.NextBackOff()
		log.Warn("task attempt failed, retrying",
			"attempt", attempt,
			"retry_in", delay,
			"error", err)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-r.ctx.Done():
			timer.Stop()
			outcome.Err = errors.Join(err, r.ctx.Err())
			break attemptLoop
		}
	}

	switch {
	case outcome.Cancelled:
		log.Info("task cancelled itself", "attempts", outcome.Attempts)
	case outcome.Err != nil:
		log.Error("task execution failed", "attempts", outcome.Attempts, "error", outcome.Err)
	case outcome.Result.Skipped:
		log.Info("task skipped by multi-device gate", "gate", t.Gate.Mode.String())
	default:
		log.Info("task completed successfully", "attempts", outcome.Attempts)
	}

	r.listener.TaskFinished(r.ctx, entry, outcome)
	entry.Deferred.resolve(outcome.Result, outcome.Err)
}

// runAttempt invokes the task on its own goroutine with an isolated context and waits for it
func (r *Runner) runAttempt(entry *Entry, attempt int, log *slog.Logger) (result Result, cancelled bool, err error) {
	t := entry.Task

	ctx, cancel := context.WithCancel(r.ctx)
	defer cancel()

	ctx, span := r.tracer.Start(ctx, "task.attempt", trace.WithAttributes(
		attribute.String("task.id", t.ID.String()),
		attribute.String("task.type", t.Type),
		attribute.Int("task.attempt", attempt),
	))
	defer span.End()

	rc := &runContext{
		taskID:  t.ID,
		attempt: attempt,
		cancel:  cancel,
		checkpoint: func(ctx context.Context) error {
			return r.listener.TaskCheckpoint(ctx, entry)
		},
	}
	ctx = withRunContext(ctx, rc)
	ctx = logger.WithLogger(ctx, log.With("attempt", attempt))
	ctx = logger.AppendAttrs(ctx, "task_id", t.ID, "task_type", t.Type)

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if p := recover(); p != nil {
				err = &PanicError{Value: p, Stack: debug.Stack()}
			}
		}()
		result, err = t.Invoke(ctx)
	}()
	<-done

	if rc.cancelled.Load() {
		cancelled = true
		if err == nil || errors.Is(err, context.Canceled) {
			err = ErrTaskCancelled
		} else {
			err = fmt.Errorf("%w: %w", ErrTaskCancelled, err)
		}
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else if result.Skipped {
		span.SetAttributes(attribute.Bool("task.skipped", true))
	}
	return result, cancelled, err
}

// Permanent marks err as not worth retrying
func Permanent(err error) error {
	return backoff.Permanent(err)
}

func isRetryable(err error) bool {
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return false
	}
	return !errors.Is(err, ErrTransactionPreconditionFailed)
}

type noopListener struct{}

func (noopListener) TaskStarted(context.Context, *Entry, int) {}

func (noopListener) TaskFinished(context.Context, *Entry, Outcome) {}

func (noopListener) TaskCheckpoint(context.Context, *Entry) error { return nil }
