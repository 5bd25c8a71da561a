package connection

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

type job struct {
	ctx    context.Context
	fn     func(ctx context.Context) error
	result chan error
}

// Dispatcher runs connection I/O serially on one goroutine, in submission order.
// Dispatched functions must not call Execute or Close on their own dispatcher.
type Dispatcher struct {
	jobs   chan job
	done   chan struct{}
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher creates a dispatcher and starts its goroutine
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	d := &Dispatcher{
		jobs:   make(chan job),
		done:   make(chan struct{}),
		logger: logger,
	}
	go d.loop()
	return d
}

func (d *Dispatcher) loop() {
	defer close(d.done)
	for j := range d.jobs {
		j.result <- d.run(j)
	}
}

func (d *Dispatcher) run(j job) (err error) {
	defer func() {
		if p := recover(); p != nil {
			d.logger.Error("panic in dispatched function",
				"panic", p,
				"stack", string(debug.Stack()))
			err = fmt.Errorf("dispatched function panicked: %v", p)
		}
	}()
	if err := j.ctx.Err(); err != nil {
		return err
	}
	return j.fn(j.ctx)
}

// Execute runs fn on the dispatcher goroutine and waits for its result.
// Functions submitted earlier run first.
func (d *Dispatcher) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		return ErrDispatcherClosed
	}

	j := job{ctx: ctx, fn: fn, result: make(chan error, 1)}
	select {
	case d.jobs <- j:
		d.mu.RUnlock()
	case <-ctx.Done():
		d.mu.RUnlock()
		return ctx.Err()
	}

	return <-j.result
}

// Close rejects further work and waits for the running function to return
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.done
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()
	<-d.done
}
