package task

import (
	"context"
	"fmt"
	"sync"
)

// Deferred is the pending outcome of a queued task
type Deferred struct {
	done   chan struct{}
	once   sync.Once
	result Result
	err    error
}

func newDeferred() *Deferred {
	return &Deferred{done: make(chan struct{})}
}

func (d *Deferred) resolve(result Result, err error) {
	d.once.Do(func() {
		d.result = result
		d.err = err
		close(d.done)
	})
}

// Done is closed once the task has finished
func (d *Deferred) Done() <-chan struct{} {
	return d.done
}

// Await blocks until the task has finished or ctx is done
func (d *Deferred) Await(ctx context.Context) (Result, error) {
	select {
	case <-d.done:
		return d.result, d.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// AwaitValue waits for d and asserts the task value to R.
// ok is false when the task was skipped by its gate.
func AwaitValue[R any](ctx context.Context, d *Deferred) (value R, ok bool, err error) {
	result, err := d.Await(ctx)
	if err != nil {
		return value, false, err
	}
	if result.Skipped {
		return value, false, nil
	}
	if result.Value == nil {
		return value, true, nil
	}
	v, isR := result.Value.(R)
	if !isR {
		return value, false, fmt.Errorf("%w: %T", ErrResultType, result.Value)
	}
	return v, true, nil
}
