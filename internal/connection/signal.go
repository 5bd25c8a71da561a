package connection

import (
	"context"
	"sync"
)

// Signal is a milestone that completes at most once, either successfully or
// with an error. Any number of goroutines may wait for it.
type Signal struct {
	mu   sync.Mutex
	done chan struct{}
	set  bool
	err  error
}

// NewSignal creates a pending signal
func NewSignal() *Signal {
	return &Signal{done: make(chan struct{})}
}

// Complete marks the signal as successfully completed.
// Returns false if it had already completed.
func (s *Signal) Complete() bool {
	return s.finish(nil)
}

// Fail completes the signal with err.
// Returns false if it had already completed.
func (s *Signal) Fail(err error) bool {
	return s.finish(err)
}

func (s *Signal) finish(err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.set {
		return false
	}
	s.set = true
	s.err = err
	close(s.done)
	return true
}

// Done is closed when the signal completes, successfully or not
func (s *Signal) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the signal completes or ctx is done.
// It returns the error the signal failed with, or the context error.
func (s *Signal) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return s.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsCompleted reports whether the signal completed successfully
func (s *Signal) IsCompleted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set && s.err == nil
}

// Err returns the failure of a completed signal, or nil
func (s *Signal) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
