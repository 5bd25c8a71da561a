package task

import (
	"context"
	"fmt"
	"sync"
)

// Lifecycle tracks how far a persistable task has progressed.
//
// A task splits its body into sections identified by increasing markers.
// Sections run in non-decreasing marker order, one at a time. A task resumed
// from an archived snapshot skips every section whose marker is not greater
// than the persisted one. After each section the running task is checkpointed,
// so the archive holds the new marker.
type Lifecycle struct {
	mu        sync.Mutex
	resumed   int
	completed int
	highest   int
	running   bool
}

// NewLifecycle creates a lifecycle resuming after the given persisted marker.
// Pass zero for a fresh task.
func NewLifecycle(persisted int) *Lifecycle {
	return &Lifecycle{
		resumed:   persisted,
		completed: persisted,
		highest:   persisted,
	}
}

// Completed returns the marker of the last completed section.
// Serializers store this value.
func (l *Lifecycle) Completed() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.completed
}

// Section runs fn as the section identified by marker.
// It returns ErrSectionOrder for a marker lower than one already entered and
// ErrNestedSection when called while another section is running.
func (l *Lifecycle) Section(ctx context.Context, marker int, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return ErrNestedSection
	}
	if marker < l.highest {
		highest := l.highest
		l.mu.Unlock()
		return fmt.Errorf("%w: section %d after %d", ErrSectionOrder, marker, highest)
	}
	l.highest = marker
	if marker <= l.resumed {
		l.mu.Unlock()
		return nil
	}
	l.running = true
	l.mu.Unlock()

	err := fn(ctx)

	l.mu.Lock()
	l.running = false
	if err == nil && marker > l.completed {
		l.completed = marker
	}
	l.mu.Unlock()

	if err != nil {
		return err
	}

	if err := Checkpoint(ctx); err != nil {
		return fmt.Errorf("failed to checkpoint section %d: %w", marker, err)
	}
	return nil
}
