package task

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Entry is a queued task together with its pending outcome
type Entry struct {
	Task     *Task
	Deferred *Deferred
	QueuedAt time.Time
}

// NewEntry wraps a task for queueing
func NewEntry(t *Task) *Entry {
	return &Entry{
		Task:     t,
		Deferred: newDeferred(),
		QueuedAt: time.Now(),
	}
}

// Observer is notified after an entry was added to the queue.
// The entry may already have been removed by the time the observer runs,
// so observers treat the call as "check the queue". They must not block.
type Observer func(entry *Entry)

// Queue is a mutex-guarded FIFO of pending tasks
type Queue struct {
	mu        sync.Mutex
	entries   []*Entry
	capacity  int
	closed    bool
	observers []Observer
	logger    *slog.Logger
}

// NewQueue creates a queue. A capacity of zero means unbounded.
func NewQueue(capacity int, logger *slog.Logger) *Queue {
	return &Queue{
		capacity: capacity,
		logger:   logger,
	}
}

// OnAdd registers an observer for insertions
func (q *Queue) OnAdd(observer Observer) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.observers = append(q.observers, observer)
}

// Add appends an entry and notifies the observers outside the lock.
// Returns an error if the queue is full or closed.
func (q *Queue) Add(entry *Entry) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	if q.capacity > 0 && len(q.entries) >= q.capacity {
		q.mu.Unlock()
		return fmt.Errorf("%w: queue capacity %d reached", ErrQueueFull, q.capacity)
	}
	q.entries = append(q.entries, entry)
	queueLen := len(q.entries)
	observers := make([]Observer, len(q.observers))
	copy(observers, q.observers)
	q.mu.Unlock()

	q.logger.Debug("task enqueued",
		"task_id", entry.Task.ID,
		"task_type", entry.Task.Type,
		"queue_len", queueLen,
		"queue_cap", q.capacity)

	for _, observer := range observers {
		observer(entry)
	}
	return nil
}

// RemoveFirst pops the head of the queue, reporting false when it is empty
func (q *Queue) RemoveFirst() (*Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return nil, false
	}
	entry := q.entries[0]
	q.entries[0] = nil
	q.entries = q.entries[1:]
	return entry, true
}

// Len returns the number of pending entries
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Close rejects further additions and returns the entries that were never dequeued
func (q *Queue) Close() []*Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	remaining := q.entries
	q.entries = nil
	q.logger.Info("task queue closed", "remaining", len(remaining))
	return remaining
}
