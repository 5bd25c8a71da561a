package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/taskcore/internal/events"
	"github.com/phrazzld/taskcore/internal/redact"
	"github.com/phrazzld/taskcore/internal/store"
	"github.com/phrazzld/taskcore/internal/task"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Entry is one archived task as listed by Entries
type Entry struct {
	Type     string `json:"type"`
	Encoding string `json:"encoding"`
}

// LoadStats summarizes a LoadAllTasks pass
type LoadStats struct {
	Decoded   int
	Recovered int
	Replaced  int
	Dropped   int
}

// Archiver writes persistable tasks to a store and reconstructs them after a restart.
//
// The archiver remembers the encoding it stored for every task ID during the
// process lifetime. Removal and checkpoint replacement use that encoding, so a
// task whose snapshot changed while running is still found. A rejected task
// only loses the row its own queued event wrote.
type Archiver struct {
	store    store.TaskArchiveStore
	registry *Registry
	recovery *RecoveryManager
	logger   *slog.Logger
	tracer   trace.Tracer

	mu      sync.Mutex
	tracked map[uuid.UUID]*archivedRow
}

// archivedRow is the row the archiver holds for a task ID.
// fromQueue is set when the latest queued event inserted it, which makes
// the row undone by a rejected event. Rows that existed before that event
// (loaded at startup, or a task queued twice) outlive a rejection.
type archivedRow struct {
	encoding  string
	fromQueue bool
}

var _ events.EventHandler = (*Archiver)(nil)

// HandledKinds are the event kinds HandleEvent acts on
var HandledKinds = []events.Kind{
	events.KindQueued,
	events.KindCheckpoint,
	events.KindCompleted,
	events.KindSkipped,
	events.KindCancelled,
	events.KindRejected,
	events.KindFailed,
}

// AddTask stores the task's encoding.
// Plain tasks, transient tasks and tasks already archived are not written.
func (a *Archiver) AddTask(ctx context.Context, t *task.Task) error {
	encoding, ok, err := a.encode(t)
	if err != nil || !ok {
		return err
	}
	return a.add(ctx, t.ID, t.Type, encoding)
}

// RemoveTask deletes the task's archived encoding.
// A task without a stored encoding is a no-op.
func (a *Archiver) RemoveTask(ctx context.Context, t *task.Task) error {
	encoding, _, err := a.encode(t)
	if err != nil {
		a.logger.Warn("failed to re-derive task encoding",
			"task_id", t.ID,
			"task_type", t.Type,
			"error", err)
	}
	return a.remove(ctx, t.ID, t.Type, encoding)
}

// UpdateTask replaces the task's archived encoding with its current snapshot
func (a *Archiver) UpdateTask(ctx context.Context, t *task.Task) error {
	encoding, ok, err := a.encode(t)
	if err != nil || !ok {
		return err
	}
	return a.update(ctx, t.ID, t.Type, encoding)
}

// HandleEvent keeps the archive in step with the task manager.
// It implements events.EventHandler.
func (a *Archiver) HandleEvent(ctx context.Context, event *events.TaskEvent) error {
	switch event.Kind {
	case events.KindQueued:
		if !event.Persisted() {
			return nil
		}
		return a.add(ctx, event.TaskID, event.TaskType, event.Encoding)
	case events.KindCheckpoint:
		if !event.Persisted() {
			return nil
		}
		return a.update(ctx, event.TaskID, event.TaskType, event.Encoding)
	case events.KindCompleted, events.KindSkipped, events.KindCancelled:
		return a.remove(ctx, event.TaskID, event.TaskType, event.Encoding)
	case events.KindRejected:
		return a.reject(ctx, event.TaskID, event.TaskType)
	case events.KindFailed:
		a.untrack(event.TaskID)
		if event.Persisted() {
			a.logger.Info("failed task stays archived for the next start",
				"task_id", event.TaskID,
				"task_type", event.TaskType)
		}
		return nil
	default:
		return nil
	}
}

// LoadAllTasks reconstructs every archived task, oldest first.
//
// Encodings that fail to decode are handed to the recovery manager. A recovered
// task whose encoding changed replaces the original entry in place. Entries that
// can neither be decoded nor recovered are deleted and logged. Returned tasks
// carry fresh IDs and are tracked, so queueing them does not archive them twice.
func (a *Archiver) LoadAllTasks(ctx context.Context) ([]*task.Task, error) {
	ctx, span := a.tracer.Start(ctx, "archive.load_all")
	defer span.End()

	encodings, err := a.store.GetAll(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to read task archive: %w", err)
	}

	var stats LoadStats
	tasks := make([]*task.Task, 0, len(encodings))
	for _, encoding := range encodings {
		t, stored := a.load(ctx, encoding, &stats)
		if t == nil {
			continue
		}
		if t.ID == uuid.Nil {
			t.ID = uuid.New()
		}
		a.track(t.ID, stored)
		tasks = append(tasks, t)
	}

	span.SetAttributes(
		attribute.Int("archive.entries", len(encodings)),
		attribute.Int("archive.decoded", stats.Decoded),
		attribute.Int("archive.recovered", stats.Recovered),
		attribute.Int("archive.replaced", stats.Replaced),
		attribute.Int("archive.dropped", stats.Dropped),
	)
	a.logger.Info("task archive loaded",
		"entries", len(encodings),
		"decoded", stats.Decoded,
		"recovered", stats.Recovered,
		"replaced", stats.Replaced,
		"dropped", stats.Dropped)

	return tasks, nil
}

// load returns the task for one encoding and the encoding it is now stored under
func (a *Archiver) load(ctx context.Context, encoding string, stats *LoadStats) (*task.Task, string) {
	t, decodeErr := a.registry.Decode(ctx, encoding)
	if decodeErr == nil {
		stats.Decoded++
		return t, encoding
	}

	tag, _ := TypeTag(encoding)
	log := a.logger.With("task_type", tag)
	log.Debug("archived task failed to decode, trying recovery", "error", decodeErr)

	var recoverErr error
	if a.recovery != nil {
		t, recoverErr = a.recovery.RecoverTask(ctx, encoding)
	}
	if t == nil {
		a.drop(ctx, log, encoding, errors.Join(decodeErr, recoverErr))
		stats.Dropped++
		return nil, ""
	}
	stats.Recovered++

	reencoded, err := task.Encode(t)
	if err != nil {
		log.Info("recovered task cannot be re-encoded, keeping original encoding", "error", err)
		return t, encoding
	}
	if reencoded == encoding {
		return t, encoding
	}

	if err := a.store.Replace(ctx, encoding, reencoded); err != nil {
		log.Error("failed to replace recovered archived task", "error", err)
		return t, encoding
	}
	stats.Replaced++
	log.Info("replaced recovered archived task")
	return t, reencoded
}

func (a *Archiver) drop(ctx context.Context, log *slog.Logger, encoding string, cause error) {
	removed, err := a.store.Remove(ctx, encoding)
	if err != nil {
		log.Error("failed to delete unrecoverable archived task", "error", err)
		return
	}
	log.Warn("dropped unrecoverable archived task",
		"encoding", redact.Encoding(encoding),
		"removed", removed,
		"error", redact.Error(cause))
}

// Entries lists the archive, oldest first
func (a *Archiver) Entries(ctx context.Context) ([]Entry, error) {
	encodings, err := a.store.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read task archive: %w", err)
	}
	entries := make([]Entry, 0, len(encodings))
	for _, encoding := range encodings {
		tag, _ := TypeTag(encoding)
		entries = append(entries, Entry{Type: tag, Encoding: encoding})
	}
	return entries, nil
}

func (a *Archiver) add(ctx context.Context, id uuid.UUID, taskType, encoding string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if row, exists := a.tracked[id]; exists {
		row.fromQueue = false
		return nil
	}
	if err := a.store.Insert(ctx, encoding); err != nil {
		return fmt.Errorf("failed to insert archived task: %w", err)
	}
	a.tracked[id] = &archivedRow{encoding: encoding, fromQueue: true}
	a.logger.Debug("task archived", "task_id", id, "task_type", taskType)
	return nil
}

func (a *Archiver) update(ctx context.Context, id uuid.UUID, taskType, encoding string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	row, exists := a.tracked[id]
	if !exists {
		if err := a.store.Insert(ctx, encoding); err != nil {
			return fmt.Errorf("failed to insert archived task: %w", err)
		}
		a.tracked[id] = &archivedRow{encoding: encoding}
		return nil
	}
	if row.encoding == encoding {
		return nil
	}
	if err := a.store.Replace(ctx, row.encoding, encoding); err != nil {
		return fmt.Errorf("failed to replace archived task: %w", err)
	}
	row.encoding = encoding
	a.logger.Debug("archived task updated", "task_id", id, "task_type", taskType)
	return nil
}

// remove deletes the tracked encoding of id, falling back to encoding
func (a *Archiver) remove(ctx context.Context, id uuid.UUID, taskType, encoding string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if row, exists := a.tracked[id]; exists {
		encoding = row.encoding
		delete(a.tracked, id)
	}
	return a.removeRow(ctx, id, taskType, encoding)
}

// reject undoes the insert of the queued event that preceded it
func (a *Archiver) reject(ctx context.Context, id uuid.UUID, taskType string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	row, exists := a.tracked[id]
	if !exists {
		return nil
	}
	if !row.fromQueue {
		a.logger.Info("rejected task stays archived for the next start",
			"task_id", id,
			"task_type", taskType)
		return nil
	}
	delete(a.tracked, id)
	return a.removeRow(ctx, id, taskType, row.encoding)
}

// removeRow deletes one row holding encoding. The caller holds a.mu.
func (a *Archiver) removeRow(ctx context.Context, id uuid.UUID, taskType, encoding string) error {
	if encoding == "" {
		return nil
	}
	err := a.store.RemoveOne(ctx, encoding)
	if store.IsNotFoundError(err) {
		a.logger.Warn("archived task not found for removal",
			"task_id", id,
			"task_type", taskType)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to remove archived task: %w", err)
	}
	a.logger.Debug("archived task removed", "task_id", id, "task_type", taskType)
	return nil
}

func (a *Archiver) track(id uuid.UUID, encoding string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tracked[id] = &archivedRow{encoding: encoding}
}

func (a *Archiver) untrack(id uuid.UUID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.tracked, id)
}

// encode reports false for tasks that are not archived
func (a *Archiver) encode(t *task.Task) (string, bool, error) {
	if t == nil || !t.IsPersistable() {
		return "", false, nil
	}
	encoding, err := task.Encode(t)
	if errors.Is(err, task.ErrNotPersistable) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to encode task: %w", err)
	}
	return encoding, true, nil
}
