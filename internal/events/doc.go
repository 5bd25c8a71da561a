// Package events carries task lifecycle transitions from the task manager to
// whoever needs them. The task archive is the main subscriber: it learns
// about queued, checkpointed and finished tasks from TaskEvent values, each
// holding the canonical encoding of the task, so the task package never
// imports the archive.
package events
