package task

import (
	"errors"
	"fmt"
)

// Common errors returned by the task package
var (
	ErrQueueClosed   = errors.New("task queue is closed")
	ErrQueueFull     = errors.New("task queue is full")
	ErrRunnerClosed  = errors.New("task runner is closed")
	ErrManagerClosed = errors.New("task manager is closed")
	ErrInvalidTask   = errors.New("invalid task")
	ErrNilBody       = errors.New("task has no body")
	ErrNilLogger     = errors.New("logger cannot be nil")
	ErrTaskCancelled = errors.New("task cancelled")
	ErrResultType    = errors.New("unexpected task result type")

	// ErrNotPersistable is returned when encoding a task that is not persistable
	// or whose serializer returned nil.
	ErrNotPersistable = errors.New("task is not persistable")

	// ErrInvalidData is returned when a snapshot cannot be encoded as a JSON object.
	ErrInvalidData = errors.New("invalid task data")

	ErrSectionOrder  = errors.New("lifecycle section out of order")
	ErrNestedSection = errors.New("lifecycle sections cannot be nested")

	ErrNilTransactionHandler = errors.New("transaction handler cannot be nil")

	// ErrTransactionPreconditionFailed matches every *TransactionPreconditionFailedError
	// with errors.Is.
	ErrTransactionPreconditionFailed = errors.New("transaction precondition failed")
)

// PanicError is returned for a task body that panicked
type PanicError struct {
	Value any
	Stack []byte
}

// Error implements the error interface
func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Value)
}
