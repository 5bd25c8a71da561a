package store

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("entity not found")
	ErrDuplicate         = errors.New("entity already exists")
	ErrInvalidEntity     = errors.New("invalid entity")
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrStoreUnavailable is returned when the backing database cannot be reached
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrArchiveEntryNotFound indicates that no archived task has the given encoding
	ErrArchiveEntryNotFound = fmt.Errorf("%w: archived task", ErrNotFound)

	// ErrEmptyEncoding rejects writes of an empty encoding
	ErrEmptyEncoding = fmt.Errorf("%w: empty encoding", ErrInvalidEntity)
)

// IsNotFoundError reports whether err means that the entry does not exist
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Archive operations, as reported in ArchiveError.Op
const (
	OpInsert    = "insert"
	OpRemove    = "remove"
	OpRemoveOne = "remove_one"
	OpReplace   = "replace"
	OpGetAll    = "get_all"
)

// ArchiveError is a failed operation of an archive store driver
type ArchiveError struct {
	Driver string
	Op     string
	Err    error
}

func (e *ArchiveError) Error() string {
	return fmt.Sprintf("%s archive %s: %v", e.Driver, e.Op, e.Err)
}

func (e *ArchiveError) Unwrap() error {
	return e.Err
}

// NewArchiveError attributes err to an operation of the named driver
func NewArchiveError(driver, op string, err error) *ArchiveError {
	return &ArchiveError{Driver: driver, Op: op, Err: err}
}
