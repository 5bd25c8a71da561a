package store

import (
	"context"
)

// TaskArchiveStore persists the canonical encodings of persistable tasks.
// Every method is durable before it returns. Encodings are opaque strings
// and duplicates are allowed; GetAll returns them in insertion order.
// Version: 1.0
type TaskArchiveStore interface {
	// Insert appends an encoding.
	Insert(ctx context.Context, encoding string) error

	// Remove deletes every entry equal to encoding.
	// Returns the number of deleted entries; zero is not an error.
	Remove(ctx context.Context, encoding string) (int, error)

	// RemoveOne deletes the oldest entry equal to encoding.
	// Returns ErrArchiveEntryNotFound if there is none.
	RemoveOne(ctx context.Context, encoding string) error

	// Replace overwrites the oldest entry equal to oldEncoding in place,
	// keeping its position in the insertion order.
	// Returns ErrArchiveEntryNotFound if there is none.
	Replace(ctx context.Context, oldEncoding, newEncoding string) error

	// GetAll returns every stored encoding, oldest first.
	GetAll(ctx context.Context) ([]string, error)
}
