package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/taskcore/internal/store"
)

// MockArchiveStore implements store.TaskArchiveStore for testing.
// Without function fields it behaves like an in-memory archive.
type MockArchiveStore struct {
	// Function fields for customizable behavior
	InsertFn    func(ctx context.Context, encoding string) error
	RemoveFn    func(ctx context.Context, encoding string) (int, error)
	RemoveOneFn func(ctx context.Context, encoding string) error
	ReplaceFn   func(ctx context.Context, oldEncoding, newEncoding string) error
	GetAllFn    func(ctx context.Context) ([]string, error)

	// Encodings is the default backing data, oldest first
	Encodings []string

	// Call tracking for verification
	mu        sync.Mutex
	Inserted  []string
	Removed   []string
	Replaced  [][2]string
	GetAllCnt int
}

var _ store.TaskArchiveStore = (*MockArchiveStore)(nil)

// NewMockArchiveStore creates a mock archive holding encodings
func NewMockArchiveStore(encodings ...string) *MockArchiveStore {
	return &MockArchiveStore{Encodings: append([]string(nil), encodings...)}
}

// Insert implements the TaskArchiveStore interface
func (m *MockArchiveStore) Insert(ctx context.Context, encoding string) error {
	m.mu.Lock()
	m.Inserted = append(m.Inserted, encoding)
	m.mu.Unlock()

	if m.InsertFn != nil {
		return m.InsertFn(ctx, encoding)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Encodings = append(m.Encodings, encoding)
	return nil
}

// Remove implements the TaskArchiveStore interface
func (m *MockArchiveStore) Remove(ctx context.Context, encoding string) (int, error) {
	m.mu.Lock()
	m.Removed = append(m.Removed, encoding)
	m.mu.Unlock()

	if m.RemoveFn != nil {
		return m.RemoveFn(ctx, encoding)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	kept := make([]string, 0, len(m.Encodings))
	for _, e := range m.Encodings {
		if e != encoding {
			kept = append(kept, e)
		}
	}
	removed := len(m.Encodings) - len(kept)
	m.Encodings = kept
	return removed, nil
}

// RemoveOne implements the TaskArchiveStore interface
func (m *MockArchiveStore) RemoveOne(ctx context.Context, encoding string) error {
	m.mu.Lock()
	m.Removed = append(m.Removed, encoding)
	m.mu.Unlock()

	if m.RemoveOneFn != nil {
		return m.RemoveOneFn(ctx, encoding)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.Encodings {
		if e == encoding {
			m.Encodings = append(m.Encodings[:i], m.Encodings[i+1:]...)
			return nil
		}
	}
	return store.ErrArchiveEntryNotFound
}

// Replace implements the TaskArchiveStore interface
func (m *MockArchiveStore) Replace(ctx context.Context, oldEncoding, newEncoding string) error {
	m.mu.Lock()
	m.Replaced = append(m.Replaced, [2]string{oldEncoding, newEncoding})
	m.mu.Unlock()

	if m.ReplaceFn != nil {
		return m.ReplaceFn(ctx, oldEncoding, newEncoding)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.Encodings {
		if e == oldEncoding {
			m.Encodings[i] = newEncoding
			return nil
		}
	}
	return store.ErrArchiveEntryNotFound
}

// GetAll implements the TaskArchiveStore interface
func (m *MockArchiveStore) GetAll(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	m.GetAllCnt++
	m.mu.Unlock()

	if m.GetAllFn != nil {
		return m.GetAllFn(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Encodings...), nil
}

// Snapshot returns a copy of the backing data
func (m *MockArchiveStore) Snapshot() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Encodings...)
}
