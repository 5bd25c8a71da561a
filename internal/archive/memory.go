package archive

import (
	"context"
	"sync"

	"github.com/phrazzld/taskcore/internal/store"
)

const memoryDriver = "memory"

// MemoryStore is a store.TaskArchiveStore kept in process memory.
// It backs the "memory" archive driver and tests; nothing survives a restart.
type MemoryStore struct {
	mu        sync.Mutex
	encodings []string
}

var _ store.TaskArchiveStore = (*MemoryStore)(nil)

// NewMemoryStore creates a MemoryStore holding the given encodings, oldest first
func NewMemoryStore(encodings ...string) *MemoryStore {
	return &MemoryStore{encodings: append([]string(nil), encodings...)}
}

// Insert implements store.TaskArchiveStore
func (s *MemoryStore) Insert(ctx context.Context, encoding string) error {
	if encoding == "" {
		return store.NewArchiveError(memoryDriver, store.OpInsert, store.ErrEmptyEncoding)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.encodings = append(s.encodings, encoding)
	return nil
}

// Remove implements store.TaskArchiveStore
func (s *MemoryStore) Remove(ctx context.Context, encoding string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.encodings[:0]
	removed := 0
	for _, e := range s.encodings {
		if e == encoding {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.encodings = kept
	return removed, nil
}

// RemoveOne implements store.TaskArchiveStore
func (s *MemoryStore) RemoveOne(ctx context.Context, encoding string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(encoding)
	if i < 0 {
		return store.NewArchiveError(memoryDriver, store.OpRemoveOne, store.ErrArchiveEntryNotFound)
	}
	s.encodings = append(s.encodings[:i], s.encodings[i+1:]...)
	return nil
}

// Replace implements store.TaskArchiveStore
func (s *MemoryStore) Replace(ctx context.Context, oldEncoding, newEncoding string) error {
	if newEncoding == "" {
		return store.NewArchiveError(memoryDriver, store.OpReplace, store.ErrEmptyEncoding)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(oldEncoding)
	if i < 0 {
		return store.NewArchiveError(memoryDriver, store.OpReplace, store.ErrArchiveEntryNotFound)
	}
	s.encodings[i] = newEncoding
	return nil
}

// GetAll implements store.TaskArchiveStore
func (s *MemoryStore) GetAll(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.encodings...), nil
}

func (s *MemoryStore) indexOf(encoding string) int {
	for i, e := range s.encodings {
		if e == encoding {
			return i
		}
	}
	return -1
}
