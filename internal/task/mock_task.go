package task

import (
	"context"
	"sync"
)

// MockTaskType is the type tag of MockData
const MockTaskType = "MockTask"

// MockData is a persistable snapshot used by tests across packages
type MockData struct {
	Label string `json:"label" validate:"required"`
	Step  int    `json:"step"`
}

// TaskType implements Data
func (MockData) TaskType() string {
	return MockTaskType
}

// MockTask builds persistable tasks around MockData and counts invocations
type MockTask struct {
	mu    sync.Mutex
	Data  MockData
	calls int

	// ExecuteFn, when set, is the body of the task
	ExecuteFn func(ctx context.Context) (any, error)

	// Transient makes the serializer return nil
	Transient bool
}

// NewMockTask creates a MockTask with the given label
func NewMockTask(label string) *MockTask {
	return &MockTask{Data: MockData{Label: label}}
}

// Task returns a persistable task backed by m
func (m *MockTask) Task() *Task {
	t := New(MockTaskType, func(ctx context.Context) (any, error) {
		m.mu.Lock()
		m.calls++
		fn := m.ExecuteFn
		m.mu.Unlock()
		if fn != nil {
			return fn(ctx)
		}
		return nil, nil
	})
	t.Persist = func() (Data, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.Transient {
			return nil, nil
		}
		return m.Data, nil
	}
	return t
}

// SetStep changes the snapshot, as a lifecycle section would
func (m *MockTask) SetStep(step int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Data.Step = step
}

// Calls returns how often the task body ran
func (m *MockTask) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
