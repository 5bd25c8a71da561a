package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/phrazzld/taskcore/internal/connection"
)

// MediatorCall records one transaction call
type MediatorCall struct {
	Op           string
	ConnectionID string
	Scope        connection.TransactionScope
	TTL          time.Duration
}

// MockMediator implements connection.Mediator for testing
type MockMediator struct {
	BeginFn  func(ctx context.Context, c *connection.Controller, scope connection.TransactionScope, ttl time.Duration) error
	CommitFn func(ctx context.Context, c *connection.Controller) error

	mu    sync.Mutex
	calls []MediatorCall
}

var _ connection.Mediator = (*MockMediator)(nil)

// BeginTransaction implements the Mediator interface
func (m *MockMediator) BeginTransaction(ctx context.Context, c *connection.Controller, scope connection.TransactionScope, ttl time.Duration) error {
	m.record(MediatorCall{Op: "begin", ConnectionID: c.ID.String(), Scope: scope, TTL: ttl})
	if m.BeginFn != nil {
		return m.BeginFn(ctx, c, scope, ttl)
	}
	return nil
}

// CommitTransaction implements the Mediator interface
func (m *MockMediator) CommitTransaction(ctx context.Context, c *connection.Controller) error {
	m.record(MediatorCall{Op: "commit", ConnectionID: c.ID.String()})
	if m.CommitFn != nil {
		return m.CommitFn(ctx, c)
	}
	return nil
}

func (m *MockMediator) record(call MediatorCall) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

// Calls returns the recorded calls in order
func (m *MockMediator) Calls() []MediatorCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MediatorCall(nil), m.calls...)
}

// Ops returns the recorded operation names in order
func (m *MockMediator) Ops() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ops := make([]string, len(m.calls))
	for i, call := range m.calls {
		ops[i] = call.Op
	}
	return ops
}
