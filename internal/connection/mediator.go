package connection

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/taskcore/internal/platform/logger"
	"github.com/phrazzld/taskcore/internal/task"
)

// TransactionScope names what a mediator transaction protects
type TransactionScope string

// Transaction scopes used by the tasks
const (
	ScopeGroupSync    TransactionScope = "group_sync"
	ScopeContactSync  TransactionScope = "contact_sync"
	ScopeSettingsSync TransactionScope = "settings_sync"
	ScopeDropDevice   TransactionScope = "drop_device"
)

// Mediator begins and commits transactions on the device group
type Mediator interface {
	BeginTransaction(ctx context.Context, c *Controller, scope TransactionScope, ttl time.Duration) error
	CommitTransaction(ctx context.Context, c *Controller) error
}

// TransactionHandler acquires a mediator transaction on the current
// connection. Use one handler per task invocation.
type TransactionHandler struct {
	provider *Provider
	mediator Mediator
	scope    TransactionScope
	ttl      time.Duration

	mu         sync.Mutex
	controller *Controller
}

var _ task.TransactionHandler = (*TransactionHandler)(nil)

// NewTransactionHandler creates a handler for scope. A zero ttl leaves the
// lifetime to the mediator.
func NewTransactionHandler(provider *Provider, mediator Mediator, scope TransactionScope, ttl time.Duration) (*TransactionHandler, error) {
	if mediator == nil {
		return nil, ErrNilMediator
	}
	return &TransactionHandler{
		provider: provider,
		mediator: mediator,
		scope:    scope,
		ttl:      ttl,
	}, nil
}

// Init waits for an authenticated connection with a dry reflection queue and
// begins the transaction on it
func (h *TransactionHandler) Init(ctx context.Context) error {
	c, err := h.provider.AwaitReflectionQueueDry(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}

	err = c.Dispatcher.Execute(ctx, func(ctx context.Context) error {
		return h.mediator.BeginTransaction(ctx, c, h.scope, h.ttl)
	})
	if err != nil {
		return fmt.Errorf("failed to begin %s transaction: %w", h.scope, err)
	}

	h.mu.Lock()
	h.controller = c
	h.mu.Unlock()

	logger.FromContext(ctx).Debug("transaction started",
		"scope", string(h.scope),
		"connection_id", c.ID)
	return nil
}

// Finish commits the transaction. When the connection closed in the
// meantime, the mediator already aborted it and there is nothing to commit.
func (h *TransactionHandler) Finish(ctx context.Context) error {
	h.mu.Lock()
	c := h.controller
	h.controller = nil
	h.mu.Unlock()

	if c == nil {
		return nil
	}

	log := logger.FromContext(ctx)
	if c.IsClosed() {
		log.Warn("connection closed during transaction",
			"scope", string(h.scope),
			"connection_id", c.ID)
		return nil
	}

	err := c.Dispatcher.Execute(ctx, func(ctx context.Context) error {
		return h.mediator.CommitTransaction(ctx, c)
	})
	if err != nil {
		return fmt.Errorf("failed to commit %s transaction: %w", h.scope, err)
	}
	log.Debug("transaction committed", "scope", string(h.scope))
	return nil
}

// Controller returns the connection the transaction runs on, or nil outside
// of Init and Finish
func (h *TransactionHandler) Controller() *Controller {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.controller
}

// NoopMediator accepts every transaction without talking to a server
type NoopMediator struct {
	Logger *slog.Logger
}

// BeginTransaction implements Mediator
func (m NoopMediator) BeginTransaction(ctx context.Context, c *Controller, scope TransactionScope, ttl time.Duration) error {
	if m.Logger != nil {
		m.Logger.Debug("begin transaction", "scope", string(scope), "ttl", ttl, "connection_id", c.ID)
	}
	return nil
}

// CommitTransaction implements Mediator
func (m NoopMediator) CommitTransaction(ctx context.Context, c *Controller) error {
	if m.Logger != nil {
		m.Logger.Debug("commit transaction", "connection_id", c.ID)
	}
	return nil
}
