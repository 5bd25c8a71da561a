package connection_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/phrazzld/taskcore/internal/connection"
	"github.com/phrazzld/taskcore/internal/mocks"
	"github.com/phrazzld/taskcore/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readyProvider(t *testing.T) (*connection.Provider, *connection.Controller) {
	t.Helper()
	p, err := connection.NewProvider(slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(p.Close)

	c := p.NewCycle("device-1")
	c.Connected.Complete()
	c.CSPAuthenticated.Complete()
	c.MultiDevice.ReflectionQueueDry.Complete()
	return p, c
}

func TestNewTransactionHandler_NilMediator(t *testing.T) {
	t.Parallel()
	_, err := connection.NewTransactionHandler(nil, nil, connection.ScopeGroupSync, 0)
	assert.ErrorIs(t, err, connection.ErrNilMediator)
}

func TestTransactionHandler_BeginsAndCommits(t *testing.T) {
	t.Parallel()
	p, c := readyProvider(t)
	mediator := &mocks.MockMediator{}

	h, err := connection.NewTransactionHandler(p, mediator, connection.ScopeGroupSync, 30*time.Second)
	require.NoError(t, err)

	tx := &task.Transaction{Handler: h}
	err = tx.Run(context.Background(), func(ctx context.Context) error {
		assert.Same(t, c, h.Controller())
		return nil
	})
	require.NoError(t, err)

	calls := mediator.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "begin", calls[0].Op)
	assert.Equal(t, connection.ScopeGroupSync, calls[0].Scope)
	assert.Equal(t, 30*time.Second, calls[0].TTL)
	assert.Equal(t, c.ID.String(), calls[0].ConnectionID)
	assert.Equal(t, "commit", calls[1].Op)
	assert.Nil(t, h.Controller())
}

func TestTransactionHandler_BeginFailure(t *testing.T) {
	t.Parallel()
	p, _ := readyProvider(t)
	mediator := &mocks.MockMediator{
		BeginFn: func(context.Context, *connection.Controller, connection.TransactionScope, time.Duration) error {
			return errors.New("transaction rejected")
		},
	}
	h, err := connection.NewTransactionHandler(p, mediator, connection.ScopeDropDevice, 0)
	require.NoError(t, err)

	tx := &task.Transaction{Handler: h}
	blockRan := false
	err = tx.Run(context.Background(), func(ctx context.Context) error {
		blockRan = true
		return nil
	})

	assert.ErrorContains(t, err, "transaction rejected")
	assert.False(t, blockRan)
	assert.Equal(t, []string{"begin"}, mediator.Ops())
}

func TestTransactionHandler_ConnectionLostDuringBlock(t *testing.T) {
	t.Parallel()
	p, c := readyProvider(t)
	mediator := &mocks.MockMediator{}
	h, err := connection.NewTransactionHandler(p, mediator, connection.ScopeContactSync, 0)
	require.NoError(t, err)

	tx := &task.Transaction{Handler: h}
	err = tx.Run(context.Background(), func(ctx context.Context) error {
		c.Close(errors.New("socket reset"))
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"begin"}, mediator.Ops(), "nothing to commit on a closed connection")
}

func TestTransactionHandler_WaitsForReflectionQueue(t *testing.T) {
	t.Parallel()
	p, err := connection.NewProvider(slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(p.Close)

	c := p.NewCycle("device-1")
	c.Connected.Complete()
	c.CSPAuthenticated.Complete()

	mediator := &mocks.MockMediator{}
	h, err := connection.NewTransactionHandler(p, mediator, connection.ScopeSettingsSync, 0)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err = h.Init(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, mediator.Ops())
}
