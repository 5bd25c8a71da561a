package task

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// spyTransactionHandler counts handler calls
type spyTransactionHandler struct {
	inits    int
	finishes int
	initErr  error
	onInit   func()
}

func (h *spyTransactionHandler) Init(ctx context.Context) error {
	h.inits++
	if h.onInit != nil {
		h.onInit()
	}
	return h.initErr
}

func (h *spyTransactionHandler) Finish(ctx context.Context) error {
	h.finishes++
	return nil
}

func TestTransaction_Run(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		handler := &spyTransactionHandler{}
		tx := &Transaction{Handler: handler}

		blockRan := false
		err := tx.Run(context.Background(), func(ctx context.Context) error {
			blockRan = true
			assert.Equal(t, 1, handler.inits)
			assert.Equal(t, 0, handler.finishes)
			return nil
		})

		require.NoError(t, err)
		assert.True(t, blockRan)
		assert.Equal(t, 1, handler.inits)
		assert.Equal(t, 1, handler.finishes)
	})

	t.Run("precondition fails at entry", func(t *testing.T) {
		t.Parallel()

		handler := &spyTransactionHandler{}
		tx := &Transaction{
			Handler:      handler,
			Precondition: func(ctx context.Context) (bool, error) { return false, nil },
		}

		err := tx.Run(context.Background(), func(ctx context.Context) error {
			t.Error("block must not run")
			return nil
		})

		var preconditionErr *TransactionPreconditionFailedError
		require.ErrorAs(t, err, &preconditionErr)
		assert.Equal(t, PhaseEntry, preconditionErr.Phase)
		assert.ErrorIs(t, err, ErrTransactionPreconditionFailed)
		assert.Equal(t, 0, handler.inits)
		assert.Equal(t, 0, handler.finishes)
	})

	t.Run("precondition fails after init", func(t *testing.T) {
		t.Parallel()

		valid := true
		handler := &spyTransactionHandler{onInit: func() { valid = false }}
		tx := &Transaction{
			Handler:      handler,
			Precondition: func(ctx context.Context) (bool, error) { return valid, nil },
		}

		err := tx.Run(context.Background(), func(ctx context.Context) error {
			t.Error("block must not run")
			return nil
		})

		var preconditionErr *TransactionPreconditionFailedError
		require.ErrorAs(t, err, &preconditionErr)
		assert.Equal(t, PhaseAfterInit, preconditionErr.Phase)
		assert.Equal(t, 1, handler.inits)
		assert.Equal(t, 1, handler.finishes)
	})

	t.Run("block fails", func(t *testing.T) {
		t.Parallel()

		handler := &spyTransactionHandler{}
		tx := &Transaction{Handler: handler}
		blockErr := errors.New("block failed")

		err := tx.Run(context.Background(), func(ctx context.Context) error {
			return blockErr
		})

		assert.ErrorIs(t, err, blockErr)
		assert.Equal(t, 1, handler.inits)
		assert.Equal(t, 1, handler.finishes)
	})

	t.Run("block panics", func(t *testing.T) {
		t.Parallel()

		handler := &spyTransactionHandler{}
		tx := &Transaction{Handler: handler}

		assert.Panics(t, func() {
			_ = tx.Run(context.Background(), func(ctx context.Context) error {
				panic("block panicked")
			})
		})
		assert.Equal(t, 1, handler.finishes)
	})

	t.Run("init fails", func(t *testing.T) {
		t.Parallel()

		handler := &spyTransactionHandler{initErr: errors.New("mediator unavailable")}
		tx := &Transaction{Handler: handler}

		err := tx.Run(context.Background(), func(ctx context.Context) error {
			t.Error("block must not run")
			return nil
		})

		assert.ErrorContains(t, err, "failed to initialize transaction")
		assert.Equal(t, 0, handler.finishes)
	})

	t.Run("precondition error", func(t *testing.T) {
		t.Parallel()

		lookupErr := errors.New("group lookup failed")
		tx := &Transaction{
			Handler:      &spyTransactionHandler{},
			Precondition: func(ctx context.Context) (bool, error) { return false, lookupErr },
		}

		err := tx.Run(context.Background(), func(ctx context.Context) error { return nil })
		assert.ErrorIs(t, err, lookupErr)
		assert.NotErrorIs(t, err, ErrTransactionPreconditionFailed)
	})

	t.Run("missing handler", func(t *testing.T) {
		t.Parallel()

		tx := &Transaction{}
		err := tx.Run(context.Background(), func(ctx context.Context) error { return nil })
		assert.ErrorIs(t, err, ErrNilTransactionHandler)
	})
}

func TestTask_InvokeWrapsBodyInTransaction(t *testing.T) {
	t.Parallel()

	handler := &spyTransactionHandler{}
	task := New("transactional", func(ctx context.Context) (any, error) {
		return "done", nil
	})
	task.Transaction = &Transaction{Handler: handler}

	result, err := task.Invoke(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "done", result.Value)
	assert.Equal(t, 1, handler.inits)
	assert.Equal(t, 1, handler.finishes)
}
