package task

import (
	"context"
	"errors"
	"fmt"
)

// TransactionHandler acquires and releases a remote transaction
type TransactionHandler interface {
	// Init begins the transaction
	Init(ctx context.Context) error

	// Finish releases the transaction. It is called after every successful Init.
	Finish(ctx context.Context) error
}

// Precondition decides whether a transaction may proceed
type Precondition func(ctx context.Context) (bool, error)

// PreconditionPhase tells where a precondition check failed
type PreconditionPhase string

// Possible precondition phases
const (
	PhaseEntry     PreconditionPhase = "entry"
	PhaseAfterInit PreconditionPhase = "after_init"
)

// TransactionPreconditionFailedError signals that a transactional task must not proceed
type TransactionPreconditionFailedError struct {
	Phase PreconditionPhase
}

// Error implements the error interface
func (e *TransactionPreconditionFailedError) Error() string {
	return fmt.Sprintf("transaction precondition failed (%s)", e.Phase)
}

// Is makes errors.Is(err, ErrTransactionPreconditionFailed) hold for every phase
func (e *TransactionPreconditionFailedError) Is(target error) bool {
	return target == ErrTransactionPreconditionFailed
}

// Transaction is the transactional capability of a task
type Transaction struct {
	// Precondition is checked before Init and again after it. Nil always holds.
	Precondition Precondition

	// Handler acquires and releases the remote transaction
	Handler TransactionHandler
}

// Run executes block inside the transaction.
//
// The precondition is checked, the handler is initialized and the precondition is
// re-checked, since it may have been invalidated during the handshake. Finish is
// called after a successful Init whatever block does, including panics.
func (tx *Transaction) Run(ctx context.Context, block func(ctx context.Context) error) (err error) {
	if tx.Handler == nil {
		return ErrNilTransactionHandler
	}

	if err := tx.check(ctx, PhaseEntry); err != nil {
		return err
	}

	if err := tx.Handler.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize transaction: %w", err)
	}

	defer func() {
		if finishErr := tx.Handler.Finish(context.WithoutCancel(ctx)); finishErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to finish transaction: %w", finishErr))
		}
	}()

	if err := tx.check(ctx, PhaseAfterInit); err != nil {
		return err
	}

	return block(ctx)
}

func (tx *Transaction) check(ctx context.Context, phase PreconditionPhase) error {
	if tx.Precondition == nil {
		return nil
	}
	ok, err := tx.Precondition(ctx)
	if err != nil {
		return fmt.Errorf("failed to evaluate transaction precondition (%s): %w", phase, err)
	}
	if !ok {
		return &TransactionPreconditionFailedError{Phase: phase}
	}
	return nil
}
