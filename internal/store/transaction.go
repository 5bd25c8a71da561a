package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/phrazzld/taskcore/internal/platform/logger"
)

// TxFn runs the statements of one archive operation inside tx
type TxFn func(ctx context.Context, tx *sql.Tx) error

// TxBeginner starts database transactions. *sql.DB implements it.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// RunInTransaction runs fn in a new transaction and commits when fn
// succeeds. Any error or panic from fn rolls the transaction back; a panic
// is re-raised once the rollback has been attempted. Begin and commit
// failures wrap ErrTransactionFailed.
func RunInTransaction(ctx context.Context, db TxBeginner, fn TxFn) (err error) {
	log := logger.FromContext(ctx)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("failed to begin transaction", "error", err)
		return fmt.Errorf("%w: begin: %w", ErrTransactionFailed, err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		p := recover()
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Error("transaction rollback failed", "error", rbErr, "cause", err, "panic", p)
			if p == nil {
				err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
			}
		} else {
			log.Debug("transaction rolled back", "cause", err, "panic", p)
		}
		if p != nil {
			// ALLOW-PANIC: re-raise after rollback
			panic(p)
		}
	}()

	if err = fn(ctx, tx); err != nil {
		return err
	}

	committed = true
	if err = tx.Commit(); err != nil {
		log.Error("failed to commit transaction", "error", err)
		return fmt.Errorf("%w: commit: %w", ErrTransactionFailed, err)
	}
	return nil
}
