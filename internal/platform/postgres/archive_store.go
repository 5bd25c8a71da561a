package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/phrazzld/taskcore/internal/platform/logger"
	"github.com/phrazzld/taskcore/internal/store"
)

const (
	driverName = "postgres"

	insertArchiveQuery = `INSERT INTO task_archive (encoding) VALUES ($1)`

	removeArchiveQuery = `DELETE FROM task_archive WHERE md5(encoding) = md5($1) AND encoding = $1`

	selectOldestArchiveQuery = `SELECT id FROM task_archive
		WHERE md5(encoding) = md5($1) AND encoding = $1
		ORDER BY id
		LIMIT 1
		FOR UPDATE`

	deleteArchiveByIDQuery = `DELETE FROM task_archive WHERE id = $1`

	updateArchiveByIDQuery = `UPDATE task_archive SET encoding = $2 WHERE id = $1`

	selectAllArchiveQuery = `SELECT encoding FROM task_archive ORDER BY id`
)

// DB is the database handle used by ArchiveStore. *sql.DB implements it.
type DB interface {
	store.DBTX
	store.TxBeginner
}

// ArchiveStore implements store.TaskArchiveStore on the task_archive table.
// Insertion order is the order of the BIGSERIAL id column.
type ArchiveStore struct {
	db DB
}

var _ store.TaskArchiveStore = (*ArchiveStore)(nil)

// NewArchiveStore creates a new PostgreSQL archive store
func NewArchiveStore(db DB) *ArchiveStore {
	return &ArchiveStore{db: db}
}

// Insert implements store.TaskArchiveStore
func (s *ArchiveStore) Insert(ctx context.Context, encoding string) error {
	log := logger.FromContext(ctx)

	if encoding == "" {
		return store.NewArchiveError(driverName, store.OpInsert, store.ErrEmptyEncoding)
	}

	if _, err := s.db.ExecContext(ctx, insertArchiveQuery, encoding); err != nil {
		log.Error("failed to archive task", "error", err)
		return store.NewArchiveError(driverName, store.OpInsert, MapError(err))
	}
	return nil
}

// Remove implements store.TaskArchiveStore
func (s *ArchiveStore) Remove(ctx context.Context, encoding string) (int, error) {
	result, err := s.db.ExecContext(ctx, removeArchiveQuery, encoding)
	if err != nil {
		logger.FromContext(ctx).Error("failed to remove archived tasks", "error", err)
		return 0, store.NewArchiveError(driverName, store.OpRemove, MapError(err))
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(removed), nil
}

// RemoveOne implements store.TaskArchiveStore
func (s *ArchiveStore) RemoveOne(ctx context.Context, encoding string) error {
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		id, err := selectOldest(ctx, tx, encoding)
		if err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, deleteArchiveByIDQuery, id)
		if err != nil {
			return MapError(err)
		}
		return requireRow(result)
	})
	if err != nil {
		return store.NewArchiveError(driverName, store.OpRemoveOne, err)
	}
	return nil
}

// Replace implements store.TaskArchiveStore
func (s *ArchiveStore) Replace(ctx context.Context, oldEncoding, newEncoding string) error {
	if newEncoding == "" {
		return store.NewArchiveError(driverName, store.OpReplace, store.ErrEmptyEncoding)
	}

	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		id, err := selectOldest(ctx, tx, oldEncoding)
		if err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, updateArchiveByIDQuery, id, newEncoding)
		if err != nil {
			return MapError(err)
		}
		return requireRow(result)
	})
	if err != nil {
		return store.NewArchiveError(driverName, store.OpReplace, err)
	}
	return nil
}

// GetAll implements store.TaskArchiveStore
func (s *ArchiveStore) GetAll(ctx context.Context) ([]string, error) {
	log := logger.FromContext(ctx)

	rows, err := s.db.QueryContext(ctx, selectAllArchiveQuery)
	if err != nil {
		log.Error("failed to query archived tasks", "error", err)
		return nil, store.NewArchiveError(driverName, store.OpGetAll, MapError(err))
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			log.Error("failed to close rows", "error", closeErr)
		}
	}()

	var encodings []string
	for rows.Next() {
		var encoding string
		if err := rows.Scan(&encoding); err != nil {
			return nil, fmt.Errorf("failed to scan archived task: %w", MapError(err))
		}
		encodings = append(encodings, encoding)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate archived tasks: %w", MapError(err))
	}

	log.Debug("loaded archived tasks", "count", len(encodings))
	return encodings, nil
}

// selectOldest locks the oldest row holding encoding
func selectOldest(ctx context.Context, tx *sql.Tx, encoding string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, selectOldestArchiveQuery, encoding).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, store.ErrArchiveEntryNotFound
	}
	if err != nil {
		return 0, MapError(err)
	}
	return id, nil
}
