package sqlite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/taskcore/internal/store"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

const driverName = "sqlite"

const schema = `
CREATE TABLE IF NOT EXISTS task_archive (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	encoding TEXT NOT NULL CHECK (encoding <> ''),
	created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_task_archive_encoding ON task_archive (encoding);
`

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=FULL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA temp_store=MEMORY",
}

// Config holds the parameters for opening the archive database
type Config struct {
	// Path is the database file. It is created if missing; the parent
	// directory must exist.
	Path string

	// PoolSize is the number of pooled connections. Defaults to 4.
	PoolSize int
}

// ArchiveStore implements store.TaskArchiveStore on a SQLite file.
// Insertion order is the order of the AUTOINCREMENT id column.
type ArchiveStore struct {
	pool   *sqlitex.Pool
	logger *slog.Logger
	path   string
}

var _ store.TaskArchiveStore = (*ArchiveStore)(nil)

// Open creates the connection pool and the archive schema
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*ArchiveStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite archive: path is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("sqlite archive: logger is required")
	}
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}

	pool, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize:    poolSize,
		PrepareConn: prepareConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite archive: opening %s: %w", cfg.Path, err)
	}

	s := &ArchiveStore{
		pool:   pool,
		logger: logger.With("component", "sqlite_archive", "path", cfg.Path),
		path:   cfg.Path,
	}
	if err := s.migrate(ctx); err != nil {
		_ = pool.Close()
		return nil, err
	}

	s.logger.Info("sqlite archive opened", "pool_size", poolSize)
	return s, nil
}

func prepareConnection(conn *sqlite.Conn) error {
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("sqlite archive: %s: %w", pragma, err)
		}
	}
	return nil
}

func (s *ArchiveStore) migrate(ctx context.Context) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("sqlite archive: take connection: %w", err)
	}
	defer s.pool.Put(conn)

	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("sqlite archive: create schema: %w", err)
	}
	return nil
}

// Close closes every pooled connection
func (s *ArchiveStore) Close() error {
	if err := s.pool.Close(); err != nil {
		s.logger.Error("failed to close sqlite archive", "error", err)
		return fmt.Errorf("sqlite archive: closing %s: %w", s.path, err)
	}
	s.logger.Info("sqlite archive closed")
	return nil
}

// Insert implements store.TaskArchiveStore
func (s *ArchiveStore) Insert(ctx context.Context, encoding string) error {
	if encoding == "" {
		return store.NewArchiveError(driverName, store.OpInsert, store.ErrEmptyEncoding)
	}

	conn, err := s.take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `INSERT INTO task_archive (encoding) VALUES (?)`, &sqlitex.ExecOptions{
		Args: []any{encoding},
	})
	if err != nil {
		return store.NewArchiveError(driverName, store.OpInsert, mapError(err))
	}
	return nil
}

// Remove implements store.TaskArchiveStore
func (s *ArchiveStore) Remove(ctx context.Context, encoding string) (int, error) {
	conn, err := s.take(ctx)
	if err != nil {
		return 0, err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `DELETE FROM task_archive WHERE encoding = ?`, &sqlitex.ExecOptions{
		Args: []any{encoding},
	})
	if err != nil {
		return 0, store.NewArchiveError(driverName, store.OpRemove, mapError(err))
	}
	return conn.Changes(), nil
}

// RemoveOne implements store.TaskArchiveStore
func (s *ArchiveStore) RemoveOne(ctx context.Context, encoding string) error {
	err := s.withImmediateTx(ctx, func(conn *sqlite.Conn) error {
		id, err := selectOldest(conn, encoding)
		if err != nil {
			return err
		}
		return sqlitex.Execute(conn, `DELETE FROM task_archive WHERE id = ?`, &sqlitex.ExecOptions{
			Args: []any{id},
		})
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

	err := s.withImmediateTx(ctx, func(conn *sqlite.Conn) error {
		id, err := selectOldest(conn, oldEncoding)
		if err != nil {
			return err
		}
		return sqlitex.Execute(conn, `UPDATE task_archive SET encoding = ? WHERE id = ?`, &sqlitex.ExecOptions{
			Args: []any{newEncoding, id},
		})
	})
	if err != nil {
		return store.NewArchiveError(driverName, store.OpReplace, err)
	}
	return nil
}

// GetAll implements store.TaskArchiveStore
func (s *ArchiveStore) GetAll(ctx context.Context) ([]string, error) {
	conn, err := s.take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var encodings []string
	err = sqlitex.Execute(conn, `SELECT encoding FROM task_archive ORDER BY id`, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			encodings = append(encodings, stmt.ColumnText(0))
			return nil
		},
	})
	if err != nil {
		return nil, store.NewArchiveError(driverName, store.OpGetAll, mapError(err))
	}
	return encodings, nil
}

func (s *ArchiveStore) take(ctx context.Context) (*sqlite.Conn, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: take connection: %w", store.ErrStoreUnavailable, err)
	}
	return conn, nil
}

// withImmediateTx runs fn inside BEGIN IMMEDIATE so the select and the
// write that follows it see the same rows
func (s *ArchiveStore) withImmediateTx(ctx context.Context, fn func(conn *sqlite.Conn) error) (err error) {
	conn, err := s.take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %w", store.ErrTransactionFailed, mapError(err))
	}
	defer endTransaction(&err)

	if err = fn(conn); err != nil {
		return mapError(err)
	}
	return nil
}

func selectOldest(conn *sqlite.Conn, encoding string) (int64, error) {
	var (
		id    int64
		found bool
	)
	err := sqlitex.Execute(conn, `SELECT id FROM task_archive WHERE encoding = ? ORDER BY id LIMIT 1`, &sqlitex.ExecOptions{
		Args: []any{encoding},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			id = stmt.ColumnInt64(0)
			found = true
			return nil
		},
	})
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, store.ErrArchiveEntryNotFound
	}
	return id, nil
}

// mapError translates SQLite result codes into store errors
func mapError(err error) error {
	if err == nil || errors.Is(err, store.ErrNotFound) {
		return err
	}
	switch sqlite.ErrCode(err).ToPrimary() {
	case sqlite.ResultConstraint:
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	case sqlite.ResultBusy, sqlite.ResultLocked, sqlite.ResultCantOpen, sqlite.ResultIOErr:
		return fmt.Errorf("%w: %w", store.ErrStoreUnavailable, err)
	}
	return err
}
