package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/taskcore/internal/store"
)

// SQLSTATE codes and classes the archive cares about
const (
	uniqueViolationCode  = "23505"
	checkViolationCode   = "23514"
	notNullViolationCode = "23502"
	adminShutdownCode    = "57P01"

	connectionExceptionClass = "08"
	resourcesClass           = "53"
)

// sqlStateErrors maps full SQLSTATE codes to store sentinels
var sqlStateErrors = map[string]error{
	uniqueViolationCode:  store.ErrDuplicate,
	checkViolationCode:   store.ErrInvalidEntity,
	notNullViolationCode: store.ErrInvalidEntity,
	adminShutdownCode:    store.ErrStoreUnavailable,
}

// sqlStateClassErrors maps the two-character SQLSTATE class
var sqlStateClassErrors = map[string]error{
	connectionExceptionClass: store.ErrStoreUnavailable,
	resourcesClass:           store.ErrStoreUnavailable,
}

// MapError translates a driver error into one of the store sentinels,
// keeping the driver error in the chain. Unknown errors are returned as is.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%w: %w", store.ErrArchiveEntryNotFound, err)
	case errors.Is(err, sql.ErrConnDone):
		return fmt.Errorf("%w: %w", store.ErrStoreUnavailable, err)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	if sentinel, ok := sqlStateErrors[pgErr.Code]; ok {
		if detail := violationDetail(pgErr); detail != "" {
			return fmt.Errorf("%w (%s): %w", sentinel, detail, err)
		}
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	if len(pgErr.Code) >= 2 {
		if sentinel, ok := sqlStateClassErrors[pgErr.Code[:2]]; ok {
			return fmt.Errorf("%w: %w", sentinel, err)
		}
	}
	return err
}

func violationDetail(pgErr *pgconn.PgError) string {
	switch pgErr.Code {
	case checkViolationCode, uniqueViolationCode:
		return pgErr.ConstraintName
	case notNullViolationCode:
		return pgErr.ColumnName
	}
	return ""
}

// IsNotFoundError reports whether err means no archived row matched
func IsNotFoundError(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || store.IsNotFoundError(err)
}

// requireRow fails with ErrArchiveEntryNotFound when a statement that
// targets a locked row touched nothing.
func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrArchiveEntryNotFound
	}
	return nil
}
