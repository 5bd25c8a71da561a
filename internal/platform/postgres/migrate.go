package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	// pgx registers itself as the "pgx" database/sql driver
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	migrationsDir       = "migrations"
	migrationsTableName = "schema_migrations"
	pingTimeout         = 5 * time.Second
)

// Open connects to PostgreSQL through the pgx driver and verifies the connection
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database %s: %w", MaskDatabaseURL(databaseURL), MapError(err))
	}
	return db, nil
}

// Migrate applies every pending embedded migration
func Migrate(ctx context.Context, db *sql.DB, log *slog.Logger) error {
	goose.SetBaseFS(migrationsFS)
	goose.SetTableName(migrationsTableName)
	goose.SetLogger(&slogGooseLogger{logger: log.With("component", "migrations")})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, migrationsDir); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	log.Info("database migrations applied", "version", version)
	return nil
}

// slogGooseLogger adapts the goose logger interface to slog
type slogGooseLogger struct {
	logger *slog.Logger
}

// Printf implements goose.Logger
func (l *slogGooseLogger) Printf(format string, v ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, v...))
}

// Fatalf implements goose.Logger.
// It does not exit; goose returns the error to Migrate.
func (l *slogGooseLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, v...))
}

// MaskDatabaseURL hides the password of a database URL for logging
func MaskDatabaseURL(dbURL string) string {
	parsed, err := url.Parse(dbURL)
	if err != nil {
		return "invalid-url"
	}
	if parsed.User != nil {
		if _, hasPassword := parsed.User.Password(); hasPassword {
			parsed.User = url.UserPassword(parsed.User.Username(), "****")
		}
	}
	return parsed.String()
}
