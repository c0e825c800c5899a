package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed migrations
var migrations embed.FS

// MigrationLogger receives goose progress output.
type MigrationLogger interface {
	Fatalf(format string, v ...interface{})
	Printf(format string, v ...interface{})
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// gooseDialect maps our dialect names to goose's.
func gooseDialect(dialect string) (string, error) {
	switch dialect {
	case DialectSQLite:
		return "sqlite3", nil
	case DialectPostgres:
		return "pgx", nil
	default:
		return "", fmt.Errorf("unsupported dialect %q", dialect)
	}
}

// Migrate applies the embedded migrations for dialect.
func Migrate(ctx context.Context, db *sql.DB, dialect string, log MigrationLogger) error {
	gd, err := gooseDialect(dialect)
	if err != nil {
		return err
	}

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect(gd); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if log != nil {
		goose.SetLogger(log)
	} else {
		goose.SetLogger(goose.NopLogger())
	}

	if err := gooseUpContext(ctx, db, "migrations/"+dialect); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
