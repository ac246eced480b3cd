package sqliteutil

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ErrSchemaMismatch is returned when a database carries a schema version other
// than the one the caller expects.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// EnsureSchema creates ddl and stamps it with version on a database without a
// schema_version table. An existing database must already be at version.
// The ddl must not create schema_version itself.
func EnsureSchema(ctx context.Context, db *sql.DB, ddl string, version int) error {
	var found int
	err := db.QueryRowContext(ctx, `SELECT version FROM schema_version LIMIT 1`).Scan(&found)
	switch {
	case err == nil:
		if found != version {
			return fmt.Errorf("%w: found %d, want %d", ErrSchemaMismatch, found, version)
		}
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%w: schema_version is empty", ErrSchemaMismatch)
	case !isMissingTable(err):
		return fmt.Errorf("read schema version: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	stmts := []string{
		`CREATE TABLE schema_version (version INTEGER NOT NULL)`,
		ddl,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES (?)`, version); err != nil {
		return fmt.Errorf("stamp schema version: %w", err)
	}
	return tx.Commit()
}

func isMissingTable(err error) bool {
	return strings.Contains(err.Error(), "no such table")
}
