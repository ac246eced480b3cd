package jobstore

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"dwd/internal/sqliteutil"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion changes whenever schema.sql does. There are no migrations;
// an older database has to be removed.
const schemaVersion = 1

// ErrSchemaMismatch is returned by Open for a database at another schema
// version.
var ErrSchemaMismatch = sqliteutil.ErrSchemaMismatch

func migrate(ctx context.Context, db *sql.DB, path string) error {
	if err := sqliteutil.EnsureSchema(ctx, db, schemaSQL, schemaVersion); err != nil {
		return fmt.Errorf("job store %s: %w", path, err)
	}
	return nil
}
