package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"dwd/internal/sqliteutil"
)

const (
	settingsSchema = `CREATE TABLE settings (
    key TEXT PRIMARY KEY,
    value_json TEXT NOT NULL,
    updated_at TEXT NOT NULL
)`
	settingsSchemaVersion = 1
)

// SQLiteBackend stores each value as a JSON text row in a settings table.
type SQLiteBackend struct {
	db   *sql.DB
	path string
}

// OpenSQLiteBackend opens or creates the settings database at path.
func OpenSQLiteBackend(path string) (*SQLiteBackend, error) {
	db, err := sqliteutil.Open(path)
	if err != nil {
		return nil, backendError("open", "", err)
	}
	if err := sqliteutil.EnsureSchema(context.Background(), db, settingsSchema, settingsSchemaVersion); err != nil {
		_ = db.Close()
		return nil, backendError("create schema", "", err)
	}
	return &SQLiteBackend{db: db, path: path}, nil
}

// Close closes the underlying database connection.
func (b *SQLiteBackend) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// Path returns the database location.
func (b *SQLiteBackend) Path() string {
	return b.path
}

func (b *SQLiteBackend) Exists(key string) (bool, error) {
	var count int
	err := sqliteutil.RetryOnBusy(context.Background(), func() error {
		return b.db.QueryRow(`SELECT COUNT(1) FROM settings WHERE key = ?`, key).Scan(&count)
	})
	if err != nil {
		return false, backendError("exists", key, err)
	}
	return count > 0, nil
}

func (b *SQLiteBackend) Read(key string) (any, bool, error) {
	var raw string
	err := sqliteutil.RetryOnBusy(context.Background(), func() error {
		return b.db.QueryRow(`SELECT value_json FROM settings WHERE key = ?`, key).Scan(&raw)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, backendError("read", key, err)
	}
	value, err := decodeValue([]byte(raw))
	if err != nil {
		return nil, false, backendError("decode", key, err)
	}
	return value, true, nil
}

func (b *SQLiteBackend) Write(key string, value any) error {
	data, err := encodeValue(value)
	if err != nil {
		return backendError("encode", key, err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	err = sqliteutil.RetryOnBusy(context.Background(), func() error {
		_, execErr := b.db.Exec(
			`INSERT INTO settings (key, value_json, updated_at) VALUES (?, ?, ?)
             ON CONFLICT(key) DO UPDATE SET value_json = excluded.value_json, updated_at = excluded.updated_at`,
			key, string(data), now,
		)
		return execErr
	})
	if err != nil {
		return backendError("write", key, err)
	}
	return nil
}

func (b *SQLiteBackend) Delete(key string) error {
	err := sqliteutil.RetryOnBusy(context.Background(), func() error {
		_, execErr := b.db.Exec(`DELETE FROM settings WHERE key = ?`, key)
		return execErr
	})
	if err != nil {
		return backendError("delete", key, err)
	}
	return nil
}

func (b *SQLiteBackend) ListKeys() ([]string, error) {
	var keys []string
	err := sqliteutil.RetryOnBusy(context.Background(), func() error {
		keys = keys[:0]
		rows, err := b.db.Query(`SELECT key FROM settings ORDER BY key`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var key string
			if err := rows.Scan(&key); err != nil {
				return err
			}
			keys = append(keys, key)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, backendError("list", "", err)
	}
	if keys == nil {
		keys = []string{}
	}
	return keys, nil
}
