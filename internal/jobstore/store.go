package jobstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"dwd/internal/config"
	"dwd/internal/jobstate"
	"dwd/internal/sqliteutil"
)

// Store persists job snapshots and their transitions in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const upsertJobSQL = `INSERT INTO jobs (id, state, metadata_json, created_at, updated_at, retry_count, last_error_json)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    state = excluded.state,
    metadata_json = excluded.metadata_json,
    updated_at = excluded.updated_at,
    retry_count = excluded.retry_count,
    last_error_json = excluded.last_error_json`

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

// Open connects to the job database at paths.state_db, creating it and its
// schema on first use.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	path := cfg.Paths.StateDB
	db, err := sqliteutil.Open(path, "PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, err
	}
	if err := migrate(context.Background(), db, path); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database location.
func (s *Store) Path() string {
	return s.path
}

// Save upserts a full job snapshot. The creation time of an existing row is
// kept.
func (s *Store) Save(ctx context.Context, job jobstate.Job) error {
	return upsertJob(ensureContext(ctx), s.db, job)
}

// SaveAll upserts every snapshot inside one transaction.
func (s *Store) SaveAll(ctx context.Context, jobs []jobstate.Job) error {
	ctx = ensureContext(ctx)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	for _, job := range jobs {
		if err := upsertJob(ctx, tx, job); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

func upsertJob(ctx context.Context, db sqliteutil.Execer, job jobstate.Job) error {
	metadataJSON, err := marshalNullable(job.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata for %s: %w", job.ID, err)
	}
	var lastError any
	if job.LastError != nil {
		lastError = job.LastError
	}
	errorJSON, err := marshalNullable(lastError)
	if err != nil {
		return fmt.Errorf("marshal last error for %s: %w", job.ID, err)
	}
	if _, err := sqliteutil.Exec(ctx, db, upsertJobSQL,
		job.ID, string(job.State), metadataJSON,
		formatTime(job.CreatedAt), formatTime(job.UpdatedAt),
		job.RetryCount, errorJSON,
	); err != nil {
		return fmt.Errorf("save job %s: %w", job.ID, err)
	}
	return nil
}

// RecordTransition appends t to the history and moves the job row to the new
// state, creating a minimal row when the job was never saved.
func (s *Store) RecordTransition(ctx context.Context, t jobstate.Transition) error {
	ctx = ensureContext(ctx)
	at := formatTime(t.At)
	if _, err := sqliteutil.Exec(ctx, s.db,
		`INSERT INTO jobs (id, state, created_at, updated_at, retry_count)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
            state = excluded.state,
            updated_at = excluded.updated_at,
            retry_count = excluded.retry_count`,
		t.JobID, string(t.To), at, at, t.RetryCount,
	); err != nil {
		return fmt.Errorf("update job %s: %w", t.JobID, err)
	}
	if _, err := sqliteutil.Exec(ctx, s.db,
		`INSERT INTO job_transitions (job_id, from_state, to_state, event, retry_count, at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		t.JobID, string(t.From), string(t.To), string(t.Event), t.RetryCount, at,
	); err != nil {
		return fmt.Errorf("record transition for %s: %w", t.JobID, err)
	}
	return nil
}

// Get returns the stored snapshot for id, or nil when absent.
func (s *Store) Get(ctx context.Context, id string) (*jobstate.Job, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return job, nil
}

// List returns stored snapshots, optionally filtered by state, oldest first.
func (s *Store) List(ctx context.Context, states ...jobstate.State) ([]jobstate.Job, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + jobColumns + ` FROM jobs`
	args := make([]any, 0, len(states))
	if len(states) > 0 {
		placeholders := make([]string, len(states))
		for i, state := range states {
			placeholders[i] = "?"
			args = append(args, string(state))
		}
		query += ` WHERE state IN (` + strings.Join(placeholders, ",") + `)`
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []jobstate.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// Transitions returns the recorded history of id, oldest first.
func (s *Store) Transitions(ctx context.Context, id string) ([]jobstate.Transition, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT job_id, from_state, to_state, event, retry_count, at
         FROM job_transitions WHERE job_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	defer rows.Close()

	var out []jobstate.Transition
	for rows.Next() {
		var (
			t             jobstate.Transition
			from, to, evt string
			at            string
		)
		if err := rows.Scan(&t.JobID, &from, &to, &evt, &t.RetryCount, &at); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		t.From, t.To, t.Event = jobstate.State(from), jobstate.State(to), jobstate.Event(evt)
		t.At = parseTime(at)
		out = append(out, t)
	}
	return out, rows.Err()
}

// Delete removes a job and its history.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := sqliteutil.Exec(ctx, s.db, `DELETE FROM job_transitions WHERE job_id = ?`, id); err != nil {
		return fmt.Errorf("delete transitions for %s: %w", id, err)
	}
	if _, err := sqliteutil.Exec(ctx, s.db, `DELETE FROM jobs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete job %s: %w", id, err)
	}
	return nil
}

// Clear removes every job and returns how many were deleted.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	if _, err := sqliteutil.Exec(ctx, s.db, `DELETE FROM job_transitions`); err != nil {
		return 0, fmt.Errorf("clear transitions: %w", err)
	}
	res, err := sqliteutil.Exec(ctx, s.db, `DELETE FROM jobs`)
	if err != nil {
		return 0, fmt.Errorf("clear jobs: %w", err)
	}
	return res.RowsAffected()
}

func marshalNullable(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	if m, ok := value.(map[string]any); ok && len(m) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
