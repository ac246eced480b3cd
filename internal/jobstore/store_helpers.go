package jobstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"dwd/internal/jobstate"
	"dwd/internal/logging"
)

const jobColumns = `id, state, metadata_json, created_at, updated_at, retry_count, last_error_json`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(scanner rowScanner) (*jobstate.Job, error) {
	var (
		job       jobstate.Job
		state     string
		metadata  sql.NullString
		createdAt string
		updatedAt string
		lastError sql.NullString
	)
	if err := scanner.Scan(&job.ID, &state, &metadata, &createdAt, &updatedAt, &job.RetryCount, &lastError); err != nil {
		return nil, err
	}
	job.State = jobstate.State(state)
	job.CreatedAt = parseTime(createdAt)
	job.UpdatedAt = parseTime(updatedAt)
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &job.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata for %s: %w", job.ID, err)
		}
	}
	if lastError.Valid && lastError.String != "" {
		var ref jobstate.ErrorRef
		if err := json.Unmarshal([]byte(lastError.String), &ref); err != nil {
			return nil, fmt.Errorf("decode last error for %s: %w", job.ID, err)
		}
		job.LastError = &ref
	}
	return &job, nil
}

// Observer returns a jobstate.Observer that records every accepted
// transition. It never calls back into the machine, so it is safe to run
// under the job lock. Write failures are logged and dropped.
func (s *Store) Observer(logger *slog.Logger) jobstate.Observer {
	logger = logging.NewComponentLogger(logger, "jobstore")
	return func(t jobstate.Transition) {
		if err := s.RecordTransition(context.Background(), t); err != nil {
			logger.Warn("persist transition failed",
				logging.String(logging.FieldJobID, t.JobID),
				logging.String(logging.FieldToState, string(t.To)),
				logging.Error(err),
			)
		}
	}
}

// SnapshotHook returns a function for jobstate.WithSnapshotHook that upserts
// the job row, so metadata and the last error survive a restart without a
// checkpoint. Write failures are logged and dropped.
func (s *Store) SnapshotHook(logger *slog.Logger) func(jobstate.Job) {
	logger = logging.NewComponentLogger(logger, "jobstore")
	return func(job jobstate.Job) {
		if err := s.Save(context.Background(), job); err != nil {
			logger.Warn("persist job snapshot failed",
				logging.String(logging.FieldJobID, job.ID),
				logging.String(logging.FieldToState, string(job.State)),
				logging.Error(err),
			)
		}
	}
}

// RemovalHook returns a function suitable for jobstate.WithRemovalHook that
// deletes the removed job from the store.
func (s *Store) RemovalHook(logger *slog.Logger) func(id string) {
	logger = logging.NewComponentLogger(logger, "jobstore")
	return func(id string) {
		if err := s.Delete(context.Background(), id); err != nil {
			logger.Warn("delete persisted job failed",
				logging.String(logging.FieldJobID, id),
				logging.Error(err),
			)
		}
	}
}

// Restore loads every non-terminal job into m and returns how many were
// added. Jobs already tracked by m are skipped.
func (s *Store) Restore(ctx context.Context, m *jobstate.Machine) (int, error) {
	var pending []jobstate.State
	for _, state := range jobstate.States {
		if !state.Terminal() {
			pending = append(pending, state)
		}
	}
	jobs, err := s.List(ctx, pending...)
	if err != nil {
		return 0, err
	}
	restored := 0
	for _, job := range jobs {
		history, err := s.Transitions(ctx, job.ID)
		if err != nil {
			return restored, err
		}
		job.History = history
		if m.Restore(job) {
			restored++
		}
	}
	return restored, nil
}
