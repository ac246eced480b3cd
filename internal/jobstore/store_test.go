package jobstore_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "modernc.org/sqlite"

	"dwd/internal/jobstate"
	"dwd/internal/jobstore"
	"dwd/internal/testsupport"
)

func TestSaveAndGetRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	m := jobstate.New()
	testsupport.MustCreateJob(t, m, "job-1", map[string]any{"input": "a.wav"})
	testsupport.MustSend(t, m, "job-1", jobstate.EventStart)
	if !m.Fail("job-1", jobstate.Failure{Kind: "TimeoutError", Message: "deadline"}) {
		t.Fatal("fail rejected")
	}
	job, _ := m.Job("job-1")
	if err := store.Save(ctx, job); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("expected stored job")
	}
	if got.State != jobstate.StateRetrying {
		t.Fatalf("state = %s, want retrying", got.State)
	}
	if got.Metadata["input"] != "a.wav" {
		t.Fatalf("metadata = %#v", got.Metadata)
	}
	if got.LastError == nil || got.LastError.Kind != "TimeoutError" {
		t.Fatalf("last error = %#v", got.LastError)
	}

	missing, err := store.Get(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("Get(missing) = %v, %v", missing, err)
	}
}

func TestObserverRecordsTransitions(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	m := jobstate.New(jobstate.WithObserver(store.Observer(nil)))
	testsupport.MustCreateJob(t, m, "job-1", nil)
	testsupport.MustSend(t, m, "job-1", jobstate.EventStart)
	testsupport.MustSend(t, m, "job-1", jobstate.EventStart)
	testsupport.MustSend(t, m, "job-1", jobstate.EventProgress)

	history, err := store.Transitions(ctx, "job-1")
	if err != nil {
		t.Fatalf("Transitions: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("history len = %d, want 3", len(history))
	}
	want := []jobstate.State{jobstate.StateQueued, jobstate.StateInitializing, jobstate.StateRunning}
	for i, tr := range history {
		if tr.To != want[i] {
			t.Fatalf("history[%d].To = %s, want %s", i, tr.To, want[i])
		}
	}

	got, err := store.Get(ctx, "job-1")
	if err != nil || got == nil {
		t.Fatalf("Get: %v, %v", got, err)
	}
	if got.State != jobstate.StateRunning {
		t.Fatalf("state = %s, want running", got.State)
	}
}

func TestRestoreSkipsTerminalJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	m := jobstate.New(jobstate.WithObserver(store.Observer(nil)))
	for _, id := range []string{"active", "done"} {
		testsupport.MustCreateJob(t, m, id, map[string]any{"id": id})
	}
	testsupport.MustSend(t, m, "active", jobstate.EventStart)
	testsupport.MustSend(t, m, "done", jobstate.EventStart)
	testsupport.MustSend(t, m, "done", jobstate.EventComplete)
	if err := store.SaveAll(ctx, m.Jobs()); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}

	restored := jobstate.New()
	n, err := store.Restore(ctx, restored)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if n != 1 {
		t.Fatalf("restored %d jobs, want 1", n)
	}
	state, ok := restored.State("active")
	if !ok || state != jobstate.StateQueued {
		t.Fatalf("active state = %s (%v)", state, ok)
	}
	if _, ok := restored.State("done"); ok {
		t.Fatal("terminal job should not be restored")
	}
	job, _ := restored.Job("active")
	if len(job.History) != 1 {
		t.Fatalf("restored history len = %d, want 1", len(job.History))
	}

	again, err := store.Restore(ctx, restored)
	if err != nil || again != 0 {
		t.Fatalf("second Restore = %d, %v", again, err)
	}
}

func TestRemovalHookDeletesJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	m := jobstate.New(
		jobstate.WithObserver(store.Observer(nil)),
		jobstate.WithRemovalHook(store.RemovalHook(nil)),
	)
	testsupport.MustCreateJob(t, m, "job-1", nil)
	testsupport.MustSend(t, m, "job-1", jobstate.EventStart)
	m.Remove("job-1")

	got, err := store.Get(ctx, "job-1")
	if err != nil || got != nil {
		t.Fatalf("Get after remove = %v, %v", got, err)
	}
	history, err := store.Transitions(ctx, "job-1")
	if err != nil || len(history) != 0 {
		t.Fatalf("Transitions after remove = %d, %v", len(history), err)
	}
}

func TestListAndClear(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	m := jobstate.New()
	testsupport.MustCreateJob(t, m, "a", nil)
	testsupport.MustCreateJob(t, m, "b", nil)
	testsupport.MustSend(t, m, "b", jobstate.EventCancel)
	if err := store.SaveAll(ctx, m.Jobs()); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}

	cancelled, err := store.List(ctx, jobstate.StateCancelled)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(cancelled) != 1 || cancelled[0].ID != "b" {
		t.Fatalf("cancelled = %#v", cancelled)
	}

	removed, err := store.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}
	all, err := store.List(ctx)
	if err != nil || len(all) != 0 {
		t.Fatalf("List after clear = %d, %v", len(all), err)
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", cfg.Paths.StateDB)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 999"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = db.Close()

	_, err = jobstore.Open(cfg)
	if !errors.Is(err, jobstore.ErrSchemaMismatch) {
		t.Fatalf("Open error = %v, want ErrSchemaMismatch", err)
	}
}

func TestSnapshotHookPersistsFullJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	m := jobstate.New(
		jobstate.WithSnapshotHook(store.SnapshotHook(nil)),
		jobstate.WithObserver(store.Observer(nil)),
	)
	testsupport.MustCreateJob(t, m, "x", map[string]any{"input": "a.wav"})
	testsupport.MustCreateJob(t, m, "fresh", nil)
	testsupport.MustSend(t, m, "x", jobstate.EventStart)
	if !m.Fail("x", jobstate.Failure{Kind: "NetworkTimeout", Message: "reset by peer"}) {
		t.Fatal("fail rejected")
	}
	original, _ := m.Job("x")

	restored := jobstate.New()
	n, err := store.Restore(ctx, restored)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if n != 2 {
		t.Fatalf("restored = %d, want 2", n)
	}

	got, ok := restored.Job("x")
	if !ok || got.State != jobstate.StateRetrying {
		t.Fatalf("x = %+v (%v)", got, ok)
	}
	if got.Metadata["input"] != "a.wav" {
		t.Fatalf("metadata = %#v", got.Metadata)
	}
	if got.LastError == nil || got.LastError.Kind != "NetworkTimeout" {
		t.Fatalf("last error = %#v", got.LastError)
	}
	if !got.CreatedAt.Equal(original.CreatedAt) {
		t.Fatalf("created at = %v, want %v", got.CreatedAt, original.CreatedAt)
	}
	if state, ok := restored.State("fresh"); !ok || state != jobstate.StateCreated {
		t.Fatalf("fresh = %s (%v)", state, ok)
	}
}
