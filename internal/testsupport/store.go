package testsupport

import (
	"testing"

	"dwd/internal/config"
	"dwd/internal/jobstate"
	"dwd/internal/jobstore"
)

// MustOpenStore opens a jobstore.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *jobstore.Store {
	t.Helper()

	store, err := jobstore.Open(cfg)
	if err != nil {
		t.Fatalf("jobstore.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustCreateJob creates id on m and fails the test if it already exists.
func MustCreateJob(t testing.TB, m *jobstate.Machine, id string, metadata map[string]any) {
	t.Helper()

	if !m.CreateJob(id, metadata) {
		t.Fatalf("CreateJob(%q) rejected", id)
	}
}

// MustSend sends event to id and fails the test when it is rejected.
func MustSend(t testing.TB, m *jobstate.Machine, id string, event jobstate.Event) {
	t.Helper()

	if !m.SendEvent(id, event) {
		state, _ := m.State(id)
		t.Fatalf("SendEvent(%q, %s) rejected in state %s", id, event, state)
	}
}
