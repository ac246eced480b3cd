package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"dwd/internal/testsupport"
)

func TestNotifyTestDisabledWithoutTopic(t *testing.T) {
	env := setupCLITestEnv(t)

	out := env.run(t, "notify", "test")
	requireContains(t, out, "Notifications disabled")
}

func TestNotifyTestPostsToTopic(t *testing.T) {
	var (
		mu   sync.Mutex
		body string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		body = string(data)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	env := setupCLITestEnv(t, testsupport.WithNtfyTopic(server.URL))
	out := env.run(t, "notify", "test", "--message", "hello from tests")
	requireContains(t, out, "Test notification sent")

	mu.Lock()
	defer mu.Unlock()
	if body != "hello from tests" {
		t.Fatalf("posted body = %q", body)
	}
}

func TestNotifyTestReportsServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	env := setupCLITestEnv(t, testsupport.WithNtfyTopic(server.URL))
	if _, _, err := runCLI(t, []string{"notify", "test"}, env.configPath); err == nil {
		t.Fatal("expected error for failing topic")
	}
}
