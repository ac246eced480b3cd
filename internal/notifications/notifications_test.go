package notifications_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"dwd/internal/config"
	"dwd/internal/notifications"
)

type capturedRequest struct {
	body     string
	title    string
	tags     string
	priority string
}

func newNtfyServer(t *testing.T, status int) (*httptest.Server, func() []capturedRequest) {
	t.Helper()
	var (
		mu       sync.Mutex
		requests []capturedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		requests = append(requests, capturedRequest{
			body:     string(body),
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
		})
		mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []capturedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]capturedRequest(nil), requests...)
	}
}

func TestNtfyNotifierDeliversOnClose(t *testing.T) {
	srv, requests := newNtfyServer(t, http.StatusOK)
	n := notifications.NewNtfyNotifier(srv.URL, notifications.NtfyOptions{Timeout: time.Second})

	n.Notify("Decoder timed out", notifications.LevelWarning)
	n.Notify("Disk full", notifications.LevelError)
	if err := n.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got := requests()
	if len(got) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(got))
	}
	if got[0].body != "Decoder timed out" || got[0].title != "dwd - Warning" {
		t.Fatalf("unexpected first request %+v", got[0])
	}
	if got[1].priority != "high" || !strings.Contains(got[1].tags, "alert") {
		t.Fatalf("unexpected error request %+v", got[1])
	}
}

func TestNtfyNotifierDropsAfterClose(t *testing.T) {
	srv, requests := newNtfyServer(t, http.StatusOK)
	n := notifications.NewNtfyNotifier(srv.URL, notifications.NtfyOptions{})
	if err := n.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := n.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	n.Notify("late", notifications.LevelInfo)
	if n.Dropped() != 1 {
		t.Fatalf("expected 1 dropped notification, got %d", n.Dropped())
	}
	if len(requests()) != 0 {
		t.Fatal("expected no delivery after close")
	}
}

func TestNtfyNotifierDropsWhenQueueFull(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := notifications.NewNtfyNotifier(srv.URL, notifications.NtfyOptions{QueueSize: 1, Timeout: 5 * time.Second})
	for i := 0; i < 10; i++ {
		n.Notify("burst", notifications.LevelInfo)
	}
	if n.Dropped() == 0 {
		t.Fatal("expected some notifications to be dropped")
	}
	close(release)
	_ = n.Close()
}

func TestNtfyNotifierSendReportsHTTPErrors(t *testing.T) {
	srv, _ := newNtfyServer(t, http.StatusInternalServerError)
	n := notifications.NewNtfyNotifier(srv.URL, notifications.NtfyOptions{})
	defer n.Close()
	if err := n.Send(context.Background(), "test", notifications.LevelInfo); err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestFromConfigWithoutTopicLogs(t *testing.T) {
	cfg := config.Default()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	notifier, closer, err := notifications.FromConfig(&cfg, logger)
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	defer closer.Close()
	notifier.Notify("settings saved", notifications.LevelInfo)
	if !strings.Contains(buf.String(), "settings saved") {
		t.Fatalf("expected log output, got %q", buf.String())
	}
}

func TestFromConfigFiltersNtfyByMinLevel(t *testing.T) {
	srv, requests := newNtfyServer(t, http.StatusOK)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	cfg.Notifications.MinLevel = "error"

	notifier, closer, err := notifications.FromConfig(&cfg, nil)
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	notifier.Notify("just a warning", notifications.LevelWarning)
	notifier.Notify("real problem", notifications.LevelError)
	if err := closer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got := requests()
	if len(got) != 1 || got[0].body != "real problem" {
		t.Fatalf("expected only the error to be published, got %+v", got)
	}
}

func TestMultiAndFunc(t *testing.T) {
	var got []string
	record := notifications.Func(func(message string, level notifications.Level) {
		got = append(got, string(level)+":"+message)
	})
	notifications.Multi(nil, record, record).Notify("hi", notifications.LevelInfo)
	if len(got) != 2 || got[0] != "info:hi" {
		t.Fatalf("unexpected fan-out %v", got)
	}
	if _, ok := notifications.Multi().(notifications.Nop); !ok {
		t.Fatal("expected empty Multi to be Nop")
	}
}

func TestParseLevel(t *testing.T) {
	level, err := notifications.ParseLevel("WARN")
	if err != nil || level != notifications.LevelWarning {
		t.Fatalf("ParseLevel(WARN) = %v, %v", level, err)
	}
	if _, err := notifications.ParseLevel("loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
	if !notifications.LevelCritical.AtLeast(notifications.LevelError) {
		t.Fatal("critical should be at least error")
	}
}
