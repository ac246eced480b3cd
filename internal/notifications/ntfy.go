package notifications

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"dwd/internal/logging"
)

const userAgent = "dwd/0.1.0"

const (
	defaultQueueSize   = 64
	defaultSendTimeout = 10 * time.Second
)

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

// NtfyOptions tunes an NtfyNotifier.
type NtfyOptions struct {
	Timeout   time.Duration
	QueueSize int
	Logger    *slog.Logger
	Client    *http.Client
}

// NtfyNotifier publishes notifications to an ntfy topic URL.
type NtfyNotifier struct {
	endpoint string
	client   *http.Client
	timeout  time.Duration
	logger   *slog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan payload
	wg     sync.WaitGroup

	dropped atomic.Int64
}

// NewNtfyNotifier starts a publisher for endpoint. Call Close to flush queued
// notifications and stop the sender.
func NewNtfyNotifier(endpoint string, opts NtfyOptions) *NtfyNotifier {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	size := opts.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	n := &NtfyNotifier{
		endpoint: strings.TrimSpace(endpoint),
		client:   client,
		timeout:  timeout,
		logger:   logging.NewComponentLogger(opts.Logger, "ntfy"),
		queue:    make(chan payload, size),
	}
	n.wg.Add(1)
	go n.run()
	return n
}

// Notify queues message for delivery. It never blocks; when the queue is full
// or the notifier is closed the message is dropped.
func (n *NtfyNotifier) Notify(message string, level Level) {
	data := buildPayload(message, level)

	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		n.dropped.Add(1)
		return
	}
	select {
	case n.queue <- data:
	default:
		n.dropped.Add(1)
		n.logger.Warn("ntfy queue full; dropping notification",
			logging.String("level_name", string(level)),
		)
	}
}

// Send delivers a notification synchronously.
func (n *NtfyNotifier) Send(ctx context.Context, message string, level Level) error {
	return n.send(ctx, buildPayload(message, level))
}

// Dropped returns the number of notifications discarded so far.
func (n *NtfyNotifier) Dropped() int64 {
	return n.dropped.Load()
}

// Close stops accepting notifications and waits for queued ones to be sent.
func (n *NtfyNotifier) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	close(n.queue)
	n.mu.Unlock()
	n.wg.Wait()
	return nil
}

func (n *NtfyNotifier) run() {
	defer n.wg.Done()
	for data := range n.queue {
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		if err := n.send(ctx, data); err != nil {
			n.logger.Warn("ntfy delivery failed", logging.Error(err))
		}
		cancel()
	}
}

func buildPayload(message string, level Level) payload {
	data := payload{
		title:   "dwd - " + titleFor(level),
		message: strings.TrimSpace(message),
		tags:    []string{"dwd", string(level)},
	}
	switch level {
	case LevelDebug:
		data.priority = "min"
	case LevelInfo:
		data.priority = "low"
	case LevelError:
		data.priority = "high"
		data.tags = append(data.tags, "alert")
	case LevelCritical:
		data.priority = "urgent"
		data.tags = append(data.tags, "alert")
	}
	return data
}

func titleFor(level Level) string {
	switch level {
	case LevelDebug:
		return "Debug"
	case LevelWarning:
		return "Warning"
	case LevelError:
		return "Error"
	case LevelCritical:
		return "Critical"
	default:
		return "Info"
	}
}

func (n *NtfyNotifier) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil || n.endpoint == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
