package notifications

import (
	"io"
	"log/slog"
	"strings"

	"dwd/internal/config"
)

// FromConfig builds the notifier used by the runtime: a log notifier, plus an
// ntfy publisher filtered by notifications.min_level when a topic is set.
// The returned closer flushes the publisher and is never nil.
func FromConfig(cfg *config.Config, logger *slog.Logger) (Notifier, io.Closer, error) {
	logNotifier := NewLogNotifier(logger)
	if cfg == nil || strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
		return logNotifier, nopCloser{}, nil
	}
	minimum, err := ParseLevel(cfg.Notifications.MinLevel)
	if err != nil {
		return nil, nil, err
	}
	ntfy := NewNtfyNotifier(cfg.Notifications.NtfyTopic, NtfyOptions{
		Timeout:   cfg.NotifyTimeout(),
		QueueSize: cfg.Notifications.QueueSize,
		Logger:    logger,
	})
	return Multi(logNotifier, MinLevel(ntfy, minimum)), ntfy, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
