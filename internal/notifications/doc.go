// Package notifications delivers user-facing alerts raised by the error
// managers and the CLI.
//
// Notifier is the single hook the core depends on. Implementations log
// through slog, publish to an ntfy topic over HTTP, fan out to several
// notifiers, or do nothing. The ntfy publisher sends from a background
// goroutine behind a bounded queue so callers on hot paths never wait on the
// network; when the queue is full the notification is dropped and counted.
package notifications
