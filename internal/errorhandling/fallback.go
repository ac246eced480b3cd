package errorhandling

import (
	"sync/atomic"

	"dwd/internal/logging"
	"dwd/internal/notifications"
)

// FallbackManager handles errors without keeping history or statistics.
type FallbackManager struct {
	notifier notifications.Notifier
	opts     managerOptions
	seq      atomic.Uint64
}

// NewFallbackManager returns a history-free handler. The notifier is usually
// the host's log sink.
func NewFallbackManager(notifier notifications.Notifier, opts ...ManagerOption) *FallbackManager {
	if notifier == nil {
		notifier = notifications.Nop{}
	}
	return &FallbackManager{
		notifier: notifier,
		opts:     buildOptions("errors-fallback", opts),
	}
}

// Classifier returns the classifier used to pick notification levels.
func (f *FallbackManager) Classifier() *Classifier {
	return f.opts.classifier
}

// HandleError announces the failure and returns a fresh identifier.
func (f *FallbackManager) HandleError(kind, message string, opts ...Option) string {
	o := applyOptions(opts)
	retryType := o.classify(f.opts.classifier, kind)
	id := newErrorID(f.seq.Add(1))
	f.opts.recorder.IncError(o.category, string(retryType))
	f.opts.logger.Warn("error handled without history",
		logging.String(logging.FieldErrorID, id),
		logging.String(logging.FieldErrorKind, kind),
		logging.String(logging.FieldCategory, o.category),
	)
	notify(f.notifier, f.opts.logger, id, notificationText(kind, message), retryType.NotificationLevel())
	return id
}
