package errorhandling

import (
	"log/slog"
	"sync"
	"time"

	"dwd/internal/logging"
	"dwd/internal/metrics"
	"dwd/internal/notifications"
)

const defaultMaxRecords = 1000

// ManagerOption configures a Manager or FallbackManager.
type ManagerOption func(*managerOptions)

type managerOptions struct {
	classifier *Classifier
	logger     *slog.Logger
	recorder   metrics.Recorder
	maxRecords int
	now        func() time.Time
}

// WithClassifier replaces DefaultClassifier.
func WithClassifier(c *Classifier) ManagerOption {
	return func(o *managerOptions) {
		if c != nil {
			o.classifier = c
		}
	}
}

// WithLogger sets the manager logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(o *managerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) ManagerOption {
	return func(o *managerOptions) {
		o.recorder = metrics.OrNoop(r)
	}
}

// WithMaxRecords bounds the retained history. Statistics keep counting
// records that have been evicted. Zero keeps every record; negative keeps
// the default.
func WithMaxRecords(n int) ManagerOption {
	return func(o *managerOptions) {
		if n >= 0 {
			o.maxRecords = n
		}
	}
}

// WithClock overrides the record timestamp source.
func WithClock(now func() time.Time) ManagerOption {
	return func(o *managerOptions) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(component string, opts []ManagerOption) managerOptions {
	o := managerOptions{
		classifier: DefaultClassifier(),
		logger:     logging.NewNop(),
		recorder:   metrics.NoopRecorder{},
		maxRecords: defaultMaxRecords,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = o.logger.With(logging.String(logging.FieldComponent, component))
	return o
}

// Manager records every failure of the session with per-category statistics.
type Manager struct {
	notifier notifications.Notifier
	opts     managerOptions

	mu      sync.Mutex
	seq     uint64
	records []Record
	stats   map[string]CategoryStats
}

// NewManager returns a manager that alerts through notifier.
func NewManager(notifier notifications.Notifier, opts ...ManagerOption) *Manager {
	if notifier == nil {
		notifier = notifications.Nop{}
	}
	return &Manager{
		notifier: notifier,
		opts:     buildOptions("errors", opts),
		stats:    make(map[string]CategoryStats),
	}
}

// Classifier returns the classifier used for new records.
func (m *Manager) Classifier() *Classifier {
	return m.opts.classifier
}

// HandleError classifies, records and announces a failure. The record is
// visible to Records and Statistics once HandleError returns.
func (m *Manager) HandleError(kind, message string, opts ...Option) (id string) {
	o := applyOptions(opts)
	retryType := o.classify(m.opts.classifier, kind)

	m.mu.Lock()
	m.seq++
	id = newErrorID(m.seq)
	rec := Record{
		ID:        id,
		Kind:      kind,
		Message:   message,
		Category:  o.category,
		Details:   o.details,
		Timestamp: m.opts.now(),
		RetryType: retryType,
	}
	m.records = append(m.records, rec)
	if overflow := len(m.records) - m.opts.maxRecords; m.opts.maxRecords > 0 && overflow > 0 {
		m.records = append([]Record(nil), m.records[overflow:]...)
	}
	stats := m.stats[o.category]
	if stats.Kinds == nil {
		stats.Kinds = make(map[string]int)
		stats.RetryTypes = make(map[RetryType]int)
	}
	stats.Count++
	stats.Kinds[kind]++
	stats.RetryTypes[retryType]++
	stats.LastSeen = rec.Timestamp
	m.stats[o.category] = stats
	m.mu.Unlock()

	m.opts.recorder.IncError(o.category, string(retryType))
	m.opts.logger.Warn("error recorded",
		logging.String(logging.FieldErrorID, id),
		logging.String(logging.FieldErrorKind, kind),
		logging.String(logging.FieldCategory, o.category),
		logging.String(logging.FieldRetryType, string(retryType)),
		logging.String("message", message),
	)
	notify(m.notifier, m.opts.logger, id, notificationText(kind, message), retryType.NotificationLevel())
	return id
}

// Records returns a copy of the retained history, oldest first.
func (m *Manager) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, len(m.records))
	for i, rec := range m.records {
		out[i] = rec.clone()
	}
	return out
}

// Record returns the retained record with id.
func (m *Manager) Record(id string) (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.records) - 1; i >= 0; i-- {
		if m.records[i].ID == id {
			return m.records[i].clone(), true
		}
	}
	return Record{}, false
}

// Statistics returns per-category aggregates.
func (m *Manager) Statistics() map[string]CategoryStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]CategoryStats, len(m.stats))
	for category, stats := range m.stats {
		out[category] = stats.clone()
	}
	return out
}

// Clear drops the history and statistics. Identifiers keep increasing.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = nil
	m.stats = make(map[string]CategoryStats)
}

// notify calls the notifier once, containing any panic.
func notify(n notifications.Notifier, logger *slog.Logger, id, message string, level notifications.Level) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("notifier panicked",
				logging.String(logging.FieldErrorID, id),
				logging.Any("panic", r),
			)
		}
	}()
	n.Notify(message, level)
}
