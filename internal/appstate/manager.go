package appstate

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"dwd/internal/jobstate"
	"dwd/internal/logging"
)

// Well-known categories. Any non-empty string is accepted.
const (
	CategoryUI         = "ui"
	CategoryAudio      = "audio"
	CategoryProcessing = "processing"
	CategoryJobs       = "jobs"
	CategorySystem     = "system"
)

// Entry is a stored value with its last update time.
type Entry struct {
	Category  string
	Key       string
	Value     any
	UpdatedAt time.Time
}

type bucket struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// Manager is a concurrency-safe two-level map. Categories are locked
// independently; the last write to a key wins.
type Manager struct {
	mu         sync.RWMutex
	categories map[string]*bucket
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock overrides the time source for UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// New returns an empty manager.
func New(opts ...Option) *Manager {
	m := &Manager{
		categories: make(map[string]*bucket),
		logger:     logging.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(logging.String(logging.FieldComponent, "appstate"))
	return m
}

// Set stores value under category/key.
func (m *Manager) Set(category, key string, value any) {
	b := m.bucket(category, true)
	b.mu.Lock()
	b.entries[key] = Entry{Category: category, Key: key, Value: value, UpdatedAt: m.now()}
	b.mu.Unlock()
	m.logger.Debug("state updated",
		logging.String(logging.FieldCategory, category),
		logging.String("key", key),
	)
}

// Get returns the value under category/key.
func (m *Manager) Get(category, key string) (any, bool) {
	entry, ok := m.Entry(category, key)
	return entry.Value, ok
}

// Entry returns the value with its metadata.
func (m *Manager) Entry(category, key string) (Entry, bool) {
	b := m.bucket(category, false)
	if b == nil {
		return Entry{}, false
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	entry, ok := b.entries[key]
	return entry, ok
}

// Delete removes category/key and reports whether it existed.
func (m *Manager) Delete(category, key string) bool {
	b := m.bucket(category, false)
	if b == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.entries[key]; !ok {
		return false
	}
	delete(b.entries, key)
	return true
}

// Category returns a snapshot of every value in category.
func (m *Manager) Category(category string) map[string]any {
	out := make(map[string]any)
	b := m.bucket(category, false)
	if b == nil {
		return out
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for key, entry := range b.entries {
		out[key] = entry.Value
	}
	return out
}

// Categories lists categories that hold at least one value, sorted.
func (m *Manager) Categories() []string {
	m.mu.RLock()
	buckets := make(map[string]*bucket, len(m.categories))
	for name, b := range m.categories {
		buckets[name] = b
	}
	m.mu.RUnlock()

	names := make([]string, 0, len(buckets))
	for name, b := range buckets {
		b.mu.RLock()
		n := len(b.entries)
		b.mu.RUnlock()
		if n > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Clear removes every value in category.
func (m *Manager) Clear(category string) {
	b := m.bucket(category, false)
	if b == nil {
		return
	}
	b.mu.Lock()
	b.entries = make(map[string]Entry)
	b.mu.Unlock()
}

func (m *Manager) bucket(category string, create bool) *bucket {
	m.mu.RLock()
	b := m.categories[category]
	m.mu.RUnlock()
	if b != nil || !create {
		return b
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if b = m.categories[category]; b == nil {
		b = &bucket{entries: make(map[string]Entry)}
		m.categories[category] = b
	}
	return b
}

// JobObserver mirrors every job transition into the jobs category as
// job id -> state name.
func JobObserver(m *Manager) jobstate.Observer {
	return func(t jobstate.Transition) {
		m.Set(CategoryJobs, t.JobID, string(t.To))
	}
}

// JobRemovalHook drops a removed job from the jobs category. Pair it with
// JobObserver through jobstate.WithRemovalHook.
func JobRemovalHook(m *Manager) func(id string) {
	return func(id string) {
		m.Delete(CategoryJobs, id)
	}
}
