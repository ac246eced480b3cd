package testsupport

import (
	"path/filepath"
	"testing"

	"dwd/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Every path lives under one temp dir, notifications are disabled and metrics
// are off unless an option turns them on.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.SettingsFile = filepath.Join(base, "data", "settings.json")
	cfgVal.Paths.StateDB = filepath.Join(base, "data", "jobs.db")
	cfgVal.Notifications.NtfyTopic = ""
	cfgVal.Metrics.Enabled = false
	cfgVal.Retry.InitialMillis = 1
	cfgVal.Retry.MaxMillis = 5

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithSQLiteSettings switches the settings backend to SQLite.
func WithSQLiteSettings() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Settings.Backend = config.SettingsBackendSQLite
		b.cfg.Paths.SettingsFile = filepath.Join(b.baseDir, "data", "settings.db")
	}
}

// WithPersistentJobs enables the SQLite job store.
func WithPersistentJobs() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Jobs.Persist = true
	}
}

// WithNtfyTopic points notifications at the given endpoint.
func WithNtfyTopic(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = topic
	}
}

// WithMetrics turns the Prometheus recorder on.
func WithMetrics() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Metrics.Enabled = true
	}
}

// WithMaxRetries overrides the retry cap.
func WithMaxRetries(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Retry.MaxRetries = n
	}
}

// BaseDir returns the temp root NewConfig created for cfg.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
