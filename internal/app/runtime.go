package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"dwd/internal/appstate"
	"dwd/internal/config"
	"dwd/internal/errorhandling"
	"dwd/internal/jobstate"
	"dwd/internal/jobstore"
	"dwd/internal/logging"
	"dwd/internal/metrics"
	"dwd/internal/notifications"
	"dwd/internal/settings"
	"dwd/internal/storage"
)

// Runtime holds the assembled components. Fields are read-only after New.
type Runtime struct {
	Config   *config.Config
	Logger   *slog.Logger
	Notifier notifications.Notifier
	// Registry is nil when metrics are disabled.
	Registry *prometheus.Registry
	Recorder metrics.Recorder
	// Errors is nil when errors.history is false; Handler is always set.
	Errors   *errorhandling.Manager
	Handler  errorhandling.Handler
	Settings *settings.Store
	State    *appstate.Manager
	Jobs     *jobstate.Machine
	Retries  *jobstate.RetryManager
	// JobStore is nil unless jobs.persist is set.
	JobStore *jobstore.Store
	// Restored counts jobs loaded from JobStore at startup.
	Restored int

	closers []io.Closer
}

// Option customizes runtime assembly.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	notifier notifications.Notifier
	waiter   func(ctx context.Context, d time.Duration) error
}

// WithLogger uses logger instead of building one from config.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithNotifier uses n instead of building one from config.
func WithNotifier(n notifications.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithRetryWaiter overrides how the retry manager sleeps between attempts.
func WithRetryWaiter(wait func(ctx context.Context, d time.Duration) error) Option {
	return func(o *options) { o.waiter = wait }
}

// New builds a runtime for cfg. Callers must Close it.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Runtime, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	rt := &Runtime{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			_ = rt.Close()
		}
	}()

	if err := rt.initLogger(o.logger); err != nil {
		return nil, err
	}
	if err := rt.initNotifier(o.notifier); err != nil {
		return nil, err
	}
	rt.initMetrics()
	rt.initErrors()
	if err := rt.initSettings(); err != nil {
		return nil, err
	}
	rt.State = appstate.New(appstate.WithLogger(rt.Logger))
	if err := rt.initJobs(ctx, o.waiter); err != nil {
		return nil, err
	}

	ok = true
	rt.Logger.Debug("runtime ready",
		logging.String("settings_backend", cfg.Settings.Backend),
		logging.Bool("metrics", rt.Registry != nil),
		logging.Bool("persist_jobs", rt.JobStore != nil),
		logging.Int("restored_jobs", rt.Restored),
	)
	return rt, nil
}

func (rt *Runtime) initLogger(logger *slog.Logger) error {
	if logger != nil {
		rt.Logger = logger
		return nil
	}
	logger, err := logging.NewFromConfig(rt.Config)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	rt.Logger = logger
	return nil
}

func (rt *Runtime) initNotifier(n notifications.Notifier) error {
	if n != nil {
		rt.Notifier = n
		return nil
	}
	n, closer, err := notifications.FromConfig(rt.Config, rt.Logger)
	if err != nil {
		return fmt.Errorf("build notifier: %w", err)
	}
	rt.Notifier = n
	rt.closers = append(rt.closers, closer)
	return nil
}

func (rt *Runtime) initMetrics() {
	rt.Recorder = metrics.NoopRecorder{}
	if !rt.Config.Metrics.Enabled {
		return
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	rt.Registry = reg
	rt.Recorder = metrics.NewPrometheusRecorder(reg)
}

func (rt *Runtime) initErrors() {
	opts := []errorhandling.ManagerOption{
		errorhandling.WithLogger(rt.Logger),
		errorhandling.WithRecorder(rt.Recorder),
		errorhandling.WithMaxRecords(rt.Config.Errors.MaxRecords),
	}
	if !rt.Config.Errors.History {
		rt.Handler = errorhandling.NewFallbackManager(rt.Notifier, opts...)
		return
	}
	rt.Errors = errorhandling.NewManager(rt.Notifier, opts...)
	rt.Handler = rt.Errors
}

func (rt *Runtime) initSettings() error {
	var persistent storage.Backend
	switch rt.Config.Settings.Backend {
	case config.SettingsBackendSQLite:
		backend, err := storage.OpenSQLiteBackend(rt.Config.Paths.SettingsFile)
		if err != nil {
			return fmt.Errorf("open settings database: %w", err)
		}
		rt.closers = append(rt.closers, backend)
		persistent = backend
	default:
		backend, err := storage.NewFileBackend(rt.Config.Paths.SettingsFile)
		if err != nil {
			return fmt.Errorf("open settings file: %w", err)
		}
		persistent = backend
	}

	rt.Settings = settings.New(persistent, storage.NewMemoryBackend(),
		settings.WithLogger(rt.Logger),
		settings.WithRecorder(rt.Recorder),
	)
	if err := rt.Settings.RegisterSchema(settings.DefaultSchema()); err != nil {
		return fmt.Errorf("register settings: %w", err)
	}
	return nil
}

func (rt *Runtime) initJobs(ctx context.Context, waiter func(context.Context, time.Duration) error) error {
	machineOpts := []jobstate.Option{
		jobstate.WithErrorHandler(rt.Handler),
		jobstate.WithLogger(rt.Logger),
		jobstate.WithRecorder(rt.Recorder),
		jobstate.WithShards(rt.Config.Jobs.Shards),
		jobstate.WithHistoryLimit(rt.Config.Jobs.HistoryLimit),
		jobstate.WithObserver(appstate.JobObserver(rt.State)),
		jobstate.WithRemovalHook(appstate.JobRemovalHook(rt.State)),
	}
	if rt.Config.Jobs.Persist {
		store, err := jobstore.Open(rt.Config)
		if err != nil {
			return fmt.Errorf("open job store: %w", err)
		}
		rt.closers = append(rt.closers, store)
		rt.JobStore = store
		machineOpts = append(machineOpts,
			jobstate.WithSnapshotHook(store.SnapshotHook(rt.Logger)),
			jobstate.WithObserver(store.Observer(rt.Logger)),
			jobstate.WithRemovalHook(store.RemovalHook(rt.Logger)),
		)
	}
	rt.Jobs = jobstate.New(machineOpts...)

	if rt.JobStore != nil {
		restored, err := rt.JobStore.Restore(ctx, rt.Jobs)
		if err != nil {
			return fmt.Errorf("restore jobs: %w", err)
		}
		rt.Restored = restored
		for _, job := range rt.Jobs.Jobs() {
			rt.State.Set(appstate.CategoryJobs, job.ID, string(job.State))
		}
	}

	backoff, err := jobstate.NewBackoff(rt.Config.Retry.Backoff, rt.Config.RetryInitialDelay(), rt.Config.RetryMaxDelay())
	if err != nil {
		return fmt.Errorf("retry backoff: %w", err)
	}
	retryOpts := []jobstate.RetryOption{
		jobstate.WithRetryLogger(rt.Logger),
		jobstate.WithRetryRecorder(rt.Recorder),
	}
	if waiter != nil {
		retryOpts = append(retryOpts, jobstate.WithWaiter(waiter))
	}
	rt.Retries = jobstate.NewRetryManager(rt.Jobs, jobstate.RetryPolicy{
		MaxRetries: rt.Config.Retry.MaxRetries,
		Backoff:    backoff,
	}, retryOpts...)
	return nil
}

// ErrorStatistics returns per-category statistics, or nil when error history
// is disabled.
func (rt *Runtime) ErrorStatistics() map[string]errorhandling.CategoryStats {
	if rt.Errors == nil {
		return nil
	}
	return rt.Errors.Statistics()
}

// Checkpoint rewrites every tracked job to the job store. Jobs are already
// saved as they change, so this only repairs rows whose write failed. It is a
// no-op when persistence is off.
func (rt *Runtime) Checkpoint(ctx context.Context) error {
	if rt.JobStore == nil {
		return nil
	}
	return rt.JobStore.SaveAll(ctx, rt.Jobs.Jobs())
}

// Close flushes notifications and releases storage in reverse order of
// acquisition.
func (rt *Runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
