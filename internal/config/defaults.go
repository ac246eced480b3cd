package config

const (
	defaultDataDir            = "~/.local/share/dwd"
	defaultLogDir             = "~/.local/share/dwd/logs"
	defaultSettingsFileName   = "settings.json"
	defaultStateDBName        = "jobs.db"
	defaultSettingsBackend    = SettingsBackendJSON
	defaultJobShards          = 32
	defaultHistoryLimit       = 32
	defaultMaxRetries         = 3
	defaultRetryBackoff       = "exponential"
	defaultRetryInitialMillis = 500
	defaultRetryMaxMillis     = 30000
	defaultNotifyTimeout      = 10
	defaultNotifyQueueSize    = 64
	defaultNotifyMinLevel     = "warning"
	defaultErrorsMaxRecords   = 1000
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultMetricsEnabled     = true
	envNtfyTopic              = "DWD_NTFY_TOPIC"
	envLogLevel               = "DWD_LOG_LEVEL"
	defaultConfigRelativePath = "~/.config/dwd/config.toml"
	projectConfigFileName     = "dwd.toml"
)

// Settings backend identifiers accepted by settings.backend.
const (
	SettingsBackendJSON   = "json"
	SettingsBackendSQLite = "sqlite"
)

// Default returns a Config populated with repository defaults. Derived paths
// (settings_file, state_db) are left empty and resolved against data_dir
// during normalization.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Settings: Settings{
			Backend: defaultSettingsBackend,
		},
		Jobs: Jobs{
			Shards:       defaultJobShards,
			HistoryLimit: defaultHistoryLimit,
		},
		Retry: Retry{
			MaxRetries:    defaultMaxRetries,
			Backoff:       defaultRetryBackoff,
			InitialMillis: defaultRetryInitialMillis,
			MaxMillis:     defaultRetryMaxMillis,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			QueueSize:      defaultNotifyQueueSize,
			MinLevel:       defaultNotifyMinLevel,
		},
		Errors: Errors{
			MaxRecords: defaultErrorsMaxRecords,
			History:    true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Metrics: Metrics{
			Enabled: defaultMetricsEnabled,
		},
	}
}
