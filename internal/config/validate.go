package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSettings(); err != nil {
		return err
	}
	if err := c.validateJobs(); err != nil {
		return err
	}
	if err := c.validateRetry(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateErrors(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateSettings() error {
	switch c.Settings.Backend {
	case SettingsBackendJSON, SettingsBackendSQLite:
		return nil
	default:
		return fmt.Errorf("settings.backend must be %q or %q, got %q", SettingsBackendJSON, SettingsBackendSQLite, c.Settings.Backend)
	}
}

func (c *Config) validateJobs() error {
	if c.Jobs.Shards <= 0 {
		return errors.New("jobs.shards must be positive")
	}
	if c.Jobs.HistoryLimit < 0 {
		return errors.New("jobs.history_limit must be >= 0")
	}
	return nil
}

func (c *Config) validateRetry() error {
	if c.Retry.MaxRetries < 0 {
		return errors.New("retry.max_retries must be >= 0")
	}
	switch c.Retry.Backoff {
	case "fixed", "linear", "exponential":
	default:
		return fmt.Errorf("retry.backoff must be fixed, linear or exponential, got %q", c.Retry.Backoff)
	}
	if c.Retry.InitialMillis < 0 {
		return errors.New("retry.initial_ms must be >= 0")
	}
	if c.Retry.MaxMillis < c.Retry.InitialMillis {
		return errors.New("retry.max_ms must be >= retry.initial_ms")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	if c.Notifications.QueueSize <= 0 {
		return errors.New("notifications.queue_size must be positive")
	}
	switch c.Notifications.MinLevel {
	case "debug", "info", "warning", "error", "critical":
	default:
		return fmt.Errorf("notifications.min_level: unsupported value %q", c.Notifications.MinLevel)
	}
	return nil
}

func (c *Config) validateErrors() error {
	if c.Errors.MaxRecords < 0 {
		return errors.New("errors.max_records must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}
