package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"dwd/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("DWD_NTFY_TOPIC", "")
	t.Chdir(tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "dwd")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.SettingsFile != filepath.Join(wantData, "settings.json") {
		t.Fatalf("unexpected settings file: %q", cfg.Paths.SettingsFile)
	}
	if cfg.Paths.StateDB != filepath.Join(wantData, "jobs.db") {
		t.Fatalf("unexpected state db: %q", cfg.Paths.StateDB)
	}
	if cfg.Settings.Backend != config.SettingsBackendJSON {
		t.Fatalf("expected json settings backend, got %q", cfg.Settings.Backend)
	}
	if cfg.Retry.MaxRetries != config.Default().Retry.MaxRetries {
		t.Fatalf("unexpected max retries: %d", cfg.Retry.MaxRetries)
	}
	if cfg.Notifications.NtfyTopic != "" {
		t.Fatalf("expected no ntfy topic, got %q", cfg.Notifications.NtfyTopic)
	}
}

func TestLoadReadsTOMLAndEnvFallback(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DWD_NTFY_TOPIC", "https://ntfy.example/dwd")
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
data_dir = "` + filepath.ToSlash(filepath.Join(dir, "data")) + `"

[settings]
backend = "SQLite"

[retry]
max_retries = 5
backoff = "linear"
initial_ms = 10
max_ms = 100

[logging]
format = "JSON"

[logging.component_levels]
JobState = "Debug"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected %q to be used, got %q (exists=%v)", path, resolved, exists)
	}
	if cfg.Settings.Backend != config.SettingsBackendSQLite {
		t.Fatalf("expected sqlite backend, got %q", cfg.Settings.Backend)
	}
	if filepath.Base(cfg.Paths.SettingsFile) != "settings.db" {
		t.Fatalf("expected sqlite settings file name, got %q", cfg.Paths.SettingsFile)
	}
	if cfg.Retry.MaxRetries != 5 || cfg.Retry.Backoff != "linear" {
		t.Fatalf("unexpected retry config: %+v", cfg.Retry)
	}
	if cfg.RetryInitialDelay().Milliseconds() != 10 || cfg.RetryMaxDelay().Milliseconds() != 100 {
		t.Fatalf("unexpected retry delays: %v %v", cfg.RetryInitialDelay(), cfg.RetryMaxDelay())
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected json format, got %q", cfg.Logging.Format)
	}
	if cfg.Logging.ComponentLevels["jobstate"] != "debug" {
		t.Fatalf("expected normalized component level, got %v", cfg.Logging.ComponentLevels)
	}
	if cfg.Notifications.NtfyTopic != "https://ntfy.example/dwd" {
		t.Fatalf("expected ntfy topic from env, got %q", cfg.Notifications.NtfyTopic)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[jobs]\nbogus = 1\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected unknown key to fail parsing")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"backend", func(c *config.Config) { c.Settings.Backend = "redis" }, "settings.backend"},
		{"shards", func(c *config.Config) { c.Jobs.Shards = 0 }, "jobs.shards"},
		{"retries", func(c *config.Config) { c.Retry.MaxRetries = -1 }, "retry.max_retries"},
		{"backoff", func(c *config.Config) { c.Retry.Backoff = "random" }, "retry.backoff"},
		{"delays", func(c *config.Config) { c.Retry.InitialMillis = 10; c.Retry.MaxMillis = 5 }, "retry.max_ms"},
		{"min level", func(c *config.Config) { c.Notifications.MinLevel = "loud" }, "notifications.min_level"},
		{"format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestSampleConfigParses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var cfg config.Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("sample config does not parse: %v", err)
	}
	if cfg.Retry.Backoff != "exponential" {
		t.Fatalf("unexpected sample backoff: %q", cfg.Retry.Backoff)
	}
}

func TestEnsureDirectoriesCreatesParents(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.SettingsFile = filepath.Join(base, "conf", "settings.json")
	cfg.Paths.StateDB = filepath.Join(base, "db", "jobs.db")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{"data", "logs", "conf", "db"} {
		if info, err := os.Stat(filepath.Join(base, dir)); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s to exist: %v", dir, err)
		}
	}
}
