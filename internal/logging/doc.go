// Package logging assembles structured slog loggers and formatting helpers used
// across dwd components.
//
// It owns the console and JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so job workers can tag log lines with the
// job they are driving. Components obtain a tagged logger through
// NewComponentLogger, which also applies per-component level overrides from
// configuration. A no-op logger is provided for tests and wiring code that
// cannot fail.
package logging
