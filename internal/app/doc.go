// Package app assembles the dwd runtime from configuration.
//
// Runtime is the only place that picks concrete implementations: the
// notifier, the metrics recorder, the error handler, the settings backends,
// the job machine with its observers and the optional job store. Everything
// below it receives collaborators through options.
package app
