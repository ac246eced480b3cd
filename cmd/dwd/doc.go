// Command dwd hosts the job lifecycle core: it loads configuration, builds
// the runtime and exposes settings, job simulation, error classification
// and notification checks as cobra subcommands.
package main
