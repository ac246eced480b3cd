// Package config loads, normalizes, and validates dwd configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// DWD_NTFY_TOPIC. The Config type centralizes every knob the runtime and CLI
// need: where the durable settings document and job database live, which
// settings backend to use, retry policy for failed jobs, notification routing,
// and log output.
//
// Always obtain configuration through this package so downstream code receives
// expanded paths, canonical log formats, and clear validation errors.
package config
