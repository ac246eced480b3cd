// Package settings implements the validated, observable settings store.
//
// Keys are registered with a default, an optional validator and a
// persistence flag. Persistent keys live in a durable storage.Backend while
// transient ones live in a second backend (usually memory) that is discarded
// at exit. Writes are validated before they reach a backend, and every
// accepted write is announced to change callbacks with the previous raw
// backend value.
//
// DefaultSchema describes the application settings registered at startup.
package settings
