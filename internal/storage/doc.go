// Package storage provides the key/value backends behind the settings store.
//
// Three implementations satisfy Backend: an in-memory map for transient
// values, a JSON document on disk guarded by a cross-process file lock, and a
// SQLite table for installations that prefer a database. The JSON codec is
// shared so values read back from either durable backend have the same Go
// shapes: integral numbers become int64, other numbers float64, objects
// map[string]any and arrays []any.
package storage
