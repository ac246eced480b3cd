// Package sqliteutil holds the SQLite plumbing shared by the settings backend
// and the job store: opening a database with the pragmas both rely on,
// retrying statements that hit a locked database, and versioned schema
// creation.
package sqliteutil
