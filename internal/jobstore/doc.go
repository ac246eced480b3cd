// Package jobstore persists job snapshots and transition history in SQLite
// so a restarted process can restore unfinished jobs into a
// jobstate.Machine.
//
// The schema is versioned; a database created by a different schema version
// is rejected with ErrSchemaMismatch rather than migrated.
package jobstore
