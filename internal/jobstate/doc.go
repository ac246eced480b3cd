// Package jobstate tracks audio processing jobs through their lifecycle.
//
// A Machine owns every job and applies events through a fixed transition
// table; an event that the table does not define for the current state is
// rejected and leaves the job untouched. Failures are recorded through an
// errorhandling.Handler and classified for retry: transient and resource
// failures park the job in StateRetrying, everything else fails it for good.
// RetryManager wraps a Machine with a retry cap and backoff schedule.
//
// Jobs live in hashed shards so lookups on different jobs never contend, and
// each job carries its own mutex so transitions of one job are serialized
// while other jobs proceed in parallel.
package jobstate
