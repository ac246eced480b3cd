// Package metrics exposes the observability hooks used by the job state
// machine, error manager and settings store.
//
// Components accept a Recorder and default to NoopRecorder so metrics stay
// optional. PrometheusRecorder registers its collectors on a caller-supplied
// registry, which keeps tests isolated from the global default registry.
package metrics
