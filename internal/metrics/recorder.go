package metrics

import "time"

// Recorder defines observability hooks for job lifecycle, error and settings
// metrics. Implementations must be safe for concurrent use.
type Recorder interface {
	IncTransition(from, to, event string)
	IncRejectedTransition(from, event string)
	IncError(category, retryType string)
	IncRetry(exhausted bool)
	ObserveRetryDelay(d time.Duration)
	IncSettingChange(category string)
	SetJobs(state string, n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are disabled).
type NoopRecorder struct{}

func (NoopRecorder) IncTransition(string, string, string) {}
func (NoopRecorder) IncRejectedTransition(string, string) {}
func (NoopRecorder) IncError(string, string)              {}
func (NoopRecorder) IncRetry(bool)                        {}
func (NoopRecorder) ObserveRetryDelay(time.Duration)      {}
func (NoopRecorder) IncSettingChange(string)              {}
func (NoopRecorder) SetJobs(string, int)                  {}

// OrNoop returns r, or NoopRecorder when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}
