package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "dwd"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	transitions    *prom.CounterVec
	rejected       *prom.CounterVec
	errors         *prom.CounterVec
	retries        *prom.CounterVec
	retryDelay     prom.Histogram
	settingChanges *prom.CounterVec
	jobs           *prom.GaugeVec
}

// NewPrometheusRecorder constructs the collectors and registers them on reg.
// A nil registry gets a fresh private one.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		transitions: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "job_transitions_total",
			Help:      "Accepted job state transitions",
		}, []string{"from", "to", "event"}),
		rejected: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "job_transitions_rejected_total",
			Help:      "Events rejected because no transition was defined",
		}, []string{"from", "event"}),
		errors: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Errors handled by category and retry classification",
		}, []string{"category", "retry_type"}),
		retries: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "job_retries_total",
			Help:      "Retry decisions by outcome",
		}, []string{"result"}),
		retryDelay: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "job_retry_delay_seconds",
			Help:      "Backoff delay applied before a retry",
			Buckets:   prom.DefBuckets,
		}),
		settingChanges: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "setting_changes_total",
			Help:      "Setting values written by category",
		}, []string{"category"}),
		jobs: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs",
			Help:      "Tracked jobs by state",
		}, []string{"state"}),
	}
	reg.MustRegister(pr.transitions, pr.rejected, pr.errors, pr.retries, pr.retryDelay, pr.settingChanges, pr.jobs)
	return pr
}

func (p *PrometheusRecorder) IncTransition(from, to, event string) {
	if p == nil || p.transitions == nil {
		return
	}
	p.transitions.WithLabelValues(from, to, event).Inc()
}

func (p *PrometheusRecorder) IncRejectedTransition(from, event string) {
	if p == nil || p.rejected == nil {
		return
	}
	p.rejected.WithLabelValues(from, event).Inc()
}

func (p *PrometheusRecorder) IncError(category, retryType string) {
	if p == nil || p.errors == nil {
		return
	}
	p.errors.WithLabelValues(category, retryType).Inc()
}

func (p *PrometheusRecorder) IncRetry(exhausted bool) {
	if p == nil || p.retries == nil {
		return
	}
	res := "retried"
	if exhausted {
		res = "exhausted"
	}
	p.retries.WithLabelValues(res).Inc()
}

func (p *PrometheusRecorder) ObserveRetryDelay(d time.Duration) {
	if p == nil || p.retryDelay == nil {
		return
	}
	p.retryDelay.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncSettingChange(category string) {
	if p == nil || p.settingChanges == nil {
		return
	}
	p.settingChanges.WithLabelValues(category).Inc()
}

func (p *PrometheusRecorder) SetJobs(state string, n int) {
	if p == nil || p.jobs == nil {
		return
	}
	p.jobs.WithLabelValues(state).Set(float64(n))
}
