package metrics

import (
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorderCounters(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)

	pr.IncTransition("created", "queued", "start")
	pr.IncTransition("created", "queued", "start")
	pr.IncRejectedTransition("completed", "start")
	pr.IncError("AUDIO", "transient")
	pr.IncRetry(false)
	pr.IncRetry(true)
	pr.ObserveRetryDelay(150 * time.Millisecond)
	pr.IncSettingChange("ui")
	pr.SetJobs("running", 3)

	assert.Equal(t, 2.0, testutil.ToFloat64(pr.transitions.WithLabelValues("created", "queued", "start")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pr.rejected.WithLabelValues("completed", "start")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pr.errors.WithLabelValues("AUDIO", "transient")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pr.retries.WithLabelValues("exhausted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pr.settingChanges.WithLabelValues("ui")))
	assert.Equal(t, 3.0, testutil.ToFloat64(pr.jobs.WithLabelValues("running")))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mfs)
}

func TestPrometheusRecorderNilSafe(t *testing.T) {
	var pr *PrometheusRecorder
	assert.NotPanics(t, func() {
		pr.IncTransition("a", "b", "c")
		pr.IncError("x", "y")
		pr.SetJobs("running", 1)
	})
}

func TestOrNoop(t *testing.T) {
	assert.IsType(t, NoopRecorder{}, OrNoop(nil))
	pr := NewPrometheusRecorder(nil)
	assert.Same(t, pr, OrNoop(pr))
}
