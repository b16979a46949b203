package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCronJobMetricsSplitRunsByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	m.now = func() time.Time { return time.Unix(1767225600, 0) }

	const job = "payment-status-sweep"
	m.IncSuccess(job)
	m.IncSuccess(job)
	m.IncFailure(job)
	m.IncSkipped("stock-deduction-repair")
	m.AddProcessed(job, 3)
	m.AddProcessed(job, 0)
	m.ObserveDuration(job, 250*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.runs.WithLabelValues(job, "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues(job, "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("stock-deduction-repair", "skipped")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.processed.WithLabelValues(job)))
	assert.Equal(t, 1767225600.0, testutil.ToFloat64(m.lastSuccess.WithLabelValues(job)))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	hist := sample(mfs, "storefront_cron_job_duration_seconds", map[string]string{"job": job})
	require.NotNil(t, hist)
	assert.Equal(t, uint64(1), hist.GetHistogram().GetSampleCount())
	assert.InDelta(t, 0.25, hist.GetHistogram().GetSampleSum(), 1e-9)
}

func TestCronJobMetricsNilRegistererIsNoop(t *testing.T) {
	m := NewCronJobMetrics(nil)
	m.IncSuccess("job")
	m.AddProcessed("job", 2)

	var unset *CronJobMetrics
	unset.IncFailure("job")
	unset.ObserveDuration("job", time.Second)
}

func TestEmptyJobNameIsLabelledUnknown(t *testing.T) {
	m := NewCronJobMetrics(prometheus.NewRegistry())
	m.IncFailure("")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("unknown", "failure")))
}
