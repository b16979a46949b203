package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "storefront"

// Run results recorded on storefront_cron_job_runs_total.
const (
	resultSuccess = "success"
	resultFailure = "failure"
	resultSkipped = "skipped"
)

// CronJobMetrics records run outcomes and item counts for scheduled jobs.
// Methods are safe on a nil receiver and on a recorder built without a registerer.
type CronJobMetrics struct {
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	processed   *prometheus.CounterVec
	lastSuccess *prometheus.GaugeVec
	now         func() time.Time
}

func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	opts := func(name, help string) prometheus.Opts {
		return prometheus.Opts{Namespace: namespace, Subsystem: "cron", Name: name, Help: help}
	}
	m := &CronJobMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts(opts(
			"job_runs_total", "Cron job runs by result: success, failure or skipped (lock held elsewhere).")),
			[]string{"job", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "job_duration_seconds",
			Help:      "Wall time of a cron job run.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"job"}),
		processed: prometheus.NewCounterVec(prometheus.CounterOpts(opts(
			"job_items_processed_total", "Orders examined by cron jobs.")),
			[]string{"job"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts(opts(
			"job_last_success_timestamp_seconds", "Unix time of the last successful run; alert when it goes stale.")),
			[]string{"job"}),
		now: time.Now,
	}
	reg.MustRegister(m.runs, m.duration, m.processed, m.lastSuccess)
	return m
}

func (c *CronJobMetrics) ObserveDuration(job string, d time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(job)).Observe(d.Seconds())
}

func (c *CronJobMetrics) IncSuccess(job string) {
	if c.record(job, resultSuccess) {
		c.lastSuccess.WithLabelValues(normalizeLabel(job)).Set(float64(c.now().Unix()))
	}
}

func (c *CronJobMetrics) IncFailure(job string) { c.record(job, resultFailure) }

// IncSkipped counts a run that lost the distributed lock.
func (c *CronJobMetrics) IncSkipped(job string) { c.record(job, resultSkipped) }

func (c *CronJobMetrics) AddProcessed(job string, n int) {
	if c == nil || c.processed == nil || n <= 0 {
		return
	}
	c.processed.WithLabelValues(normalizeLabel(job)).Add(float64(n))
}

func (c *CronJobMetrics) record(job, result string) bool {
	if c == nil || c.runs == nil {
		return false
	}
	c.runs.WithLabelValues(normalizeLabel(job), result).Inc()
	return true
}

// normalizeLabel keeps blank label values from producing an empty series.
func normalizeLabel(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return value
}
