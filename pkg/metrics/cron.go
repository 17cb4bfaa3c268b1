package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	CronOutcomeSuccess = "success"
	CronOutcomeFailure = "failure"
)

// CronJobMetrics covers scheduled job runs and lock contention between
// cron-worker instances.
type CronJobMetrics struct {
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
	skipped     prometheus.Counter
}

func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	m := &CronJobMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cron_job_runs_total",
			Help: "Cron job executions by outcome.",
		}, []string{"job", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cron_job_duration_seconds",
			Help:    "Cron job run time.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"job"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cron_job_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run per job.",
		}, []string{"job"}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cron_cycles_skipped_total",
			Help: "Cycles skipped because another instance held the lock.",
		}),
	}
	reg.MustRegister(m.runs, m.duration, m.lastSuccess, m.skipped)
	return m
}

// ObserveRun records one execution of job that finished at end.
func (m *CronJobMetrics) ObserveRun(job string, took time.Duration, end time.Time, err error) {
	if m == nil || m.runs == nil {
		return
	}
	job = normalizeLabel(job)
	m.duration.WithLabelValues(job).Observe(took.Seconds())
	if err != nil {
		m.runs.WithLabelValues(job, CronOutcomeFailure).Inc()
		return
	}
	m.runs.WithLabelValues(job, CronOutcomeSuccess).Inc()
	m.lastSuccess.WithLabelValues(job).Set(float64(end.Unix()))
}

func (m *CronJobMetrics) IncSkippedCycle() {
	if m == nil || m.skipped == nil {
		return
	}
	m.skipped.Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
