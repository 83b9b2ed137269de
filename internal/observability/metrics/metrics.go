package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SchedulerMetrics tracks batch job runs, failures and durations.
type SchedulerMetrics struct {
	jobRuns        *prometheus.CounterVec
	jobErrors      *prometheus.CounterVec
	jobTimeouts    *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	itemsProcessed *prometheus.CounterVec
}

// NewSchedulerMetrics registers the scheduler collectors on reg. Tests pass
// their own registry to keep collectors isolated.
func NewSchedulerMetrics(reg prometheus.Registerer) *SchedulerMetrics {
	m := &SchedulerMetrics{
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "servifield_scheduler_job_runs_total",
			Help: "Number of scheduler job invocations.",
		}, []string{"job"}),
		jobErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "servifield_scheduler_job_errors_total",
			Help: "Number of scheduler job invocations that returned an error.",
		}, []string{"job"}),
		jobTimeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "servifield_scheduler_job_timeouts_total",
			Help: "Number of scheduler job invocations cut off by their deadline.",
		}, []string{"job"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "servifield_scheduler_job_duration_seconds",
			Help:    "Scheduler job wall time.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
		itemsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "servifield_scheduler_items_processed_total",
			Help: "Number of items processed across scheduler job runs.",
		}, []string{"job"}),
	}
	reg.MustRegister(m.jobRuns, m.jobErrors, m.jobTimeouts, m.jobDuration, m.itemsProcessed)
	return m
}

func (m *SchedulerMetrics) IncJobRun(job string) {
	m.jobRuns.WithLabelValues(job).Inc()
}

func (m *SchedulerMetrics) IncJobError(job string) {
	m.jobErrors.WithLabelValues(job).Inc()
}

func (m *SchedulerMetrics) IncJobTimeout(job string) {
	m.jobTimeouts.WithLabelValues(job).Inc()
}

func (m *SchedulerMetrics) ObserveJobDuration(job string, d time.Duration) {
	m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

func (m *SchedulerMetrics) AddItemsProcessed(job string, count int) {
	if count <= 0 {
		return
	}
	m.itemsProcessed.WithLabelValues(job).Add(float64(count))
}
