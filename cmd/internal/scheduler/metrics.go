package scheduler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	resultOK      = "ok"
	resultError   = "error"
	resultPanic   = "panic"
	resultSkipped = "skipped"
)

// Metrics records job outcomes. A nil *Metrics records nothing.
type Metrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the job collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bakery_job_runs_total",
			Help: "Maintenance job runs, by job and result.",
		}, []string{"job", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bakery_job_duration_seconds",
			Help:    "Duration of completed maintenance job runs.",
			Buckets: prometheus.ExponentialBuckets(0.005, 4, 8),
		}, []string{"job"}),
	}

	if reg != nil {
		if err := reg.Register(m.runs); err != nil {
			return nil, err
		}
		if err := reg.Register(m.duration); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observe(job, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(job, result).Inc()
	if result != resultSkipped {
		m.duration.WithLabelValues(job).Observe(d.Seconds())
	}
}
