package jobs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports job activity to Prometheus.
type Metrics struct {
	finished *prometheus.CounterVec
	duration *prometheus.HistogramVec
	pending  prometheus.Gauge
	running  prometheus.Gauge
}

// NewMetrics creates and registers the job collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dualsub",
			Subsystem: "jobs",
			Name:      "finished_total",
			Help:      "Jobs that reached a terminal state.",
		}, []string{"type", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dualsub",
			Subsystem: "jobs",
			Name:      "duration_seconds",
			Help:      "Run time of jobs that started.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		}, []string{"type"}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dualsub",
			Subsystem: "jobs",
			Name:      "pending",
			Help:      "Jobs waiting for a worker slot.",
		}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dualsub",
			Subsystem: "jobs",
			Name:      "running",
			Help:      "Jobs currently running.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.finished, m.duration, m.pending, m.running)
	}
	return m
}

func (m *Metrics) setActive(pending, running int) {
	m.pending.Set(float64(pending))
	m.running.Set(float64(running))
}

func (m *Metrics) observeTerminal(job Job, now time.Time) {
	m.finished.WithLabelValues(string(job.Type), string(job.Status)).Inc()
	if job.StartedAt != nil {
		m.duration.WithLabelValues(string(job.Type)).Observe(job.Duration(now).Seconds())
	}
}
