package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks classification jobs. Methods are safe on a nil receiver.
type Metrics struct {
	Enqueued    *prometheus.CounterVec
	Attempts    *prometheus.CounterVec
	Jobs        *prometheus.CounterVec
	JobDuration *prometheus.HistogramVec
	InFlight    prometheus.Gauge
}

func New() *Metrics {
	return &Metrics{
		Enqueued: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "crimewatch_enrichment_enqueued_total",
			Help: "Classification jobs offered to the dispatcher by kind and result",
		}, []string{"kind", "result"}),
		Attempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "crimewatch_enrichment_attempts_total",
			Help: "Predictor calls made by classification jobs",
		}, []string{"kind"}),
		Jobs: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "crimewatch_enrichment_jobs_total",
			Help: "Finished classification jobs by kind and outcome",
		}, []string{"kind", "outcome"}),
		JobDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crimewatch_enrichment_job_duration_seconds",
			Help:    "Wall time of classification jobs including retries",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30},
		}, []string{"kind"}),
		InFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "crimewatch_enrichment_jobs_in_flight",
			Help: "Classification jobs currently held by a worker",
		}),
	}
}

func (m *Metrics) IncrementEnqueued(kind, result string) {
	if m == nil {
		return
	}
	m.Enqueued.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) IncrementAttempt(kind string) {
	if m == nil {
		return
	}
	m.Attempts.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveJob(kind, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Jobs.WithLabelValues(kind, outcome).Inc()
	m.JobDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (m *Metrics) JobStarted() {
	if m == nil {
		return
	}
	m.InFlight.Inc()
}

func (m *Metrics) JobFinished() {
	if m == nil {
		return
	}
	m.InFlight.Dec()
}
