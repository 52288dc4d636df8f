package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks submissions. Methods are safe on a nil receiver.
type Metrics struct {
	Outcomes         *prometheus.CounterVec
	SubmitDuration   prometheus.Histogram
	VerifyFailures   *prometheus.CounterVec
	LedgerWarnings   prometheus.Counter
	EnqueueFailures  prometheus.Counter
	ValidationErrors prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Outcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "crimewatch_intake_outcomes_total",
			Help: "Submissions by terminal outcome",
		}, []string{"outcome"}),
		SubmitDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "crimewatch_intake_submit_duration_seconds",
			Help:    "Time to reach a submission outcome",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
		}),
		VerifyFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "crimewatch_intake_verify_failures_total",
			Help: "Authenticity checks that failed and fell back to manual review",
		}, []string{"category"}),
		LedgerWarnings: promauto.NewCounter(prometheus.CounterOpts{
			Name: "crimewatch_intake_ledger_warnings_total",
			Help: "Submissions returned with a pending credibility update",
		}),
		EnqueueFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "crimewatch_intake_enqueue_failures_total",
			Help: "Committed reports whose classification job could not be scheduled",
		}),
		ValidationErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "crimewatch_intake_validation_errors_total",
			Help: "Drafts rejected before verification",
		}),
	}
}

func (m *Metrics) ObserveOutcome(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Outcomes.WithLabelValues(outcome).Inc()
	m.SubmitDuration.Observe(d.Seconds())
}

func (m *Metrics) IncrementVerifyFailure(category string) {
	if m == nil {
		return
	}
	m.VerifyFailures.WithLabelValues(category).Inc()
}

func (m *Metrics) IncrementLedgerWarning() {
	if m == nil {
		return
	}
	m.LedgerWarnings.Inc()
}

func (m *Metrics) IncrementEnqueueFailure() {
	if m == nil {
		return
	}
	m.EnqueueFailures.Inc()
}

func (m *Metrics) IncrementValidationError() {
	if m == nil {
		return
	}
	m.ValidationErrors.Inc()
}
