package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks ledger writes. Methods are safe on a nil receiver.
type Metrics struct {
	DeltasApplied     *prometheus.CounterVec
	WriteRetries      prometheus.Counter
	WritesExhausted   prometheus.Counter
	SubmittersBlocked prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		DeltasApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "crimewatch_credibility_deltas_total",
			Help: "Credibility deltas by direction and whether they were applied or deduplicated",
		}, []string{"direction", "result"}),
		WriteRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "crimewatch_credibility_write_retries_total",
			Help: "Ledger writes retried after a store failure",
		}),
		WritesExhausted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "crimewatch_credibility_write_exhausted_total",
			Help: "Ledger writes that failed after all attempts",
		}),
		SubmittersBlocked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "crimewatch_credibility_submitters_blocked_total",
			Help: "Deltas that brought a submitter's score to zero",
		}),
	}
}

func (m *Metrics) IncrementApplied(delta int, applied bool) {
	if m == nil {
		return
	}
	direction := "neutral"
	switch {
	case delta > 0:
		direction = "reward"
	case delta < 0:
		direction = "penalty"
	}
	result := "applied"
	if !applied {
		result = "duplicate"
	}
	m.DeltasApplied.WithLabelValues(direction, result).Inc()
}

func (m *Metrics) IncrementRetry() {
	if m == nil {
		return
	}
	m.WriteRetries.Inc()
}

func (m *Metrics) IncrementExhausted() {
	if m == nil {
		return
	}
	m.WritesExhausted.Inc()
}

func (m *Metrics) IncrementBlocked() {
	if m == nil {
		return
	}
	m.SubmittersBlocked.Inc()
}
