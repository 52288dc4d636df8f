package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks fan-out. Methods are safe on a nil receiver.
type Metrics struct {
	Delivered      prometheus.Counter
	Dropped        prometheus.Counter
	SinkFailures   prometheus.Counter
	ActiveSessions prometheus.Gauge
}

func NewMetrics() *Metrics {
	return &Metrics{
		Delivered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "crimewatch_notify_events_delivered_total",
			Help: "Commit events buffered for reviewer sessions",
		}),
		Dropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "crimewatch_notify_events_dropped_total",
			Help: "Commit events pushed out of a full session buffer",
		}),
		SinkFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "crimewatch_notify_sink_failures_total",
			Help: "Commit events the downstream sink failed to accept",
		}),
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "crimewatch_notify_active_sessions",
			Help: "Registered reviewer sessions",
		}),
	}
}

func (m *Metrics) IncrementDelivered(dropped bool) {
	if m == nil {
		return
	}
	m.Delivered.Inc()
	if dropped {
		m.Dropped.Inc()
	}
}

func (m *Metrics) IncrementSinkFailure() {
	if m == nil {
		return
	}
	m.SinkFailures.Inc()
}

func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}
