package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Exceeded    prometheus.Counter
	CheckErrors prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Exceeded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "crimewatch_ratelimit_submissions_exceeded_total",
			Help: "Submissions refused because the submitter exceeded the window limit",
		}),
		CheckErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "crimewatch_ratelimit_check_errors_total",
			Help: "Rate limit checks that failed and let the request through",
		}),
	}
}

func (m *Metrics) IncrementExceeded() {
	if m == nil {
		return
	}
	m.Exceeded.Inc()
}

func (m *Metrics) IncrementCheckError() {
	if m == nil {
		return
	}
	m.CheckErrors.Inc()
}
