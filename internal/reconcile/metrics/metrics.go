package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks the reconciler. Methods are safe on a nil receiver.
type Metrics struct {
	Snapshots      *prometheus.CounterVec
	Resubscribes   prometheus.Counter
	ReaderDrops    prometheus.Counter
	OverlayReports prometheus.Gauge
}

func New() *Metrics {
	return &Metrics{
		Snapshots: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "crimewatch_reconcile_snapshots_total",
			Help: "Feed snapshots by result: incoming, retained (local value kept) or out_of_order (older than the last applied)",
		}, []string{"result"}),
		Resubscribes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "crimewatch_reconcile_resubscribes_total",
			Help: "Times the snapshot feed ended or failed and was subscribed again",
		}),
		ReaderDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "crimewatch_reconcile_reader_drops_total",
			Help: "Merged views not delivered to a reader whose buffer was full",
		}),
		OverlayReports: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "crimewatch_reconcile_overlay_reports",
			Help: "Reports with local results the feed has not yet confirmed",
		}),
	}
}

func (m *Metrics) IncrementSnapshot(retained bool) {
	if m == nil {
		return
	}
	result := "incoming"
	if retained {
		result = "retained"
	}
	m.Snapshots.WithLabelValues(result).Inc()
}

func (m *Metrics) IncrementOutOfOrder() {
	if m == nil {
		return
	}
	m.Snapshots.WithLabelValues("out_of_order").Inc()
}

func (m *Metrics) IncrementResubscribe() {
	if m == nil {
		return
	}
	m.Resubscribes.Inc()
}

func (m *Metrics) IncrementReaderDrop() {
	if m == nil {
		return
	}
	m.ReaderDrops.Inc()
}

func (m *Metrics) SetOverlaySize(n int) {
	if m == nil {
		return
	}
	m.OverlayReports.Set(float64(n))
}
