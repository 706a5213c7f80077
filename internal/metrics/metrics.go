// Package metrics holds the Prometheus instruments of the storage layer.
//
// Components receive a *Metrics; every method is safe on a nil receiver so
// metrics stay optional in tests and tools.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "numass"

// Metrics groups the storage instruments.
type Metrics struct {
	PointsDecoded   *prometheus.CounterVec
	PointsDropped   *prometheus.CounterVec
	ChildrenSkipped prometheus.Counter
	RefreshLatency  prometheus.Histogram
	Pushes          prometheus.Counter
	PushedBytes     prometheus.Counter
}

// New creates the instruments and registers them with reg, if not nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PointsDecoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loader",
			Name:      "points_decoded_total",
			Help:      "Points decoded, by wire format.",
		}, []string{"format"}),
		PointsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loader",
			Name:      "points_dropped_total",
			Help:      "Point fragments omitted because they failed to decode, by error code.",
		}, []string{"reason"}),
		ChildrenSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tree",
			Name:      "children_skipped_total",
			Help:      "Tree children skipped during refresh after an I/O failure.",
		}),
		RefreshLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tree",
			Name:      "refresh_seconds",
			Help:      "Duration of shelf refreshes.",
			Buckets:   []float64{1e-3, 1e-2, 1e-1, 1, 10, 60},
		}),
		Pushes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tree",
			Name:      "pushes_total",
			Help:      "Run archives pushed.",
		}),
		PushedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tree",
			Name:      "pushed_bytes_total",
			Help:      "Bytes written by pushes.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.PointsDecoded,
			m.PointsDropped,
			m.ChildrenSkipped,
			m.RefreshLatency,
			m.Pushes,
			m.PushedBytes,
		)
	}
	return m
}

// PointDecoded counts a decoded point.
func (m *Metrics) PointDecoded(format string) {
	if m == nil {
		return
	}
	m.PointsDecoded.WithLabelValues(format).Inc()
}

// PointDropped counts an omitted point.
func (m *Metrics) PointDropped(reason string) {
	if m == nil {
		return
	}
	m.PointsDropped.WithLabelValues(reason).Inc()
}

// ChildSkipped counts a tree child skipped during refresh.
func (m *Metrics) ChildSkipped() {
	if m == nil {
		return
	}
	m.ChildrenSkipped.Inc()
}

// ObserveRefresh records the duration of a refresh started at start.
func (m *Metrics) ObserveRefresh(start time.Time) {
	if m == nil {
		return
	}
	m.RefreshLatency.Observe(time.Since(start).Seconds())
}

// Pushed counts a pushed archive of size bytes.
func (m *Metrics) Pushed(size int) {
	if m == nil {
		return
	}
	m.Pushes.Inc()
	m.PushedBytes.Add(float64(size))
}
