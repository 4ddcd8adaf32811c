package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Router records resource router calls.
type Router struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	rows     *prometheus.CounterVec
}

// NewRouter registers the router collectors on reg.
func NewRouter(reg prometheus.Registerer) (*Router, error) {
	m := &Router{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "records",
			Subsystem: "router",
			Name:      "calls_total",
			Help:      "Resource router calls by operation, delegate kind and result.",
		}, []string{"op", "kind", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "records",
			Subsystem: "router",
			Name:      "call_duration_seconds",
			Help:      "Resource router call latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"op", "kind"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "records",
			Subsystem: "router",
			Name:      "rows_written_total",
			Help:      "Rows inserted, updated or deleted through the router.",
		}, []string{"op"}),
	}
	var err error
	if m.calls, err = register(reg, m.calls); err != nil {
		return nil, err
	}
	if m.duration, err = register(reg, m.duration); err != nil {
		return nil, err
	}
	if m.rows, err = register(reg, m.rows); err != nil {
		return nil, err
	}
	return m, nil
}

// Observe records one call. A nil receiver is a no-op.
func (m *Router) Observe(op, kind string, start time.Time, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.calls.WithLabelValues(op, kind, result).Inc()
	m.duration.WithLabelValues(op, kind).Observe(time.Since(start).Seconds())
}

// RowsWritten adds n affected rows for op.
func (m *Router) RowsWritten(op string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.rows.WithLabelValues(op).Add(float64(n))
}

// HubStats is the view of the change hub exported as metrics.
type HubStats interface {
	Subscribers() int
	Dropped() int64
}

// RegisterHub exports the hub's live subscriptions and dropped deliveries.
func RegisterHub(reg prometheus.Registerer, hub HubStats) error {
	subscribers := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "records",
		Subsystem: "changes",
		Name:      "subscribers",
		Help:      "Live in-process change subscriptions.",
	}, func() float64 { return float64(hub.Subscribers()) })
	dropped := prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: "records",
		Subsystem: "changes",
		Name:      "dropped_total",
		Help:      "Change deliveries dropped because a subscriber buffer was full.",
	}, func() float64 { return float64(hub.Dropped()) })
	for _, c := range []prometheus.Collector{subscribers, dropped} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// register reuses an already registered collector of the same shape.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}
