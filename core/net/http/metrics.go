package http

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kochabx/courier/errors"
)

const metricsNamespace = "courier"

const (
	outcomeSuccess   = "success"
	outcomeError     = "error"
	outcomeCancelled = "cancelled"
)

// metrics is nil when the manager was built without WithMetrics; every
// method is a no-op on a nil receiver.
type metrics struct {
	requests      *prometheus.CounterVec
	inFlight      *prometheus.GaugeVec
	duration      *prometheus.HistogramVec
	cancellations *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	return &metrics{
		requests: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "requests_total",
			Help:      "Finished operations by kind and outcome.",
		}, []string{"kind", "outcome"})),
		inFlight: register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "requests_in_flight",
			Help:      "Operations dispatched but not yet finished.",
		}, []string{"kind"})),
		duration: register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "request_duration_seconds",
			Help:      "Time from dispatch to completion.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"})),
		cancellations: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "cancellations_total",
			Help:      "Operations cancelled before they finished.",
		}, []string{"kind"})),
	}
}

// register reuses an identical collector already registered with reg, so
// several managers can share one registry.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func (m *metrics) begin(kind Kind) {
	if m == nil {
		return
	}
	m.inFlight.WithLabelValues(string(kind)).Inc()
}

func (m *metrics) end(kind Kind, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.inFlight.WithLabelValues(string(kind)).Dec()
	m.requests.WithLabelValues(string(kind), outcome).Inc()
	m.duration.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
}

func (m *metrics) cancelled(kind Kind) {
	if m == nil {
		return
	}
	m.cancellations.WithLabelValues(string(kind)).Inc()
}

func outcomeOf(op *operation, err error) string {
	switch {
	case err == nil:
		return outcomeSuccess
	case op.IsCancelled(), errors.Is(err, context.Canceled):
		return outcomeCancelled
	default:
		return outcomeError
	}
}
