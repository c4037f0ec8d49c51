package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EscrowMetrics holds the Prometheus collectors of the escrow node.
type EscrowMetrics struct {
	calls      *prometheus.CounterVec
	callTime   *prometheus.HistogramVec
	promises   *prometheus.CounterVec
	dropped    prometheus.Counter
	queueDepth prometheus.Gauge
	resets     prometheus.Counter
}

var (
	escrowOnce     sync.Once
	escrowRegistry *EscrowMetrics
)

// Escrow returns the lazily registered escrow collectors.
func Escrow() *EscrowMetrics {
	escrowOnce.Do(func() {
		escrowRegistry = &EscrowMetrics{
			calls: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "escrow",
				Subsystem: "contract",
				Name:      "calls_total",
				Help:      "Contract calls segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			callTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "escrow",
				Subsystem: "contract",
				Name:      "call_duration_seconds",
				Help:      "Latency of contract calls including commit.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
			promises: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "escrow",
				Subsystem: "promises",
				Name:      "resolved_total",
				Help:      "Resolved promises segmented by kind and outcome.",
			}, []string{"kind", "outcome"}),
			dropped: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "escrow",
				Subsystem: "promises",
				Name:      "dropped_total",
				Help:      "Promises discarded because the executor queue was full.",
			}),
			queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "escrow",
				Subsystem: "promises",
				Name:      "queue_depth",
				Help:      "Promises waiting for execution.",
			}),
			resets: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "escrow",
				Subsystem: "state",
				Name:      "resets_total",
				Help:      "Schema resets applied.",
			}),
		}
		prometheus.MustRegister(
			escrowRegistry.calls,
			escrowRegistry.callTime,
			escrowRegistry.promises,
			escrowRegistry.dropped,
			escrowRegistry.queueDepth,
			escrowRegistry.resets,
		)
	})
	return escrowRegistry
}

// ObserveCall records one contract call.
func (m *EscrowMetrics) ObserveCall(method string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.calls.WithLabelValues(method, outcome).Inc()
	m.callTime.WithLabelValues(method).Observe(duration.Seconds())
}

// ObservePromise records a resolved promise.
func (m *EscrowMetrics) ObservePromise(kind string, success bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.promises.WithLabelValues(kind, outcome).Inc()
}

// IncDropped counts promises lost to queue overflow.
func (m *EscrowMetrics) IncDropped(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.dropped.Add(float64(count))
}

// SetQueueDepth reports the pending promise count.
func (m *EscrowMetrics) SetQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}

// IncReset counts an applied schema reset.
func (m *EscrowMetrics) IncReset() {
	if m == nil {
		return
	}
	m.resets.Inc()
}
