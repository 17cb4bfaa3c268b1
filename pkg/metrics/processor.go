package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ProcessorMetrics tracks calls made to external payment processors.
type ProcessorMetrics struct {
	duration *prometheus.HistogramVec
	calls    *prometheus.CounterVec
}

func NewProcessorMetrics(reg prometheus.Registerer) *ProcessorMetrics {
	if reg == nil {
		return &ProcessorMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "processor_request_duration_seconds",
		Help:    "Latency of payment processor requests.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
	}, []string{"processor", "operation"})
	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "processor_requests_total",
		Help: "Payment processor requests by outcome.",
	}, []string{"processor", "operation", "outcome"})
	reg.MustRegister(duration, calls)
	return &ProcessorMetrics{duration: duration, calls: calls}
}

// Observe records one processor call. outcome is "ok", "error" or "timeout".
func (m *ProcessorMetrics) Observe(processor, operation, outcome string, elapsed time.Duration) {
	if m == nil || m.calls == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(processor), normalizeLabel(operation)).Observe(elapsed.Seconds())
	m.calls.WithLabelValues(normalizeLabel(processor), normalizeLabel(operation), normalizeLabel(outcome)).Inc()
}
