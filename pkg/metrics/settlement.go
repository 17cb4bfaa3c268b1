package metrics

import "github.com/prometheus/client_golang/prometheus"

// SettlementMetrics counts payment outcomes by method.
type SettlementMetrics struct {
	outcomes *prometheus.CounterVec
}

func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_settlements_total",
		Help: "Payment outcomes by method: settled, underpaid, duplicate, failed, accepted.",
	}, []string{"method", "outcome"})
	reg.MustRegister(outcomes)
	return &SettlementMetrics{outcomes: outcomes}
}

// Inc records one outcome for method.
func (m *SettlementMetrics) Inc(method, outcome string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(method), normalizeLabel(outcome)).Inc()
}
