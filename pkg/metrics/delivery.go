package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DeliveryMetrics tracks quote computation, split by source so fallback rates
// are visible when the routing provider degrades.
type DeliveryMetrics struct {
	quotes *prometheus.CounterVec
}

// NewDeliveryMetrics registers the delivery metrics on the provided registerer.
func NewDeliveryMetrics(reg prometheus.Registerer) *DeliveryMetrics {
	if reg == nil {
		return &DeliveryMetrics{}
	}
	quotes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "delivery_quotes_total",
		Help: "Delivery quotes computed, labeled by source (routing, fallback, cache).",
	}, []string{"source"})
	reg.MustRegister(quotes)
	return &DeliveryMetrics{quotes: quotes}
}

// IncQuote counts a computed quote for the given source.
func (m *DeliveryMetrics) IncQuote(source string) {
	if m == nil || m.quotes == nil {
		return
	}
	m.quotes.WithLabelValues(normalizeLabel(source)).Inc()
}
