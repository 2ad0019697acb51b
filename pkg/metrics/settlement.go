package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SettlementMetrics tracks the money-moving operations. Partial failures get
// their own counter because they mean captured funds with an unpaid payee,
// which pages differently than a clean processor outage.
type SettlementMetrics struct {
	holds           *prometheus.CounterVec
	captures        *prometheus.CounterVec
	transfers       *prometheus.CounterVec
	partialFailures *prometheus.CounterVec
	retriesResolved prometheus.Counter
}

// NewSettlementMetrics registers the settlement metrics on the provided registerer.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	holds := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_holds_total",
		Help: "Payment holds created, labeled by outcome.",
	}, []string{"outcome"})
	captures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_captures_total",
		Help: "Hold captures attempted, labeled by outcome.",
	}, []string{"outcome"})
	transfers := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_transfers_total",
		Help: "Payout transfers attempted, labeled by leg and outcome.",
	}, []string{"leg", "outcome"})
	partialFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_partial_failures_total",
		Help: "Transfers that failed after a successful capture, labeled by leg.",
	}, []string{"leg"})
	retriesResolved := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "settlement_retries_resolved_total",
		Help: "Queued settlement failures resolved by the retry worker.",
	})
	reg.MustRegister(holds, captures, transfers, partialFailures, retriesResolved)
	return &SettlementMetrics{
		holds:           holds,
		captures:        captures,
		transfers:       transfers,
		partialFailures: partialFailures,
		retriesResolved: retriesResolved,
	}
}

// IncHold counts a hold creation attempt.
func (m *SettlementMetrics) IncHold(outcome string) {
	if m == nil || m.holds == nil {
		return
	}
	m.holds.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncCapture counts a capture attempt.
func (m *SettlementMetrics) IncCapture(outcome string) {
	if m == nil || m.captures == nil {
		return
	}
	m.captures.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncTransfer counts a transfer attempt for the given leg.
func (m *SettlementMetrics) IncTransfer(leg, outcome string) {
	if m == nil || m.transfers == nil {
		return
	}
	m.transfers.WithLabelValues(normalizeLabel(leg), normalizeLabel(outcome)).Inc()
}

// IncPartialFailure counts a transfer failure that happened after capture.
func (m *SettlementMetrics) IncPartialFailure(leg string) {
	if m == nil || m.partialFailures == nil {
		return
	}
	m.partialFailures.WithLabelValues(normalizeLabel(leg)).Inc()
}

// IncRetryResolved counts a reconciliation retry that finally paid out.
func (m *SettlementMetrics) IncRetryResolved() {
	if m == nil || m.retriesResolved == nil {
		return
	}
	m.retriesResolved.Inc()
}
