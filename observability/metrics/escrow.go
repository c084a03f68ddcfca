package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// EscrowMetrics aggregates the module's operational counters and gauges.
type EscrowMetrics struct {
	opsTotal        *prometheus.CounterVec
	opErrors        *prometheus.CounterVec
	openEscrows     prometheus.Gauge
	disputesOpened  prometheus.Counter
	vaultBalance    prometheus.Gauge
	auditSinkErrors prometheus.Counter
}

var (
	escrowOnce     sync.Once
	escrowRegistry *EscrowMetrics
)

// Escrow returns the process-wide escrow metrics, registering them on first
// use.
func Escrow() *EscrowMetrics {
	escrowOnce.Do(func() {
		escrowRegistry = &EscrowMetrics{
			opsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "escrow_operations_total",
				Help: "Count of mutating escrow operations by type and result.",
			}, []string{"op", "result"}),
			opErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "escrow_operation_errors_total",
				Help: "Count of rejected escrow operations by error kind.",
			}, []string{"kind"}),
			openEscrows: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "escrow_open_total",
				Help: "Escrows currently between creation and terminal resolution.",
			}),
			disputesOpened: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "escrow_disputes_opened_total",
				Help: "Count of disputes opened by buyers.",
			}),
			vaultBalance: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "escrow_vault_balance",
				Help: "Current custodial vault balance in native units.",
			}),
			auditSinkErrors: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "escrow_audit_sink_errors_total",
				Help: "Failures persisting audit events.",
			}),
		}
		prometheus.MustRegister(
			escrowRegistry.opsTotal,
			escrowRegistry.opErrors,
			escrowRegistry.openEscrows,
			escrowRegistry.disputesOpened,
			escrowRegistry.vaultBalance,
			escrowRegistry.auditSinkErrors,
		)
	})
	return escrowRegistry
}

// ObserveOp records the outcome of one mutating operation.
func (m *EscrowMetrics) ObserveOp(op string, err error, kind string) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
		m.opErrors.WithLabelValues(kind).Inc()
	}
	m.opsTotal.WithLabelValues(op, result).Inc()
}

// SetOpenEscrows updates the live open escrow gauge.
func (m *EscrowMetrics) SetOpenEscrows(n float64) {
	if m == nil {
		return
	}
	m.openEscrows.Set(n)
}

// DisputeOpened increments the dispute counter.
func (m *EscrowMetrics) DisputeOpened() {
	if m == nil {
		return
	}
	m.disputesOpened.Inc()
}

// SetVaultBalance updates the custodial balance gauge.
func (m *EscrowMetrics) SetVaultBalance(balance float64) {
	if m == nil {
		return
	}
	m.vaultBalance.Set(balance)
}

// AuditSinkError increments the audit persistence failure counter.
func (m *EscrowMetrics) AuditSinkError() {
	if m == nil {
		return
	}
	m.auditSinkErrors.Inc()
}
