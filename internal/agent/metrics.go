package agent

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the conversation and trade
// paths. A nil *Metrics is valid and records nothing, which keeps tests from
// fighting over the default registry.
type Metrics struct {
	ChatTurns       *prometheus.CounterVec
	TradesPrepared  prometheus.Counter
	AuditWrites     *prometheus.CounterVec
	AllowanceChecks *prometheus.CounterVec
}

// NewMetrics creates and registers all agent metrics. Call once per process.
func NewMetrics() *Metrics {
	return &Metrics{
		ChatTurns: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_chat_turns_total",
				Help: "Conversation turns by outcome path",
			},
			[]string{"path"}, // path: stream, trade, error
		),
		TradesPrepared: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "agent_trades_prepared_total",
				Help: "Unsigned trade payloads handed to wallets for signing",
			},
		),
		AuditWrites: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_audit_writes_total",
				Help: "Best-effort audit trail writes by result",
			},
			[]string{"result"}, // result: ok, failed
		),
		AllowanceChecks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_allowance_checks_total",
				Help: "Spend-authorization checks by result",
			},
			[]string{"result"}, // result: ok, config_error, chain_error
		),
	}
}

func (m *Metrics) chatTurn(path string) {
	if m != nil {
		m.ChatTurns.WithLabelValues(path).Inc()
	}
}

func (m *Metrics) tradePrepared() {
	if m != nil {
		m.TradesPrepared.Inc()
	}
}

func (m *Metrics) auditWrite(result string) {
	if m != nil {
		m.AuditWrites.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) allowanceCheck(result string) {
	if m != nil {
		m.AllowanceChecks.WithLabelValues(result).Inc()
	}
}
