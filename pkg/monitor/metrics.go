package monitor

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
)

// LedgerMetrics groups the business metrics of the ledger core.
type LedgerMetrics struct {
	OperationsTotal      *prometheus.CounterVec
	AmountTotal          *prometheus.CounterVec
	OperationDuration    *prometheus.HistogramVec
	ReconcileDivergences *prometheus.CounterVec
	OutboxMessagesTotal  *prometheus.CounterVec
}

// Ledger is nil until Init is called; the Observe helpers are no-ops then.
var (
	Ledger *LedgerMetrics
	once   sync.Once
)

// Init registers the ledger metrics with the default registry. Safe to call
// more than once.
func Init() {
	once.Do(func() {
		Ledger = &LedgerMetrics{
			OperationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "crowdfund_ledger_operations_total",
				Help: "Ledger operations by outcome",
			}, []string{"operation", "outcome"}),
			AmountTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "crowdfund_ledger_amount_total",
				Help: "Sum of committed entry amounts",
			}, []string{"kind"}),
			OperationDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "crowdfund_ledger_operation_duration_seconds",
				Help:    "Duration of ledger operations",
				Buckets: prometheus.DefBuckets,
			}, []string{"operation"}),
			ReconcileDivergences: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "crowdfund_reconcile_divergences_total",
				Help: "Cached totals that did not match the transaction log",
			}, []string{"target"}),
			OutboxMessagesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "crowdfund_outbox_messages_total",
				Help: "Outbox messages by delivery result",
			}, []string{"topic", "result"}),
		}
	})
}

func ObserveOperation(operation, outcome string, started time.Time) {
	if Ledger == nil {
		return
	}
	Ledger.OperationsTotal.WithLabelValues(operation, outcome).Inc()
	Ledger.OperationDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

func ObserveAmount(kind string, amount decimal.Decimal) {
	if Ledger == nil {
		return
	}
	Ledger.AmountTotal.WithLabelValues(kind).Add(amount.InexactFloat64())
}

func ObserveDivergence(target string) {
	if Ledger == nil {
		return
	}
	Ledger.ReconcileDivergences.WithLabelValues(target).Inc()
}

func ObserveOutbox(topic, result string) {
	if Ledger == nil {
		return
	}
	Ledger.OutboxMessagesTotal.WithLabelValues(topic, result).Inc()
}
