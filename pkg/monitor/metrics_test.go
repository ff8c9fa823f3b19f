package monitor

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestObserveBeforeInitIsNoop(t *testing.T) {
	if Ledger != nil {
		t.Skip("metrics already initialised")
	}
	ObserveOperation("tip", "committed", time.Now())
	ObserveAmount("tip", decimal.NewFromInt(1))
}

func TestObserveCounts(t *testing.T) {
	Init()
	Init()

	ObserveOperation("contribute", "committed", time.Now())
	ObserveOperation("contribute", "committed", time.Now())
	ObserveAmount("contribution", decimal.RequireFromString("12.50"))
	ObserveDivergence("account")
	ObserveOutbox("ledger.entries", "sent")

	assert.Equal(t, 2.0, testutil.ToFloat64(Ledger.OperationsTotal.WithLabelValues("contribute", "committed")))
	assert.Equal(t, 12.5, testutil.ToFloat64(Ledger.AmountTotal.WithLabelValues("contribution")))
	assert.Equal(t, 1.0, testutil.ToFloat64(Ledger.ReconcileDivergences.WithLabelValues("account")))
	assert.Equal(t, 1.0, testutil.ToFloat64(Ledger.OutboxMessagesTotal.WithLabelValues("ledger.entries", "sent")))
}
