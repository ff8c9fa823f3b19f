package service

import (
	"context"
	"testing"

	"crowdfund/internal/model"
	"crowdfund/pkg/errno"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettlementHandshake(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.account(t, "alice", "100", true)

	w1, err := f.coord.Withdraw(ctx, "alice", dec("30"), "w1")
	require.NoError(t, err)
	_, err = f.coord.Withdraw(ctx, "alice", dec("20"), "w2")
	require.NoError(t, err)

	pending, err := f.settlements.ListPending(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, w1.Entry.EntryNo, pending[0].EntryNo)

	settled, err := f.settlements.MarkSettled(ctx, w1.Entry.EntryNo)
	require.NoError(t, err)
	assert.Equal(t, model.SettlementSettled, settled.Status)
	require.NotNil(t, settled.SettledAt)

	_, err = f.settlements.MarkSettled(ctx, w1.Entry.EntryNo)
	assert.ErrorIs(t, err, errno.ErrInvalidTransition)
	_, err = f.settlements.MarkSettled(ctx, "WDR0")
	assert.ErrorIs(t, err, errno.ErrNotFound)

	pending, err = f.settlements.ListPending(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	// settling does not touch balances
	assertDec(t, "50", f.balances(t, "alice").Spendable)
}
