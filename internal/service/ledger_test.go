package service

import (
	"context"
	"strings"
	"testing"

	"crowdfund/internal/model"
	"crowdfund/pkg/errno"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerRegister(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.ledger.Register(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, model.VerificationUnverified, a.VerificationStatus)

	again, err := f.ledger.Register(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, a.ID, again.ID)

	_, err = f.ledger.Register(ctx, "")
	assert.ErrorIs(t, err, errno.ErrValidation)
	_, err = f.ledger.Register(ctx, strings.Repeat("a", 65))
	assert.ErrorIs(t, err, errno.ErrValidation)

	_, err = f.ledger.GetBalances(ctx, "bob")
	assert.ErrorIs(t, err, errno.ErrNotFound)
}

func TestLedgerApplyDelta(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.account(t, "alice", "0", false)

	require.NoError(t, f.ledger.ApplyDelta(ctx, f.db, "alice", model.FieldTips, dec("30")))

	err := f.ledger.ApplyDelta(ctx, f.db, "alice", model.FieldTips, dec("-50"))
	require.ErrorIs(t, err, errno.ErrInsufficientBalance)
	_, _, msg := errno.Decode(err)
	assert.Equal(t, "insufficient balance: tips balance of alice: requested ₱50.00, available ₱30.00", msg)

	require.NoError(t, f.ledger.ApplyDelta(ctx, f.db, "alice", model.FieldTips, dec("-30")))
	assert.True(t, f.balances(t, "alice").Tips.IsZero())

	err = f.ledger.ApplyDelta(ctx, f.db, "nobody", model.FieldTips, dec("1"))
	assert.ErrorIs(t, err, errno.ErrNotFound)
}

func TestLedgerDisable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.account(t, "alice", "10", false)

	require.NoError(t, f.ledger.Disable(ctx, "alice"))
	a, err := f.ledger.GetAccount(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, a.Disabled)
	assertDec(t, "10", a.SpendableBalance)

	_, err = f.coord.Deposit(ctx, "alice", dec("1"), "dep-x", "")
	assert.ErrorIs(t, err, errno.ErrAccountDisabled)

	require.NoError(t, f.ledger.Enable(ctx, "alice"))
	_, err = f.coord.Deposit(ctx, "alice", dec("1"), "dep-x", "")
	require.NoError(t, err)

	assert.ErrorIs(t, f.ledger.Disable(ctx, "nobody"), errno.ErrNotFound)
}
