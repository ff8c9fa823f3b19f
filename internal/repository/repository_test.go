package repository

import (
	"context"
	"testing"
	"time"

	"crowdfund/internal/infrastructure/database/dbtest"
	"crowdfund/internal/model"
	"crowdfund/pkg/errno"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestAccountCreateIfAbsentIsIdempotent(t *testing.T) {
	db := dbtest.NewTestDB(t)
	repo := NewAccountRepository(db)
	ctx := context.Background()

	first, err := repo.CreateIfAbsent(ctx, nil, "alice")
	require.NoError(t, err)
	assert.Equal(t, model.VerificationUnverified, first.VerificationStatus)
	assert.True(t, first.SpendableBalance.IsZero())

	second, err := repo.CreateIfAbsent(ctx, nil, "alice")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, db.Model(&model.Account{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	_, err = repo.Get(ctx, nil, "bob")
	assert.ErrorIs(t, err, errno.ErrNotFound)
}

func TestAccountAddToBalanceNeverGoesNegative(t *testing.T) {
	db := dbtest.NewTestDB(t)
	repo := NewAccountRepository(db)
	ctx := context.Background()

	_, err := repo.CreateIfAbsent(ctx, nil, "alice")
	require.NoError(t, err)

	ok, err := repo.AddToBalance(ctx, db, "alice", model.FieldSpendable, dec("100.50"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.AddToBalance(ctx, db, "alice", model.FieldSpendable, dec("-100.51"))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.AddToBalance(ctx, db, "alice", model.FieldSpendable, dec("-100.50"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.AddToBalance(ctx, db, "nobody", model.FieldTips, dec("1"))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.AddToBalance(ctx, db, "alice", model.BalanceField("balance"), dec("1"))
	assert.ErrorIs(t, err, errno.ErrValidation)

	acc, err := repo.Get(ctx, nil, "alice")
	require.NoError(t, err)
	assert.True(t, acc.SpendableBalance.IsZero())
	assert.Equal(t, 2, acc.Version)
}

func TestAccountVerificationTransition(t *testing.T) {
	db := dbtest.NewTestDB(t)
	repo := NewAccountRepository(db)
	ctx := context.Background()

	_, err := repo.CreateIfAbsent(ctx, nil, "alice")
	require.NoError(t, err)

	require.NoError(t, repo.UpdateVerificationStatus(ctx, nil, "alice", model.VerificationUnverified, model.VerificationPending))

	err = repo.UpdateVerificationStatus(ctx, nil, "alice", model.VerificationUnverified, model.VerificationPending)
	assert.ErrorIs(t, err, errno.ErrInvalidTransition)

	err = repo.UpdateVerificationStatus(ctx, nil, "alice", model.VerificationUnverified, model.VerificationVerified)
	assert.ErrorIs(t, err, errno.ErrInvalidTransition)

	require.NoError(t, repo.SetDisabled(ctx, "alice", true))
	require.NoError(t, repo.SetDisabled(ctx, "alice", true))
	assert.ErrorIs(t, repo.SetDisabled(ctx, "bob", true), errno.ErrNotFound)
}

func newCampaign(t *testing.T, repo *CampaignRepository, id string, status model.CampaignStatus) {
	t.Helper()
	require.NoError(t, repo.Create(context.Background(), nil, &model.Campaign{
		CampaignID:       id,
		CreatorAccountID: "creator",
		Title:            "Clinic roof",
		GoalAmount:       dec("1000"),
		RaisedAmount:     decimal.Zero,
		ClaimedAmount:    decimal.Zero,
		Status:           status,
	}))
}

func TestCampaignRaisedAndClaimed(t *testing.T) {
	db := dbtest.NewTestDB(t)
	repo := NewCampaignRepository(db)
	ctx := context.Background()

	newCampaign(t, repo, "c1", model.CampaignActive)
	newCampaign(t, repo, "c2", model.CampaignPendingReview)

	ok, err := repo.AddRaised(ctx, db, "c1", dec("100"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.AddRaised(ctx, db, "c2", dec("100"))
	require.NoError(t, err)
	assert.False(t, ok, "pending campaigns take no contributions")

	ok, err = repo.AddClaimed(ctx, db, "c1", dec("60"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.AddClaimed(ctx, db, "c1", dec("40.01"))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.AddClaimed(ctx, db, "c1", dec("40"))
	require.NoError(t, err)
	assert.True(t, ok)

	c, err := repo.Get(ctx, nil, "c1")
	require.NoError(t, err)
	assert.True(t, c.RaisedAmount.Equal(dec("100")))
	assert.True(t, c.ClaimedAmount.Equal(dec("100")))
	assert.True(t, c.Available().IsZero())
}

func TestCampaignUpdateStatus(t *testing.T) {
	db := dbtest.NewTestDB(t)
	repo := NewCampaignRepository(db)
	ctx := context.Background()

	newCampaign(t, repo, "c1", model.CampaignPendingReview)

	require.NoError(t, repo.UpdateStatus(ctx, nil, "c1", model.CampaignPendingReview, model.CampaignActive, ""))
	assert.ErrorIs(t, repo.UpdateStatus(ctx, nil, "c1", model.CampaignPendingReview, model.CampaignActive, ""), errno.ErrInvalidTransition)
	assert.ErrorIs(t, repo.UpdateStatus(ctx, nil, "c1", model.CampaignActive, model.CampaignPendingReview, ""), errno.ErrInvalidTransition)
	require.NoError(t, repo.UpdateStatus(ctx, nil, "c1", model.CampaignActive, model.CampaignFlagged, "reported twice"))

	c, err := repo.Get(ctx, nil, "c1")
	require.NoError(t, err)
	assert.Equal(t, model.CampaignFlagged, c.Status)
	assert.Equal(t, "reported twice", c.ModerationNote)

	newCampaign(t, repo, "c2", model.CampaignActive)
	list, total, err := repo.List(ctx, model.CampaignActive, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, "c2", list[0].CampaignID)
}

func TestEntryListAfterOrderAndFilter(t *testing.T) {
	db := dbtest.NewTestDB(t)
	repo := NewEntryRepository(db)
	ctx := context.Background()

	mk := func(no string, kind model.EntryKind, actor, beneficiary string) {
		require.NoError(t, repo.Create(ctx, nil, &model.LedgerEntry{
			EntryNo:              no,
			Kind:                 kind,
			ActorAccountID:       actor,
			BeneficiaryAccountID: beneficiary,
			Amount:               dec("10"),
			Status:               model.EntryCompleted,
		}))
	}
	mk("DEP1", model.KindDeposit, "alice", "")
	mk("TIP1", model.KindTip, "alice", "bob")
	mk("TIP2", model.KindTip, "carol", "bob")
	mk("CLT1", model.KindClaimTip, "bob", "")

	var got []string
	var pos *EntryPosition
	for {
		page, err := repo.ListAfter(ctx, nil, EntryFilter{AccountID: "bob"}, pos, 2)
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		for _, e := range page {
			got = append(got, e.EntryNo)
		}
		last := page[len(page)-1]
		pos = &EntryPosition{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	assert.Equal(t, []string{"TIP1", "TIP2", "CLT1"}, got)

	tips, err := repo.ListAfter(ctx, nil, EntryFilter{AccountID: "alice", Kind: model.KindTip}, nil, 10)
	require.NoError(t, err)
	require.Len(t, tips, 1)
	assert.Equal(t, "TIP1", tips[0].EntryNo)

	maxID, err := repo.MaxID(ctx, nil)
	require.NoError(t, err)
	bounded, err := repo.ListAfter(ctx, nil, EntryFilter{UpToID: maxID - 1}, nil, 10)
	require.NoError(t, err)
	assert.Len(t, bounded, 3)
}

func TestEntryDuplicateKey(t *testing.T) {
	db := dbtest.NewTestDB(t)
	repo := NewEntryRepository(db)
	ctx := context.Background()

	key := "req-1"
	require.NoError(t, repo.Create(ctx, nil, &model.LedgerEntry{
		EntryNo: "DEP1", IdempotencyKey: &key, Kind: model.KindDeposit,
		ActorAccountID: "alice", Amount: dec("1"), Status: model.EntryCompleted,
	}))
	err := repo.Create(ctx, nil, &model.LedgerEntry{
		EntryNo: "DEP2", IdempotencyKey: &key, Kind: model.KindDeposit,
		ActorAccountID: "alice", Amount: dec("1"), Status: model.EntryCompleted,
	})
	assert.ErrorIs(t, err, errno.ErrDuplicateEntry)

	found, err := repo.GetByIdempotencyKey(ctx, nil, key)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "DEP1", found.EntryNo)

	missing, err := repo.GetByEntryNo(ctx, nil, "NOPE")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestOutboxFailureFlow(t *testing.T) {
	db := dbtest.NewTestDB(t)
	repo := NewOutboxRepository(db)
	ctx := context.Background()

	msg := &model.OutboxMessage{MessageKey: "CTB1", Topic: "ledger.entries", Payload: "{}", Status: model.OutboxStatusPending}
	require.NoError(t, repo.Create(ctx, nil, msg))

	for i := 0; i < 3; i++ {
		pending, err := repo.GetPendingMessages(ctx, 10)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		require.NoError(t, repo.RecordFailure(ctx, pending[0], "broker down", 3))
	}

	pending, err := repo.GetPendingMessages(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	failed, err := repo.GetFailedMessages(ctx, 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, 3, failed[0].RetryCount)
	assert.Equal(t, "broker down", failed[0].LastError)

	require.NoError(t, repo.Requeue(ctx, failed[0].ID))
	pending, err = repo.GetPendingMessages(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.NoError(t, repo.MarkAsSent(ctx, pending[0].ID))

	pending, err = repo.GetPendingMessages(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSettlementMarkSettled(t *testing.T) {
	db := dbtest.NewTestDB(t)
	repo := NewSettlementRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, nil, &model.Settlement{
		EntryNo: "WDR1", AccountID: "alice", Amount: dec("25"), Status: model.SettlementPending,
	}))

	pending, err := repo.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	ok, err := repo.MarkSettled(ctx, "WDR1", time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkSettled(ctx, "WDR1", time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	s, err := repo.GetByEntryNo(ctx, nil, "WDR1")
	require.NoError(t, err)
	assert.Equal(t, model.SettlementSettled, s.Status)
	assert.NotNil(t, s.SettledAt)

	_, err = repo.GetByEntryNo(ctx, nil, "WDR2")
	assert.ErrorIs(t, err, errno.ErrNotFound)
}
