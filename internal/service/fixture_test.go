package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"crowdfund/internal/config"
	"crowdfund/internal/infrastructure/database/dbtest"
	"crowdfund/internal/model"
	"crowdfund/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const feeAccount = "platform"

type fixture struct {
	db          *gorm.DB
	ledger      *Ledger
	fund        *Fund
	txLog       *TransactionLog
	kyc         *KYCService
	campaigns   *CampaignService
	coord       *Coordinator
	reconciler  *Reconciler
	settlements *SettlementService
	seq         int
}

func testLimits() config.Limits {
	return config.Limits{
		MaxPerOperation:  dec("10000"),
		PlatformFeeRate:  dec("0.05"),
		FeeAccountID:     feeAccount,
		CurrencySymbol:   "₱",
		OperationTimeout: 5 * time.Second,
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := dbtest.NewTestDB(t)
	limits := testLimits()

	s := New(db, limits, config.KafkaTopicConfig{Entries: "ledger.entries", Withdrawals: "ledger.withdrawals"})
	f := &fixture{
		db:          db,
		ledger:      s.Ledger,
		fund:        s.Fund,
		txLog:       s.TxLog,
		kyc:         s.KYC,
		campaigns:   s.Campaigns,
		coord:       s.Coordinator,
		reconciler:  s.Reconciler,
		settlements: s.Settlements,
	}

	_, err := f.ledger.Register(context.Background(), feeAccount)
	require.NoError(t, err)
	return f
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (f *fixture) key(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

// account registers id, funds it through a deposit entry and optionally
// verifies it.
func (f *fixture) account(t *testing.T, id, spendable string, verified bool) {
	t.Helper()
	ctx := context.Background()

	_, err := f.ledger.Register(ctx, id)
	require.NoError(t, err)

	if amount := dec(spendable); amount.IsPositive() {
		_, err := f.coord.Deposit(ctx, id, amount, f.key("dep"), "test funds")
		require.NoError(t, err)
	}
	if verified {
		require.NoError(t, f.kyc.Submit(ctx, id))
		require.NoError(t, f.kyc.Approve(ctx, id))
	}
}

// activeCampaign creates and approves a campaign for a verified creator.
func (f *fixture) activeCampaign(t *testing.T, creatorID string) string {
	t.Helper()
	ctx := context.Background()

	c, err := f.campaigns.Create(ctx, creatorID, &CreateCampaignRequest{Title: "Flood relief", GoalAmount: dec("5000")})
	require.NoError(t, err)
	require.NoError(t, f.campaigns.Approve(ctx, c.CampaignID, ""))
	return c.CampaignID
}

// rawCampaign inserts a campaign row directly, bypassing the creator checks.
func (f *fixture) rawCampaign(t *testing.T, id, creatorID string, status model.CampaignStatus) {
	t.Helper()
	require.NoError(t, repository.NewCampaignRepository(f.db).Create(context.Background(), nil, &model.Campaign{
		CampaignID:       id,
		CreatorAccountID: creatorID,
		Title:            "raw",
		GoalAmount:       dec("1000"),
		RaisedAmount:     decimal.Zero,
		ClaimedAmount:    decimal.Zero,
		Status:           status,
	}))
}

func (f *fixture) balances(t *testing.T, id string) model.Balances {
	t.Helper()
	b, err := f.ledger.GetBalances(context.Background(), id)
	require.NoError(t, err)
	return b
}

func (f *fixture) campaign(t *testing.T, id string) *model.Campaign {
	t.Helper()
	c, err := f.fund.Get(context.Background(), id)
	require.NoError(t, err)
	return c
}

func (f *fixture) entryCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&model.LedgerEntry{}).Count(&n).Error)
	return n
}

// sumEntries adds up the amounts of kind logged against a campaign.
func (f *fixture) sumEntries(t *testing.T, campaignID string, kind model.EntryKind) decimal.Decimal {
	t.Helper()
	sum := decimal.Zero
	cur := f.txLog.EntriesForCampaign(campaignID, kind)
	for cur.Next(context.Background()) {
		sum = sum.Add(cur.Entry().Amount)
	}
	require.NoError(t, cur.Err())
	return sum
}

func requireNonNegative(t *testing.T, b model.Balances) {
	t.Helper()
	require.False(t, b.Spendable.IsNegative(), "spendable %s", b.Spendable)
	require.False(t, b.Tips.IsNegative(), "tips %s", b.Tips)
	require.False(t, b.Contributions.IsNegative(), "contributions %s", b.Contributions)
}

func assertDec(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "want %s, got %s %v", want, got, msgAndArgs)
}
