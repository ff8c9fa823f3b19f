package service

import (
	"context"
	"time"

	"crowdfund/internal/model"
	"crowdfund/pkg/logger"
	"crowdfund/pkg/monitor"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const reconcileBatchSize = 100

// Divergence is one cached total that does not match the log.
type Divergence struct {
	Target  string          `json:"target"`
	ID      string          `json:"id"`
	Field   string          `json:"field"`
	Cached  decimal.Decimal `json:"cached"`
	Derived decimal.Decimal `json:"derived"`
}

type ReconcileReport struct {
	AccountsChecked  int          `json:"accounts_checked"`
	CampaignsChecked int          `json:"campaigns_checked"`
	Divergences      []Divergence `json:"divergences"`
	Repaired         bool         `json:"repaired"`
	StartedAt        time.Time    `json:"started_at"`
	FinishedAt       time.Time    `json:"finished_at"`
}

// Reconciler recomputes account balances and campaign totals from the
// transaction log and optionally rewrites the cached values to match.
type Reconciler struct {
	db     *gorm.DB
	ledger *Ledger
	fund   *Fund
	txLog  *TransactionLog
}

func NewReconciler(db *gorm.DB, ledger *Ledger, fund *Fund, txLog *TransactionLog) *Reconciler {
	return &Reconciler{db: db, ledger: ledger, fund: fund, txLog: txLog}
}

// Reconcile checks every account and campaign. With repair set, each
// diverging row is rewritten from the log in its own transaction.
func (r *Reconciler) Reconcile(ctx context.Context, repair bool) (*ReconcileReport, error) {
	report := &ReconcileReport{Repaired: repair, StartedAt: time.Now()}

	var afterID int64
	for {
		accounts, err := r.ledger.ListAccounts(ctx, afterID, reconcileBatchSize)
		if err != nil {
			return nil, err
		}
		if len(accounts) == 0 {
			break
		}
		for _, account := range accounts {
			divergences, err := r.ReconcileAccount(ctx, account.AccountID, repair)
			if err != nil {
				return nil, err
			}
			report.AccountsChecked++
			report.Divergences = append(report.Divergences, divergences...)
		}
		afterID = accounts[len(accounts)-1].ID
	}

	afterID = 0
	for {
		campaigns, err := r.fund.ListCampaigns(ctx, afterID, reconcileBatchSize)
		if err != nil {
			return nil, err
		}
		if len(campaigns) == 0 {
			break
		}
		for _, campaign := range campaigns {
			divergences, err := r.ReconcileCampaign(ctx, campaign.CampaignID, repair)
			if err != nil {
				return nil, err
			}
			report.CampaignsChecked++
			report.Divergences = append(report.Divergences, divergences...)
		}
		afterID = campaigns[len(campaigns)-1].ID
	}

	report.FinishedAt = time.Now()
	logger.Info("reconciliation finished",
		zap.Int("accounts", report.AccountsChecked),
		zap.Int("campaigns", report.CampaignsChecked),
		zap.Int("divergences", len(report.Divergences)),
		zap.Bool("repair", repair))
	return report, nil
}

// ReconcileAccount folds the account's entries under its row lock so no
// operation can move the balance between the fold and the comparison.
func (r *Reconciler) ReconcileAccount(ctx context.Context, accountID string, repair bool) ([]Divergence, error) {
	var divergences []Divergence

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := r.ledger.LockAccounts(ctx, tx, accountID)
		if err != nil {
			return err
		}
		cached := locked[accountID].Balances()

		var derived model.Balances
		cur := r.txLog.EntriesFor(accountID, "").In(tx)
		for cur.Next(ctx) {
			effects, _ := cur.Entry().Effects()
			for _, eff := range effects {
				if eff.AccountID == accountID {
					derived = derived.Add(eff.Field, eff.Delta)
				}
			}
		}
		if err := cur.Err(); err != nil {
			return err
		}

		for _, f := range []model.BalanceField{model.FieldSpendable, model.FieldTips, model.FieldContributions} {
			if !cached.Get(f).Equal(derived.Get(f)) {
				divergences = append(divergences, Divergence{
					Target:  "account",
					ID:      accountID,
					Field:   string(f),
					Cached:  cached.Get(f),
					Derived: derived.Get(f),
				})
			}
		}
		if len(divergences) == 0 || !repair {
			return nil
		}
		return r.ledger.Rebuild(ctx, tx, accountID, derived)
	})
	if err != nil {
		return nil, err
	}

	r.report(divergences, repair)
	return divergences, nil
}

// ReconcileCampaign does the same for a campaign's raised and claimed totals.
func (r *Reconciler) ReconcileCampaign(ctx context.Context, campaignID string, repair bool) ([]Divergence, error) {
	var divergences []Divergence

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		campaign, err := r.fund.Lock(ctx, tx, campaignID)
		if err != nil {
			return err
		}

		raised, claimed := decimal.Zero, decimal.Zero
		cur := r.txLog.EntriesForCampaign(campaignID, "").In(tx)
		for cur.Next(ctx) {
			_, eff := cur.Entry().Effects()
			if eff == nil {
				continue
			}
			raised = raised.Add(eff.Raised)
			claimed = claimed.Add(eff.Claimed)
		}
		if err := cur.Err(); err != nil {
			return err
		}

		if !campaign.RaisedAmount.Equal(raised) {
			divergences = append(divergences, Divergence{
				Target: "campaign", ID: campaignID, Field: "raised_amount",
				Cached: campaign.RaisedAmount, Derived: raised,
			})
		}
		if !campaign.ClaimedAmount.Equal(claimed) {
			divergences = append(divergences, Divergence{
				Target: "campaign", ID: campaignID, Field: "claimed_amount",
				Cached: campaign.ClaimedAmount, Derived: claimed,
			})
		}
		if len(divergences) == 0 || !repair {
			return nil
		}
		return r.fund.Rebuild(ctx, tx, campaignID, raised, claimed)
	})
	if err != nil {
		return nil, err
	}

	r.report(divergences, repair)
	return divergences, nil
}

func (r *Reconciler) report(divergences []Divergence, repair bool) {
	for _, d := range divergences {
		monitor.ObserveDivergence(d.Target)
		logger.Warn("ledger divergence",
			zap.String("target", d.Target),
			zap.String("id", d.ID),
			zap.String("field", d.Field),
			zap.String("cached", d.Cached.String()),
			zap.String("derived", d.Derived.String()),
			zap.Bool("repaired", repair))
	}
}
