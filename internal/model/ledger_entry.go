package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryKind is the type of a balance-affecting event.
type EntryKind string

const (
	KindDeposit           EntryKind = "deposit"
	KindContribution      EntryKind = "contribution"
	KindTip               EntryKind = "tip"
	KindClaimContribution EntryKind = "claim_contribution"
	KindClaimTip          EntryKind = "claim_tip"
	KindWithdrawal        EntryKind = "withdrawal"
	KindFee               EntryKind = "fee"
)

var entryNoPrefixes = map[EntryKind]string{
	KindDeposit:           "DEP",
	KindContribution:      "CTB",
	KindTip:               "TIP",
	KindClaimContribution: "CLC",
	KindClaimTip:          "CLT",
	KindWithdrawal:        "WDR",
	KindFee:               "FEE",
}

// Valid reports whether k is a known entry kind.
func (k EntryKind) Valid() bool {
	_, ok := entryNoPrefixes[k]
	return ok
}

// EntryNoPrefix returns the prefix used for entry numbers of this kind.
func (k EntryKind) EntryNoPrefix() string {
	return entryNoPrefixes[k]
}

// EntryKinds lists every kind in a stable order.
func EntryKinds() []EntryKind {
	return []EntryKind{
		KindDeposit, KindContribution, KindTip, KindClaimContribution,
		KindClaimTip, KindWithdrawal, KindFee,
	}
}

type EntryStatus string

const (
	EntryCompleted EntryStatus = "completed"
	EntryFailed    EntryStatus = "failed"
)

// LedgerEntry is one immutable row of the transaction log.
type LedgerEntry struct {
	ID                   int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	EntryNo              string          `gorm:"type:varchar(32);uniqueIndex;not null" json:"entry_no"`
	IdempotencyKey       *string         `gorm:"type:varchar(80);uniqueIndex" json:"idempotency_key,omitempty"`
	Kind                 EntryKind       `gorm:"type:varchar(32);index;not null" json:"kind"`
	ActorAccountID       string          `gorm:"type:varchar(64);index;not null" json:"actor_account_id"`
	BeneficiaryAccountID string          `gorm:"type:varchar(64);index" json:"beneficiary_account_id,omitempty"`
	CampaignID           string          `gorm:"type:varchar(64);index" json:"campaign_id,omitempty"`
	Amount               decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	Status               EntryStatus     `gorm:"type:varchar(20);not null" json:"status"`
	Remark               string          `gorm:"type:varchar(256)" json:"remark,omitempty"`
	CreatedAt            time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
}

func (LedgerEntry) TableName() string {
	return "ledger_entries"
}

// Key returns the idempotency key or "" when the entry has none.
func (e *LedgerEntry) Key() string {
	if e.IdempotencyKey == nil {
		return ""
	}
	return *e.IdempotencyKey
}

// AccountEffect is a signed change to one balance of one account.
type AccountEffect struct {
	AccountID string
	Field     BalanceField
	Delta     decimal.Decimal
}

// CampaignEffect is a signed change to a campaign's raised or claimed total.
type CampaignEffect struct {
	CampaignID string
	Raised     decimal.Decimal
	Claimed    decimal.Decimal
}

// Effects returns the balance changes this entry stands for. Applying the
// effects of every entry in log order to zeroed balances reproduces the
// cached balances of accounts and campaigns.
func (e *LedgerEntry) Effects() ([]AccountEffect, *CampaignEffect) {
	a := e.Amount
	switch e.Kind {
	case KindDeposit:
		return []AccountEffect{
			{e.ActorAccountID, FieldSpendable, a},
		}, nil
	case KindContribution:
		effects := []AccountEffect{
			{e.ActorAccountID, FieldSpendable, a.Neg()},
			{e.BeneficiaryAccountID, FieldContributions, a},
		}
		return effects, &CampaignEffect{CampaignID: e.CampaignID, Raised: a, Claimed: decimal.Zero}
	case KindTip:
		return []AccountEffect{
			{e.ActorAccountID, FieldSpendable, a.Neg()},
			{e.BeneficiaryAccountID, FieldTips, a},
		}, nil
	case KindClaimContribution:
		effects := []AccountEffect{
			{e.ActorAccountID, FieldContributions, a.Neg()},
			{e.ActorAccountID, FieldSpendable, a},
		}
		return effects, &CampaignEffect{CampaignID: e.CampaignID, Raised: decimal.Zero, Claimed: a}
	case KindFee:
		effects := []AccountEffect{{e.ActorAccountID, FieldSpendable, a.Neg()}}
		if e.BeneficiaryAccountID != "" {
			effects = append(effects, AccountEffect{e.BeneficiaryAccountID, FieldSpendable, a})
		}
		return effects, nil
	case KindClaimTip:
		return []AccountEffect{
			{e.ActorAccountID, FieldTips, a.Neg()},
			{e.ActorAccountID, FieldSpendable, a},
		}, nil
	case KindWithdrawal:
		return []AccountEffect{
			{e.ActorAccountID, FieldSpendable, a.Neg()},
		}, nil
	}
	return nil, nil
}
