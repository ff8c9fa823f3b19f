package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// VerificationStatus is the KYC state of an account.
type VerificationStatus string

const (
	VerificationUnverified VerificationStatus = "unverified"
	VerificationPending    VerificationStatus = "pending"
	VerificationVerified   VerificationStatus = "verified"
	VerificationRejected   VerificationStatus = "rejected"
)

var validVerificationTransitions = map[VerificationStatus][]VerificationStatus{
	VerificationUnverified: {VerificationPending},
	VerificationPending:    {VerificationVerified, VerificationRejected},
	VerificationVerified:   {VerificationRejected},
	VerificationRejected:   {VerificationPending},
}

// CanTransitionTo reports whether a KYC review may move the account from s to target.
func (s VerificationStatus) CanTransitionTo(target VerificationStatus) bool {
	for _, allowed := range validVerificationTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// BalanceField names one of the three balances held on an account.
type BalanceField string

const (
	FieldSpendable     BalanceField = "spendable_balance"
	FieldTips          BalanceField = "tips_balance"
	FieldContributions BalanceField = "contributions_balance"
)

// Valid reports whether f is a known balance column.
func (f BalanceField) Valid() bool {
	switch f {
	case FieldSpendable, FieldTips, FieldContributions:
		return true
	}
	return false
}

// Account holds a user's balances. The balance columns are a cache of the
// ledger entries and are only changed through the ledger.
type Account struct {
	ID                   int64              `gorm:"primaryKey;autoIncrement" json:"-"`
	AccountID            string             `gorm:"type:varchar(64);uniqueIndex;not null" json:"account_id"`
	SpendableBalance     decimal.Decimal    `gorm:"type:decimal(20,2);not null;default:0" json:"spendable_balance"`
	TipsBalance          decimal.Decimal    `gorm:"type:decimal(20,2);not null;default:0" json:"tips_balance"`
	ContributionsBalance decimal.Decimal    `gorm:"type:decimal(20,2);not null;default:0" json:"contributions_balance"`
	VerificationStatus   VerificationStatus `gorm:"type:varchar(20);not null;default:unverified" json:"verification_status"`
	Disabled             bool               `gorm:"not null;default:false" json:"disabled"`
	Version              int                `gorm:"not null;default:0" json:"version"`
	CreatedAt            time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string {
	return "accounts"
}

// Balances is a snapshot of an account's three balances.
type Balances struct {
	Spendable     decimal.Decimal `json:"spendable"`
	Tips          decimal.Decimal `json:"tips"`
	Contributions decimal.Decimal `json:"contributions"`
}

// Balances returns the account's current balances.
func (a *Account) Balances() Balances {
	return Balances{
		Spendable:     a.SpendableBalance,
		Tips:          a.TipsBalance,
		Contributions: a.ContributionsBalance,
	}
}

// Get returns the balance stored in field f.
func (b Balances) Get(f BalanceField) decimal.Decimal {
	switch f {
	case FieldSpendable:
		return b.Spendable
	case FieldTips:
		return b.Tips
	case FieldContributions:
		return b.Contributions
	}
	return decimal.Zero
}

// Add returns b with delta added to field f.
func (b Balances) Add(f BalanceField, delta decimal.Decimal) Balances {
	switch f {
	case FieldSpendable:
		b.Spendable = b.Spendable.Add(delta)
	case FieldTips:
		b.Tips = b.Tips.Add(delta)
	case FieldContributions:
		b.Contributions = b.Contributions.Add(delta)
	}
	return b
}

// Equal compares balances by value.
func (b Balances) Equal(o Balances) bool {
	return b.Spendable.Equal(o.Spendable) &&
		b.Tips.Equal(o.Tips) &&
		b.Contributions.Equal(o.Contributions)
}
