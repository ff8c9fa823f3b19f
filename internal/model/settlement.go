package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type SettlementStatus string

const (
	SettlementPending SettlementStatus = "pending"
	SettlementSettled SettlementStatus = "settled"
)

// Settlement marks a withdrawal the external payout processor still has to
// execute. It is written in the same transaction as the withdrawal entry.
type Settlement struct {
	ID        int64            `gorm:"primaryKey;autoIncrement" json:"-"`
	EntryNo   string           `gorm:"type:varchar(32);uniqueIndex;not null" json:"entry_no"`
	AccountID string           `gorm:"type:varchar(64);index;not null" json:"account_id"`
	Amount    decimal.Decimal  `gorm:"type:decimal(20,2);not null" json:"amount"`
	Status    SettlementStatus `gorm:"type:varchar(20);index;not null" json:"status"`
	SettledAt *time.Time       `json:"settled_at,omitempty"`
	CreatedAt time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Settlement) TableName() string {
	return "settlements"
}
