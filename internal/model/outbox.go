package model

import (
	"time"
)

const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

// OutboxMessage is an event written in the same transaction as the ledger
// rows it announces and published to Kafka afterwards.
type OutboxMessage struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageKey string    `gorm:"type:varchar(64);not null" json:"message_key"`
	Topic      string    `gorm:"type:varchar(64);not null" json:"topic"`
	Payload    string    `gorm:"type:text;not null" json:"payload"`
	Status     string    `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	RetryCount int       `gorm:"not null;default:0" json:"retry_count"`
	LastError  string    `gorm:"type:varchar(512)" json:"last_error,omitempty"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (OutboxMessage) TableName() string {
	return "outbox_messages"
}

// EntryEvent is the payload published on the entries topic.
type EntryEvent struct {
	EntryNo              string    `json:"entry_no"`
	Kind                 EntryKind `json:"kind"`
	ActorAccountID       string    `json:"actor_account_id"`
	BeneficiaryAccountID string    `json:"beneficiary_account_id,omitempty"`
	CampaignID           string    `json:"campaign_id,omitempty"`
	Amount               string    `json:"amount"`
	CreatedAt            time.Time `json:"created_at"`
}

// NewEntryEvent builds the event announcing e.
func NewEntryEvent(e *LedgerEntry) EntryEvent {
	return EntryEvent{
		EntryNo:              e.EntryNo,
		Kind:                 e.Kind,
		ActorAccountID:       e.ActorAccountID,
		BeneficiaryAccountID: e.BeneficiaryAccountID,
		CampaignID:           e.CampaignID,
		Amount:               e.Amount.StringFixed(2),
		CreatedAt:            e.CreatedAt,
	}
}

// WithdrawalEvent is the payload the payout processor consumes.
type WithdrawalEvent struct {
	EntryNo   string `json:"entry_no"`
	AccountID string `json:"account_id"`
	Amount    string `json:"amount"`
}
