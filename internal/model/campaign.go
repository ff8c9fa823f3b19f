package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CampaignStatus is the moderation state of a campaign.
type CampaignStatus string

const (
	CampaignPendingReview CampaignStatus = "pending_review"
	CampaignActive        CampaignStatus = "active"
	CampaignFlagged       CampaignStatus = "flagged"
	CampaignRejected      CampaignStatus = "rejected"
	CampaignCompleted     CampaignStatus = "completed"
)

var ValidCampaignTransitions = map[CampaignStatus][]CampaignStatus{
	CampaignPendingReview: {CampaignActive, CampaignRejected},
	CampaignActive:        {CampaignFlagged, CampaignCompleted},
	CampaignFlagged:       {CampaignActive, CampaignRejected},
}

// CanTransitionTo reports whether moderation may move a campaign from s to target.
func (s CampaignStatus) CanTransitionTo(target CampaignStatus) bool {
	for _, allowed := range ValidCampaignTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Claimable reports whether the creator may claim contributions in this state.
func (s CampaignStatus) Claimable() bool {
	return s == CampaignActive || s == CampaignCompleted
}

// Campaign is a fundraising effort. RaisedAmount and ClaimedAmount are a
// cache of the contribution and claim entries logged against it.
type Campaign struct {
	ID               int64           `gorm:"primaryKey;autoIncrement" json:"-"`
	CampaignID       string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"campaign_id"`
	CreatorAccountID string          `gorm:"type:varchar(64);index;not null" json:"creator_account_id"`
	Title            string          `gorm:"type:varchar(200);not null" json:"title"`
	GoalAmount       decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"goal_amount"`
	RaisedAmount     decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"raised_amount"`
	ClaimedAmount    decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"claimed_amount"`
	Status           CampaignStatus  `gorm:"type:varchar(20);index;not null" json:"status"`
	ModerationNote   string          `gorm:"type:varchar(256)" json:"moderation_note,omitempty"`
	CreatedAt        time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Campaign) TableName() string {
	return "campaigns"
}

// Available returns raised minus claimed, never below zero.
func (c *Campaign) Available() decimal.Decimal {
	avail := c.RaisedAmount.Sub(c.ClaimedAmount)
	if avail.IsNegative() {
		return decimal.Zero
	}
	return avail
}
