package service

import (
	"context"
	"unicode/utf8"

	"crowdfund/internal/model"
	"crowdfund/internal/repository"
	"crowdfund/pkg/errno"
	"crowdfund/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxTitleLength = 200

// CampaignService handles campaign creation and moderation. Money never
// moves through it.
type CampaignService struct {
	campaignRepo *repository.CampaignRepository
	accountRepo  *repository.AccountRepository
}

func NewCampaignService(db *gorm.DB) *CampaignService {
	return &CampaignService{
		campaignRepo: repository.NewCampaignRepository(db),
		accountRepo:  repository.NewAccountRepository(db),
	}
}

type CreateCampaignRequest struct {
	Title      string          `json:"title" binding:"required"`
	GoalAmount decimal.Decimal `json:"goal_amount"`
}

// Create opens a campaign in pending_review for a verified creator.
func (s *CampaignService) Create(ctx context.Context, creatorID string, req *CreateCampaignRequest) (*model.Campaign, error) {
	if req.Title == "" || utf8.RuneCountInString(req.Title) > maxTitleLength {
		return nil, errno.Wrapf(errno.ErrValidation, "title must be 1-%d characters", maxTitleLength)
	}
	if !validAmount(req.GoalAmount) {
		return nil, errno.Wrapf(errno.ErrValidation, "goal must be positive with at most 2 decimals, got %s", req.GoalAmount)
	}

	creator, err := s.accountRepo.Get(ctx, nil, creatorID)
	if err != nil {
		return nil, err
	}
	if creator.Disabled {
		return nil, errno.Wrapf(errno.ErrAccountDisabled, "account %s", creatorID)
	}
	if creator.VerificationStatus != model.VerificationVerified {
		return nil, errno.Wrapf(errno.ErrCreatorEligibility, "creator %s is %s, must be verified", creatorID, creator.VerificationStatus)
	}

	campaign := &model.Campaign{
		CampaignID:       uuid.NewString(),
		CreatorAccountID: creatorID,
		Title:            req.Title,
		GoalAmount:       req.GoalAmount,
		RaisedAmount:     decimal.Zero,
		ClaimedAmount:    decimal.Zero,
		Status:           model.CampaignPendingReview,
	}
	if err := s.campaignRepo.Create(ctx, nil, campaign); err != nil {
		return nil, err
	}

	logger.Info("campaign created",
		zap.String("campaign_id", campaign.CampaignID),
		zap.String("creator", creatorID))
	return campaign, nil
}

func (s *CampaignService) Get(ctx context.Context, campaignID string) (*model.Campaign, error) {
	return s.campaignRepo.Get(ctx, nil, campaignID)
}

func (s *CampaignService) List(ctx context.Context, status model.CampaignStatus, page, pageSize int) ([]*model.Campaign, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.campaignRepo.List(ctx, status, page, pageSize)
}

// Status implements CampaignDirectory.
func (s *CampaignService) Status(ctx context.Context, campaignID string) (model.CampaignStatus, error) {
	campaign, err := s.campaignRepo.Get(ctx, nil, campaignID)
	if err != nil {
		return "", err
	}
	return campaign.Status, nil
}

func (s *CampaignService) Approve(ctx context.Context, campaignID, note string) error {
	return s.transition(ctx, campaignID, model.CampaignActive, note, model.CampaignPendingReview)
}

func (s *CampaignService) Reject(ctx context.Context, campaignID, note string) error {
	return s.transition(ctx, campaignID, model.CampaignRejected, note)
}

func (s *CampaignService) Flag(ctx context.Context, campaignID, note string) error {
	return s.transition(ctx, campaignID, model.CampaignFlagged, note)
}

// Unflag returns a flagged campaign to active.
func (s *CampaignService) Unflag(ctx context.Context, campaignID, note string) error {
	return s.transition(ctx, campaignID, model.CampaignActive, note, model.CampaignFlagged)
}

// Complete closes a campaign to new money. The creator can still claim
// what was raised.
func (s *CampaignService) Complete(ctx context.Context, campaignID, note string) error {
	return s.transition(ctx, campaignID, model.CampaignCompleted, note)
}

// transition moves the campaign to target. When from is given the current
// status must be one of them, which keeps Approve and Unflag distinct even
// though both end in active.
func (s *CampaignService) transition(ctx context.Context, campaignID string, target model.CampaignStatus, note string, from ...model.CampaignStatus) error {
	campaign, err := s.campaignRepo.Get(ctx, nil, campaignID)
	if err != nil {
		return err
	}

	current := campaign.Status
	if len(from) > 0 && !containsStatus(from, current) {
		return errno.Wrapf(errno.ErrInvalidTransition, "campaign %s is %s", campaignID, current)
	}
	if err := s.campaignRepo.UpdateStatus(ctx, nil, campaignID, current, target, note); err != nil {
		return err
	}

	logger.Info("campaign status changed",
		zap.String("campaign_id", campaignID),
		zap.String("from", string(current)),
		zap.String("to", string(target)))
	return nil
}

func containsStatus(list []model.CampaignStatus, s model.CampaignStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
