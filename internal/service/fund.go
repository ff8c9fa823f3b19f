package service

import (
	"context"
	"fmt"

	"crowdfund/internal/model"
	"crowdfund/internal/repository"
	"crowdfund/pkg/errno"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ClaimExceedsAvailableError is returned when a claim asks for more than
// the campaign's raised minus claimed amount.
type ClaimExceedsAvailableError struct {
	CampaignID string
	Requested  decimal.Decimal
	Available  decimal.Decimal
	Currency   string
}

func (e *ClaimExceedsAvailableError) Error() string {
	return e.Detail()
}

func (e *ClaimExceedsAvailableError) Detail() string {
	return fmt.Sprintf("%s: requested %s, available %s",
		errno.ErrClaimExceedsAvailable.Message,
		formatMoney(e.Currency, e.Requested),
		formatMoney(e.Currency, e.Available))
}

func (e *ClaimExceedsAvailableError) Unwrap() error {
	return errno.ErrClaimExceedsAvailable
}

// Fund owns a campaign's raised and claimed totals.
type Fund struct {
	db           *gorm.DB
	campaignRepo *repository.CampaignRepository
	accountRepo  *repository.AccountRepository
	currency     string
}

func NewFund(db *gorm.DB, currency string) *Fund {
	return &Fund{
		db:           db,
		campaignRepo: repository.NewCampaignRepository(db),
		accountRepo:  repository.NewAccountRepository(db),
		currency:     currency,
	}
}

// RecordContribution adds amount to raised_amount inside tx.
func (f *Fund) RecordContribution(ctx context.Context, tx *gorm.DB, campaignID string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return errno.Wrapf(errno.ErrInvalidAmount, "contribution must be positive, got %s", amount)
	}

	ok, err := f.campaignRepo.AddRaised(ctx, tx, campaignID, amount)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	campaign, err := f.campaignRepo.Get(ctx, tx, campaignID)
	if err != nil {
		return err
	}
	return errno.Wrapf(errno.ErrCampaignNotActive, "campaign %s is %s", campaignID, campaign.Status)
}

// RecordClaim adds amount to claimed_amount inside tx after checking that
// callerID is the campaign's verified creator.
func (f *Fund) RecordClaim(ctx context.Context, tx *gorm.DB, campaignID, callerID string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return errno.Wrapf(errno.ErrInvalidAmount, "claim must be positive, got %s", amount)
	}

	campaign, err := f.campaignRepo.Get(ctx, tx, campaignID)
	if err != nil {
		return err
	}
	if err := f.checkCreator(ctx, tx, campaign, callerID); err != nil {
		return err
	}
	if !campaign.Status.Claimable() {
		return errno.Wrapf(errno.ErrCampaignNotActive, "campaign %s is %s", campaignID, campaign.Status)
	}

	ok, err := f.campaignRepo.AddClaimed(ctx, tx, campaignID, amount)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	// re-read to report what is left
	campaign, err = f.campaignRepo.Get(ctx, tx, campaignID)
	if err != nil {
		return err
	}
	if !campaign.Status.Claimable() {
		return errno.Wrapf(errno.ErrCampaignNotActive, "campaign %s is %s", campaignID, campaign.Status)
	}
	return &ClaimExceedsAvailableError{
		CampaignID: campaignID,
		Requested:  amount,
		Available:  campaign.Available(),
		Currency:   f.currency,
	}
}

func (f *Fund) checkCreator(ctx context.Context, tx *gorm.DB, campaign *model.Campaign, callerID string) error {
	if campaign.CreatorAccountID != callerID {
		return errno.Wrapf(errno.ErrCreatorEligibility, "only the creator of campaign %s can claim", campaign.CampaignID)
	}
	creator, err := f.accountRepo.Get(ctx, tx, callerID)
	if err != nil {
		return err
	}
	if creator.VerificationStatus != model.VerificationVerified {
		return errno.Wrapf(errno.ErrCreatorEligibility, "creator %s is %s, must be verified", callerID, creator.VerificationStatus)
	}
	return nil
}

// AvailableToClaim returns raised minus claimed, never negative.
func (f *Fund) AvailableToClaim(ctx context.Context, campaignID string) (decimal.Decimal, error) {
	campaign, err := f.campaignRepo.Get(ctx, nil, campaignID)
	if err != nil {
		return decimal.Zero, err
	}
	return campaign.Available(), nil
}

func (f *Fund) Get(ctx context.Context, campaignID string) (*model.Campaign, error) {
	return f.campaignRepo.Get(ctx, nil, campaignID)
}

// Lock takes the campaign's row lock inside tx.
func (f *Fund) Lock(ctx context.Context, tx *gorm.DB, campaignID string) (*model.Campaign, error) {
	return f.campaignRepo.GetForUpdate(ctx, tx, campaignID)
}

// Rebuild overwrites raised and claimed with values derived from the log.
func (f *Fund) Rebuild(ctx context.Context, tx *gorm.DB, campaignID string, raised, claimed decimal.Decimal) error {
	if raised.IsNegative() || claimed.IsNegative() || claimed.GreaterThan(raised) {
		return errno.Wrapf(errno.ErrValidation, "derived totals of %s are inconsistent: raised %s, claimed %s",
			campaignID, raised, claimed)
	}
	return f.campaignRepo.OverwriteTotals(ctx, tx, campaignID, raised, claimed)
}

func (f *Fund) ListCampaigns(ctx context.Context, afterID int64, limit int) ([]*model.Campaign, error) {
	return f.campaignRepo.ListAfter(ctx, afterID, limit)
}
