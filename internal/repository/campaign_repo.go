package repository

import (
	"context"
	"errors"

	"crowdfund/internal/model"
	"crowdfund/pkg/errno"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CampaignRepository struct {
	db *gorm.DB
}

func NewCampaignRepository(db *gorm.DB) *CampaignRepository {
	return &CampaignRepository{db: db}
}

func (r *CampaignRepository) Create(ctx context.Context, tx *gorm.DB, campaign *model.Campaign) error {
	return storageErr(pick(tx, r.db).WithContext(ctx).Create(campaign).Error)
}

func (r *CampaignRepository) Get(ctx context.Context, tx *gorm.DB, campaignID string) (*model.Campaign, error) {
	var campaign model.Campaign
	err := pick(tx, r.db).WithContext(ctx).Where("campaign_id = ?", campaignID).First(&campaign).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errno.Wrapf(errno.ErrNotFound, "campaign %s", campaignID)
		}
		return nil, storageErr(err)
	}
	return &campaign, nil
}

func (r *CampaignRepository) GetForUpdate(ctx context.Context, tx *gorm.DB, campaignID string) (*model.Campaign, error) {
	var campaign model.Campaign
	err := forUpdate(tx.WithContext(ctx)).
		Where("campaign_id = ?", campaignID).
		First(&campaign).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errno.Wrapf(errno.ErrNotFound, "campaign %s", campaignID)
		}
		return nil, storageErr(err)
	}
	return &campaign, nil
}

// UpdateStatus applies a moderation transition guarded by the current status.
func (r *CampaignRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, campaignID string, from, to model.CampaignStatus, note string) error {
	if !from.CanTransitionTo(to) {
		return errno.Wrapf(errno.ErrInvalidTransition, "campaign %s -> %s", from, to)
	}

	result := pick(tx, r.db).WithContext(ctx).
		Model(&model.Campaign{}).
		Where("campaign_id = ? AND status = ?", campaignID, from).
		Updates(map[string]interface{}{
			"status":          to,
			"moderation_note": note,
		})
	if result.Error != nil {
		return storageErr(result.Error)
	}
	if result.RowsAffected == 0 {
		return errno.Wrapf(errno.ErrInvalidTransition, "campaign %s is no longer %s", campaignID, from)
	}
	return nil
}

// AddRaised increases raised_amount while the campaign is active.
func (r *CampaignRepository) AddRaised(ctx context.Context, tx *gorm.DB, campaignID string, amount decimal.Decimal) (bool, error) {
	result := tx.WithContext(ctx).
		Model(&model.Campaign{}).
		Where("campaign_id = ? AND status = ?", campaignID, model.CampaignActive).
		Update("raised_amount", gorm.Expr(addAmount("raised_amount"), amount))
	if result.Error != nil {
		return false, storageErr(result.Error)
	}
	return result.RowsAffected > 0, nil
}

// AddClaimed increases claimed_amount only while it stays within
// raised_amount and the campaign is claimable.
func (r *CampaignRepository) AddClaimed(ctx context.Context, tx *gorm.DB, campaignID string, amount decimal.Decimal) (bool, error) {
	result := tx.WithContext(ctx).
		Model(&model.Campaign{}).
		Where("campaign_id = ? AND status IN ? AND "+addAmount("claimed_amount")+" <= raised_amount",
			campaignID, []model.CampaignStatus{model.CampaignActive, model.CampaignCompleted}, amount).
		Update("claimed_amount", gorm.Expr(addAmount("claimed_amount"), amount))
	if result.Error != nil {
		return false, storageErr(result.Error)
	}
	return result.RowsAffected > 0, nil
}

// OverwriteTotals replaces raised and claimed. Only reconciliation calls it.
func (r *CampaignRepository) OverwriteTotals(ctx context.Context, tx *gorm.DB, campaignID string, raised, claimed decimal.Decimal) error {
	result := tx.WithContext(ctx).
		Model(&model.Campaign{}).
		Where("campaign_id = ?", campaignID).
		Updates(map[string]interface{}{
			"raised_amount":  raised,
			"claimed_amount": claimed,
		})
	if result.Error != nil {
		return storageErr(result.Error)
	}
	if result.RowsAffected == 0 {
		return errno.Wrapf(errno.ErrNotFound, "campaign %s", campaignID)
	}
	return nil
}

// List returns one page of campaigns, newest first. An empty status lists all.
func (r *CampaignRepository) List(ctx context.Context, status model.CampaignStatus, page, pageSize int) ([]*model.Campaign, int64, error) {
	var campaigns []*model.Campaign
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Campaign{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, storageErr(err)
	}

	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&campaigns).Error

	return campaigns, total, storageErr(err)
}

// ListAfter pages through campaigns by primary key.
func (r *CampaignRepository) ListAfter(ctx context.Context, afterID int64, limit int) ([]*model.Campaign, error) {
	var campaigns []*model.Campaign
	err := r.db.WithContext(ctx).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&campaigns).Error
	return campaigns, storageErr(err)
}
