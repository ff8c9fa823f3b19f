package repository

import (
	"context"
	"errors"
	"time"

	"crowdfund/internal/model"
	"crowdfund/pkg/errno"

	"gorm.io/gorm"
)

type SettlementRepository struct {
	db *gorm.DB
}

func NewSettlementRepository(db *gorm.DB) *SettlementRepository {
	return &SettlementRepository{db: db}
}

func (r *SettlementRepository) Create(ctx context.Context, tx *gorm.DB, s *model.Settlement) error {
	return storageErr(pick(tx, r.db).WithContext(ctx).Create(s).Error)
}

func (r *SettlementRepository) GetByEntryNo(ctx context.Context, tx *gorm.DB, entryNo string) (*model.Settlement, error) {
	var s model.Settlement
	err := pick(tx, r.db).WithContext(ctx).Where("entry_no = ?", entryNo).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errno.Wrapf(errno.ErrNotFound, "settlement %s", entryNo)
		}
		return nil, storageErr(err)
	}
	return &s, nil
}

func (r *SettlementRepository) ListPending(ctx context.Context, limit int) ([]*model.Settlement, error) {
	var settlements []*model.Settlement
	err := r.db.WithContext(ctx).
		Where("status = ?", model.SettlementPending).
		Order("id ASC").
		Limit(limit).
		Find(&settlements).Error
	return settlements, storageErr(err)
}

// MarkSettled reports false when the settlement was not pending.
func (r *SettlementRepository) MarkSettled(ctx context.Context, entryNo string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Settlement{}).
		Where("entry_no = ? AND status = ?", entryNo, model.SettlementPending).
		Updates(map[string]interface{}{
			"status":     model.SettlementSettled,
			"settled_at": at,
		})
	if result.Error != nil {
		return false, storageErr(result.Error)
	}
	return result.RowsAffected > 0, nil
}
