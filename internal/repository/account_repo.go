package repository

import (
	"context"
	"errors"
	"fmt"

	"crowdfund/internal/model"
	"crowdfund/pkg/errno"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// CreateIfAbsent inserts a zero-balance unverified account unless one with
// the same id exists, then returns the stored row.
func (r *AccountRepository) CreateIfAbsent(ctx context.Context, tx *gorm.DB, accountID string) (*model.Account, error) {
	tx = pick(tx, r.db)
	account := &model.Account{
		AccountID:            accountID,
		SpendableBalance:     decimal.Zero,
		TipsBalance:          decimal.Zero,
		ContributionsBalance: decimal.Zero,
		VerificationStatus:   model.VerificationUnverified,
	}

	err := tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account_id"}},
			DoNothing: true,
		}).
		Create(account).Error
	if err != nil {
		return nil, storageErr(err)
	}

	return r.Get(ctx, tx, accountID)
}

func (r *AccountRepository) Get(ctx context.Context, tx *gorm.DB, accountID string) (*model.Account, error) {
	var account model.Account
	err := pick(tx, r.db).WithContext(ctx).Where("account_id = ?", accountID).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errno.Wrapf(errno.ErrNotFound, "account %s", accountID)
		}
		return nil, storageErr(err)
	}
	return &account, nil
}

// GetForUpdate reads the row under an exclusive row lock held until tx ends.
func (r *AccountRepository) GetForUpdate(ctx context.Context, tx *gorm.DB, accountID string) (*model.Account, error) {
	var account model.Account
	err := forUpdate(tx.WithContext(ctx)).
		Where("account_id = ?", accountID).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errno.Wrapf(errno.ErrNotFound, "account %s", accountID)
		}
		return nil, storageErr(err)
	}
	return &account, nil
}

// AddToBalance adds delta to one balance column only if the result stays
// non-negative. It reports false when no row matched the condition.
func (r *AccountRepository) AddToBalance(ctx context.Context, tx *gorm.DB, accountID string, field model.BalanceField, delta decimal.Decimal) (bool, error) {
	if !field.Valid() {
		return false, errno.Wrapf(errno.ErrValidation, "unknown balance field %q", field)
	}
	col := string(field)

	result := tx.WithContext(ctx).
		Model(&model.Account{}).
		Where(fmt.Sprintf("account_id = ? AND %s >= 0", addAmount(col)), accountID, delta).
		Updates(map[string]interface{}{
			col:       gorm.Expr(addAmount(col), delta),
			"version": gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return false, storageErr(result.Error)
	}
	return result.RowsAffected > 0, nil
}

// Overwrite replaces all three balances. Only reconciliation calls it.
func (r *AccountRepository) Overwrite(ctx context.Context, tx *gorm.DB, accountID string, b model.Balances) error {
	result := tx.WithContext(ctx).
		Model(&model.Account{}).
		Where("account_id = ?", accountID).
		Updates(map[string]interface{}{
			string(model.FieldSpendable):     b.Spendable,
			string(model.FieldTips):          b.Tips,
			string(model.FieldContributions): b.Contributions,
			"version":                        gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return storageErr(result.Error)
	}
	if result.RowsAffected == 0 {
		return errno.Wrapf(errno.ErrNotFound, "account %s", accountID)
	}
	return nil
}

// UpdateVerificationStatus moves the KYC status from one value to another.
// It fails with ErrInvalidTransition when the row is no longer in from.
func (r *AccountRepository) UpdateVerificationStatus(ctx context.Context, tx *gorm.DB, accountID string, from, to model.VerificationStatus) error {
	if !from.CanTransitionTo(to) {
		return errno.Wrapf(errno.ErrInvalidTransition, "verification %s -> %s", from, to)
	}

	result := pick(tx, r.db).WithContext(ctx).
		Model(&model.Account{}).
		Where("account_id = ? AND verification_status = ?", accountID, from).
		Update("verification_status", to)
	if result.Error != nil {
		return storageErr(result.Error)
	}
	if result.RowsAffected == 0 {
		return errno.Wrapf(errno.ErrInvalidTransition, "verification of %s changed concurrently", accountID)
	}
	return nil
}

func (r *AccountRepository) SetDisabled(ctx context.Context, accountID string, disabled bool) error {
	result := r.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("account_id = ?", accountID).
		Update("disabled", disabled)
	if result.Error != nil {
		return storageErr(result.Error)
	}
	if result.RowsAffected == 0 {
		// mysql reports zero rows when the flag already had this value
		_, err := r.Get(ctx, nil, accountID)
		return err
	}
	return nil
}

// ListAfter pages through accounts by primary key.
func (r *AccountRepository) ListAfter(ctx context.Context, afterID int64, limit int) ([]*model.Account, error) {
	var accounts []*model.Account
	err := r.db.WithContext(ctx).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&accounts).Error
	return accounts, storageErr(err)
}
