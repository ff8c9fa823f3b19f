package service

import (
	"context"
	"errors"
	"sort"

	"crowdfund/internal/model"
	"crowdfund/internal/repository"
	"crowdfund/pkg/errno"
	"crowdfund/pkg/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Ledger owns account balances. ApplyDelta is the only path that changes
// them during normal operation.
type Ledger struct {
	db          *gorm.DB
	accountRepo *repository.AccountRepository
	currency    string
}

func NewLedger(db *gorm.DB, currency string) *Ledger {
	return &Ledger{
		db:          db,
		accountRepo: repository.NewAccountRepository(db),
		currency:    currency,
	}
}

// Register creates the account with zero balances. Registering an existing
// account returns it unchanged.
func (l *Ledger) Register(ctx context.Context, accountID string) (*model.Account, error) {
	if accountID == "" || len(accountID) > maxIDLength {
		return nil, errno.Wrapf(errno.ErrValidation, "account id must be 1-%d characters", maxIDLength)
	}
	return l.accountRepo.CreateIfAbsent(ctx, nil, accountID)
}

func (l *Ledger) GetAccount(ctx context.Context, accountID string) (*model.Account, error) {
	return l.accountRepo.Get(ctx, nil, accountID)
}

func (l *Ledger) GetBalances(ctx context.Context, accountID string) (model.Balances, error) {
	account, err := l.accountRepo.Get(ctx, nil, accountID)
	if err != nil {
		return model.Balances{}, err
	}
	return account.Balances(), nil
}

// ApplyDelta adds delta to one balance inside tx. A change that would take
// the balance below zero fails with ErrInsufficientBalance and leaves the row
// untouched.
func (l *Ledger) ApplyDelta(ctx context.Context, tx *gorm.DB, accountID string, field model.BalanceField, delta decimal.Decimal) error {
	ok, err := l.accountRepo.AddToBalance(ctx, tx, accountID, field, delta)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	account, err := l.accountRepo.Get(ctx, tx, accountID)
	if err != nil {
		return err
	}
	return errno.Wrapf(errno.ErrInsufficientBalance, "%s of %s: requested %s, available %s",
		fieldLabel(field), accountID,
		formatMoney(l.currency, delta.Neg()),
		formatMoney(l.currency, account.Balances().Get(field)))
}

// LockAccounts takes row locks on every listed account in sorted order and
// returns the locked rows by id.
func (l *Ledger) LockAccounts(ctx context.Context, tx *gorm.DB, accountIDs ...string) (map[string]*model.Account, error) {
	ids := make([]string, 0, len(accountIDs))
	seen := make(map[string]bool, len(accountIDs))
	for _, id := range accountIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	sort.Strings(ids)

	locked := make(map[string]*model.Account, len(ids))
	for _, id := range ids {
		account, err := l.accountRepo.GetForUpdate(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		locked[id] = account
	}
	return locked, nil
}

// Disable soft-disables an account. Disabled accounts keep their balances
// and history but cannot take part in new operations.
func (l *Ledger) Disable(ctx context.Context, accountID string) error {
	if err := l.accountRepo.SetDisabled(ctx, accountID, true); err != nil {
		return err
	}
	logger.Info("account disabled", zap.String("account_id", accountID))
	return nil
}

func (l *Ledger) Enable(ctx context.Context, accountID string) error {
	return l.accountRepo.SetDisabled(ctx, accountID, false)
}

// Rebuild overwrites the cached balances with values derived from the log.
func (l *Ledger) Rebuild(ctx context.Context, tx *gorm.DB, accountID string, b model.Balances) error {
	if b.Spendable.IsNegative() || b.Tips.IsNegative() || b.Contributions.IsNegative() {
		return errno.Wrapf(errno.ErrValidation, "derived balances of %s are negative", accountID)
	}
	return l.accountRepo.Overwrite(ctx, tx, accountID, b)
}

// ListAccounts pages through all accounts by internal id.
func (l *Ledger) ListAccounts(ctx context.Context, afterID int64, limit int) ([]*model.Account, error) {
	return l.accountRepo.ListAfter(ctx, afterID, limit)
}

func fieldLabel(f model.BalanceField) string {
	switch f {
	case model.FieldSpendable:
		return "spendable balance"
	case model.FieldTips:
		return "tips balance"
	case model.FieldContributions:
		return "contributions balance"
	}
	return string(f)
}

func isNotFound(err error) bool {
	return errors.Is(err, errno.ErrNotFound)
}
