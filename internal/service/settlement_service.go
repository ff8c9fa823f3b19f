package service

import (
	"context"
	"time"

	"crowdfund/internal/model"
	"crowdfund/internal/repository"
	"crowdfund/pkg/errno"
	"crowdfund/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SettlementService is the ledger side of the payout handshake: the payout
// processor lists pending withdrawals and marks them settled once paid.
type SettlementService struct {
	settlementRepo *repository.SettlementRepository
}

func NewSettlementService(db *gorm.DB) *SettlementService {
	return &SettlementService{settlementRepo: repository.NewSettlementRepository(db)}
}

func (s *SettlementService) ListPending(ctx context.Context, limit int) ([]*model.Settlement, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.settlementRepo.ListPending(ctx, limit)
}

func (s *SettlementService) MarkSettled(ctx context.Context, entryNo string) (*model.Settlement, error) {
	ok, err := s.settlementRepo.MarkSettled(ctx, entryNo, time.Now())
	if err != nil {
		return nil, err
	}

	settlement, err := s.settlementRepo.GetByEntryNo(ctx, nil, entryNo)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errno.Wrapf(errno.ErrInvalidTransition, "settlement %s is already %s", entryNo, settlement.Status)
	}

	logger.Info("settlement marked settled",
		zap.String("entry_no", entryNo),
		zap.String("account_id", settlement.AccountID))
	return settlement, nil
}
