package service

import (
	"context"

	"crowdfund/internal/model"
	"crowdfund/internal/repository"
	"crowdfund/pkg/errno"
	"crowdfund/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// KYCService keeps the verification status of accounts. Document review
// happens elsewhere; only the resulting decision is recorded here.
type KYCService struct {
	accountRepo *repository.AccountRepository
}

func NewKYCService(db *gorm.DB) *KYCService {
	return &KYCService{accountRepo: repository.NewAccountRepository(db)}
}

// Submit puts an unverified or rejected account into review.
func (s *KYCService) Submit(ctx context.Context, accountID string) error {
	return s.transition(ctx, accountID, model.VerificationPending)
}

func (s *KYCService) Approve(ctx context.Context, accountID string) error {
	return s.transition(ctx, accountID, model.VerificationVerified)
}

// Reject fails a pending review or revokes an earlier approval.
func (s *KYCService) Reject(ctx context.Context, accountID string) error {
	return s.transition(ctx, accountID, model.VerificationRejected)
}

func (s *KYCService) VerificationStatus(ctx context.Context, accountID string) (model.VerificationStatus, error) {
	account, err := s.accountRepo.Get(ctx, nil, accountID)
	if err != nil {
		return "", err
	}
	return account.VerificationStatus, nil
}

func (s *KYCService) transition(ctx context.Context, accountID string, to model.VerificationStatus) error {
	account, err := s.accountRepo.Get(ctx, nil, accountID)
	if err != nil {
		return err
	}
	from := account.VerificationStatus
	if !from.CanTransitionTo(to) {
		return errno.Wrapf(errno.ErrInvalidTransition, "verification of %s cannot go from %s to %s", accountID, from, to)
	}
	if err := s.accountRepo.UpdateVerificationStatus(ctx, nil, accountID, from, to); err != nil {
		return err
	}

	logger.Info("verification status changed",
		zap.String("account_id", accountID),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	return nil
}
