package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"crowdfund/internal/config"
	"crowdfund/internal/infrastructure/lock"
	"crowdfund/internal/model"
	"crowdfund/internal/repository"
	"crowdfund/pkg/errno"
	"crowdfund/pkg/logger"
	"crowdfund/pkg/monitor"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultOperationTimeout = 10 * time.Second

// IdentityProvider reports an account's KYC status. The coordinator only
// reads it.
type IdentityProvider interface {
	VerificationStatus(ctx context.Context, accountID string) (model.VerificationStatus, error)
}

// CampaignDirectory reports a campaign's moderation status.
type CampaignDirectory interface {
	Status(ctx context.Context, campaignID string) (model.CampaignStatus, error)
}

// Coordinator is the entry point for every money movement. Each operation
// is checked, then applied to the Ledger and Fund and appended to the
// TransactionLog in one database transaction.
type Coordinator struct {
	db             *gorm.DB
	ledger         *Ledger
	fund           *Fund
	txLog          *TransactionLog
	identity       IdentityProvider
	campaigns      CampaignDirectory
	outboxRepo     *repository.OutboxRepository
	settlementRepo *repository.SettlementRepository
	locker         lock.Locker
	limits         config.Limits
	topics         config.KafkaTopicConfig
}

func NewCoordinator(
	db *gorm.DB,
	ledger *Ledger,
	fund *Fund,
	txLog *TransactionLog,
	identity IdentityProvider,
	campaigns CampaignDirectory,
	limits config.Limits,
	topics config.KafkaTopicConfig,
) *Coordinator {
	if limits.OperationTimeout <= 0 {
		limits.OperationTimeout = defaultOperationTimeout
	}
	return &Coordinator{
		db:             db,
		ledger:         ledger,
		fund:           fund,
		txLog:          txLog,
		identity:       identity,
		campaigns:      campaigns,
		outboxRepo:     repository.NewOutboxRepository(db),
		settlementRepo: repository.NewSettlementRepository(db),
		limits:         limits,
		topics:         topics,
	}
}

// SetLocker adds a cross-instance lock taken before the database
// transaction. Row locks alone are enough on a single database.
func (c *Coordinator) SetLocker(l lock.Locker) {
	c.locker = l
}

// Deposit credits spendable balance from outside the platform.
func (c *Coordinator) Deposit(ctx context.Context, accountID string, amount decimal.Decimal, idempotencyKey, remark string) (*Result, error) {
	return c.execute(ctx, &operation{
		name:    OpDeposit,
		key:     idempotencyKey,
		kind:    model.KindDeposit,
		actorID: accountID,
		amount:  amount,
		remark:  remark,
	})
}

// Contribute moves amount from the contributor's spendable balance to the
// campaign. The creator's contributions balance grows by the same amount.
func (c *Coordinator) Contribute(ctx context.Context, campaignID, contributorID string, amount decimal.Decimal, idempotencyKey string) (*Result, error) {
	return c.execute(ctx, &operation{
		name:          OpContribute,
		key:           idempotencyKey,
		kind:          model.KindContribution,
		actorID:       contributorID,
		amount:        amount,
		campaignID:    campaignID,
		requireActive: true,
		reserveField:  model.FieldSpendable,
	})
}

// Tip moves amount from the tipper's spendable balance to the campaign
// creator's tips balance.
func (c *Coordinator) Tip(ctx context.Context, campaignID, tipperID string, amount decimal.Decimal, idempotencyKey string) (*Result, error) {
	return c.execute(ctx, &operation{
		name:          OpTip,
		key:           idempotencyKey,
		kind:          model.KindTip,
		actorID:       tipperID,
		amount:        amount,
		campaignID:    campaignID,
		requireActive: true,
		reserveField:  model.FieldSpendable,
	})
}

// ClaimContribution moves amount of a campaign's unclaimed funds to the
// creator's spendable balance. The platform fee is logged as its own entry
// and Result.NetAmount is what the creator keeps.
func (c *Coordinator) ClaimContribution(ctx context.Context, campaignID, callerID string, amount decimal.Decimal, idempotencyKey string) (*Result, error) {
	return c.execute(ctx, &operation{
		name:            OpClaimContribution,
		key:             idempotencyKey,
		kind:            model.KindClaimContribution,
		actorID:         callerID,
		amount:          amount,
		campaignID:      campaignID,
		requireVerified: true,
		requireCreator:  true,
	})
}

// ClaimTip moves amount from the caller's tips balance to spendable.
func (c *Coordinator) ClaimTip(ctx context.Context, callerID string, amount decimal.Decimal, idempotencyKey string) (*Result, error) {
	return c.execute(ctx, &operation{
		name:            OpClaimTip,
		key:             idempotencyKey,
		kind:            model.KindClaimTip,
		actorID:         callerID,
		amount:          amount,
		requireVerified: true,
		reserveField:    model.FieldTips,
	})
}

// Withdraw debits spendable balance and leaves a pending settlement for
// the payout processor.
func (c *Coordinator) Withdraw(ctx context.Context, callerID string, amount decimal.Decimal, idempotencyKey string) (*Result, error) {
	return c.execute(ctx, &operation{
		name:            OpWithdraw,
		key:             idempotencyKey,
		kind:            model.KindWithdrawal,
		actorID:         callerID,
		amount:          amount,
		requireVerified: true,
		reserveField:    model.FieldSpendable,
	})
}

func (c *Coordinator) execute(ctx context.Context, op *operation) (res *Result, err error) {
	started := time.Now()
	defer func() {
		outcome := "committed"
		if err != nil {
			outcome = "aborted"
		} else if res.Replayed {
			outcome = "replayed"
		}
		monitor.ObserveOperation(op.name, outcome, started)
	}()

	replayed, err := c.validate(ctx, op)
	if err != nil {
		return nil, c.abort(op, err)
	}
	if replayed != nil {
		return replayed, nil
	}
	op.stage = StageValidated

	if err := c.reserve(ctx, op); err != nil {
		return nil, c.abort(op, err)
	}
	op.stage = StageReserved

	if c.locker != nil {
		release, err := c.locker.Acquire(ctx, op.lockKeys()...)
		if err != nil {
			return nil, c.abort(op, err)
		}
		defer release()
	}

	// From here on the outcome must be definite even if the caller gives up.
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.limits.OperationTimeout)
	defer cancel()

	err = c.db.WithContext(runCtx).Transaction(func(tx *gorm.DB) error {
		entries := op.entries()

		if err := c.apply(runCtx, tx, op, entries); err != nil {
			return err
		}
		op.stage = StageApplied

		r, err := c.record(runCtx, tx, op, entries)
		if err != nil {
			return err
		}
		op.stage = StageLogged
		res = r
		return nil
	})
	if err != nil {
		if errors.Is(err, errno.ErrDuplicateEntry) {
			// a request with the same key committed between our check and insert
			return c.replayStored(runCtx, op)
		}
		return nil, c.abort(op, err)
	}

	op.stage = StageCommitted
	c.committed(op, res)
	return res, nil
}

// validate runs the Validated stage. It returns a non-nil Result when the
// idempotency key was already committed.
func (c *Coordinator) validate(ctx context.Context, op *operation) (*Result, error) {
	if op.key == "" {
		return nil, errno.Wrapf(errno.ErrValidation, "idempotency key is required")
	}
	if len(op.key) > maxIDLength {
		return nil, errno.Wrapf(errno.ErrValidation, "idempotency key longer than %d characters", maxIDLength)
	}
	if strings.HasSuffix(op.key, feeKeySuffix) {
		return nil, errno.Wrapf(errno.ErrValidation, "idempotency key %s uses the reserved suffix %q", op.key, feeKeySuffix)
	}
	if op.actorID == "" {
		return nil, errno.Wrapf(errno.ErrValidation, "actor is required")
	}
	if !validAmount(op.amount) {
		return nil, errno.Wrapf(errno.ErrValidation, "amount must be positive with at most 2 decimals, got %s", op.amount)
	}
	if op.amount.GreaterThan(c.limits.MaxPerOperation) {
		return nil, errno.Wrapf(errno.ErrValidation, "amount %s exceeds the per-operation limit of %s",
			c.money(op.amount), c.money(c.limits.MaxPerOperation))
	}

	existing, err := c.txLog.FindByIdempotencyKey(ctx, op.key)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return c.replayEntry(ctx, op, existing)
	}

	actor, err := c.ledger.GetAccount(ctx, op.actorID)
	if err != nil {
		if isNotFound(err) {
			return nil, errno.Wrapf(errno.ErrValidation, "account %s does not exist", op.actorID)
		}
		return nil, err
	}
	if actor.Disabled {
		return nil, errno.Wrapf(errno.ErrAccountDisabled, "account %s", op.actorID)
	}

	if op.requireVerified {
		status, err := c.identity.VerificationStatus(ctx, op.actorID)
		if err != nil {
			return nil, err
		}
		if status != model.VerificationVerified {
			return nil, errno.Wrapf(errno.ErrCreatorEligibility, "account %s is %s, must be verified", op.actorID, status)
		}
	}

	if op.campaignID != "" {
		if err := c.validateCampaign(ctx, op); err != nil {
			return nil, err
		}
	}

	if op.kind == model.KindClaimContribution {
		op.fee = op.amount.Mul(c.limits.PlatformFeeRate).Round(2)
		op.feeAccountID = c.limits.FeeAccountID
	}
	return nil, nil
}

func (c *Coordinator) validateCampaign(ctx context.Context, op *operation) error {
	campaign, err := c.fund.Get(ctx, op.campaignID)
	if err != nil {
		if isNotFound(err) {
			return errno.Wrapf(errno.ErrValidation, "campaign %s does not exist", op.campaignID)
		}
		return err
	}

	status, err := c.campaigns.Status(ctx, op.campaignID)
	if err != nil {
		return err
	}

	if op.requireCreator && campaign.CreatorAccountID != op.actorID {
		return errno.Wrapf(errno.ErrCreatorEligibility, "only the creator of campaign %s can claim", op.campaignID)
	}
	if op.requireActive && status != model.CampaignActive {
		return errno.Wrapf(errno.ErrCampaignNotActive, "campaign %s is %s", op.campaignID, status)
	}
	if op.kind == model.KindClaimContribution && !status.Claimable() {
		return errno.Wrapf(errno.ErrCampaignNotActive, "campaign %s is %s", op.campaignID, status)
	}

	if op.kind == model.KindContribution || op.kind == model.KindTip {
		op.beneficiaryID = campaign.CreatorAccountID
	}
	return nil
}

// reserve runs the advisory Reserved stage. Passing it guarantees nothing;
// the conditional updates in apply decide.
func (c *Coordinator) reserve(ctx context.Context, op *operation) error {
	if op.reserveField != "" {
		balances, err := c.ledger.GetBalances(ctx, op.actorID)
		if err != nil {
			return err
		}
		available := balances.Get(op.reserveField)
		if available.LessThan(op.amount) {
			return errno.Wrapf(errno.ErrInsufficientBalance, "%s of %s: requested %s, available %s",
				fieldLabel(op.reserveField), op.actorID, c.money(op.amount), c.money(available))
		}
	}

	if op.kind == model.KindClaimContribution {
		available, err := c.fund.AvailableToClaim(ctx, op.campaignID)
		if err != nil {
			return err
		}
		if op.amount.GreaterThan(available) {
			return &ClaimExceedsAvailableError{
				CampaignID: op.campaignID,
				Requested:  op.amount,
				Available:  available,
				Currency:   c.limits.CurrencySymbol,
			}
		}
	}
	return nil
}

// apply locks the rows involved, re-checks the gates on the locked rows and
// applies every entry's effects through the Fund and the Ledger.
func (c *Coordinator) apply(ctx context.Context, tx *gorm.DB, op *operation, entries []*model.LedgerEntry) error {
	accounts, err := c.ledger.LockAccounts(ctx, tx, op.accountIDs()...)
	if err != nil {
		return err
	}
	actor := accounts[op.actorID]
	if actor.Disabled {
		return errno.Wrapf(errno.ErrAccountDisabled, "account %s", op.actorID)
	}
	if op.requireVerified && actor.VerificationStatus != model.VerificationVerified {
		return errno.Wrapf(errno.ErrCreatorEligibility, "account %s is %s, must be verified", op.actorID, actor.VerificationStatus)
	}

	if op.campaignID != "" {
		campaign, err := c.fund.Lock(ctx, tx, op.campaignID)
		if err != nil {
			return err
		}
		if op.requireActive && campaign.Status != model.CampaignActive {
			return errno.Wrapf(errno.ErrCampaignNotActive, "campaign %s is %s", op.campaignID, campaign.Status)
		}
	}

	for _, e := range entries {
		accountEffects, campaignEffect := e.Effects()

		if campaignEffect != nil {
			if campaignEffect.Raised.IsPositive() {
				if err := c.fund.RecordContribution(ctx, tx, campaignEffect.CampaignID, campaignEffect.Raised); err != nil {
					return err
				}
			}
			if campaignEffect.Claimed.IsPositive() {
				if err := c.fund.RecordClaim(ctx, tx, campaignEffect.CampaignID, op.actorID, campaignEffect.Claimed); err != nil {
					return err
				}
			}
		}

		for _, eff := range accountEffects {
			if err := c.ledger.ApplyDelta(ctx, tx, eff.AccountID, eff.Field, eff.Delta); err != nil {
				return err
			}
		}
	}
	return nil
}

// record appends the entries, the settlement marker and the outbox events.
func (c *Coordinator) record(ctx context.Context, tx *gorm.DB, op *operation, entries []*model.LedgerEntry) (*Result, error) {
	res := &Result{NetAmount: op.amount.Sub(op.fee)}

	for i, e := range entries {
		logged, err := c.txLog.Append(ctx, tx, e)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			res.Entry = logged
		} else {
			res.Fee = logged
		}
		if err := c.enqueue(ctx, tx, c.topics.Entries, logged.EntryNo, model.NewEntryEvent(logged)); err != nil {
			return nil, err
		}
	}

	if op.kind == model.KindWithdrawal {
		settlement := &model.Settlement{
			EntryNo:   res.Entry.EntryNo,
			AccountID: op.actorID,
			Amount:    op.amount,
			Status:    model.SettlementPending,
		}
		if err := c.settlementRepo.Create(ctx, tx, settlement); err != nil {
			return nil, err
		}
		res.Settlement = settlement

		event := model.WithdrawalEvent{
			EntryNo:   settlement.EntryNo,
			AccountID: settlement.AccountID,
			Amount:    settlement.Amount.StringFixed(2),
		}
		if err := c.enqueue(ctx, tx, c.topics.Withdrawals, settlement.EntryNo, event); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (c *Coordinator) enqueue(ctx context.Context, tx *gorm.DB, topic, key string, payload any) error {
	if topic == "" {
		return nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return c.outboxRepo.Create(ctx, tx, &model.OutboxMessage{
		MessageKey: key,
		Topic:      topic,
		Payload:    string(body),
		Status:     model.OutboxStatusPending,
	})
}

// replayStored answers a request whose key turned out to be taken when
// its own insert ran.
func (c *Coordinator) replayStored(ctx context.Context, op *operation) (*Result, error) {
	existing, err := c.txLog.FindByIdempotencyKey(ctx, op.key)
	if err != nil {
		return nil, c.abort(op, err)
	}
	if existing == nil {
		if op.fee.IsPositive() {
			fee, err := c.txLog.FindByIdempotencyKey(ctx, feeKeyFor(op.key))
			if err != nil {
				return nil, c.abort(op, err)
			}
			if fee != nil {
				// retrying cannot help while another entry holds the fee key
				return nil, c.abort(op, errno.Wrapf(errno.ErrValidation,
					"idempotency key %s collides with fee entry %s", op.key, fee.EntryNo))
			}
		}
		return nil, c.abort(op, errno.Wrapf(errno.ErrStorage, "entry number collision for key %s", op.key))
	}
	res, err := c.replayEntry(ctx, op, existing)
	if err != nil {
		return nil, c.abort(op, err)
	}
	return res, nil
}

// replayEntry rebuilds the Result of an already committed operation.
func (c *Coordinator) replayEntry(ctx context.Context, op *operation, existing *model.LedgerEntry) (*Result, error) {
	if !op.matches(existing) {
		return nil, errno.Wrapf(errno.ErrValidation, "idempotency key %s was already used for a different request", op.key)
	}

	res := &Result{Entry: existing, NetAmount: existing.Amount, Replayed: true}

	if existing.Kind == model.KindClaimContribution {
		fee, err := c.txLog.FindByIdempotencyKey(ctx, feeKeyFor(op.key))
		if err != nil {
			return nil, err
		}
		if fee != nil {
			res.Fee = fee
			res.NetAmount = existing.Amount.Sub(fee.Amount)
		}
	}
	if existing.Kind == model.KindWithdrawal {
		settlement, err := c.settlementRepo.GetByEntryNo(ctx, nil, existing.EntryNo)
		if err != nil {
			return nil, err
		}
		res.Settlement = settlement
	}

	logger.Info("operation replayed",
		zap.String("operation", op.name),
		zap.String("key", op.key),
		zap.String("entry_no", existing.EntryNo))
	return res, nil
}

func (c *Coordinator) abort(op *operation, err error) error {
	reached := op.stage
	op.stage = StageAborted
	err = errno.Storage(err)

	logger.Warn("operation aborted",
		zap.String("operation", op.name),
		zap.String("key", op.key),
		zap.String("actor", op.actorID),
		zap.Stringer("reached", reached),
		zap.Error(err))
	return err
}

func (c *Coordinator) committed(op *operation, res *Result) {
	monitor.ObserveAmount(string(res.Entry.Kind), res.Entry.Amount)
	if res.Fee != nil {
		monitor.ObserveAmount(string(res.Fee.Kind), res.Fee.Amount)
	}

	logger.Info("operation committed",
		zap.String("operation", op.name),
		zap.String("key", op.key),
		zap.String("actor", op.actorID),
		zap.String("entry_no", res.Entry.EntryNo),
		zap.String("amount", res.Entry.Amount.StringFixed(2)),
		zap.String("net", res.NetAmount.StringFixed(2)))
}

func (c *Coordinator) money(a decimal.Decimal) string {
	return formatMoney(c.limits.CurrencySymbol, a)
}
