package service

import (
	"crowdfund/internal/model"

	"github.com/shopspring/decimal"
)

// Stage is a state of the per-operation state machine. Every operation
// moves Validated -> Reserved -> Applied -> Logged -> Committed, or stops
// at Aborted from any stage before Committed.
type Stage int

const (
	StageReceived Stage = iota
	StageValidated
	StageReserved
	StageApplied
	StageLogged
	StageCommitted
	StageAborted
)

func (s Stage) String() string {
	switch s {
	case StageReceived:
		return "received"
	case StageValidated:
		return "validated"
	case StageReserved:
		return "reserved"
	case StageApplied:
		return "applied"
	case StageLogged:
		return "logged"
	case StageCommitted:
		return "committed"
	case StageAborted:
		return "aborted"
	}
	return "unknown"
}

const (
	OpDeposit           = "deposit"
	OpContribute        = "contribute"
	OpTip               = "tip"
	OpClaimContribution = "claim_contribution"
	OpClaimTip          = "claim_tip"
	OpWithdraw          = "withdraw"
)

// Result is what a committed (or replayed) operation returns.
type Result struct {
	Entry      *model.LedgerEntry `json:"entry"`
	Fee        *model.LedgerEntry `json:"fee,omitempty"`
	NetAmount  decimal.Decimal    `json:"net_amount"`
	Settlement *model.Settlement  `json:"settlement,omitempty"`
	// Replayed is true when the idempotency key had already been committed
	// and the stored outcome was returned instead of applying it again.
	Replayed bool `json:"replayed"`
}

// operation is the plan one coordinator call executes.
type operation struct {
	name    string
	key     string
	kind    model.EntryKind
	actorID string
	amount  decimal.Decimal
	remark  string

	// beneficiaryID is credited by contribution and tip entries.
	beneficiaryID string
	campaignID    string

	// gates checked in Validated and again under lock in Applied
	requireVerified bool
	requireActive   bool
	requireCreator  bool

	// reserveField is the actor balance the Reserved stage checks; empty
	// for credits and claims.
	reserveField model.BalanceField

	fee          decimal.Decimal
	feeAccountID string

	stage Stage
}

// entries builds the rows this operation logs, main entry first.
func (op *operation) entries() []*model.LedgerEntry {
	key := op.key
	main := &model.LedgerEntry{
		IdempotencyKey:       &key,
		Kind:                 op.kind,
		ActorAccountID:       op.actorID,
		BeneficiaryAccountID: op.beneficiaryID,
		CampaignID:           op.campaignID,
		Amount:               op.amount,
		Remark:               op.remark,
	}
	out := []*model.LedgerEntry{main}

	if op.fee.IsPositive() {
		feeKey := feeKeyFor(op.key)
		out = append(out, &model.LedgerEntry{
			IdempotencyKey:       &feeKey,
			Kind:                 model.KindFee,
			ActorAccountID:       op.actorID,
			BeneficiaryAccountID: op.feeAccountID,
			CampaignID:           op.campaignID,
			Amount:               op.fee,
			Remark:               "platform fee",
		})
	}
	return out
}

// accountIDs lists every account the operation's entries touch.
func (op *operation) accountIDs() []string {
	ids := []string{op.actorID}
	if op.beneficiaryID != "" {
		ids = append(ids, op.beneficiaryID)
	}
	if op.fee.IsPositive() && op.feeAccountID != "" {
		ids = append(ids, op.feeAccountID)
	}
	return ids
}

// lockKeys names the resources for the distributed lock.
func (op *operation) lockKeys() []string {
	var keys []string
	for _, id := range op.accountIDs() {
		keys = append(keys, "account:"+id)
	}
	if op.campaignID != "" {
		keys = append(keys, "campaign:"+op.campaignID)
	}
	return keys
}

// matches reports whether a stored entry was produced by the same request.
func (op *operation) matches(e *model.LedgerEntry) bool {
	return e.Kind == op.kind &&
		e.ActorAccountID == op.actorID &&
		e.CampaignID == op.campaignID &&
		e.Amount.Equal(op.amount)
}

// feeKeySuffix marks keys derived for fee entries. Callers may not use it.
const feeKeySuffix = ":fee"

func feeKeyFor(key string) string {
	return key + feeKeySuffix
}
