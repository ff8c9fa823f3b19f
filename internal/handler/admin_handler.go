package handler

import (
	"context"
	"strconv"

	"crowdfund/internal/model"
	"crowdfund/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// DepositRequest funds an account from outside the platform.
type DepositRequest struct {
	AccountID      string          `json:"account_id" binding:"required"`
	Amount         decimal.Decimal `json:"amount"`
	IdempotencyKey string          `json:"idempotency_key"`
	Remark         string          `json:"remark"`
}

type ModerationRequest struct {
	Note string `json:"note"`
}

// Deposit POST /api/v1/admin/deposits
func (h *Handler) Deposit(c *gin.Context) {
	var req DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader(headerIdempotencyKey)
	}

	res, err := h.svc.Coordinator.Deposit(c.Request.Context(), req.AccountID, req.Amount, req.IdempotencyKey, req.Remark)
	h.respondResult(c, res, err)
}

// AccountBalance GET /api/v1/admin/accounts/:id/balance
func (h *Handler) AccountBalance(c *gin.Context) {
	h.writeBalances(c, c.Param("id"))
}

// AccountEntries GET /api/v1/admin/accounts/:id/entries
func (h *Handler) AccountEntries(c *gin.Context) {
	h.writeEntries(c, c.Param("id"))
}

// DisableAccount POST /api/v1/admin/accounts/:id/disable
func (h *Handler) DisableAccount(c *gin.Context) {
	if err := h.svc.Ledger.Disable(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"disabled": true})
}

// EnableAccount POST /api/v1/admin/accounts/:id/enable
func (h *Handler) EnableAccount(c *gin.Context) {
	if err := h.svc.Ledger.Enable(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"disabled": false})
}

// ApproveKYC POST /api/v1/admin/accounts/:id/kyc/approve
func (h *Handler) ApproveKYC(c *gin.Context) {
	h.kycDecision(c, h.svc.KYC.Approve, model.VerificationVerified)
}

// RejectKYC POST /api/v1/admin/accounts/:id/kyc/reject
func (h *Handler) RejectKYC(c *gin.Context) {
	h.kycDecision(c, h.svc.KYC.Reject, model.VerificationRejected)
}

func (h *Handler) kycDecision(c *gin.Context, decide func(ctx context.Context, accountID string) error, result model.VerificationStatus) {
	if err := decide(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"verification_status": result})
}

// ModerateCampaign POST /api/v1/admin/campaigns/:id/:action where action is
// approve, reject, flag, unflag or complete.
func (h *Handler) ModerateCampaign(c *gin.Context) {
	var req ModerationRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.ParamError(c, err.Error())
			return
		}
	}

	actions := map[string]func(context.Context, string, string) error{
		"approve":  h.svc.Campaigns.Approve,
		"reject":   h.svc.Campaigns.Reject,
		"flag":     h.svc.Campaigns.Flag,
		"unflag":   h.svc.Campaigns.Unflag,
		"complete": h.svc.Campaigns.Complete,
	}
	action, ok := actions[c.Param("action")]
	if !ok {
		notFound(c)
		return
	}

	id := c.Param("id")
	if err := action(c.Request.Context(), id, req.Note); err != nil {
		response.Error(c, err)
		return
	}
	status, err := h.svc.Campaigns.Status(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"campaign_id": id, "status": status})
}

// Reconcile POST /api/v1/admin/reconcile?repair=true
func (h *Handler) Reconcile(c *gin.Context) {
	repair, _ := strconv.ParseBool(c.DefaultQuery("repair", "false"))
	report, err := h.svc.Reconciler.Reconcile(c.Request.Context(), repair)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, report)
}

// PendingSettlements GET /api/v1/admin/settlements?limit=100
func (h *Handler) PendingSettlements(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	settlements, err := h.svc.Settlements.ListPending(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	if settlements == nil {
		settlements = []*model.Settlement{}
	}
	response.Success(c, gin.H{"list": settlements})
}

// MarkSettled POST /api/v1/admin/settlements/:entry_no/settle
func (h *Handler) MarkSettled(c *gin.Context) {
	settlement, err := h.svc.Settlements.MarkSettled(c.Request.Context(), c.Param("entry_no"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, settlement)
}
