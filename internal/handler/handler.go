package handler

import (
	"strconv"

	"crowdfund/internal/model"
	"crowdfund/internal/service"
	"crowdfund/pkg/errno"
	"crowdfund/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	defaultEntriesLimit  = 50
	maxEntriesLimit      = 500
)

// Handler serves the account, campaign and money endpoints.
type Handler struct {
	svc *service.Services
}

func NewHandler(svc *service.Services) *Handler {
	return &Handler{svc: svc}
}

// AmountRequest is the body of every money movement.
type AmountRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	IdempotencyKey string          `json:"idempotency_key"`
}

// bindAmount reads the body and falls back to the Idempotency-Key header.
func bindAmount(c *gin.Context) (*AmountRequest, bool) {
	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return nil, false
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader(headerIdempotencyKey)
	}
	return &req, true
}

func (h *Handler) respondResult(c *gin.Context, res *service.Result, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// ============================================================
// accounts
// ============================================================

// Register creates the caller's account.
// POST /api/v1/accounts
func (h *Handler) Register(c *gin.Context) {
	account, err := h.svc.Ledger.Register(c.Request.Context(), actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, account)
}

// GetBalance GET /api/v1/accounts/me/balance
func (h *Handler) GetBalance(c *gin.Context) {
	h.writeBalances(c, actorID(c))
}

func (h *Handler) writeBalances(c *gin.Context, accountID string) {
	account, err := h.svc.Ledger.GetAccount(c.Request.Context(), accountID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{
		"account_id":          account.AccountID,
		"spendable":           account.SpendableBalance,
		"tips":                account.TipsBalance,
		"contributions":       account.ContributionsBalance,
		"verification_status": account.VerificationStatus,
		"disabled":            account.Disabled,
	})
}

// ListEntries GET /api/v1/accounts/me/entries?kind=tip&limit=50
func (h *Handler) ListEntries(c *gin.Context) {
	h.writeEntries(c, actorID(c))
}

func (h *Handler) writeEntries(c *gin.Context, accountID string) {
	kind := model.EntryKind(c.Query("kind"))
	if kind != "" && !kind.Valid() {
		response.ParamError(c, "unknown kind "+string(kind))
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultEntriesLimit)))
	if err != nil || limit <= 0 || limit > maxEntriesLimit {
		response.ParamError(c, "limit must be between 1 and "+strconv.Itoa(maxEntriesLimit))
		return
	}

	entries, err := h.svc.TxLog.EntriesFor(accountID, kind).Collect(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	if entries == nil {
		entries = []*model.LedgerEntry{}
	}
	response.Success(c, gin.H{"list": entries})
}

// SubmitKYC POST /api/v1/kyc/submit
func (h *Handler) SubmitKYC(c *gin.Context) {
	if err := h.svc.KYC.Submit(c.Request.Context(), actorID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"verification_status": model.VerificationPending})
}

// ============================================================
// campaigns
// ============================================================

// CreateCampaign POST /api/v1/campaigns
func (h *Handler) CreateCampaign(c *gin.Context) {
	var req service.CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	campaign, err := h.svc.Campaigns.Create(c.Request.Context(), actorID(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, campaign)
}

// GetCampaign GET /api/v1/campaigns/:id
func (h *Handler) GetCampaign(c *gin.Context) {
	campaign, err := h.svc.Campaigns.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{
		"campaign":           campaign,
		"available_to_claim": campaign.Available(),
	})
}

// ListCampaigns GET /api/v1/campaigns?status=active&page=1&page_size=20
func (h *Handler) ListCampaigns(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	campaigns, total, err := h.svc.Campaigns.List(c.Request.Context(), model.CampaignStatus(c.Query("status")), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{
		"list":      campaigns,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// ============================================================
// money
// ============================================================

// Contribute POST /api/v1/campaigns/:id/contribute
func (h *Handler) Contribute(c *gin.Context) {
	req, ok := bindAmount(c)
	if !ok {
		return
	}
	res, err := h.svc.Coordinator.Contribute(c.Request.Context(), c.Param("id"), actorID(c), req.Amount, req.IdempotencyKey)
	h.respondResult(c, res, err)
}

// Tip POST /api/v1/campaigns/:id/tip
func (h *Handler) Tip(c *gin.Context) {
	req, ok := bindAmount(c)
	if !ok {
		return
	}
	res, err := h.svc.Coordinator.Tip(c.Request.Context(), c.Param("id"), actorID(c), req.Amount, req.IdempotencyKey)
	h.respondResult(c, res, err)
}

// ClaimContribution POST /api/v1/campaigns/:id/claim
func (h *Handler) ClaimContribution(c *gin.Context) {
	req, ok := bindAmount(c)
	if !ok {
		return
	}
	res, err := h.svc.Coordinator.ClaimContribution(c.Request.Context(), c.Param("id"), actorID(c), req.Amount, req.IdempotencyKey)
	h.respondResult(c, res, err)
}

// ClaimTip POST /api/v1/tips/claim
func (h *Handler) ClaimTip(c *gin.Context) {
	req, ok := bindAmount(c)
	if !ok {
		return
	}
	res, err := h.svc.Coordinator.ClaimTip(c.Request.Context(), actorID(c), req.Amount, req.IdempotencyKey)
	h.respondResult(c, res, err)
}

// Withdraw POST /api/v1/withdrawals
func (h *Handler) Withdraw(c *gin.Context) {
	req, ok := bindAmount(c)
	if !ok {
		return
	}
	res, err := h.svc.Coordinator.Withdraw(c.Request.Context(), actorID(c), req.Amount, req.IdempotencyKey)
	h.respondResult(c, res, err)
}

func notFound(c *gin.Context) {
	response.Error(c, errno.Wrapf(errno.ErrNotFound, "route %s %s", c.Request.Method, c.Request.URL.Path))
}
