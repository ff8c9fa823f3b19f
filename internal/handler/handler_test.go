package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"crowdfund/internal/auth"
	"crowdfund/internal/config"
	"crowdfund/internal/infrastructure/database/dbtest"
	"crowdfund/internal/service"
	"crowdfund/pkg/errno"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	t      *testing.T
	router *gin.Engine
	svc    *service.Services
	jwt    *config.JWTConfig
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := dbtest.NewTestDB(t)
	svc := service.New(db, config.Limits{
		MaxPerOperation:  decimal.NewFromInt(10000),
		PlatformFeeRate:  decimal.RequireFromString("0.05"),
		FeeAccountID:     "platform",
		CurrencySymbol:   "₱",
		OperationTimeout: 5 * time.Second,
	}, config.KafkaTopicConfig{Entries: "ledger.entries", Withdrawals: "ledger.withdrawals"})
	_, err := svc.Ledger.Register(context.Background(), "platform")
	require.NoError(t, err)

	cfg := &config.JWTConfig{Secret: "test-secret", TTL: time.Hour}
	return &testServer{t: t, router: SetupRouter(svc, cfg), svc: svc, jwt: cfg}
}

func (s *testServer) token(accountID, role string) string {
	tok, err := auth.GenerateToken(s.jwt, accountID, role)
	require.NoError(s.t, err)
	return tok
}

func (s *testServer) do(method, path, token string, body any, headers ...string) (int, envelope) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestRequiresToken(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(http.MethodGet, "/api/v1/accounts/me/balance", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, errno.ErrUnauthorized.Code, env.Code)

	code, _ = s.do(http.MethodGet, "/api/v1/accounts/me/balance", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, env = s.do(http.MethodPost, "/api/v1/admin/reconcile", s.token("alice", auth.RoleUser), nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, errno.ErrForbidden.Code, env.Code)
}

func TestContributeAndClaimFlow(t *testing.T) {
	s := newTestServer(t)
	admin := s.token("root", auth.RoleAdmin)
	creator := s.token("creator", auth.RoleUser)
	donor := s.token("donor", auth.RoleUser)

	for _, tok := range []string{creator, donor} {
		code, _ := s.do(http.MethodPost, "/api/v1/accounts", tok, nil)
		require.Equal(t, http.StatusOK, code)
	}

	code, _ := s.do(http.MethodPost, "/api/v1/admin/deposits", admin,
		gin.H{"account_id": "donor", "amount": "1000", "idempotency_key": "dep-1"})
	require.Equal(t, http.StatusOK, code)

	code, _ = s.do(http.MethodPost, "/api/v1/kyc/submit", creator, nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = s.do(http.MethodPost, "/api/v1/admin/accounts/creator/kyc/approve", admin, nil)
	require.Equal(t, http.StatusOK, code)

	code, env := s.do(http.MethodPost, "/api/v1/campaigns", creator, gin.H{"title": "Flood relief", "goal_amount": "5000"})
	require.Equal(t, http.StatusOK, code, env.Message)
	campaignID := decode[struct {
		CampaignID string `json:"campaign_id"`
	}](t, env.Data).CampaignID

	code, _ = s.do(http.MethodPost, "/api/v1/admin/campaigns/"+campaignID+"/approve", admin, gin.H{"note": "ok"})
	require.Equal(t, http.StatusOK, code)

	code, env = s.do(http.MethodPost, "/api/v1/campaigns/"+campaignID+"/contribute", donor,
		gin.H{"amount": "500"}, "Idempotency-Key", "c-1")
	require.Equal(t, http.StatusOK, code, env.Message)

	// the header and the body key are the same key
	code, env = s.do(http.MethodPost, "/api/v1/campaigns/"+campaignID+"/contribute", donor,
		gin.H{"amount": "500", "idempotency_key": "c-1"})
	require.Equal(t, http.StatusOK, code)
	assert.True(t, decode[service.Result](t, env.Data).Replayed)

	code, env = s.do(http.MethodPost, "/api/v1/campaigns/"+campaignID+"/claim", creator,
		gin.H{"amount": "600", "idempotency_key": "cl-1"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, errno.ErrClaimExceedsAvailable.Code, env.Code)
	assert.Equal(t, "claim exceeds available: requested ₱600.00, available ₱500.00", env.Message)

	code, env = s.do(http.MethodPost, "/api/v1/campaigns/"+campaignID+"/claim", creator,
		gin.H{"amount": "100", "idempotency_key": "cl-2"})
	require.Equal(t, http.StatusOK, code, env.Message)
	res := decode[service.Result](t, env.Data)
	assert.True(t, decimal.NewFromInt(95).Equal(res.NetAmount))

	code, env = s.do(http.MethodGet, "/api/v1/campaigns/"+campaignID, donor, nil)
	require.Equal(t, http.StatusOK, code)
	detail := decode[struct {
		Available decimal.Decimal `json:"available_to_claim"`
	}](t, env.Data)
	assert.True(t, decimal.NewFromInt(400).Equal(detail.Available))

	code, env = s.do(http.MethodGet, "/api/v1/accounts/me/balance", creator, nil)
	require.Equal(t, http.StatusOK, code)
	bal := decode[struct {
		Spendable decimal.Decimal `json:"spendable"`
	}](t, env.Data)
	assert.True(t, decimal.NewFromInt(95).Equal(bal.Spendable))

	code, env = s.do(http.MethodGet, "/api/v1/accounts/me/entries?kind=contribution", donor, nil)
	require.Equal(t, http.StatusOK, code)
	list := decode[struct {
		List []json.RawMessage `json:"list"`
	}](t, env.Data)
	assert.Len(t, list.List, 1)

	code, env = s.do(http.MethodPost, "/api/v1/admin/reconcile", admin, nil)
	require.Equal(t, http.StatusOK, code)
	report := decode[service.ReconcileReport](t, env.Data)
	assert.Empty(t, report.Divergences)
}

func TestWithdrawAndSettle(t *testing.T) {
	s := newTestServer(t)
	admin := s.token("root", auth.RoleAdmin)
	alice := s.token("alice", auth.RoleUser)

	s.do(http.MethodPost, "/api/v1/accounts", alice, nil)
	s.do(http.MethodPost, "/api/v1/admin/deposits", admin, gin.H{"account_id": "alice", "amount": "80", "idempotency_key": "d1"})

	code, env := s.do(http.MethodPost, "/api/v1/withdrawals", alice, gin.H{"amount": "50", "idempotency_key": "w1"})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, errno.ErrCreatorEligibility.Code, env.Code)

	s.do(http.MethodPost, "/api/v1/kyc/submit", alice, nil)
	s.do(http.MethodPost, "/api/v1/admin/accounts/alice/kyc/approve", admin, nil)

	code, env = s.do(http.MethodPost, "/api/v1/withdrawals", alice, gin.H{"amount": "100", "idempotency_key": "w2"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, errno.ErrInsufficientBalance.Code, env.Code)

	code, env = s.do(http.MethodPost, "/api/v1/withdrawals", alice, gin.H{"amount": "50", "idempotency_key": "w3"})
	require.Equal(t, http.StatusOK, code, env.Message)
	entryNo := decode[service.Result](t, env.Data).Entry.EntryNo

	code, env = s.do(http.MethodGet, "/api/v1/admin/settlements", admin, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), entryNo)

	code, _ = s.do(http.MethodPost, "/api/v1/admin/settlements/"+entryNo+"/settle", admin, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = s.do(http.MethodPost, "/api/v1/admin/settlements/"+entryNo+"/settle", admin, nil)
	assert.Equal(t, http.StatusConflict, code)
}

func TestBadRequests(t *testing.T) {
	s := newTestServer(t)
	alice := s.token("alice", auth.RoleUser)
	admin := s.token("root", auth.RoleAdmin)

	code, env := s.do(http.MethodPost, "/api/v1/tips/claim", alice, "not an object")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, errno.ErrBind.Code, env.Code)

	code, _ = s.do(http.MethodGet, "/api/v1/accounts/me/entries?kind=refund", alice, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(http.MethodPost, "/api/v1/admin/campaigns/x/delete", admin, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(http.MethodGet, "/api/v1/campaigns/missing", alice, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(http.MethodGet, "/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
}
