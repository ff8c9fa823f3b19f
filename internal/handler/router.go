package handler

import (
	"net/http"

	"crowdfund/internal/config"
	"crowdfund/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter builds the HTTP surface over svc.
func SetupRouter(svc *service.Services, cfg *config.JWTConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())
	r.NoRoute(notFound)

	h := NewHandler(svc)

	api := r.Group("/api/v1", AuthMiddleware(cfg))
	{
		accounts := api.Group("/accounts")
		{
			accounts.POST("", h.Register)
			accounts.GET("/me/balance", h.GetBalance)
			accounts.GET("/me/entries", h.ListEntries)
		}

		api.POST("/kyc/submit", h.SubmitKYC)

		campaigns := api.Group("/campaigns")
		{
			campaigns.POST("", h.CreateCampaign)
			campaigns.GET("", h.ListCampaigns)
			campaigns.GET("/:id", h.GetCampaign)
			campaigns.POST("/:id/contribute", h.Contribute)
			campaigns.POST("/:id/tip", h.Tip)
			campaigns.POST("/:id/claim", h.ClaimContribution)
		}

		api.POST("/tips/claim", h.ClaimTip)
		api.POST("/withdrawals", h.Withdraw)

		admin := api.Group("/admin", AdminOnly())
		{
			admin.POST("/deposits", h.Deposit)
			admin.GET("/accounts/:id/balance", h.AccountBalance)
			admin.GET("/accounts/:id/entries", h.AccountEntries)
			admin.POST("/accounts/:id/disable", h.DisableAccount)
			admin.POST("/accounts/:id/enable", h.EnableAccount)
			admin.POST("/accounts/:id/kyc/approve", h.ApproveKYC)
			admin.POST("/accounts/:id/kyc/reject", h.RejectKYC)
			admin.POST("/campaigns/:id/:action", h.ModerateCampaign)
			admin.POST("/reconcile", h.Reconcile)
			admin.GET("/settlements", h.PendingSettlements)
			admin.POST("/settlements/:entry_no/settle", h.MarkSettled)
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}
