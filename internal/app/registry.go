package app

import (
	"net/http"

	"go-hris-leave/internal/config"
	"go-hris-leave/internal/leave"
	"go-hris-leave/internal/leavebalance"
	"go-hris-leave/internal/leavepolicy"
	"go-hris-leave/internal/middleware"
	"go-hris-leave/internal/shared/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func registerModules(
	router *gin.Engine,
	cfg *config.Config,
	i *Infra,
	m *Modules,
	logger *zap.Logger,
) {
	// --- Handlers ---
	leaveHandler := leave.NewHandlerWithRedis(m.Workflow, i.Redis, logger)
	balanceHandler := leavebalance.NewHandler(m.Ledger, logger)
	policyHandler := leavepolicy.NewHandler(m.Policies, m.PolicyAdmin, logger)

	secured := []gin.HandlerFunc{
		middleware.AuthMiddleware(cfg.Auth.JWTSecret),
		middleware.ExtractUserID(),
		middleware.ContextLogger(logger),
	}
	createGuards := []gin.HandlerFunc{
		middleware.RateLimitByUser(rate.Limit(cfg.Leave.RateLimitPerSecond), cfg.Leave.RateLimitBurst),
		middleware.Idempotency(i.Redis),
	}

	router.GET("/healthz", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"}, nil)
	})

	// --- Routes Registration ---
	api := router.Group("/api/v1")
	{
		leave.RegisterRoutes(api, leaveHandler, m.RBAC, createGuards, secured...)
		leavebalance.RegisterRoutes(api, balanceHandler, m.RBAC, secured...)
		leavepolicy.RegisterRoutes(api, policyHandler, m.RBAC, secured...)
	}
}
