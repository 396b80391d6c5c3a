package handler

import (
	"credit-ledger/internal/adapter/http/middleware"
	"credit-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	LedgerSvc      ports.LedgerService
	TokenSvc       ports.TokenService
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep, verifies PostgreSQL and Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// API v1 routes, all behind service bearer auth
	ledgerHandler := NewLedgerHandler(deps.LedgerSvc)
	v1 := r.Group("/api/v1", middleware.BearerAuth(deps.TokenSvc))

	ledger := v1.Group("/ledger/:user_id")
	{
		ledger.GET("/balance", ledgerHandler.GetBalance)
		ledger.POST("/credit", ledgerHandler.Credit)
		ledger.POST("/debit", ledgerHandler.Debit)
		ledger.POST("/refund", ledgerHandler.Refund)
		ledger.GET("/history", ledgerHandler.History)
		ledger.GET("/reconcile", ledgerHandler.Reconcile)
	}

	return r
}
