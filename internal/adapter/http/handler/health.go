package handler

import (
	"net/http"
	"time"

	"credit-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
)

// HealthCheck reports process liveness and the state of each dependency.
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		status := "healthy"
		code := http.StatusOK

		deps := make(map[string]string, len(checkers))
		for _, checker := range checkers {
			if err := checker.Ping(ctx); err != nil {
				deps[checker.Name()] = "unhealthy"
				status = "degraded"
				code = http.StatusServiceUnavailable
			} else {
				deps[checker.Name()] = "ok"
			}
		}

		c.JSON(code, gin.H{
			"status":       status,
			"timestamp":    time.Now().UTC(),
			"dependencies": deps,
		})
	}
}
