package admin

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/superfanlabs/fanclub/internal/config"
	"github.com/superfanlabs/fanclub/internal/funding"
	"github.com/superfanlabs/fanclub/internal/http/api/admin/handlers"
	"github.com/superfanlabs/fanclub/internal/security"
)

// RegisterAdminRoutes registers the operator routes.
func RegisterAdminRoutes(r *gin.Engine, conn *gorm.DB, jwtCfg config.JWTConfig, tracker *funding.Tracker) {
	if r == nil || conn == nil {
		return
	}

	adminGroup := r.Group("/v0/admin")
	adminGroup.Use(adminAuthMiddleware(jwtCfg))

	transactionHandler := handlers.NewTransactionHandler(conn)
	adminGroup.GET("/transactions", transactionHandler.List)

	campaignHandler := handlers.NewCampaignAdminHandler(conn, tracker)
	adminGroup.POST("/campaigns/evaluate-expiry", campaignHandler.EvaluateExpiry)

	economyHandler := handlers.NewEconomyHandler(conn)
	adminGroup.PUT("/clubs/:id/economy", economyHandler.Update)
}

// adminAuthMiddleware validates admin JWTs.
func adminAuthMiddleware(jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		claims, errJWT := security.ParseAdminToken(jwtCfg.AdminSecret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set("adminID", claims.AdminID)
		c.Next()
	}
}
