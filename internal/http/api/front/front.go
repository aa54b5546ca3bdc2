package front

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/superfanlabs/fanclub/internal/cart"
	"github.com/superfanlabs/fanclub/internal/checkout"
	"github.com/superfanlabs/fanclub/internal/config"
	"github.com/superfanlabs/fanclub/internal/funding"
	"github.com/superfanlabs/fanclub/internal/http/api/front/handlers"
	"github.com/superfanlabs/fanclub/internal/models"
	"github.com/superfanlabs/fanclub/internal/redemption"
	"github.com/superfanlabs/fanclub/internal/security"
	"github.com/superfanlabs/fanclub/internal/wallet"
)

// Deps bundles the services the fan routes operate on.
type Deps struct {
	DB       *gorm.DB
	JWT      config.JWTConfig
	Carts    *cart.Store
	Router   *checkout.Router
	Wallets  *wallet.Ledger
	Tracker  *funding.Tracker
	Redeemer *redemption.Engine
}

// RegisterFanRoutes registers the member-facing economy routes.
func RegisterFanRoutes(r *gin.Engine, deps Deps) {
	if r == nil || deps.DB == nil {
		return
	}

	fan := r.Group("/v0/fan")
	fan.Use(memberAuthMiddleware(deps.DB, deps.JWT))

	statusHandler := handlers.NewStatusHandler(deps.DB, deps.Wallets)
	fan.GET("/status", statusHandler.Get)

	walletHandler := handlers.NewWalletHandler(deps.DB, deps.Wallets)
	fan.GET("/wallet", walletHandler.Get)

	campaignHandler := handlers.NewCampaignHandler(deps.DB, deps.Tracker)
	fan.GET("/campaigns", campaignHandler.List)
	fan.GET("/campaigns/:id/progress", campaignHandler.Progress)

	cartHandler := handlers.NewCartHandler(deps.DB, deps.Carts, deps.Wallets)
	fan.GET("/cart", cartHandler.Get)
	fan.POST("/cart/lines", cartHandler.AddLine)
	fan.DELETE("/cart/lines/:id", cartHandler.RemoveLine)

	checkoutHandler := handlers.NewCheckoutHandler(deps.DB, deps.Carts, deps.Router)
	fan.POST("/checkout", checkoutHandler.Start)
	fan.POST("/checkout/abandon", checkoutHandler.Abandon)
	fan.GET("/transactions/:ref", checkoutHandler.GetTransaction)

	claimHandler := handlers.NewClaimHandler(deps.DB, deps.Redeemer)
	fan.GET("/claims", claimHandler.List)
	fan.POST("/claims/:id/redeem", claimHandler.Redeem)
	fan.POST("/rewards/:id/claim", claimHandler.Purchase)
}

// memberAuthMiddleware validates member JWTs and loads the member into
// context.
func memberAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
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

		claims, errJWT := security.ParseMemberToken(jwtCfg.MemberSecret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var member models.Member
		if errFind := db.WithContext(c.Request.Context()).First(&member, claims.MemberID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "member not found"})
			return
		}
		if member.Disabled {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "member disabled"})
			return
		}

		c.Set("memberID", member.ID)
		c.Next()
	}
}
