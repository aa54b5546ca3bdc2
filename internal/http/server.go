// Package http assembles the gin engine for the economy service.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/superfanlabs/fanclub/internal/cart"
	"github.com/superfanlabs/fanclub/internal/checkout"
	"github.com/superfanlabs/fanclub/internal/config"
	"github.com/superfanlabs/fanclub/internal/funding"
	"github.com/superfanlabs/fanclub/internal/http/api/admin"
	"github.com/superfanlabs/fanclub/internal/http/api/front"
	"github.com/superfanlabs/fanclub/internal/http/api/hooks"
	"github.com/superfanlabs/fanclub/internal/reconcile"
	"github.com/superfanlabs/fanclub/internal/redemption"
	"github.com/superfanlabs/fanclub/internal/wallet"
)

// Services bundles everything the API surface depends on.
type Services struct {
	DB       *gorm.DB
	Config   config.Config
	Carts    *cart.Store
	Router   *checkout.Router
	Wallets  *wallet.Ledger
	Tracker  *funding.Tracker
	Redeemer *redemption.Engine
	Worker   *reconcile.Worker
}

// NewEngine builds the gin engine with all route groups registered.
func NewEngine(services Services) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	front.RegisterFanRoutes(engine, front.Deps{
		DB:       services.DB,
		JWT:      services.Config.JWT,
		Carts:    services.Carts,
		Router:   services.Router,
		Wallets:  services.Wallets,
		Tracker:  services.Tracker,
		Redeemer: services.Redeemer,
	})
	hooks.RegisterHookRoutes(engine, hooks.Deps{
		DB:                 services.DB,
		Worker:             services.Worker,
		Carts:              services.Carts,
		CardWebhookSecret:  services.Config.CardRail.WebhookSecret,
		ChainWebhookSecret: services.Config.Chain.WebhookSecret,
	})
	admin.RegisterAdminRoutes(engine, services.DB, services.Config.JWT, services.Tracker)

	return engine
}
