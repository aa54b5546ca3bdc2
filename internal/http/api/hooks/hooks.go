// Package hooks receives payment confirmations from both rails and
// feeds them into reconciliation.
package hooks

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/superfanlabs/fanclub/internal/apperr"
	"github.com/superfanlabs/fanclub/internal/cart"
	"github.com/superfanlabs/fanclub/internal/models"
	"github.com/superfanlabs/fanclub/internal/reconcile"
	"github.com/superfanlabs/fanclub/internal/security"
)

// signatureHeader carries the sender's HMAC signature on both hooks.
const signatureHeader = "X-Webhook-Signature"

// Deps bundles the services the hook routes operate on.
type Deps struct {
	DB                 *gorm.DB
	Worker             *reconcile.Worker
	Carts              *cart.Store
	CardWebhookSecret  string
	ChainWebhookSecret string
}

// RegisterHookRoutes registers the rail confirmation endpoints. These
// are machine-to-machine and share the public listener, so each hook
// authenticates its sender by HMAC under its own shared secret.
func RegisterHookRoutes(r *gin.Engine, deps Deps) {
	if r == nil || deps.DB == nil {
		return
	}

	hooks := r.Group("/v0/hooks")

	h := &handler{deps: deps}
	hooks.POST("/card", h.Card)
	hooks.POST("/chain", h.Chain)
}

type handler struct {
	deps Deps
}

// cardEvent is the card provider's webhook payload.
type cardEvent struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

// Card handles the card provider's payment webhook. Replays are safe:
// reconciliation is idempotent per session id.
func (h *handler) Card(c *gin.Context) {
	body, errRead := io.ReadAll(c.Request.Body)
	if errRead != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read body failed"})
		return
	}
	if !security.VerifyWebhookHMAC(h.deps.CardWebhookSecret, body, c.GetHeader(signatureHeader)) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	var event cardEvent
	if errUnmarshal := json.Unmarshal(body, &event); errUnmarshal != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(event.SessionID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
		return
	}
	if event.Status != "succeeded" {
		// Failed or canceled sessions leave the pending row for the
		// sweeper; acknowledge so the provider stops retrying.
		log.WithFields(log.Fields{
			"session_id": event.SessionID,
			"status":     event.Status,
		}).Info("hooks: ignoring non-success card event")
		c.JSON(http.StatusOK, gin.H{"ignored": true})
		return
	}

	h.reconcile(c, reconcile.ConfirmParams{
		ExternalRef: event.SessionID,
		Rail:        models.RailCard,
	})
}

// chainEvent is the watcher's transfer confirmation payload.
type chainEvent struct {
	Reference string `json:"reference"`
	TxHash    string `json:"tx_hash"`
}

// Chain handles an observed stablecoin transfer confirmation. The
// watcher signs the payload; an unsigned POST that merely knows a
// checkout reference must never move money.
func (h *handler) Chain(c *gin.Context) {
	body, errRead := io.ReadAll(c.Request.Body)
	if errRead != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read body failed"})
		return
	}
	if !security.VerifyWebhookHMAC(h.deps.ChainWebhookSecret, body, c.GetHeader(signatureHeader)) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	var event chainEvent
	if errUnmarshal := json.Unmarshal(body, &event); errUnmarshal != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(event.Reference) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reference is required"})
		return
	}

	h.reconcile(c, reconcile.ConfirmParams{
		ExternalRef: event.Reference,
		Rail:        models.RailStablecoin,
		ChainTxHash: event.TxHash,
	})
}

// reconcile runs the worker and clears the member's cart on full
// application.
func (h *handler) reconcile(c *gin.Context, params reconcile.ConfirmParams) {
	result, errReconcile := h.deps.Worker.ReconcilePayment(c.Request.Context(), params)
	if errReconcile != nil {
		c.JSON(apperr.HTTPStatus(errReconcile), gin.H{"error": errReconcile.Error()})
		return
	}

	if result.Applied && !result.Replayed && h.deps.Carts != nil {
		var txRecord models.Transaction
		if errFind := h.deps.DB.WithContext(c.Request.Context()).
			Where("idempotency_key = ?", params.ExternalRef).
			First(&txRecord).Error; errFind == nil {
			if errClear := h.deps.Carts.Clear(c.Request.Context(), txRecord.ClubID, txRecord.MemberID); errClear != nil {
				log.WithField("reference", params.ExternalRef).
					WithError(errClear).Warn("hooks: clear cart failed")
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{"result": result})
}
