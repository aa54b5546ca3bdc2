package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/superfanlabs/fanclub/internal/apperr"
	"github.com/superfanlabs/fanclub/internal/cart"
	"github.com/superfanlabs/fanclub/internal/checkout"
	"github.com/superfanlabs/fanclub/internal/models"
)

// CheckoutHandler drives checkout attempts and transaction polling.
type CheckoutHandler struct {
	db     *gorm.DB
	carts  *cart.Store
	router *checkout.Router
}

// NewCheckoutHandler constructs a CheckoutHandler.
func NewCheckoutHandler(db *gorm.DB, carts *cart.Store, router *checkout.Router) *CheckoutHandler {
	return &CheckoutHandler{db: db, carts: carts, router: router}
}

// checkoutRequest defines the checkout request body.
type checkoutRequest struct {
	WalletApp bool `json:"wallet_app"`
}

// Start routes the member's cart to a payment rail and returns the
// single aggregate charge descriptor.
func (h *CheckoutHandler) Start(c *gin.Context) {
	memberID := getMemberID(c)
	if memberID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	clubID, ok := clubIDFromQuery(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "club_id is required"})
		return
	}

	var body checkoutRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	current, errGet := h.carts.Get(c.Request.Context(), clubID, memberID)
	if errGet != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load cart failed"})
		return
	}

	charge, errRoute := h.router.Route(c.Request.Context(), current, checkout.RailContext{WalletApp: body.WalletApp})
	if errRoute != nil {
		c.JSON(apperr.HTTPStatus(errRoute), gin.H{"error": errRoute.Error()})
		return
	}

	// Persist the lock so retries and other devices see the in-flight
	// attempt.
	if errSave := h.carts.Save(c.Request.Context(), current); errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save cart failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"charge": charge})
}

// Abandon cancels the in-flight attempt and unlocks the cart. The lines
// survive for a retry.
func (h *CheckoutHandler) Abandon(c *gin.Context) {
	memberID := getMemberID(c)
	if memberID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	clubID, ok := clubIDFromQuery(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "club_id is required"})
		return
	}

	current, errGet := h.carts.Get(c.Request.Context(), clubID, memberID)
	if errGet != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load cart failed"})
		return
	}

	if errAbandon := h.router.Abandon(c.Request.Context(), current); errAbandon != nil {
		c.JSON(apperr.HTTPStatus(errAbandon), gin.H{"error": errAbandon.Error()})
		return
	}
	if errSave := h.carts.Save(c.Request.Context(), current); errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save cart failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"cart": current})
}

// transactionDTO defines the transaction polling payload.
type transactionDTO struct {
	Reference   string `json:"reference"`
	Rail        string `json:"rail"`
	State       string `json:"state"`
	AmountCents int64  `json:"amount_cents"`
	ChainTxHash string `json:"chain_tx_hash,omitempty"`
	Failure     string `json:"failure_reason,omitempty"`
}

// GetTransaction returns the state of one of the member's checkout
// attempts, for client polling after a redirect.
func (h *CheckoutHandler) GetTransaction(c *gin.Context) {
	memberID := getMemberID(c)
	if memberID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	reference := c.Param("ref")
	if reference == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reference is required"})
		return
	}

	var txRecord models.Transaction
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("idempotency_key = ? AND member_id = ?", reference, memberID).
		First(&txRecord).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "transaction not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query transaction failed"})
		return
	}

	out := transactionDTO{
		Reference:   txRecord.IdempotencyKey,
		Rail:        txRecord.Rail,
		State:       txRecord.State,
		AmountCents: txRecord.AmountCents,
		ChainTxHash: txRecord.ChainTxHash,
	}
	if txRecord.FailureReason != nil {
		out.Failure = *txRecord.FailureReason
	}
	c.JSON(http.StatusOK, gin.H{"transaction": out})
}
