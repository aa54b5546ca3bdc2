package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/superfanlabs/fanclub/internal/apperr"
	"github.com/superfanlabs/fanclub/internal/cart"
	"github.com/superfanlabs/fanclub/internal/discount"
	"github.com/superfanlabs/fanclub/internal/models"
	"github.com/superfanlabs/fanclub/internal/settings"
	"github.com/superfanlabs/fanclub/internal/status"
	"github.com/superfanlabs/fanclub/internal/wallet"
)

// CartHandler serves cart reads and mutations.
type CartHandler struct {
	db      *gorm.DB
	carts   *cart.Store
	wallets *wallet.Ledger
}

// NewCartHandler constructs a CartHandler.
func NewCartHandler(db *gorm.DB, carts *cart.Store, wallets *wallet.Ledger) *CartHandler {
	return &CartHandler{db: db, carts: carts, wallets: wallets}
}

// addLineRequest defines the request body for adding a cart line.
// Exactly one of reward_id or unit_credits must be set.
type addLineRequest struct {
	RewardID    *uint64 `json:"reward_id"`
	UnitCredits int64   `json:"unit_credits"`
	Quantity    int64   `json:"quantity"`
}

// Get returns the member's current cart with its running total.
func (h *CartHandler) Get(c *gin.Context) {
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

	total, errTotal := cart.ComputeTotal(current)
	if errTotal != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "compute total failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"cart": current, "total": total})
}

// AddLine appends a line to the cart. Item lines are priced here, with
// the member's current tier discount frozen onto the line; later tier
// changes never re-price lines already in the cart.
func (h *CartHandler) AddLine(c *gin.Context) {
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

	var body addLineRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.Quantity <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quantity must be positive"})
		return
	}
	if (body.RewardID == nil) == (body.UnitCredits == 0) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "exactly one of reward_id or unit_credits is required"})
		return
	}

	line := cart.Line{
		ID:       uuid.NewString(),
		Quantity: body.Quantity,
	}
	if body.RewardID != nil {
		priced, errPrice := h.priceItemLine(c, clubID, memberID, *body.RewardID)
		if errPrice != nil {
			// response written by priceItemLine
			return
		}
		line.Kind = cart.KindItem
		line.RewardID = body.RewardID
		line.CampaignID = priced.campaignID
		line.UnitAmountCents = priced.quote.FinalPriceCents
		line.AppliedBps = priced.quote.AppliedBps
	} else {
		if body.UnitCredits <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unit_credits must be positive"})
			return
		}
		line.Kind = cart.KindCredits
		line.UnitCredits = body.UnitCredits
	}

	current, errGet := h.carts.Get(c.Request.Context(), clubID, memberID)
	if errGet != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load cart failed"})
		return
	}
	if errAdd := current.AddLine(line); errAdd != nil {
		c.JSON(apperr.HTTPStatus(errAdd), gin.H{"error": errAdd.Error()})
		return
	}
	if errSave := h.carts.Save(c.Request.Context(), current); errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save cart failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"cart": current})
}

// pricedItem carries the frozen quote for an item line.
type pricedItem struct {
	quote      discount.Quote
	campaignID *uint64
}

// priceItemLine loads a reward, enforces its tier gate, and produces the
// discounted quote. Writes the error response itself on failure.
func (h *CartHandler) priceItemLine(c *gin.Context, clubID, memberID, rewardID uint64) (pricedItem, error) {
	var reward models.Reward
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND club_id = ?", rewardID, clubID).
		First(&reward).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "reward not found"})
			return pricedItem{}, errFind
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query reward failed"})
		return pricedItem{}, errFind
	}

	if reward.InventoryStatus != models.InventoryAvailable {
		c.JSON(http.StatusConflict, gin.H{"error": "reward not available"})
		return pricedItem{}, errors.New("reward unavailable")
	}
	if reward.BasePriceCents == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reward is not purchasable with money"})
		return pricedItem{}, errors.New("reward not money-priced")
	}

	w, errWallet := h.wallets.Ensure(c.Request.Context(), clubID, memberID)
	if errWallet != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load wallet failed"})
		return pricedItem{}, errWallet
	}
	thresholds := settings.TierThresholdsFor(clubID)
	breakdown, errCompute := status.Compute(thresholds, w.EarnedPoints)
	if errCompute != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "compute status failed"})
		return pricedItem{}, errCompute
	}
	meets, errMeets := status.Meets(breakdown.Tier, status.Tier(reward.MinStatus))
	if errMeets != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "invalid reward tier gate"})
		return pricedItem{}, errMeets
	}
	if !meets {
		c.JSON(http.StatusForbidden, gin.H{"error": "status too low for this reward"})
		return pricedItem{}, errors.New("tier gate")
	}

	quote, errQuote := discount.ForTier(settings.DiscountTableFor(clubID), breakdown.Tier, *reward.BasePriceCents)
	if errQuote != nil {
		c.JSON(apperr.HTTPStatus(errQuote), gin.H{"error": errQuote.Error()})
		return pricedItem{}, errQuote
	}

	return pricedItem{quote: quote, campaignID: reward.CampaignID}, nil
}

// RemoveLine removes a line from the cart.
func (h *CartHandler) RemoveLine(c *gin.Context) {
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
	lineID := c.Param("id")
	if lineID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "line id is required"})
		return
	}

	current, errGet := h.carts.Get(c.Request.Context(), clubID, memberID)
	if errGet != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load cart failed"})
		return
	}
	if errRemove := current.RemoveLine(lineID); errRemove != nil {
		c.JSON(apperr.HTTPStatus(errRemove), gin.H{"error": errRemove.Error()})
		return
	}
	if errSave := h.carts.Save(c.Request.Context(), current); errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save cart failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"cart": current})
}
