package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/superfanlabs/fanclub/internal/apperr"
	"github.com/superfanlabs/fanclub/internal/models"
	"github.com/superfanlabs/fanclub/internal/redemption"
	"github.com/superfanlabs/fanclub/internal/settings"
)

// ClaimHandler serves claim listings and redemption.
type ClaimHandler struct {
	db       *gorm.DB
	redeemer *redemption.Engine
}

// NewClaimHandler constructs a ClaimHandler.
func NewClaimHandler(db *gorm.DB, redeemer *redemption.Engine) *ClaimHandler {
	return &ClaimHandler{db: db, redeemer: redeemer}
}

// claimDTO defines the claim list payload.
type claimDTO struct {
	ID               uint64  `json:"id"`
	RewardID         uint64  `json:"reward_id"`
	RewardTitle      string  `json:"reward_title"`
	TicketsPurchased int64   `json:"tickets_purchased"`
	TicketsRedeemed  int64   `json:"tickets_redeemed"`
	TicketsRemaining int64   `json:"tickets_remaining"`
	AccessCode       *string `json:"access_code,omitempty"`
}

// List returns the member's claims in a club.
func (h *ClaimHandler) List(c *gin.Context) {
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

	var claims []models.Claim
	if errFind := h.db.WithContext(c.Request.Context()).
		Preload("Reward").
		Joins("JOIN rewards ON rewards.id = claims.reward_id").
		Where("claims.member_id = ? AND rewards.club_id = ?", memberID, clubID).
		Order("claims.created_at DESC").
		Find(&claims).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query claims failed"})
		return
	}

	out := make([]claimDTO, 0, len(claims))
	for _, claim := range claims {
		out = append(out, claimDTO{
			ID:               claim.ID,
			RewardID:         claim.RewardID,
			RewardTitle:      claim.Reward.Title,
			TicketsPurchased: claim.TicketsPurchased,
			TicketsRedeemed:  claim.TicketsRedeemed,
			TicketsRemaining: claim.TicketsRemaining(),
			AccessCode:       claim.AccessCode,
		})
	}

	c.JSON(http.StatusOK, gin.H{"claims": out})
}

// redeemRequest defines the redemption request body.
type redeemRequest struct {
	Amount int64 `json:"amount"`
}

// Redeem consumes tickets from one of the member's claims.
func (h *ClaimHandler) Redeem(c *gin.Context) {
	memberID := getMemberID(c)
	if memberID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	claimID, ok := pathID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid claim id"})
		return
	}

	body := redeemRequest{Amount: 1}
	if c.Request.ContentLength > 0 {
		if errBind := c.ShouldBindJSON(&body); errBind != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
	}

	result, errRedeem := h.redeemer.Redeem(c.Request.Context(), claimID, memberID, body.Amount)
	if errRedeem != nil {
		c.JSON(apperr.HTTPStatus(errRedeem), gin.H{"error": errRedeem.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"redemption": result})
}

// purchaseRequest defines the credit purchase request body.
type purchaseRequest struct {
	Quantity      int64 `json:"quantity"`
	ProtectStatus bool  `json:"protect_status"`
}

// Purchase buys a credit-priced reward with wallet points.
func (h *ClaimHandler) Purchase(c *gin.Context) {
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
	rewardID, ok := pathID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid reward id"})
		return
	}

	body := purchaseRequest{Quantity: 1}
	if c.Request.ContentLength > 0 {
		if errBind := c.ShouldBindJSON(&body); errBind != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
	}

	thresholds := settings.TierThresholdsFor(clubID)
	result, errPurchase := h.redeemer.ClaimWithCredits(c.Request.Context(),
		clubID, memberID, rewardID, body.Quantity, thresholds, body.ProtectStatus)
	if errPurchase != nil {
		c.JSON(apperr.HTTPStatus(errPurchase), gin.H{"error": errPurchase.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"purchase": result})
}
