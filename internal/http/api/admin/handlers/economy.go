package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/superfanlabs/fanclub/internal/discount"
	"github.com/superfanlabs/fanclub/internal/settings"
	"github.com/superfanlabs/fanclub/internal/status"
)

// EconomyHandler manages per-club economy configuration.
type EconomyHandler struct {
	db *gorm.DB
}

// NewEconomyHandler constructs an EconomyHandler.
func NewEconomyHandler(conn *gorm.DB) *EconomyHandler {
	return &EconomyHandler{db: conn}
}

// economyRequest defines the economy update body. Omitted sections are
// left untouched.
type economyRequest struct {
	TierThresholds *status.Thresholds `json:"tier_thresholds"`
	DiscountTable  *discount.Table    `json:"discount_table"`
}

// Update validates and persists a club's tier thresholds and discount
// ladder, refreshing the in-memory snapshot.
func (h *EconomyHandler) Update(c *gin.Context) {
	clubID, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil || clubID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid club id"})
		return
	}

	var body economyRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.TierThresholds == nil && body.DiscountTable == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to update"})
		return
	}

	if body.TierThresholds != nil {
		if errValidate := body.TierThresholds.Validate(); errValidate != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errValidate.Error()})
			return
		}
		encoded, _ := json.Marshal(body.TierThresholds)
		if errUpsert := settings.Upsert(c.Request.Context(), h.db, settings.TierThresholdsKey(clubID), encoded); errUpsert != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "save thresholds failed"})
			return
		}
	}
	if body.DiscountTable != nil {
		if errValidate := body.DiscountTable.Validate(); errValidate != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errValidate.Error()})
			return
		}
		encoded, _ := json.Marshal(body.DiscountTable)
		if errUpsert := settings.Upsert(c.Request.Context(), h.db, settings.DiscountTableKey(clubID), encoded); errUpsert != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "save discount table failed"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"tier_thresholds": settings.TierThresholdsFor(clubID),
		"discount_table":  settings.DiscountTableFor(clubID),
	})
}
