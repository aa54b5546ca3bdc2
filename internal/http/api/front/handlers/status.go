package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/superfanlabs/fanclub/internal/settings"
	"github.com/superfanlabs/fanclub/internal/status"
	"github.com/superfanlabs/fanclub/internal/wallet"
)

// StatusHandler serves the member's tier standing in a club.
type StatusHandler struct {
	db      *gorm.DB
	wallets *wallet.Ledger
}

// NewStatusHandler constructs a StatusHandler.
func NewStatusHandler(db *gorm.DB, wallets *wallet.Ledger) *StatusHandler {
	return &StatusHandler{db: db, wallets: wallets}
}

// Get returns the tier breakdown for the member in a club. Only earned
// points count toward status; purchased credits never do.
func (h *StatusHandler) Get(c *gin.Context) {
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

	w, errGet := h.wallets.Ensure(c.Request.Context(), clubID, memberID)
	if errGet != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load wallet failed"})
		return
	}

	thresholds := settings.TierThresholdsFor(clubID)
	breakdown, errCompute := status.Compute(thresholds, w.EarnedPoints)
	if errCompute != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "compute status failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": breakdown})
}
