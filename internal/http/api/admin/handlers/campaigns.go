package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/superfanlabs/fanclub/internal/funding"
)

// CampaignAdminHandler runs operator campaign maintenance.
type CampaignAdminHandler struct {
	db      *gorm.DB
	tracker *funding.Tracker
}

// NewCampaignAdminHandler constructs a CampaignAdminHandler.
func NewCampaignAdminHandler(conn *gorm.DB, tracker *funding.Tracker) *CampaignAdminHandler {
	return &CampaignAdminHandler{db: conn, tracker: tracker}
}

// EvaluateExpiry closes every active campaign whose deadline has passed.
// The sweeper runs the same evaluation on a timer; this endpoint exists
// so operators can force it.
func (h *CampaignAdminHandler) EvaluateExpiry(c *gin.Context) {
	transitions, errEvaluate := h.tracker.EvaluateExpiry(c.Request.Context())
	if errEvaluate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "evaluate expiry failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"transitions": transitions})
}
