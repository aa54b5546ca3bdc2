package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/superfanlabs/fanclub/internal/apperr"
	"github.com/superfanlabs/fanclub/internal/funding"
	"github.com/superfanlabs/fanclub/internal/models"
)

// CampaignHandler serves campaign listings and funding progress.
type CampaignHandler struct {
	db      *gorm.DB
	tracker *funding.Tracker
}

// NewCampaignHandler constructs a CampaignHandler.
func NewCampaignHandler(db *gorm.DB, tracker *funding.Tracker) *CampaignHandler {
	return &CampaignHandler{db: db, tracker: tracker}
}

// campaignDTO defines the campaign list payload.
type campaignDTO struct {
	ID           uint64  `json:"id"`
	Title        string  `json:"title"`
	GoalCents    int64   `json:"goal_cents"`
	CurrentCents int64   `json:"current_cents"`
	Percentage   float64 `json:"percentage"`
	Status       string  `json:"status"`
	Deadline     string  `json:"deadline"`
}

// List returns a club's campaigns, newest first.
func (h *CampaignHandler) List(c *gin.Context) {
	clubID, ok := clubIDFromQuery(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "club_id is required"})
		return
	}

	var campaigns []models.Campaign
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("club_id = ?", clubID).
		Order("created_at DESC").
		Find(&campaigns).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query campaigns failed"})
		return
	}

	out := make([]campaignDTO, 0, len(campaigns))
	for _, campaign := range campaigns {
		out = append(out, campaignDTO{
			ID:           campaign.ID,
			Title:        campaign.Title,
			GoalCents:    campaign.GoalCents,
			CurrentCents: campaign.CurrentCents,
			Percentage:   funding.Percentage(campaign.CurrentCents, campaign.GoalCents),
			Status:       campaign.Status,
			Deadline:     campaign.Deadline.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}

	c.JSON(http.StatusOK, gin.H{"campaigns": out})
}

// Progress returns the live funding state of one campaign.
func (h *CampaignHandler) Progress(c *gin.Context) {
	campaignID, ok := pathID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid campaign id"})
		return
	}

	progress, errGet := h.tracker.GetProgress(c.Request.Context(), campaignID)
	if errGet != nil {
		if apperr.KindOf(errGet) == apperr.KindNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "campaign not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load progress failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"progress": progress})
}
