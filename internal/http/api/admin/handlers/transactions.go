package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/superfanlabs/fanclub/internal/db"
	"github.com/superfanlabs/fanclub/internal/models"
)

// TransactionHandler serves the operator transaction ledger.
type TransactionHandler struct {
	db *gorm.DB
}

// NewTransactionHandler constructs a TransactionHandler.
func NewTransactionHandler(conn *gorm.DB) *TransactionHandler {
	return &TransactionHandler{db: conn}
}

// transactionAdminDTO defines the admin transaction payload.
type transactionAdminDTO struct {
	ID          uint64 `json:"id"`
	Reference   string `json:"reference"`
	Rail        string `json:"rail"`
	State       string `json:"state"`
	ClubID      uint64 `json:"club_id"`
	MemberID    uint64 `json:"member_id"`
	AmountCents int64  `json:"amount_cents"`
	ChainTxHash string `json:"chain_tx_hash,omitempty"`
	Failure     string `json:"failure_reason,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// List returns transactions with optional filters: state, rail, club_id,
// and a case-insensitive reference search.
func (h *TransactionHandler) List(c *gin.Context) {
	query := h.db.WithContext(c.Request.Context()).Model(&models.Transaction{})

	if state := strings.TrimSpace(c.Query("state")); state != "" {
		query = query.Where("state = ?", state)
	}
	if rail := strings.TrimSpace(c.Query("rail")); rail != "" {
		query = query.Where("rail = ?", rail)
	}
	if clubID, errParse := strconv.ParseUint(c.Query("club_id"), 10, 64); errParse == nil && clubID > 0 {
		query = query.Where("club_id = ?", clubID)
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		pattern := db.NormalizeLikePattern(h.db, "%"+search+"%")
		query = query.Where(db.CaseInsensitiveLikeExpr(h.db, "idempotency_key"), pattern)
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}

	var total int64
	if errCount := query.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count transactions failed"})
		return
	}

	var rows []models.Transaction
	if errFind := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query transactions failed"})
		return
	}

	out := make([]transactionAdminDTO, 0, len(rows))
	for _, row := range rows {
		dto := transactionAdminDTO{
			ID:          row.ID,
			Reference:   row.IdempotencyKey,
			Rail:        row.Rail,
			State:       row.State,
			ClubID:      row.ClubID,
			MemberID:    row.MemberID,
			AmountCents: row.AmountCents,
			ChainTxHash: row.ChainTxHash,
			CreatedAt:   row.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}
		if row.FailureReason != nil {
			dto.Failure = *row.FailureReason
		}
		out = append(out, dto)
	}

	c.JSON(http.StatusOK, gin.H{
		"transactions": out,
		"total":        total,
		"page":         page,
		"page_size":    pageSize,
	})
}
