package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/superfanlabs/fanclub/internal/settings"
	"github.com/superfanlabs/fanclub/internal/wallet"
)

// WalletHandler serves wallet balances.
type WalletHandler struct {
	db      *gorm.DB
	wallets *wallet.Ledger
}

// NewWalletHandler constructs a WalletHandler.
func NewWalletHandler(db *gorm.DB, wallets *wallet.Ledger) *WalletHandler {
	return &WalletHandler{db: db, wallets: wallets}
}

// walletDTO defines the wallet response payload.
type walletDTO struct {
	ClubID          uint64 `json:"club_id"`
	EarnedPoints    int64  `json:"earned_points"`
	PurchasedPoints int64  `json:"purchased_points"`
	TotalBalance    int64  `json:"total_balance"`
	Spendable       int64  `json:"spendable"`
}

// Get returns the member's wallet for a club. Spendable reflects status
// protection: earned points below the current tier threshold are held.
func (h *WalletHandler) Get(c *gin.Context) {
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
	spendable, errSpendable := wallet.Spendable(*w, thresholds, true)
	if errSpendable != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "compute spendable failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"wallet": walletDTO{
		ClubID:          clubID,
		EarnedPoints:    w.EarnedPoints,
		PurchasedPoints: w.PurchasedPoints,
		TotalBalance:    w.TotalBalance(),
		Spendable:       spendable,
	}})
}
