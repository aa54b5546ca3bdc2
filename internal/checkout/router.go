// Package checkout routes a cart to exactly one payment rail.
package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/superfanlabs/fanclub/internal/apperr"
	"github.com/superfanlabs/fanclub/internal/cart"
	"github.com/superfanlabs/fanclub/internal/models"
)

// usdcBaseUnitsPerCent converts cents to 6-decimal stablecoin base
// units: one cent is 10^4 base units.
const usdcBaseUnitsPerCent = 10_000

// RailContext carries the client/runtime signals the router decides on.
type RailContext struct {
	// WalletApp is true when the client runs inside a wallet-enabled app
	// and can sign an on-chain transfer.
	WalletApp bool `json:"wallet_app"`
}

// ChainConfig describes the stablecoin rail destination.
type ChainConfig struct {
	RecipientAddress string `yaml:"recipient-address" json:"recipient_address"`
	TokenSymbol      string `yaml:"token-symbol" json:"token_symbol"`
}

// Enabled reports whether the stablecoin rail is configured.
func (c ChainConfig) Enabled() bool { return c.RecipientAddress != "" }

// Charge is the single aggregate charge descriptor for one checkout
// attempt. Exactly one is produced per attempt, never per-item charges.
type Charge struct {
	Rail        string `json:"rail"`
	Reference   string `json:"reference"`
	AmountCents int64  `json:"amount_cents"`

	// Card rail only.
	SessionID   string `json:"session_id,omitempty"`
	RedirectURL string `json:"redirect_url,omitempty"`

	// Stablecoin rail only.
	Recipient      string `json:"recipient,omitempty"`
	TokenSymbol    string `json:"token_symbol,omitempty"`
	TokenBaseUnits string `json:"token_base_units,omitempty"`
}

// Router picks a rail per checkout attempt and records the pending
// transaction that reconciliation later finalizes.
type Router struct {
	db      *gorm.DB
	gateway CardGateway
	chain   ChainConfig
}

// NewRouter constructs a Router.
func NewRouter(db *gorm.DB, gateway CardGateway, chain ChainConfig) *Router {
	return &Router{db: db, gateway: gateway, chain: chain}
}

// Route validates the cart total, picks a rail from the client context,
// creates the rail-side charge, persists a pending Transaction under the
// charge's idempotency key, and locks the cart to the reference. The
// cart is not cleared here; only a confirmed reconciliation clears it,
// so failed redirects and abandoned sessions stay retryable.
func (r *Router) Route(ctx context.Context, c *cart.Cart, railCtx RailContext) (Charge, error) {
	if c == nil || len(c.Lines) == 0 {
		return Charge{}, apperr.Validation("checkout: empty cart")
	}
	if c.Locked() {
		return Charge{}, apperr.Conflict("checkout: attempt already in flight under %s", c.LockedRef)
	}

	total, errTotal := cart.ComputeTotal(c)
	if errTotal != nil {
		return Charge{}, errTotal
	}
	if total.Cents <= 0 {
		return Charge{}, apperr.Validation("checkout: non-positive total %d", total.Cents)
	}

	var charge Charge
	var errCharge error
	if railCtx.WalletApp && r.chain.Enabled() {
		charge, errCharge = r.stablecoinCharge(total.Cents)
	} else {
		charge, errCharge = r.cardCharge(ctx, c, total.Cents)
	}
	if errCharge != nil {
		return Charge{}, errCharge
	}

	if errRecord := r.recordPending(ctx, c, charge); errRecord != nil {
		return Charge{}, errRecord
	}
	if errLock := c.Lock(charge.Reference); errLock != nil {
		return Charge{}, errLock
	}

	log.WithFields(log.Fields{
		"rail":         charge.Rail,
		"reference":    charge.Reference,
		"amount_cents": charge.AmountCents,
		"club_id":      c.ClubID,
		"member_id":    c.MemberID,
	}).Info("checkout: charge routed")
	return charge, nil
}

// cardCharge creates one hosted session for the whole cart.
func (r *Router) cardCharge(ctx context.Context, c *cart.Cart, amountCents int64) (Charge, error) {
	if r.gateway == nil {
		return Charge{}, apperr.New(apperr.KindExternalRail, "checkout: card rail not configured")
	}

	session, errCreate := r.gateway.CreateSession(ctx, CreateSessionParams{
		AmountCents: amountCents,
		Currency:    "usd",
		Reference:   fmt.Sprintf("club%d-member%d", c.ClubID, c.MemberID),
		Description: fmt.Sprintf("fanclub checkout, %d lines", len(c.Lines)),
	})
	if errCreate != nil {
		return Charge{}, errCreate
	}

	return Charge{
		Rail:        models.RailCard,
		Reference:   session.SessionID,
		AmountCents: amountCents,
		SessionID:   session.SessionID,
		RedirectURL: session.RedirectURL,
	}, nil
}

// stablecoinCharge computes the aggregate on-chain transfer the client
// must sign. The recipient must be a valid hex address and the computed
// token amount must be finite and positive.
func (r *Router) stablecoinCharge(amountCents int64) (Charge, error) {
	if !ethcommon.IsHexAddress(r.chain.RecipientAddress) {
		return Charge{}, apperr.Validation("checkout: invalid recipient address %q", r.chain.RecipientAddress)
	}
	if amountCents > math.MaxInt64/usdcBaseUnitsPerCent {
		return Charge{}, apperr.Validation("checkout: token amount overflows")
	}

	baseUnits := new(big.Int).Mul(big.NewInt(amountCents), big.NewInt(usdcBaseUnitsPerCent))
	if baseUnits.Sign() <= 0 {
		return Charge{}, apperr.Validation("checkout: non-positive token amount")
	}

	symbol := r.chain.TokenSymbol
	if symbol == "" {
		symbol = "USDC"
	}

	return Charge{
		Rail:           models.RailStablecoin,
		Reference:      "xfer_" + uuid.NewString(),
		AmountCents:    amountCents,
		Recipient:      ethcommon.HexToAddress(r.chain.RecipientAddress).Hex(),
		TokenSymbol:    symbol,
		TokenBaseUnits: baseUnits.String(),
	}, nil
}

// recordPending persists the pending Transaction with the frozen cart
// snapshot. The charge reference is the idempotency key reconciliation
// will be driven by; it is never discarded.
func (r *Router) recordPending(ctx context.Context, c *cart.Cart, charge Charge) error {
	snapshot, errMarshal := json.Marshal(c.Lines)
	if errMarshal != nil {
		return fmt.Errorf("checkout: marshal cart snapshot: %w", errMarshal)
	}

	txRecord := models.Transaction{
		IdempotencyKey: charge.Reference,
		Rail:           charge.Rail,
		ClubID:         c.ClubID,
		MemberID:       c.MemberID,
		AmountCents:    charge.AmountCents,
		ExternalRef:    charge.Reference,
		State:          models.TxStatePending,
		CartSnapshot:   datatypes.JSON(snapshot),
	}
	if errCreate := r.db.WithContext(ctx).Create(&txRecord).Error; errCreate != nil {
		return apperr.Wrap(apperr.KindPersistence, errCreate,
			"checkout: record pending transaction %s", charge.Reference)
	}
	return nil
}

// Abandon releases a cart whose rail never confirmed. No credit effects
// have been applied at this point; the pending transaction stays for
// audit and the lines stay retryable.
func (r *Router) Abandon(ctx context.Context, c *cart.Cart) error {
	if c == nil || !c.Locked() {
		return apperr.Validation("checkout: no attempt in flight")
	}

	ref := c.LockedRef
	result := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("idempotency_key = ? AND state = ?", ref, models.TxStatePending).
		Updates(map[string]any{
			"state":          models.TxStateFailed,
			"failure_reason": "abandoned by member",
		})
	if result.Error != nil {
		return fmt.Errorf("checkout: abandon %s: %w", ref, result.Error)
	}
	if result.RowsAffected == 0 {
		// Already confirmed or failed; the cart must not unlock under a
		// confirmed attempt.
		var txRecord models.Transaction
		if errFind := r.db.WithContext(ctx).
			Where("idempotency_key = ?", ref).
			First(&txRecord).Error; errFind == nil && txRecord.State == models.TxStateConfirmed {
			return apperr.Conflict("checkout: attempt %s already confirmed", ref)
		}
	}

	c.Unlock()
	log.WithField("reference", ref).Info("checkout: attempt abandoned, cart retryable")
	return nil
}
