package models

import (
	"time"

	"gorm.io/datatypes"
)

// Payment rails.
const (
	// RailCard is the off-chain card-payment rail.
	RailCard = "card"
	// RailStablecoin is the on-chain stablecoin-transfer rail.
	RailStablecoin = "stablecoin"
)

// Transaction states. Confirmed and failed are terminal for the attempt,
// though a failed row keeps its reference for recovery.
const (
	// TxStatePending awaits rail confirmation.
	TxStatePending = "pending"
	// TxStateConfirmed has had its effects applied exactly once.
	TxStateConfirmed = "confirmed"
	// TxStateFailed could not be applied; the reference is retained.
	TxStateFailed = "failed"
)

// Transaction tracks one checkout attempt across either rail.
//
// IdempotencyKey is the correctness boundary for reconciliation: the
// unique index guarantees at most one row, and the worker's row lock
// guarantees at most one confirmed application, per key. The key is the
// card session id on the card rail and the checkout reference on the
// stablecoin rail; ChainTxHash additionally records the observed transfer
// hash. External references are retained permanently for audit and
// replay-safety.
type Transaction struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	IdempotencyKey string `gorm:"type:text;not null;uniqueIndex"` // At-most-once application key.
	Rail           string `gorm:"type:text;not null;index"`       // Payment rail.

	ClubID   uint64 `gorm:"not null;index"` // Club scope.
	MemberID uint64 `gorm:"not null;index"` // Paying member.

	AmountCents int64  `gorm:"not null"`           // Aggregate charge in cents.
	ExternalRef string `gorm:"type:text;not null"` // Session id or checkout reference.
	ChainTxHash string `gorm:"type:text;index"`    // On-chain transfer hash, stablecoin rail only.

	State string `gorm:"type:text;not null;default:'pending';index"` // Lifecycle state.

	CartSnapshot datatypes.JSON `gorm:"type:jsonb"` // Cart lines frozen at checkout.
	LineResults  datatypes.JSON `gorm:"type:jsonb"` // Per-line application results.

	FailureReason *string `gorm:"type:text"` // Why the attempt failed, if it did.

	ConfirmedAt *time.Time // When effects were applied.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
