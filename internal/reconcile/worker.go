// Package reconcile applies confirmed payments exactly once.
//
// The external reference of a payment (card session id or checkout
// reference) doubles as the idempotency key of its Transaction row. The
// unique index on that key plus a row lock for the whole application is
// the single correctness boundary against webhook replays, rapid
// retries, and clients crashing mid-flow. Keys live in the database, not
// in memory, so they survive process restarts.
package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/superfanlabs/fanclub/internal/apperr"
	"github.com/superfanlabs/fanclub/internal/cart"
	"github.com/superfanlabs/fanclub/internal/funding"
	"github.com/superfanlabs/fanclub/internal/models"
	"github.com/superfanlabs/fanclub/internal/wallet"
)

// Line failure reasons recorded in per-line results.
const (
	reasonSoldOut        = "sold_out"
	reasonInvalidLine    = "invalid_line"
	reasonCampaignClosed = "campaign_closed"
)

// Worker finalizes transactions on payment-confirmed signals from
// either rail.
type Worker struct {
	db      *gorm.DB
	wallets *wallet.Ledger
	tracker *funding.Tracker
	metrics *Metrics
	now     func() time.Time
}

// NewWorker constructs a Worker.
func NewWorker(db *gorm.DB, wallets *wallet.Ledger, tracker *funding.Tracker) *Worker {
	return &Worker{
		db:      db,
		wallets: wallets,
		tracker: tracker,
		metrics: NewMetrics(),
		now:     time.Now,
	}
}

// ConfirmParams describes one payment-confirmed signal.
type ConfirmParams struct {
	// ExternalRef is the idempotency key: card session id or checkout
	// reference.
	ExternalRef string
	// Rail the confirmation arrived on.
	Rail string
	// ChainTxHash is the observed transfer hash, stablecoin rail only.
	ChainTxHash string
	// Snapshot supplies the cart when no pending transaction exists for
	// the reference; the stored snapshot wins when one does.
	Snapshot *cart.Cart
}

// LineResult reports the outcome for one cart line.
type LineResult struct {
	LineID  string `json:"line_id"`
	Kind    string `json:"kind"`
	Applied bool   `json:"applied"`
	Reason  string `json:"reason,omitempty"`
}

// Result is the reconciliation outcome. Replays of a confirmed reference
// return the identical prior result: Replayed is in-process diagnostics
// for metrics and logging and stays out of the serialized payload, so a
// caller cannot tell a replay from the original response.
type Result struct {
	Reference string       `json:"reference"`
	Applied   bool         `json:"applied"`
	Replayed  bool         `json:"-"`
	Lines     []LineResult `json:"lines"`
}

// allApplied reports whether every line landed.
func allApplied(lines []LineResult) bool {
	for _, line := range lines {
		if !line.Applied {
			return false
		}
	}
	return true
}

// ReconcilePayment applies the credit and claim effects of a confirmed
// payment exactly once per external reference. Safe to call any number
// of times, from concurrent webhook retries included: once a reference
// is confirmed every further call no-ops and returns the prior result.
// Partial line failures commit the successful lines; a later call with
// the same reference retries only the failed ones.
func (w *Worker) ReconcilePayment(ctx context.Context, params ConfirmParams) (Result, error) {
	started := w.now()
	defer func() {
		w.metrics.duration.Observe(w.now().Sub(started).Seconds())
	}()

	ref := strings.TrimSpace(params.ExternalRef)
	if ref == "" {
		return Result{}, apperr.Validation("reconcile: empty external reference")
	}
	if params.Rail != models.RailCard && params.Rail != models.RailStablecoin {
		return Result{}, apperr.Validation("reconcile: unknown rail %q", params.Rail)
	}

	var result Result
	errTx := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRecord, errLoad := w.lockTransaction(tx, ref, params)
		if errLoad != nil {
			return errLoad
		}

		if txRecord.State == models.TxStateConfirmed {
			prior, errPrior := decodeLineResults(txRecord.LineResults)
			if errPrior != nil {
				return fmt.Errorf("reconcile: decode prior results for %s: %w", ref, errPrior)
			}
			result = Result{Reference: ref, Applied: true, Replayed: true, Lines: prior}
			return nil
		}

		lines, errSnapshot := decodeSnapshot(txRecord.CartSnapshot)
		if errSnapshot != nil {
			return fmt.Errorf("reconcile: decode snapshot for %s: %w", ref, errSnapshot)
		}
		prior, _ := decodeLineResults(txRecord.LineResults)
		priorApplied := map[string]bool{}
		for _, line := range prior {
			if line.Applied {
				priorApplied[line.LineID] = true
			}
		}

		lineResults := make([]LineResult, 0, len(lines))
		for _, line := range lines {
			if priorApplied[line.ID] {
				lineResults = append(lineResults, LineResult{LineID: line.ID, Kind: line.Kind, Applied: true})
				continue
			}
			lineResult, errApply := w.applyLine(tx, txRecord, line)
			if errApply != nil {
				// Infrastructure failure: roll the whole attempt back so
				// no half-applied state survives.
				return errApply
			}
			lineResults = append(lineResults, lineResult)
		}

		encoded, errEncode := json.Marshal(lineResults)
		if errEncode != nil {
			return fmt.Errorf("reconcile: encode line results for %s: %w", ref, errEncode)
		}

		updates := map[string]any{
			"line_results": datatypes.JSON(encoded),
		}
		if params.ChainTxHash != "" {
			updates["chain_tx_hash"] = params.ChainTxHash
		}
		applied := allApplied(lineResults)
		if applied {
			updates["state"] = models.TxStateConfirmed
			updates["confirmed_at"] = w.now().UTC()
		}
		if errUpdate := tx.Model(&models.Transaction{}).
			Where("id = ?", txRecord.ID).
			Updates(updates).Error; errUpdate != nil {
			return fmt.Errorf("reconcile: finalize %s: %w", ref, errUpdate)
		}

		result = Result{Reference: ref, Applied: applied, Lines: lineResults}
		return nil
	})
	if errTx != nil {
		return Result{}, w.recordFailure(ctx, ref, params, errTx)
	}

	if result.Replayed {
		w.metrics.replayed.Inc()
	} else if result.Applied {
		w.metrics.applied.WithLabelValues(params.Rail).Inc()
	}

	entry := log.WithFields(log.Fields{
		"reference": ref,
		"rail":      params.Rail,
		"applied":   result.Applied,
		"replayed":  result.Replayed,
	})
	if result.Applied {
		entry.Info("reconcile: payment settled")
	} else {
		entry.Warn("reconcile: payment partially applied, failed lines retryable")
	}
	return result, nil
}

// lockTransaction loads the transaction row for the reference under a
// row lock, creating the pending row from the supplied snapshot when the
// reference was never recorded at checkout. The unique key makes the
// create race-safe: a loser of the race falls back to locking the
// winner's row.
func (w *Worker) lockTransaction(tx *gorm.DB, ref string, params ConfirmParams) (*models.Transaction, error) {
	var txRecord models.Transaction
	errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("idempotency_key = ?", ref).
		First(&txRecord).Error
	if errFind == nil {
		return &txRecord, nil
	}
	if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("reconcile: lock transaction %s: %w", ref, errFind)
	}

	if params.Snapshot == nil {
		return nil, apperr.NotFound("reconcile: no transaction for reference %s", ref)
	}

	snapshot, errMarshal := json.Marshal(params.Snapshot.Lines)
	if errMarshal != nil {
		return nil, fmt.Errorf("reconcile: marshal snapshot for %s: %w", ref, errMarshal)
	}
	total, errTotal := cart.ComputeTotal(params.Snapshot)
	if errTotal != nil {
		return nil, errTotal
	}
	created := models.Transaction{
		IdempotencyKey: ref,
		Rail:           params.Rail,
		ClubID:         params.Snapshot.ClubID,
		MemberID:       params.Snapshot.MemberID,
		AmountCents:    total.Cents,
		ExternalRef:    ref,
		State:          models.TxStatePending,
		CartSnapshot:   datatypes.JSON(snapshot),
	}
	if errCreate := tx.Create(&created).Error; errCreate != nil {
		// Lost the create race; lock whichever row won.
		errRetry := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("idempotency_key = ?", ref).
			First(&txRecord).Error
		if errRetry != nil {
			return nil, fmt.Errorf("reconcile: create transaction %s: %w", ref, errCreate)
		}
		return &txRecord, nil
	}
	return &created, nil
}

// applyLine applies one cart line's effects. Domain failures (sold out,
// malformed line) mark the line failed and let the rest of the cart
// proceed; they surface in the per-line results. A non-nil error is an
// infrastructure failure and aborts the whole transaction.
func (w *Worker) applyLine(tx *gorm.DB, txRecord *models.Transaction, line cart.Line) (LineResult, error) {
	out := LineResult{LineID: line.ID, Kind: line.Kind}

	var errApply error
	switch line.Kind {
	case cart.KindCredits:
		points := line.UnitCredits * line.Quantity
		errApply = w.wallets.CreditPurchased(tx, txRecord.ClubID, txRecord.MemberID, points)
	case cart.KindItem:
		errApply = w.applyItemLine(tx, txRecord, line)
	default:
		errApply = apperr.Validation("reconcile: unknown line kind %q", line.Kind)
	}

	if errApply != nil {
		kind := apperr.KindOf(errApply)
		if kind == apperr.KindPrecondition || kind == apperr.KindValidation {
			out.Reason = reasonFor(errApply)
			w.metrics.lineFailures.WithLabelValues(out.Reason).Inc()
			return out, nil
		}
		return out, errApply
	}

	out.Applied = true
	return out, nil
}

// applyItemLine records an item purchase: supply check-and-increment,
// claim upsert, and the campaign contribution for campaign-bound items.
func (w *Worker) applyItemLine(tx *gorm.DB, txRecord *models.Transaction, line cart.Line) error {
	if line.RewardID == nil {
		return apperr.Validation("reconcile: item line %s has no reward", line.ID)
	}
	rewardID := *line.RewardID

	// Atomic check-and-increment so concurrent confirmations cannot
	// oversell a capped reward.
	claimed := tx.Model(&models.Reward{}).
		Where("id = ? AND inventory_status = ? AND (supply_cap IS NULL OR supply_sold + ? <= supply_cap)",
			rewardID, models.InventoryAvailable, line.Quantity).
		Update("supply_sold", gorm.Expr("supply_sold + ?", line.Quantity))
	if claimed.Error != nil {
		return fmt.Errorf("reconcile: claim supply for reward %d: %w", rewardID, claimed.Error)
	}
	if claimed.RowsAffected == 0 {
		return apperr.Precondition("reconcile: reward %d sold out or unavailable", rewardID)
	}

	// Flip to sold_out once the cap is exhausted.
	if errFlip := tx.Model(&models.Reward{}).
		Where("id = ? AND supply_cap IS NOT NULL AND supply_sold >= supply_cap AND inventory_status = ?",
			rewardID, models.InventoryAvailable).
		Update("inventory_status", models.InventorySoldOut).Error; errFlip != nil {
		return fmt.Errorf("reconcile: flip reward %d sold out: %w", rewardID, errFlip)
	}

	claim := models.Claim{RewardID: rewardID, MemberID: txRecord.MemberID}
	if errEnsure := tx.
		Where("reward_id = ? AND member_id = ?", rewardID, txRecord.MemberID).
		FirstOrCreate(&claim).Error; errEnsure != nil {
		return fmt.Errorf("reconcile: ensure claim for reward %d: %w", rewardID, errEnsure)
	}
	if errTickets := tx.Model(&models.Claim{}).
		Where("id = ?", claim.ID).
		Update("tickets_purchased", gorm.Expr("tickets_purchased + ?", line.Quantity)).Error; errTickets != nil {
		return fmt.Errorf("reconcile: add tickets to claim %d: %w", claim.ID, errTickets)
	}

	if line.CampaignID != nil {
		lineCents := line.UnitAmountCents * line.Quantity
		errContribute := w.tracker.ApplyContribution(tx, *line.CampaignID, lineCents)
		if errContribute != nil {
			if apperr.KindOf(errContribute) == apperr.KindPrecondition {
				// The campaign closed between checkout and confirmation.
				// The member still gets the claim; only the funding
				// counter is left alone.
				log.WithFields(log.Fields{
					"campaign_id": *line.CampaignID,
					"line_id":     line.ID,
				}).Warn("reconcile: contribution skipped, campaign no longer active")
				return nil
			}
			return errContribute
		}
	}
	return nil
}

// reasonFor maps a line error to a stable result reason.
func reasonFor(err error) string {
	switch apperr.KindOf(err) {
	case apperr.KindPrecondition:
		return reasonSoldOut
	case apperr.KindValidation:
		return reasonInvalidLine
	default:
		return reasonCampaignClosed
	}
}

// recordFailure durably parks an unapplicable confirmation. The external
// reference must never be lost: an un-recorded confirmed payment is the
// one failure mode this system cannot repair on its own.
func (w *Worker) recordFailure(ctx context.Context, ref string, params ConfirmParams, cause error) error {
	if kind := apperr.KindOf(cause); kind == apperr.KindValidation || kind == apperr.KindNotFound {
		return cause
	}

	reason := cause.Error()
	errMark := w.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("idempotency_key = ? AND state = ?", ref, models.TxStatePending).
		Updates(map[string]any{
			"state":          models.TxStateFailed,
			"failure_reason": reason,
		}).Error
	if errMark != nil {
		// Even the failure record could not be written. Log the
		// reference loudly; the sweeper re-surfaces it for recovery.
		log.WithFields(log.Fields{
			"reference": ref,
			"rail":      params.Rail,
		}).WithError(errMark).Error("reconcile: CRITICAL could not persist failure record")
	}
	return apperr.Wrap(apperr.KindPersistence, cause, "reconcile: payment %s parked for recovery", ref)
}

// decodeSnapshot parses the frozen cart lines off a transaction row.
func decodeSnapshot(raw datatypes.JSON) ([]cart.Line, error) {
	if len(raw) == 0 {
		return nil, errors.New("empty cart snapshot")
	}
	var lines []cart.Line
	if errUnmarshal := json.Unmarshal(raw, &lines); errUnmarshal != nil {
		return nil, errUnmarshal
	}
	return lines, nil
}

// decodeLineResults parses stored per-line results, tolerating absence.
func decodeLineResults(raw datatypes.JSON) ([]LineResult, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var results []LineResult
	if errUnmarshal := json.Unmarshal(raw, &results); errUnmarshal != nil {
		return nil, errUnmarshal
	}
	return results, nil
}
