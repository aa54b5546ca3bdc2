// Package sweeper runs the background maintenance loop: campaign
// deadline evaluation and stale pending-transaction cleanup.
package sweeper

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/superfanlabs/fanclub/internal/funding"
	"github.com/superfanlabs/fanclub/internal/models"
	"github.com/superfanlabs/fanclub/internal/settings"
)

// Sweeper periodically closes overdue campaigns and abandons stale
// pending card transactions.
type Sweeper struct {
	db      *gorm.DB
	tracker *funding.Tracker
	now     func() time.Time
}

// New constructs a Sweeper.
func New(db *gorm.DB, tracker *funding.Tracker) *Sweeper {
	return &Sweeper{db: db, tracker: tracker, now: time.Now}
}

// WithClock overrides the time source, for tests.
func (s *Sweeper) WithClock(clock func() time.Time) *Sweeper {
	s.now = clock
	return s
}

// Start launches the sweep loop in a goroutine. The interval re-reads
// settings on every round, so operator changes apply without a restart.
func (s *Sweeper) Start(ctx context.Context) {
	if s == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	go s.run(ctx)
	log.Infof("sweeper started (interval=%s)", settings.SweepInterval())
}

func (s *Sweeper) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		s.sweep(ctx)
		if ctx.Err() != nil {
			return
		}
		timer := time.NewTimer(settings.SweepInterval())
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return
		case <-timer.C:
		}
	}
}

// sweep runs one maintenance round.
func (s *Sweeper) sweep(ctx context.Context) {
	transitions, errEvaluate := s.tracker.EvaluateExpiry(ctx)
	if errEvaluate != nil {
		log.WithError(errEvaluate).Warn("sweeper: evaluate campaign expiry failed")
	} else if len(transitions) > 0 {
		log.WithField("count", len(transitions)).Info("sweeper: closed overdue campaigns")
	}

	s.reapStalePending(ctx)
}

// reapStalePending fails pending card transactions older than the
// configured age. The member never completed the redirect; the cart
// stays locked until this runs or they abandon explicitly. Stablecoin
// references are left alone: a transfer can confirm on-chain long after
// checkout, and reconciliation of a late confirmation must find the
// pending row.
func (s *Sweeper) reapStalePending(ctx context.Context) {
	cutoff := s.now().UTC().Add(-settings.StalePendingAge())
	result := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("state = ? AND rail = ? AND created_at < ?",
			models.TxStatePending, models.RailCard, cutoff).
		Updates(map[string]any{
			"state":          models.TxStateFailed,
			"failure_reason": "card session expired",
		})
	if result.Error != nil {
		log.WithError(result.Error).Warn("sweeper: reap stale pending failed")
		return
	}
	if result.RowsAffected > 0 {
		log.WithField("count", result.RowsAffected).Info("sweeper: expired stale card sessions")
	}
}
