package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// DefaultTTL is the inactivity window after which a cart is discarded.
const DefaultTTL = 24 * time.Hour

// Store persists carts in Redis. The TTL refreshes on every save, so the
// key expires exactly when the cart has been inactive for the full
// window; Redis expiry is the 24h clear, not a UI timer.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewStore builds a cart store. A non-positive ttl falls back to DefaultTTL.
func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{rdb: rdb, ttl: ttl}
}

// key namespaces carts per club and member.
func key(clubID, memberID uint64) string {
	return fmt.Sprintf("cart:%d:%d", clubID, memberID)
}

// traceKey outlives the cart key so an expiry is observable. Redis
// drops the cart silently; the trace is what turns that into an event
// for the notifier collaborator.
func traceKey(clubID, memberID uint64) string {
	return key(clubID, memberID) + ":trace"
}

// Get rehydrates the member's cart for a club, returning a fresh empty
// cart when none is stored or the previous one expired. An expiry is
// detected once, logged as the notification event, and forgotten.
func (s *Store) Get(ctx context.Context, clubID, memberID uint64) (*Cart, error) {
	raw, errGet := s.rdb.Get(ctx, key(clubID, memberID)).Bytes()
	if errGet != nil {
		if errors.Is(errGet, redis.Nil) {
			if deleted, errTrace := s.rdb.Del(ctx, traceKey(clubID, memberID)).Result(); errTrace == nil && deleted > 0 {
				log.WithFields(log.Fields{
					"club_id":   clubID,
					"member_id": memberID,
				}).Info("cart: expired after inactivity, member notification due")
			}
			return &Cart{ClubID: clubID, MemberID: memberID}, nil
		}
		return nil, fmt.Errorf("cart: load: %w", errGet)
	}

	var loaded Cart
	if errUnmarshal := json.Unmarshal(raw, &loaded); errUnmarshal != nil {
		// A corrupt payload is unrecoverable; discard rather than wedge
		// the member's checkout.
		log.WithFields(log.Fields{
			"club_id":   clubID,
			"member_id": memberID,
		}).WithError(errUnmarshal).Warn("cart: discarding corrupt payload")
		_ = s.rdb.Del(ctx, key(clubID, memberID)).Err()
		return &Cart{ClubID: clubID, MemberID: memberID}, nil
	}
	return &loaded, nil
}

// Save writes the cart back and refreshes the inactivity TTL.
func (s *Store) Save(ctx context.Context, c *Cart) error {
	if c == nil {
		return fmt.Errorf("cart: nil cart")
	}
	c.UpdatedAt = time.Now().UTC()
	raw, errMarshal := json.Marshal(c)
	if errMarshal != nil {
		return fmt.Errorf("cart: marshal: %w", errMarshal)
	}
	if errSet := s.rdb.Set(ctx, key(c.ClubID, c.MemberID), raw, s.ttl).Err(); errSet != nil {
		return fmt.Errorf("cart: save: %w", errSet)
	}
	// The trace must outlive the cart or the expiry is unobservable.
	if errTrace := s.rdb.Set(ctx, traceKey(c.ClubID, c.MemberID), "1", 2*s.ttl).Err(); errTrace != nil {
		return fmt.Errorf("cart: save trace: %w", errTrace)
	}
	return nil
}

// Clear discards the cart, on checkout success or club switch. The
// trace goes with it; a deliberate clear is not an expiry.
func (s *Store) Clear(ctx context.Context, clubID, memberID uint64) error {
	if errDel := s.rdb.Del(ctx, key(clubID, memberID), traceKey(clubID, memberID)).Err(); errDel != nil {
		return fmt.Errorf("cart: clear: %w", errDel)
	}
	return nil
}
