package coupon

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/shopsaga/order-core/internal/lock"
	"github.com/shopsaga/order-core/internal/model"
	"github.com/shopsaga/order-core/internal/notify"
	"github.com/shopsaga/order-core/pkg/memstore"
)

// Drainer pops admitted users off the in-memory FIFO queue and writes them
// durably, one coupon at a time (§4.9's "drain worker, every second").
type Drainer struct {
	store     memstore.Client
	repo      *Repository
	locker    *lock.Manager
	batchSize int
	hub       *notify.Hub
}

func NewDrainer(store memstore.Client, repo *Repository, locker *lock.Manager, batchSize int, hub *notify.Hub) *Drainer {
	return &Drainer{store: store, repo: repo, locker: locker, batchSize: batchSize, hub: hub}
}

// DrainOnce processes up to batchSize queue entries for couponID, in score
// (acceptance-time) order. A failed durable write re-queues the entry at its
// original score so FIFO order survives a drain failure. Serialized per
// coupon via the distributed lock manager (§4.11: "one-at-a-time coupon
// drain per coupon") so two dispatcher instances never race the same
// coupon's queue.
func (d *Drainer) DrainOnce(ctx context.Context, couponID int64) (drained int, err error) {
	lockKey := memstore.LockKey(memstore.LockDomainCoupon, strconv.FormatInt(couponID, 10))
	lockErr := d.locker.WithLock(ctx, lockKey, func(ctx context.Context) error {
		drained, err = d.drainOnceLocked(ctx, couponID)
		return err
	})
	if lockErr != nil {
		return 0, lockErr
	}
	return drained, nil
}

func (d *Drainer) drainOnceLocked(ctx context.Context, couponID int64) (drained int, err error) {
	queueKey := memstore.CouponQueueKey(couponID)

	members, err := d.store.ZRangeByScore(ctx, queueKey, int64(d.batchSize))
	if err != nil {
		return 0, err
	}
	if len(members) == 0 {
		return 0, nil
	}

	for _, member := range members {
		userID, parseErr := strconv.ParseInt(member, 10, 64)
		if parseErr != nil {
			log.Warn().Str("member", member).Msg("coupon drain: skipping unparsable queue member")
			if remErr := d.store.ZRem(ctx, queueKey, member); remErr != nil {
				log.Warn().Err(remErr).Msg("coupon drain: failed to remove unparsable member")
			}
			continue
		}

		if writeErr := d.writeOne(ctx, couponID, userID); writeErr != nil {
			log.Warn().Err(writeErr).Int64("couponID", couponID).Int64("userID", userID).
				Msg("coupon drain: durable write failed, leaving entry queued for retry")
			continue
		}

		if remErr := d.store.ZRem(ctx, queueKey, member); remErr != nil {
			log.Warn().Err(remErr).Msg("coupon drain: failed to remove drained member")
			continue
		}
		drained++

		if pubErr := d.hub.Publish(ctx, model.Notification{
			UserID: userID,
			Type:   model.NotificationCouponIssued,
			Data:   map[string]int64{"couponId": couponID},
		}); pubErr != nil {
			log.Warn().Err(pubErr).Int64("couponID", couponID).Int64("userID", userID).
				Msg("coupon drain: failed to publish coupon-issued notification")
		}
	}
	return drained, nil
}

func (d *Drainer) writeOne(ctx context.Context, couponID, userID int64) error {
	c, err := d.repo.LockCouponForUpdate(ctx, couponID)
	if err != nil {
		return err
	}

	if err := d.repo.InsertIssued(ctx, userID, couponID); err != nil {
		return err
	}

	newIssued := c.IssuedQuantity + 1
	if newIssued > c.TotalQuantity {
		newIssued = c.TotalQuantity
	}
	return d.repo.UpdateIssuedQuantity(ctx, couponID, newIssued, c.Version)
}

// DrainLoop runs DrainOnce for every active coupon ID on the given cadence
// until ctx is cancelled. activeCoupons is called fresh on every tick so
// newly activated coupons are picked up without a restart.
func (d *Drainer) DrainLoop(ctx context.Context, interval time.Duration, activeCoupons func(ctx context.Context) ([]int64, error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ids, err := activeCoupons(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("coupon drain: failed to list active coupons")
				continue
			}
			for _, id := range ids {
				if _, err := d.DrainOnce(ctx, id); err != nil {
					log.Warn().Err(err).Int64("couponID", id).Msg("coupon drain: batch failed")
				}
			}
		}
	}
}
