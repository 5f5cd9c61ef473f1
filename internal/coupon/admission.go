// Package coupon implements the limited-issue coupon queue (component H,
// §4.9): an admission protocol in the memory store that caps issuance at
// exactly totalQuantity with FIFO fairness, drained asynchronously into the
// durable store. Grounded on the teacher's coupon claim flow
// (internal/service/coupon_service.go's duplicate-check-then-claim shape),
// generalized from a single atomic SQL claim into the memory-store admission
// protocol SPEC_FULL §4.9 requires for thousands of concurrent requests.
package coupon

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/shopsaga/order-core/internal/apperr"
	"github.com/shopsaga/order-core/pkg/memstore"
)

// Admitter runs the in-memory admission protocol of §4.9 ahead of the
// durable drain.
type Admitter struct {
	store memstore.Client
}

func NewAdmitter(store memstore.Client) *Admitter {
	return &Admitter{store: store}
}

// Activate sets the coupon's max-quantity ceiling in the memory store; must
// be called once when a coupon is created/activated, before any Admit call.
func (a *Admitter) Activate(ctx context.Context, couponID int64, maxQty int) error {
	return a.store.Set(ctx, memstore.CouponMaxKey(couponID), strconv.Itoa(maxQty), 0)
}

// AdmitResult is the outcome of a successful admission.
type AdmitResult struct {
	Position int64
}

// Admit runs the five-step admission protocol of §4.9. Over-issue is
// structurally impossible: step 2 gates duplicate admission per user, step 3
// gates total quantity via an atomic counter, and both checks happen before
// the durable drain ever runs.
func (a *Admitter) Admit(ctx context.Context, couponID, userID int64) (*AdmitResult, error) {
	soldoutKey := memstore.CouponSoldoutKey(couponID)
	issuedKey := memstore.CouponIssuedKey(couponID)
	countKey := memstore.CouponCountKey(couponID)
	maxKey := memstore.CouponMaxKey(couponID)
	queueKey := memstore.CouponQueueKey(couponID)

	soldout, err := a.store.Exists(ctx, soldoutKey)
	if err != nil {
		return nil, err
	}
	if soldout {
		return nil, apperr.New(apperr.CodeCouponExhausted, "coupon exhausted")
	}

	userKey := strconv.FormatInt(userID, 10)
	added, err := a.store.SAdd(ctx, issuedKey, userKey)
	if err != nil {
		return nil, err
	}
	if !added {
		return nil, apperr.New(apperr.CodeAlreadyIssued, "coupon already issued to this user")
	}

	maxQtyStr, err := a.store.Get(ctx, maxKey)
	if err != nil {
		return nil, err
	}
	maxQty, _ := strconv.ParseInt(maxQtyStr, 10, 64)

	n, err := a.store.Incr(ctx, countKey)
	if err != nil {
		return nil, err
	}

	if n > maxQty {
		if err := a.store.Set(ctx, soldoutKey, "1", 0); err != nil {
			log.Warn().Err(err).Int64("couponID", couponID).Msg("failed to set soldout flag")
		}
		if err := a.store.SRem(ctx, issuedKey, userKey); err != nil {
			log.Warn().Err(err).Int64("couponID", couponID).Msg("failed to roll back issued-set membership")
		}
		if _, err := a.store.IncrBy(ctx, countKey, -1); err != nil {
			log.Warn().Err(err).Int64("couponID", couponID).Msg("failed to roll back counter")
		}
		return nil, apperr.New(apperr.CodeCouponExhausted, "coupon exhausted")
	}

	if err := a.store.ZAdd(ctx, queueKey, float64(time.Now().UnixNano()), userKey); err != nil {
		return nil, err
	}

	return &AdmitResult{Position: n}, nil
}

// Restore reverses an Admit's durable effects on compensation (§4.9): the
// user is not re-added to issued(C), preventing re-claim churn, but the
// soldout flag is cleared if quantity dropped back under the cap.
func (a *Admitter) Restore(ctx context.Context, couponID int64, currentIssued, maxQty int) error {
	if currentIssued < maxQty {
		if err := a.store.Del(ctx, memstore.CouponSoldoutKey(couponID)); err != nil {
			return err
		}
	}
	return nil
}
