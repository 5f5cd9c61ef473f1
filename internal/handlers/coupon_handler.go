package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/shopsaga/order-core/internal/coupon"
	"github.com/shopsaga/order-core/internal/model"
	"github.com/shopsaga/order-core/internal/order"
)

// CouponHandler marks an order's coupons used on payment completion and
// restores them on cancellation. Both repository writes are guarded by a
// WHERE status = <expected> clause (natural uniqueness, §4.6 strategy 3):
// replaying either call once the row has already moved on is a silent
// no-op rather than a double-use or double-restore.
type CouponHandler struct {
	pool      TxBeginner
	couponSvc *coupon.Service
}

func NewCouponHandler(pool TxBeginner, couponSvc *coupon.Service) *CouponHandler {
	return &CouponHandler{pool: pool, couponSvc: couponSvc}
}

func (h *CouponHandler) Name() string { return "CouponHandler" }

func (h *CouponHandler) SupportedEventTypes() []model.EventType {
	return []model.EventType{model.EventPaymentCompleted, model.EventOrderCancelled}
}

func (h *CouponHandler) SupportsBatch() bool { return false }

func (h *CouponHandler) Priority() int { return 10 }

func (h *CouponHandler) HandleBatch(ctx context.Context, events []*model.OutboxEvent) error {
	return fmt.Errorf("coupon handler: batch processing not supported")
}

func (h *CouponHandler) Handle(ctx context.Context, event *model.OutboxEvent) error {
	switch event.EventType {
	case model.EventPaymentCompleted:
		return h.handlePaymentCompleted(ctx, event)
	case model.EventOrderCancelled:
		return h.handleOrderCancelled(ctx, event)
	default:
		return fmt.Errorf("coupon handler: unsupported event type %s", event.EventType)
	}
}

func (h *CouponHandler) handlePaymentCompleted(ctx context.Context, event *model.OutboxEvent) error {
	var payload model.PaymentCompletedPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("coupon handler: decode PaymentCompleted payload: %w", err)
	}

	return runInTx(ctx, h.pool, func(tx pgx.Tx) error {
		o, err := order.NewRepository(tx).Get(ctx, payload.OrderID)
		if err != nil {
			return err
		}
		for _, couponID := range o.UsedCouponIDs {
			if err := h.couponSvc.Use(ctx, tx, payload.UserID, couponID, payload.OrderID); err != nil {
				return err
			}
		}
		return nil
	})
}

func (h *CouponHandler) handleOrderCancelled(ctx context.Context, event *model.OutboxEvent) error {
	var payload model.OrderCancelledPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("coupon handler: decode OrderCancelled payload: %w", err)
	}

	return runInTx(ctx, h.pool, func(tx pgx.Tx) error {
		o, err := order.NewRepository(tx).Get(ctx, payload.OrderID)
		if err != nil {
			return err
		}
		for _, couponID := range o.UsedCouponIDs {
			if err := h.couponSvc.Restore(ctx, tx, payload.UserID, couponID); err != nil {
				return err
			}
		}
		return nil
	})
}
