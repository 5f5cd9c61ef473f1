package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopsaga/order-core/internal/model"
	"github.com/shopsaga/order-core/internal/point"
)

// PointHandler refunds any points an order spent once it's cancelled.
// point.Service.Refund is itself idempotent (it checks for a prior REFUND
// history row per orderID before writing a second one, §4.6 strategy 1),
// so this handler needs no dedup of its own.
type PointHandler struct {
	pointSvc  *point.Service
	pointRepo UsedAmountLookup
}

// UsedAmountLookup reports how many points an order spent, so the refund
// amount can be recovered from an event payload that doesn't carry it.
type UsedAmountLookup interface {
	UsedAmountForOrder(ctx context.Context, userID, orderID int64) (int64, error)
}

func NewPointHandler(pointSvc *point.Service, pointRepo UsedAmountLookup) *PointHandler {
	return &PointHandler{pointSvc: pointSvc, pointRepo: pointRepo}
}

func (h *PointHandler) Name() string { return "PointHandler" }

func (h *PointHandler) SupportedEventTypes() []model.EventType {
	return []model.EventType{model.EventOrderCancelled}
}

func (h *PointHandler) SupportsBatch() bool { return false }

func (h *PointHandler) Priority() int { return 10 }

func (h *PointHandler) HandleBatch(ctx context.Context, events []*model.OutboxEvent) error {
	return fmt.Errorf("point handler: batch processing not supported")
}

func (h *PointHandler) Handle(ctx context.Context, event *model.OutboxEvent) error {
	var payload model.OrderCancelledPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("point handler: decode OrderCancelled payload: %w", err)
	}

	used, err := h.pointRepo.UsedAmountForOrder(ctx, payload.UserID, payload.OrderID)
	if err != nil {
		return err
	}
	if used == 0 {
		return nil
	}
	_, err = h.pointSvc.Refund(ctx, payload.UserID, used, payload.OrderID)
	return err
}
