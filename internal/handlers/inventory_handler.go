package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/shopsaga/order-core/internal/apperr"
	"github.com/shopsaga/order-core/internal/inventory"
	"github.com/shopsaga/order-core/internal/model"
	"github.com/shopsaga/order-core/internal/order"
	"github.com/shopsaga/order-core/internal/outbox"
)

// InventoryHandler converts a reservation into a permanent stock decrement
// once payment completes, and releases it if the order is cancelled.
// Deduct/Release are not naturally idempotent (re-running either would move
// stock a second time), so both effects go through the outbox dedup table
// (§4.6 strategy 2), keyed by (eventType, orderID).
type InventoryHandler struct {
	pool         TxBeginner
	inventorySvc *inventory.Service
}

func NewInventoryHandler(pool TxBeginner, inventorySvc *inventory.Service) *InventoryHandler {
	return &InventoryHandler{pool: pool, inventorySvc: inventorySvc}
}

func (h *InventoryHandler) Name() string { return "InventoryHandler" }

func (h *InventoryHandler) SupportedEventTypes() []model.EventType {
	return []model.EventType{model.EventPaymentCompleted, model.EventOrderCancelled}
}

func (h *InventoryHandler) SupportsBatch() bool { return false }

func (h *InventoryHandler) Priority() int { return 10 }

func (h *InventoryHandler) HandleBatch(ctx context.Context, events []*model.OutboxEvent) error {
	return fmt.Errorf("inventory handler: batch processing not supported")
}

func (h *InventoryHandler) Handle(ctx context.Context, event *model.OutboxEvent) error {
	switch event.EventType {
	case model.EventPaymentCompleted:
		return h.handlePaymentCompleted(ctx, event)
	case model.EventOrderCancelled:
		return h.handleOrderCancelled(ctx, event)
	default:
		return fmt.Errorf("inventory handler: unsupported event type %s", event.EventType)
	}
}

func (h *InventoryHandler) handlePaymentCompleted(ctx context.Context, event *model.OutboxEvent) error {
	var payload model.PaymentCompletedPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("inventory handler: decode PaymentCompleted payload: %w", err)
	}

	return runInTx(ctx, h.pool, func(tx pgx.Tx) error {
		dedup := outbox.NewDedup(tx)
		first, err := dedup.Claim(ctx, event.EventType, fmt.Sprintf("%d", payload.OrderID), event.ID)
		if err != nil || !first {
			return err
		}

		o, err := order.NewRepository(tx).Get(ctx, payload.OrderID)
		if err != nil {
			return err
		}

		deductErr := h.inventorySvc.Deduct(ctx, tx, itemQuantities(o))
		var appErr *apperr.Error
		if deductErr != nil && errors.As(deductErr, &appErr) && appErr.Code == apperr.CodeInsufficientStock {
			productID, _ := appErr.Data["productId"].(int64)
			return outbox.NewWriter().Append(ctx, tx, model.EventInventoryInsufficient, model.AggregateInventory,
				fmt.Sprintf("%d", payload.OrderID), model.InventoryInsufficientPayload{OrderID: payload.OrderID, ProductID: productID})
		}
		return deductErr
	})
}

func (h *InventoryHandler) handleOrderCancelled(ctx context.Context, event *model.OutboxEvent) error {
	var payload model.OrderCancelledPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("inventory handler: decode OrderCancelled payload: %w", err)
	}

	return runInTx(ctx, h.pool, func(tx pgx.Tx) error {
		dedup := outbox.NewDedup(tx)
		first, err := dedup.Claim(ctx, event.EventType, fmt.Sprintf("%d", payload.OrderID), event.ID)
		if err != nil || !first {
			return err
		}

		o, err := order.NewRepository(tx).Get(ctx, payload.OrderID)
		if err != nil {
			return err
		}
		return h.inventorySvc.Release(ctx, tx, itemQuantities(o))
	})
}

func itemQuantities(o *model.Order) map[int64]int {
	items := make(map[int64]int, len(o.Items))
	for _, item := range o.Items {
		items[item.ProductID] += item.Quantity
	}
	return items
}
