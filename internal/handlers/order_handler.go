package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/shopsaga/order-core/internal/model"
	"github.com/shopsaga/order-core/internal/order"
	"github.com/shopsaga/order-core/internal/outbox"
)

// OrderHandler owns the order state machine's event-driven transitions
// (§4.5). It runs at priority 0 so an order's status reflects the triggering
// event before any side-effect handler for the same event acts on it.
type OrderHandler struct {
	pool TxBeginner
}

func NewOrderHandler(pool TxBeginner) *OrderHandler {
	return &OrderHandler{pool: pool}
}

func (h *OrderHandler) Name() string { return "OrderHandler" }

func (h *OrderHandler) SupportedEventTypes() []model.EventType {
	return []model.EventType{model.EventPaymentCompleted, model.EventPaymentFailed, model.EventInventoryInsufficient}
}

func (h *OrderHandler) SupportsBatch() bool { return false }

func (h *OrderHandler) Priority() int { return 0 }

func (h *OrderHandler) HandleBatch(ctx context.Context, events []*model.OutboxEvent) error {
	return fmt.Errorf("order handler: batch processing not supported")
}

func (h *OrderHandler) Handle(ctx context.Context, event *model.OutboxEvent) error {
	switch event.EventType {
	case model.EventPaymentCompleted:
		return h.handlePaymentCompleted(ctx, event)
	case model.EventPaymentFailed:
		return h.handlePaymentFailed(ctx, event)
	case model.EventInventoryInsufficient:
		return h.handleInventoryInsufficient(ctx, event)
	default:
		return fmt.Errorf("order handler: unsupported event type %s", event.EventType)
	}
}

// handlePaymentCompleted confirms the order. Current-state comparison
// (§4.6 strategy 1) makes this safe to replay: the handler loads the
// order's live status and passes it to TransitionStatus as the "from" side
// of the guard, and a second delivery of the same event after the order is
// already CONFIRMED (or COMPLETED) returns before any write.
func (h *OrderHandler) handlePaymentCompleted(ctx context.Context, event *model.OutboxEvent) error {
	var payload model.PaymentCompletedPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("order handler: decode PaymentCompleted payload: %w", err)
	}

	return runInTx(ctx, h.pool, func(tx pgx.Tx) error {
		repo := order.NewRepository(tx)
		o, err := repo.Get(ctx, payload.OrderID)
		if err != nil {
			return err
		}
		if o.Status == model.OrderStatusConfirmed || o.Status == model.OrderStatusCompleted {
			return nil
		}
		if err := repo.TransitionStatus(ctx, payload.OrderID, o.Status, model.OrderStatusConfirmed); err != nil {
			return err
		}
		return outbox.NewWriter().Append(ctx, tx, model.EventOrderConfirmed, model.AggregateOrder,
			fmt.Sprintf("%d", payload.OrderID), model.OrderConfirmedPayload{OrderID: payload.OrderID, UserID: payload.UserID})
	})
}

func (h *OrderHandler) handlePaymentFailed(ctx context.Context, event *model.OutboxEvent) error {
	var payload model.PaymentFailedPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("order handler: decode PaymentFailed payload: %w", err)
	}

	return runInTx(ctx, h.pool, func(tx pgx.Tx) error {
		repo := order.NewRepository(tx)
		o, err := repo.Get(ctx, payload.OrderID)
		if err != nil {
			return err
		}
		if o.Status == model.OrderStatusFailed {
			return nil
		}
		return repo.TransitionStatus(ctx, payload.OrderID, o.Status, model.OrderStatusFailed)
	})
}

// handleInventoryInsufficient cancels the order and publishes OrderCancelled
// so Inventory and Point can restore stock and refund any points the
// payment saga already debited when it settled.
func (h *OrderHandler) handleInventoryInsufficient(ctx context.Context, event *model.OutboxEvent) error {
	var payload model.InventoryInsufficientPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("order handler: decode InventoryInsufficient payload: %w", err)
	}

	return runInTx(ctx, h.pool, func(tx pgx.Tx) error {
		repo := order.NewRepository(tx)
		o, err := repo.Get(ctx, payload.OrderID)
		if err != nil {
			return err
		}
		if o.Status == model.OrderStatusCancelled {
			return nil
		}
		reason := fmt.Sprintf("insufficient stock for product %d", payload.ProductID)
		if err := repo.TransitionStatus(ctx, payload.OrderID, o.Status, model.OrderStatusCancelled); err != nil {
			return err
		}
		log.Warn().Int64("orderID", payload.OrderID).Int64("productID", payload.ProductID).Msg("order cancelled: insufficient stock")
		return outbox.NewWriter().Append(ctx, tx, model.EventOrderCancelled, model.AggregateOrder,
			fmt.Sprintf("%d", payload.OrderID), model.OrderCancelledPayload{OrderID: payload.OrderID, UserID: o.UserID, Reason: reason})
	})
}
