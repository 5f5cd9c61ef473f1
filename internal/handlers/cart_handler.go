package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/shopsaga/order-core/internal/cart"
	"github.com/shopsaga/order-core/internal/model"
)

// CartHandler empties the purchasing user's cart once payment completes.
// Clear upserts an empty items array unconditionally, so replaying it on an
// already-empty cart is a no-op write (§4.6 strategy 3).
type CartHandler struct {
	pool    TxBeginner
	cartSvc *cart.Service
}

func NewCartHandler(pool TxBeginner, cartSvc *cart.Service) *CartHandler {
	return &CartHandler{pool: pool, cartSvc: cartSvc}
}

func (h *CartHandler) Name() string { return "CartHandler" }

func (h *CartHandler) SupportedEventTypes() []model.EventType {
	return []model.EventType{model.EventPaymentCompleted}
}

func (h *CartHandler) SupportsBatch() bool { return false }

func (h *CartHandler) Priority() int { return 10 }

func (h *CartHandler) HandleBatch(ctx context.Context, events []*model.OutboxEvent) error {
	return fmt.Errorf("cart handler: batch processing not supported")
}

func (h *CartHandler) Handle(ctx context.Context, event *model.OutboxEvent) error {
	var payload model.PaymentCompletedPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("cart handler: decode PaymentCompleted payload: %w", err)
	}

	return runInTx(ctx, h.pool, func(tx pgx.Tx) error {
		return h.cartSvc.ClearForOrder(ctx, tx, payload.UserID)
	})
}
