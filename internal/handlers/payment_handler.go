package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/shopsaga/order-core/internal/apperr"
	"github.com/shopsaga/order-core/internal/model"
	"github.com/shopsaga/order-core/internal/notify"
	"github.com/shopsaga/order-core/internal/outbox"
	"github.com/shopsaga/order-core/internal/payment"
)

// PaymentHandler triggers the §4.7 payment saga when an order is created.
// The saga itself is idempotent (it re-checks the order's live status
// before charging and before debiting), so PaymentHandler only needs to
// translate a rejected saga into either a silent no-op (order already
// settled) or a PaymentFailed event.
type PaymentHandler struct {
	pool        TxBeginner
	coordinator *payment.Coordinator
	hub         *notify.Hub
}

func NewPaymentHandler(pool TxBeginner, coordinator *payment.Coordinator, hub *notify.Hub) *PaymentHandler {
	return &PaymentHandler{pool: pool, coordinator: coordinator, hub: hub}
}

func (h *PaymentHandler) Name() string { return "PaymentHandler" }

func (h *PaymentHandler) SupportedEventTypes() []model.EventType {
	return []model.EventType{model.EventOrderCreated}
}

func (h *PaymentHandler) SupportsBatch() bool { return false }

func (h *PaymentHandler) Priority() int { return 0 }

func (h *PaymentHandler) HandleBatch(ctx context.Context, events []*model.OutboxEvent) error {
	return fmt.Errorf("payment handler: batch processing not supported")
}

func (h *PaymentHandler) Handle(ctx context.Context, event *model.OutboxEvent) error {
	var payload model.OrderCreatedPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("payment handler: decode OrderCreated payload: %w", err)
	}

	p, err := h.coordinator.Pay(ctx, payment.Request{
		OrderID:       payload.OrderID,
		UserID:        payload.UserID,
		PointAmount:   payload.PointAmount,
		GatewayAmount: payload.GatewayAmount,
		GatewayRequest: payment.GatewayRequest{
			OrderID:     payload.OrderID,
			UserID:      payload.UserID,
			AmountMinor: payload.GatewayAmount,
			Currency:    "krw",
			Description: fmt.Sprintf("order %d", payload.OrderID),
		},
	})
	if err == nil {
		if pubErr := h.hub.Publish(ctx, model.Notification{
			UserID: payload.UserID,
			Type:   model.NotificationPaymentCompleted,
			Data:   model.PaymentCompletedPayload{OrderID: payload.OrderID, UserID: payload.UserID, PaymentID: p.ID},
		}); pubErr != nil {
			log.Warn().Err(pubErr).Int64("orderID", payload.OrderID).Msg("failed to publish payment-completed notification")
		}
		return nil
	}

	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		return err
	}
	if appErr.Is(apperr.New(apperr.CodeInvalidOrderStatus, "")) {
		// Already charged or no longer awaiting payment; a redelivery of
		// this event is a no-op (§4.6 strategy 1).
		return nil
	}

	log.Warn().Err(err).Int64("orderID", payload.OrderID).Msg("payment saga rejected order")
	return runInTx(ctx, h.pool, func(tx pgx.Tx) error {
		return outbox.NewWriter().Append(ctx, tx, model.EventPaymentFailed, model.AggregateOrder,
			fmt.Sprintf("%d", payload.OrderID), model.PaymentFailedPayload{
				OrderID: payload.OrderID,
				UserID:  payload.UserID,
				Reason:  appErr.Message,
			})
	})
}
