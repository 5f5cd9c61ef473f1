package handlers

import (
	"context"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopsaga/order-core/internal/model"
)

func newOutboxEvent(eventType model.EventType, payload string) *model.OutboxEvent {
	return &model.OutboxEvent{ID: 1, EventType: eventType, AggregateType: model.AggregateOrder, AggregateID: "1", Payload: []byte(payload)}
}

func TestOrderHandler_PaymentCompleted_TransitionsPendingToConfirmed(t *testing.T) {
	var updateSQL, insertSQL string
	fixture := orderFixture{id: 1, userID: 7, total: 1000, finalAmount: 1000, status: "PENDING"}
	tx := &mockTx{
		queryRowFn: func(ctx context.Context, sql string, args ...any) pgx.Row { return orderRow(fixture) },
		execFn: func(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
			if strings.Contains(sql, "UPDATE orders") {
				updateSQL = sql
			}
			if strings.Contains(sql, "INSERT INTO outbox_events") {
				insertSQL = sql
			}
			return pgconn.NewCommandTag("UPDATE 1"), nil
		},
	}
	h := NewOrderHandler(&fakeBeginner{tx: tx})

	err := h.Handle(context.Background(), newOutboxEvent(model.EventPaymentCompleted, `{"orderId":1,"userId":7,"paymentId":9}`))
	require.NoError(t, err)
	assert.Contains(t, updateSQL, "SET status")
	assert.Contains(t, insertSQL, "outbox_events")
}

func TestOrderHandler_PaymentCompleted_AlreadyConfirmedIsNoOp(t *testing.T) {
	var updateCalled bool
	fixture := orderFixture{id: 1, userID: 7, total: 1000, finalAmount: 1000, status: "CONFIRMED"}
	tx := &mockTx{
		queryRowFn: func(ctx context.Context, sql string, args ...any) pgx.Row { return orderRow(fixture) },
		execFn: func(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
			if strings.Contains(sql, "UPDATE orders") {
				updateCalled = true
			}
			return pgconn.NewCommandTag("UPDATE 1"), nil
		},
	}
	h := NewOrderHandler(&fakeBeginner{tx: tx})

	err := h.Handle(context.Background(), newOutboxEvent(model.EventPaymentCompleted, `{"orderId":1,"userId":7,"paymentId":9}`))
	require.NoError(t, err)
	assert.False(t, updateCalled)
}

func TestOrderHandler_PaymentFailed_TransitionsToFailed(t *testing.T) {
	var updateSQL string
	fixture := orderFixture{id: 1, userID: 7, total: 1000, finalAmount: 1000, status: "PENDING"}
	tx := &mockTx{
		queryRowFn: func(ctx context.Context, sql string, args ...any) pgx.Row { return orderRow(fixture) },
		execFn: func(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
			if strings.Contains(sql, "UPDATE orders") {
				updateSQL = sql
			}
			return pgconn.NewCommandTag("UPDATE 1"), nil
		},
	}
	h := NewOrderHandler(&fakeBeginner{tx: tx})

	err := h.Handle(context.Background(), newOutboxEvent(model.EventPaymentFailed, `{"orderId":1,"userId":7,"reason":"gateway down"}`))
	require.NoError(t, err)
	assert.Contains(t, updateSQL, "SET status")
}

func TestOrderHandler_InventoryInsufficient_CancelsAndPublishes(t *testing.T) {
	var insertSQL string
	fixture := orderFixture{id: 1, userID: 7, total: 1000, finalAmount: 1000, status: "PENDING_PAYMENT"}
	tx := &mockTx{
		queryRowFn: func(ctx context.Context, sql string, args ...any) pgx.Row { return orderRow(fixture) },
		execFn: func(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
			if strings.Contains(sql, "INSERT INTO outbox_events") {
				insertSQL = sql
			}
			return pgconn.NewCommandTag("UPDATE 1"), nil
		},
	}
	h := NewOrderHandler(&fakeBeginner{tx: tx})

	err := h.Handle(context.Background(), newOutboxEvent(model.EventInventoryInsufficient, `{"orderId":1,"productId":55}`))
	require.NoError(t, err)
	assert.Contains(t, insertSQL, "outbox_events")
}

func TestOrderHandler_Handle_UnsupportedEventType(t *testing.T) {
	h := NewOrderHandler(&fakeBeginner{tx: &mockTx{}})
	err := h.Handle(context.Background(), newOutboxEvent(model.EventOrderCreated, `{}`))
	assert.Error(t, err)
}
