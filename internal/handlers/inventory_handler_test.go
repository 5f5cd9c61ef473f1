package handlers

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopsaga/order-core/internal/inventory"
	"github.com/shopsaga/order-core/internal/model"
)

func orderWithItems(status string, items []model.OrderItem) orderFixture {
	raw, _ := json.Marshal(items)
	return orderFixture{id: 1, userID: 7, total: 1000, finalAmount: 1000, status: status, itemsJSON: raw}
}

func TestInventoryHandler_PaymentCompleted_DeductsOnFirstDelivery(t *testing.T) {
	fixture := orderWithItems("CONFIRMED", []model.OrderItem{{ProductID: 55, Quantity: 2}})
	var dedupCalls, deductCalls int
	tx := &mockTx{
		queryRowFn: func(ctx context.Context, sql string, args ...any) pgx.Row {
			switch {
			case strings.Contains(sql, "FROM orders"):
				return orderRow(fixture)
			case strings.Contains(sql, "FROM inventories"):
				return &mockRow{scanFn: func(dest ...any) error {
					*(dest[0].(*int64)) = 55
					*(dest[1].(*int)) = 10
					*(dest[2].(*int)) = 2
					*(dest[3].(*int64)) = 1
					return nil
				}}
			}
			return &mockRow{}
		},
		execFn: func(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
			switch {
			case strings.Contains(sql, "handled_events"):
				dedupCalls++
				return pgconn.NewCommandTag("INSERT 1"), nil
			case strings.Contains(sql, "UPDATE inventories"):
				deductCalls++
				return pgconn.NewCommandTag("UPDATE 1"), nil
			}
			return pgconn.NewCommandTag("UPDATE 1"), nil
		},
	}
	h := NewInventoryHandler(&fakeBeginner{tx: tx}, inventory.NewService())

	err := h.Handle(context.Background(), newOutboxEvent(model.EventPaymentCompleted, `{"orderId":1,"userId":7,"paymentId":3}`))
	require.NoError(t, err)
	assert.Equal(t, 1, dedupCalls)
	assert.Equal(t, 1, deductCalls)
}

func TestInventoryHandler_PaymentCompleted_RedeliverySkipsDeduct(t *testing.T) {
	fixture := orderWithItems("CONFIRMED", []model.OrderItem{{ProductID: 55, Quantity: 2}})
	var deductCalls int
	tx := &mockTx{
		queryRowFn: func(ctx context.Context, sql string, args ...any) pgx.Row {
			if strings.Contains(sql, "FROM orders") {
				return orderRow(fixture)
			}
			return &mockRow{}
		},
		execFn: func(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
			if strings.Contains(sql, "handled_events") {
				return pgconn.NewCommandTag("INSERT 0"), nil
			}
			if strings.Contains(sql, "UPDATE inventories") {
				deductCalls++
			}
			return pgconn.NewCommandTag("UPDATE 1"), nil
		},
	}
	h := NewInventoryHandler(&fakeBeginner{tx: tx}, inventory.NewService())

	err := h.Handle(context.Background(), newOutboxEvent(model.EventPaymentCompleted, `{"orderId":1,"userId":7,"paymentId":3}`))
	require.NoError(t, err)
	assert.Equal(t, 0, deductCalls)
}

func TestInventoryHandler_PaymentCompleted_PublishesInventoryInsufficientOnShortfall(t *testing.T) {
	fixture := orderWithItems("CONFIRMED", []model.OrderItem{{ProductID: 55, Quantity: 20}})
	var insufficientEventWritten bool
	tx := &mockTx{
		queryRowFn: func(ctx context.Context, sql string, args ...any) pgx.Row {
			switch {
			case strings.Contains(sql, "FROM orders"):
				return orderRow(fixture)
			case strings.Contains(sql, "FROM inventories"):
				return &mockRow{scanFn: func(dest ...any) error {
					*(dest[0].(*int64)) = 55
					*(dest[1].(*int)) = 10 // on-hand quantity, less than the requested 20
					*(dest[2].(*int)) = 2
					*(dest[3].(*int64)) = 1
					return nil
				}}
			}
			return &mockRow{}
		},
		execFn: func(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
			switch {
			case strings.Contains(sql, "handled_events"):
				return pgconn.NewCommandTag("INSERT 1"), nil
			case strings.Contains(sql, "outbox_events"):
				insufficientEventWritten = true
				return pgconn.NewCommandTag("INSERT 1"), nil
			case strings.Contains(sql, "UPDATE inventories"):
				t.Fatal("must not deduct stock when the order oversells a product")
			}
			return pgconn.NewCommandTag("UPDATE 1"), nil
		},
	}
	h := NewInventoryHandler(&fakeBeginner{tx: tx}, inventory.NewService())

	err := h.Handle(context.Background(), newOutboxEvent(model.EventPaymentCompleted, `{"orderId":1,"userId":7,"paymentId":3}`))
	require.NoError(t, err)
	assert.True(t, insufficientEventWritten)
}

func TestInventoryHandler_OrderCancelled_ReleasesStock(t *testing.T) {
	fixture := orderWithItems("CANCELLED", []model.OrderItem{{ProductID: 55, Quantity: 2}})
	var releaseCalls int
	tx := &mockTx{
		queryRowFn: func(ctx context.Context, sql string, args ...any) pgx.Row {
			switch {
			case strings.Contains(sql, "FROM orders"):
				return orderRow(fixture)
			case strings.Contains(sql, "FROM inventories"):
				return &mockRow{scanFn: func(dest ...any) error {
					*(dest[0].(*int64)) = 55
					*(dest[1].(*int)) = 10
					*(dest[2].(*int)) = 2
					*(dest[3].(*int64)) = 1
					return nil
				}}
			}
			return &mockRow{}
		},
		execFn: func(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
			if strings.Contains(sql, "handled_events") {
				return pgconn.NewCommandTag("INSERT 1"), nil
			}
			if strings.Contains(sql, "UPDATE inventories") {
				releaseCalls++
			}
			return pgconn.NewCommandTag("UPDATE 1"), nil
		},
	}
	h := NewInventoryHandler(&fakeBeginner{tx: tx}, inventory.NewService())

	err := h.Handle(context.Background(), newOutboxEvent(model.EventOrderCancelled, `{"orderId":1,"userId":7,"reason":"insufficient stock"}`))
	require.NoError(t, err)
	assert.Equal(t, 1, releaseCalls)
}
