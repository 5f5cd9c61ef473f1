package handlers

import (
	"context"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopsaga/order-core/internal/delivery"
	"github.com/shopsaga/order-core/internal/model"
	"github.com/shopsaga/order-core/internal/notify"
	"github.com/shopsaga/order-core/pkg/memstore/memstoretest"
)

func TestDeliveryHandler_PaymentCompleted_CreatesDelivery(t *testing.T) {
	fixture := orderFixture{id: 1, userID: 7, total: 1000, finalAmount: 1000, status: "CONFIRMED"}
	var insertSQL string
	tx := &mockTx{
		queryRowFn: func(ctx context.Context, sql string, args ...any) pgx.Row { return orderRow(fixture) },
		execFn: func(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
			if strings.Contains(sql, "INSERT INTO deliveries") {
				insertSQL = sql
			}
			return pgconn.NewCommandTag("INSERT 1"), nil
		},
	}
	h := NewDeliveryHandler(&fakeBeginner{tx: tx}, delivery.NewService(notify.NewHub(memstoretest.New())))

	err := h.Handle(context.Background(), newOutboxEvent(model.EventPaymentCompleted, `{"orderId":1,"userId":7,"paymentId":3}`))
	require.NoError(t, err)
	assert.Contains(t, insertSQL, "ON CONFLICT")
}
