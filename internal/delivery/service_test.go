package delivery

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopsaga/order-core/internal/model"
	"github.com/shopsaga/order-core/internal/notify"
	"github.com/shopsaga/order-core/pkg/memstore/memstoretest"
)

func TestService_MarkDelivered_CompletesConfirmedOrder(t *testing.T) {
	var updateDeliverySQL, updateOrderSQL string
	mock := &mockPool{
		execFn: func(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
			switch {
			case strings.Contains(sql, "UPDATE deliveries"):
				updateDeliverySQL = sql
				return pgconn.NewCommandTag("UPDATE 1"), nil
			case strings.Contains(sql, "UPDATE orders"):
				updateOrderSQL = sql
				return pgconn.NewCommandTag("UPDATE 1"), nil
			}
			return pgconn.NewCommandTag(""), nil
		},
		queryRowFn: func(ctx context.Context, sql string, args ...any) pgx.Row {
			return &mockRow{scanFn: func(dest ...any) error {
				*(dest[0].(*int64)) = 1
				*(dest[1].(*string)) = "ORD-1"
				*(dest[2].(*int64)) = 7
				*(dest[3].(*int64)) = 1000
				*(dest[4].(*int64)) = 0
				*(dest[5].(*int64)) = 1000
				*(dest[6].(*[]byte)) = []byte(`[]`)
				*(dest[7].(*model.OrderStatus)) = model.OrderStatusConfirmed
				*(dest[8].(*[]byte)) = []byte(`[]`)
				*(dest[9].(*time.Time)) = time.Now()
				*(dest[10].(*time.Time)) = time.Now()
				return nil
			}}
		},
	}

	hub := notify.NewHub(memstoretest.New())
	sink := hub.Subscribe(7)
	defer sink.Close()

	s := NewService(hub)
	completed, err := s.MarkDelivered(context.Background(), mock, 1)
	require.NoError(t, err)
	assert.True(t, completed)
	assert.Contains(t, updateDeliverySQL, "status <>")
	assert.Contains(t, updateOrderSQL, "SET status")

	select {
	case notification := <-sink.Events():
		assert.Equal(t, model.NotificationOrderCompleted, notification.Type)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for order-completed notification")
	}
}

func TestService_MarkDelivered_AlreadyDeliveredIsNoOp(t *testing.T) {
	var orderLoaded bool
	mock := &mockPool{
		execFn: func(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
			return pgconn.NewCommandTag("UPDATE 0"), nil
		},
		queryRowFn: func(ctx context.Context, sql string, args ...any) pgx.Row {
			orderLoaded = true
			return &mockRow{}
		},
	}

	s := NewService(notify.NewHub(memstoretest.New()))
	completed, err := s.MarkDelivered(context.Background(), mock, 1)
	require.NoError(t, err)
	assert.False(t, completed)
	assert.False(t, orderLoaded, "order should not be reloaded when the delivery update affected no rows")
}
