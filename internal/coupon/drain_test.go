package coupon

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopsaga/order-core/internal/lock"
	"github.com/shopsaga/order-core/internal/model"
	"github.com/shopsaga/order-core/internal/notify"
	"github.com/shopsaga/order-core/pkg/memstore"
	"github.com/shopsaga/order-core/pkg/memstore/memstoretest"
)

type drainMockRow struct {
	scanFn func(dest ...any) error
}

func (m *drainMockRow) Scan(dest ...any) error {
	if m.scanFn != nil {
		return m.scanFn(dest...)
	}
	return nil
}

type drainMockPool struct{}

func (m *drainMockPool) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (m *drainMockPool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return &drainMockRow{scanFn: func(dest ...any) error {
		*(dest[0].(*int64)) = 1
		*(dest[1].(*string)) = "SAVE10"
		*(dest[2].(*model.CouponDiscountType)) = model.CouponDiscountFixed
		*(dest[3].(*int64)) = 1000
		*(dest[4].(*int64)) = 0
		*(dest[5].(*int)) = 10
		*(dest[6].(*int)) = 3
		*(dest[7].(*time.Time)) = time.Now()
		*(dest[8].(*time.Time)) = time.Now()
		*(dest[9].(*int64)) = 1
		return nil
	}}
}

func (m *drainMockPool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}

func TestDrainer_DrainOnce_PublishesCouponIssuedNotification(t *testing.T) {
	store := memstoretest.New()
	locker := lock.NewManager(store, time.Second, time.Second, 50*time.Millisecond)
	hub := notify.NewHub(store)
	sink := hub.Subscribe(42)
	defer sink.Close()

	repo := NewRepository(&drainMockPool{})
	d := NewDrainer(store, repo, locker, 100, hub)

	require.NoError(t, store.ZAdd(context.Background(), memstore.CouponQueueKey(1), 1, "42"))

	n, err := d.DrainOnce(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	select {
	case notification := <-sink.Events():
		assert.Equal(t, model.NotificationCouponIssued, notification.Type)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for coupon-issued notification")
	}
}

func TestDrainer_DrainOnce_EmptyQueue(t *testing.T) {
	store := memstoretest.New()
	locker := lock.NewManager(store, time.Second, time.Second, 50*time.Millisecond)
	d := NewDrainer(store, nil, locker, 100, notify.NewHub(store))

	n, err := d.DrainOnce(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestDrainer_DrainOnce_PreservesFIFOOrderOnQueue(t *testing.T) {
	store := memstoretest.New()
	queueKey := memstore.CouponQueueKey(1)

	for i := 1; i <= 5; i++ {
		require.NoError(t, store.ZAdd(context.Background(), queueKey, float64(i), strconv.Itoa(i)))
	}

	members, err := store.ZRangeByScore(context.Background(), queueKey, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, members)
}
