package point

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopsaga/order-core/internal/apperr"
	"github.com/shopsaga/order-core/internal/config"
	"github.com/shopsaga/order-core/internal/lock"
	"github.com/shopsaga/order-core/pkg/memstore/memstoretest"
)

// inMemoryBalancePool is a mockPool backed by an in-memory balance/version
// pair, so the service tests can exercise real concurrent charge/deduct
// sequences the way the in-process lock table is meant to serialize them.
type inMemoryBalancePool struct {
	mu         sync.Mutex
	balance    int64
	version    int64
	usedToday  int64
	historyLen int
}

func newInMemoryBalancePool() *inMemoryBalancePool {
	return &inMemoryBalancePool{}
}

func (p *inMemoryBalancePool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	// UPDATE user_balances ... WHERE user_id = $3 AND version = $4
	newBalance := args[0].(int64)
	expectedVersion := args[3].(int64)
	if expectedVersion != p.version {
		return pgconn.NewCommandTag("UPDATE 0"), nil
	}
	p.balance = newBalance
	p.version++
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (p *inMemoryBalancePool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	p.mu.Lock()
	defer p.mu.Unlock()
	return &mockRow{scanFn: func(dest ...any) error {
		switch len(dest) {
		case 4: // balance select
			*(dest[0].(*int64)) = 1
			*(dest[1].(*int64)) = p.balance
			*(dest[2].(*int64)) = p.version
			*(dest[3].(*time.Time)) = time.Now()
		case 1: // SumTodayUsage or HasRefundForOrder or InsertHistory RETURNING id
			switch v := dest[0].(type) {
			case *int64:
				*v = p.usedToday
			case *bool:
				*v = false
			}
		}
		return nil
	}}
}

func (p *inMemoryBalancePool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return &mockRows{}, nil
}

func testPointService(t *testing.T, pool *inMemoryBalancePool) *Service {
	t.Helper()
	store := memstoretest.New()
	locker := lock.NewManager(store, 2*time.Second, time.Second, 50*time.Millisecond)
	cfg := config.PointConfig{
		DailyLimit: 1_000_000,
		MaxBalance: 10_000_000,
		MinCharge:  1000,
		MaxCharge:  1_000_000,
		MinDeduct:  100,
	}
	return NewService(pool, locker, cfg)
}

func TestService_Charge_RejectsInvalidAmount(t *testing.T) {
	svc := testPointService(t, newInMemoryBalancePool())

	_, err := svc.Charge(context.Background(), 1, 999, "bad")
	require.Error(t, err)
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.CodeInvalidPointAmount, appErr.Code)

	_, err = svc.Charge(context.Background(), 1, 1050, "not multiple of 100")
	require.Error(t, err)
}

func TestService_Charge_ConcurrentChargesSerializeCorrectly(t *testing.T) {
	pool := newInMemoryBalancePool()
	svc := testPointService(t, pool)

	const n = 100
	var wg sync.WaitGroup
	var failures int64
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Charge(context.Background(), 1, 1000, "earn"); err != nil {
				atomic.AddInt64(&failures, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(0), failures)
	pool.mu.Lock()
	defer pool.mu.Unlock()
	assert.Equal(t, int64(n*1000), pool.balance)
	assert.Equal(t, int64(n), pool.version)
}

func TestService_Deduct_InsufficientBalance(t *testing.T) {
	svc := testPointService(t, newInMemoryBalancePool())

	_, err := svc.Deduct(context.Background(), 1, 500, 10, "use")
	require.Error(t, err)
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.CodeInsufficientBalance, appErr.Code)
}

func TestService_Deduct_RejectsBelowMinimum(t *testing.T) {
	svc := testPointService(t, newInMemoryBalancePool())

	_, err := svc.Deduct(context.Background(), 1, 50, 10, "use")
	require.Error(t, err)
}
