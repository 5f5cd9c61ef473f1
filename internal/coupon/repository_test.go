package coupon

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopsaga/order-core/internal/model"
)

// mockRow implements pgx.Row for testing single-row scans, following the
// teacher's mockPool/mockRow convention.
type mockRow struct {
	scanFn func(dest ...any) error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.scanFn != nil {
		return m.scanFn(dest...)
	}
	return nil
}

type mockPool struct {
	execFn     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	queryRowFn func(ctx context.Context, sql string, args ...any) pgx.Row
	queryFn    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (m *mockPool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if m.execFn != nil {
		return m.execFn(ctx, sql, args...)
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (m *mockPool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if m.queryRowFn != nil {
		return m.queryRowFn(ctx, sql, args...)
	}
	return &mockRow{}
}

func (m *mockPool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if m.queryFn != nil {
		return m.queryFn(ctx, sql, args...)
	}
	return nil, nil
}

// mockRows is a minimal pgx.Rows fake backed by a slice of int64 ids, enough
// to exercise ListActiveIDs's Next/Scan/Err/Close loop.
type mockRows struct {
	ids []int64
	pos int
}

func (r *mockRows) Close()                                      {}
func (r *mockRows) Err() error                                  { return nil }
func (r *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *mockRows) RawValues() [][]byte                          { return nil }
func (r *mockRows) Conn() *pgx.Conn                               { return nil }
func (r *mockRows) Values() ([]any, error)                       { return nil, nil }

func (r *mockRows) Next() bool {
	return r.pos < len(r.ids)
}

func (r *mockRows) Scan(dest ...any) error {
	*(dest[0].(*int64)) = r.ids[r.pos]
	r.pos++
	return nil
}

func couponRow(c model.Coupon) *mockRow {
	return &mockRow{scanFn: func(dest ...any) error {
		*(dest[0].(*int64)) = c.ID
		*(dest[1].(*string)) = c.Code
		*(dest[2].(*model.CouponDiscountType)) = c.DiscountType
		*(dest[3].(*int64)) = c.DiscountValue
		*(dest[4].(*int64)) = c.MinOrderAmount
		*(dest[5].(*int)) = c.TotalQuantity
		*(dest[6].(*int)) = c.IssuedQuantity
		*(dest[7].(*time.Time)) = c.ValidFrom
		*(dest[8].(*time.Time)) = c.ValidTo
		*(dest[9].(*int64)) = c.Version
		return nil
	}}
}

func TestRepository_LockCouponForUpdate_NotFound(t *testing.T) {
	mock := &mockPool{
		queryRowFn: func(ctx context.Context, sql string, args ...any) pgx.Row {
			return &mockRow{scanFn: func(dest ...any) error { return pgx.ErrNoRows }}
		},
	}
	repo := NewRepository(mock)

	_, err := repo.LockCouponForUpdate(context.Background(), 99)
	require.Error(t, err)
}

func TestRepository_UpdateIssuedQuantity_VersionConflict(t *testing.T) {
	mock := &mockPool{
		execFn: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			return pgconn.NewCommandTag("UPDATE 0"), nil
		},
	}
	repo := NewRepository(mock)

	err := repo.UpdateIssuedQuantity(context.Background(), 1, 5, 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrVersionConflict)
}

func TestRepository_LockCouponForUpdate_Success(t *testing.T) {
	want := model.Coupon{
		ID: 1, Code: "PROMO", DiscountType: model.CouponDiscountFixed,
		DiscountValue: 1000, MinOrderAmount: 5000, TotalQuantity: 100,
		IssuedQuantity: 10, Version: 3,
	}
	mock := &mockPool{
		queryRowFn: func(ctx context.Context, sql string, args ...any) pgx.Row {
			return couponRow(want)
		},
	}
	repo := NewRepository(mock)

	got, err := repo.LockCouponForUpdate(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, want.Code, got.Code)
	assert.Equal(t, want.IssuedQuantity, got.IssuedQuantity)
	assert.Equal(t, want.Version, got.Version)
}

func TestRepository_ListActiveIDs_ReturnsEveryRow(t *testing.T) {
	mock := &mockPool{
		queryFn: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			return &mockRows{ids: []int64{3, 7, 11}}, nil
		},
	}
	repo := NewRepository(mock)

	ids, err := repo.ListActiveIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 7, 11}, ids)
}

func TestRepository_ListActiveIDs_PropagatesQueryError(t *testing.T) {
	wantErr := assert.AnError
	mock := &mockPool{
		queryFn: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			return nil, wantErr
		},
	}
	repo := NewRepository(mock)

	_, err := repo.ListActiveIDs(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, wantErr)
}
