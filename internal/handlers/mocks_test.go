package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/shopsaga/order-core/internal/model"
)

// mockRow/mockTx mirror the teacher's pgx.Tx test double
// (internal/service/coupon_service_test.go), reused here so every handler
// can be exercised against a scripted transaction without a real database.
type mockRow struct {
	scanFn func(dest ...any) error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.scanFn != nil {
		return m.scanFn(dest...)
	}
	return nil
}

type mockTx struct {
	execFn     func(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	queryRowFn func(ctx context.Context, sql string, args ...any) pgx.Row
	queryFn    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	commitFn   func(ctx context.Context) error
	rollbackFn func(ctx context.Context) error
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { return nil, errors.New("nested tx") }
func (m *mockTx) Commit(ctx context.Context) error {
	if m.commitFn != nil {
		return m.commitFn(ctx)
	}
	return nil
}
func (m *mockTx) Rollback(ctx context.Context) error {
	if m.rollbackFn != nil {
		return m.rollbackFn(ctx)
	}
	return nil
}
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (m *mockTx) LargeObjects() pgx.LargeObjects                              { return pgx.LargeObjects{} }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	if m.execFn != nil {
		return m.execFn(ctx, sql, arguments...)
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if m.queryFn != nil {
		return m.queryFn(ctx, sql, args...)
	}
	return nil, nil
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if m.queryRowFn != nil {
		return m.queryRowFn(ctx, sql, args...)
	}
	return &mockRow{}
}
func (m *mockTx) Conn() *pgx.Conn { return nil }

// fakeBeginner hands out the same underlying mockTx for every Begin call.
type fakeBeginner struct {
	tx *mockTx
}

func (f *fakeBeginner) Begin(ctx context.Context) (pgx.Tx, error) { return f.tx, nil }

// orderRow scripts a single orders-table row scan matching the column order
// of order.Repository's SELECT (§3): id, order_number, user_id, total,
// discount, final_amount, used_coupon_ids, status, items, created_at,
// updated_at.
func orderRow(o orderFixture) *mockRow {
	return &mockRow{scanFn: func(dest ...any) error {
		itemsJSON, couponsJSON := o.itemsJSON, o.couponsJSON
		if itemsJSON == nil {
			itemsJSON = []byte(`[]`)
		}
		if couponsJSON == nil {
			couponsJSON = []byte(`[]`)
		}
		*(dest[0].(*int64)) = o.id
		*(dest[1].(*string)) = "ORD-1"
		*(dest[2].(*int64)) = o.userID
		*(dest[3].(*int64)) = o.total
		*(dest[4].(*int64)) = o.discount
		*(dest[5].(*int64)) = o.finalAmount
		*(dest[6].(*[]byte)) = couponsJSON
		*(dest[7].(*model.OrderStatus)) = model.OrderStatus(o.status)
		*(dest[8].(*[]byte)) = itemsJSON
		*(dest[9].(*time.Time)) = time.Now()
		*(dest[10].(*time.Time)) = time.Now()
		return nil
	}}
}

type orderFixture struct {
	id          int64
	userID      int64
	total       int64
	discount    int64
	finalAmount int64
	status      string
	itemsJSON   []byte
	couponsJSON []byte
}
