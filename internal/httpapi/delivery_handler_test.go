package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTx is a no-op pgx.Tx double; the delivery route never inspects the
// transaction itself, only whether Commit/Rollback were called.
type fakeTx struct {
	committed bool
	rolledBk  bool
}

func (f *fakeTx) Begin(ctx context.Context) (pgx.Tx, error) { return nil, errors.New("nested tx") }
func (f *fakeTx) Commit(ctx context.Context) error          { f.committed = true; return nil }
func (f *fakeTx) Rollback(ctx context.Context) error        { f.rolledBk = true; return nil }
func (f *fakeTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (f *fakeTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (f *fakeTx) LargeObjects() pgx.LargeObjects                              { return pgx.LargeObjects{} }
func (f *fakeTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (f *fakeTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag("UPDATE 1"), nil
}
func (f *fakeTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (f *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (f *fakeTx) Conn() *pgx.Conn                                               { return nil }

type fakeBeginner struct {
	tx      *fakeTx
	beginErr error
}

func (f *fakeBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	return f.tx, nil
}

type mockDeliveryService struct {
	markDeliveredFn func(ctx context.Context, tx pgx.Tx, orderID int64) (bool, error)
}

func (m *mockDeliveryService) MarkDelivered(ctx context.Context, tx pgx.Tx, orderID int64) (bool, error) {
	return m.markDeliveredFn(ctx, tx, orderID)
}

func setupDeliveryApp(pool TxBeginner, svc DeliveryService) *fiber.App {
	app := fiber.New()
	h := &DeliveryHandler{pool: pool, service: svc}
	app.Post("/api/v1/deliveries/:orderId/deliver", h.Deliver)
	return app
}

func TestDeliveryHandler_Deliver_CompletesOrderOnFirstCall(t *testing.T) {
	tx := &fakeTx{}
	app := setupDeliveryApp(&fakeBeginner{tx: tx}, &mockDeliveryService{
		markDeliveredFn: func(ctx context.Context, tx pgx.Tx, orderID int64) (bool, error) {
			assert.EqualValues(t, 42, orderID)
			return true, nil
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/deliveries/42/deliver", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.True(t, tx.committed)
}

func TestDeliveryHandler_Deliver_IdempotentOnRedelivery(t *testing.T) {
	tx := &fakeTx{}
	app := setupDeliveryApp(&fakeBeginner{tx: tx}, &mockDeliveryService{
		markDeliveredFn: func(ctx context.Context, tx pgx.Tx, orderID int64) (bool, error) {
			return false, nil
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/deliveries/42/deliver", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestDeliveryHandler_Deliver_InvalidOrderID(t *testing.T) {
	app := setupDeliveryApp(&fakeBeginner{tx: &fakeTx{}}, &mockDeliveryService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/deliveries/not-a-number/deliver", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
