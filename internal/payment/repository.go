package payment

import (
	"time"

	"context"

	"github.com/shopsaga/order-core/internal/model"
	"github.com/shopsaga/order-core/pkg/database"
)

// Repository persists Payment rows.
type Repository struct {
	db database.TxQuerier
}

func NewRepository(db database.TxQuerier) *Repository {
	return &Repository{db: db}
}

// Insert writes a Payment row, returning its generated id.
func (r *Repository) Insert(ctx context.Context, p *model.Payment) error {
	now := time.Now()
	row := r.db.QueryRow(ctx, `
		INSERT INTO payments
			(order_id, user_id, method, status, external_txn_id, amount, point_amount, gateway_amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		RETURNING id`,
		p.OrderID, p.UserID, p.Method, p.Status, p.ExternalTxnID, p.Amount, p.PointAmount, p.GatewayAmount, now)
	if err := row.Scan(&p.ID); err != nil {
		return err
	}
	p.CreatedAt, p.UpdatedAt = now, now
	return nil
}

// MarkStatus updates a payment's lifecycle status (e.g. COMPLETED, FAILED).
func (r *Repository) MarkStatus(ctx context.Context, paymentID int64, status model.PaymentStatus) error {
	_, err := r.db.Exec(ctx, `
		UPDATE payments SET status = $1, updated_at = $2 WHERE id = $3`, status, time.Now(), paymentID)
	return err
}
