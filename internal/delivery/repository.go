// Package delivery creates a Delivery row idempotently when an order's
// payment completes (SPEC_FULL §3.1). Grounded on the same
// repository-over-TxQuerier pattern as internal/order.
package delivery

import (
	"context"

	"github.com/shopsaga/order-core/internal/model"
	"github.com/shopsaga/order-core/pkg/database"
)

type Repository struct {
	db database.TxQuerier
}

func NewRepository(db database.TxQuerier) *Repository {
	return &Repository{db: db}
}

// CreateIfAbsent inserts a PREPARING delivery for orderID unless one already
// exists, so a redelivered PaymentCompleted event is a no-op (§4.6).
func (r *Repository) CreateIfAbsent(ctx context.Context, orderID int64, address string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO deliveries (order_id, address, status)
		VALUES ($1, $2, $3)
		ON CONFLICT (order_id) DO NOTHING`, orderID, address, model.DeliveryStatusPreparing)
	return err
}

// MarkDelivered flips a delivery straight to DELIVERED, guarded by
// status <> DELIVERED so a redelivered completion webhook is a no-op
// (§4.6 strategy 3) rather than re-firing the order completion and
// OrderCompleted notification a second time.
func (r *Repository) MarkDelivered(ctx context.Context, orderID int64) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE deliveries SET status = $1
		WHERE order_id = $2 AND status <> $1`, model.DeliveryStatusDelivered, orderID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Get loads a delivery by order id.
func (r *Repository) Get(ctx context.Context, orderID int64) (*model.Delivery, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, order_id, address, status, tracking_number
		FROM deliveries WHERE order_id = $1`, orderID)
	var d model.Delivery
	if err := row.Scan(&d.ID, &d.OrderID, &d.Address, &d.Status, &d.TrackingNumber); err != nil {
		return nil, err
	}
	return &d, nil
}
