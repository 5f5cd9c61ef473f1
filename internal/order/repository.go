// Package order implements the order aggregate's repository and state
// machine transitions (§3/§4.5). Grounded on the teacher's
// repository-over-TxQuerier pattern in internal/repository, generalized
// from the coupon aggregate's single-table shape to order+items.
package order

import (
	"encoding/json"
	"errors"
	"time"

	"context"

	"github.com/jackc/pgx/v5"

	"github.com/shopsaga/order-core/internal/model"
	"github.com/shopsaga/order-core/pkg/database"
)

// ErrNotFound is returned when an order id has no matching row.
var ErrNotFound = errors.New("order: not found")

// ErrInvalidTransition mirrors apperr.CodeInvalidOrderStatus at the
// repository layer, before the service wraps it with HTTP-facing context.
var ErrInvalidTransition = errors.New("order: invalid status transition")

type Repository struct {
	db database.TxQuerier
}

func NewRepository(db database.TxQuerier) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx database.TxQuerier) *Repository {
	return &Repository{db: tx}
}

// Create inserts a new order with its items, returning the generated id.
func (r *Repository) Create(ctx context.Context, o *model.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return err
	}
	coupons, err := json.Marshal(o.UsedCouponIDs)
	if err != nil {
		return err
	}

	now := time.Now()
	row := r.db.QueryRow(ctx, `
		INSERT INTO orders
			(order_number, user_id, total, discount, final_amount, used_coupon_ids, status, items, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		RETURNING id`,
		o.OrderNumber, o.UserID, o.Total, o.Discount, o.FinalAmount, coupons, o.Status, items, now)
	if err := row.Scan(&o.ID); err != nil {
		return err
	}
	o.CreatedAt, o.UpdatedAt = now, now
	return nil
}

// Get loads an order by id without a row lock.
func (r *Repository) Get(ctx context.Context, orderID int64) (*model.Order, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, order_number, user_id, total, discount, final_amount, used_coupon_ids, status, items, created_at, updated_at
		FROM orders WHERE id = $1`, orderID)
	return scanOrder(row)
}

// LockForUpdate loads an order with a row-level write lock, used by the
// payment saga before transitioning status (§4.7 step 8).
func (r *Repository) LockForUpdate(ctx context.Context, orderID int64) (*model.Order, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, order_number, user_id, total, discount, final_amount, used_coupon_ids, status, items, created_at, updated_at
		FROM orders WHERE id = $1 FOR UPDATE`, orderID)
	return scanOrder(row)
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var o model.Order
	var itemsRaw, couponsRaw []byte
	err := row.Scan(&o.ID, &o.OrderNumber, &o.UserID, &o.Total, &o.Discount, &o.FinalAmount, &couponsRaw, &o.Status, &itemsRaw, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(itemsRaw, &o.Items); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(couponsRaw, &o.UsedCouponIDs); err != nil {
		return nil, err
	}
	return &o, nil
}

// TransitionStatus moves an order from "from" to "to" (§4.5's DAG),
// guarded by a WHERE status = $from clause so a concurrent writer that
// already advanced the row causes affected==0 rather than a double
// transition.
func (r *Repository) TransitionStatus(ctx context.Context, orderID int64, from, to model.OrderStatus) error {
	if !model.CanTransition(from, to) {
		return ErrInvalidTransition
	}
	if from == to {
		return nil // idempotent replay, no write needed
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
		to, time.Now(), orderID, from)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidTransition
	}
	return nil
}
