package coupon

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/shopsaga/order-core/internal/model"
	"github.com/shopsaga/order-core/pkg/database"
)

// Repository persists Coupon and UserCoupon rows.
type Repository struct {
	db database.TxQuerier
}

func NewRepository(db database.TxQuerier) *Repository {
	return &Repository{db: db}
}

func (r *Repository) LockCouponForUpdate(ctx context.Context, couponID int64) (*model.Coupon, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, code, discount_type, discount_value, min_order_amount,
		       total_quantity, issued_quantity, valid_from, valid_to, version
		FROM coupons
		WHERE id = $1
		FOR UPDATE`, couponID)

	var c model.Coupon
	err := row.Scan(&c.ID, &c.Code, &c.DiscountType, &c.DiscountValue, &c.MinOrderAmount,
		&c.TotalQuantity, &c.IssuedQuantity, &c.ValidFrom, &c.ValidTo, &c.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrCouponNotFound(couponID)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repository) UpdateIssuedQuantity(ctx context.Context, couponID int64, newIssuedQuantity int, expectedVersion int64) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE coupons
		SET issued_quantity = $1, version = version + 1
		WHERE id = $2 AND version = $3`, newIssuedQuantity, couponID, expectedVersion)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	return nil
}

// InsertIssued inserts a new ISSUED UserCoupon row, ignoring a duplicate
// insert (the in-memory issued-set already prevents this in the normal
// path; ON CONFLICT is a defensive backstop for drain-retry races).
func (r *Repository) InsertIssued(ctx context.Context, userID, couponID int64) error {
	now := time.Now()
	_, err := r.db.Exec(ctx, `
		INSERT INTO user_coupons (user_id, coupon_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (user_id, coupon_id) DO NOTHING`, userID, couponID, model.UserCouponIssued, now)
	return err
}

// MarkRestored flips a UserCoupon row back to ISSUED on compensation
// (§4.9's CouponRestored). Guarded by WHERE status = USED so a redelivered
// OrderCancelled event is a no-op rather than decrementing issuedQuantity
// twice.
func (r *Repository) MarkRestored(ctx context.Context, userID, couponID int64) (restored bool, err error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE user_coupons
		SET status = $1, used_order = NULL, updated_at = $2
		WHERE user_id = $3 AND coupon_id = $4 AND status = $5`,
		model.UserCouponIssued, time.Now(), userID, couponID, model.UserCouponUsed)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkUsed transitions a UserCoupon row to USED for the given order.
func (r *Repository) MarkUsed(ctx context.Context, userID, couponID, orderID int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE user_coupons
		SET status = $1, used_order = $2, updated_at = $3
		WHERE user_id = $4 AND coupon_id = $5 AND status = $6`,
		model.UserCouponUsed, orderID, time.Now(), userID, couponID, model.UserCouponIssued)
	return err
}

// ListActiveIDs returns every coupon still within its issuance window and
// not yet fully issued, the set the drain loop needs to visit on each tick.
func (r *Repository) ListActiveIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id FROM coupons
		WHERE valid_from <= now() AND valid_to >= now() AND issued_quantity < total_quantity`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
