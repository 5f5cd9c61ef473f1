// Package point implements the point balance engine (subset of component F,
// §4.8): per-user locked charge/deduct/refund over an optimistically
// versioned balance row, with an immutable history ledger. Grounded on the
// teacher's repository-over-TxQuerier pattern in internal/repository.
package point

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/shopsaga/order-core/internal/model"
	"github.com/shopsaga/order-core/pkg/database"
)

// Repository persists UserBalance and BalanceHistory rows.
type Repository struct {
	db database.TxQuerier
}

func NewRepository(db database.TxQuerier) *Repository {
	return &Repository{db: db}
}

// WithTx returns a Repository bound to the given transaction, for callers
// that need to run multiple repository calls atomically.
func (r *Repository) WithTx(tx database.TxQuerier) *Repository {
	return &Repository{db: tx}
}

// LockBalanceForUpdate loads the user's balance row with a row-level write
// lock (SELECT ... FOR UPDATE), creating a zero balance row first if the
// user has never transacted.
func (r *Repository) LockBalanceForUpdate(ctx context.Context, userID int64) (*model.UserBalance, error) {
	row := r.db.QueryRow(ctx, `
		SELECT user_id, balance, version, updated_at
		FROM user_balances
		WHERE user_id = $1
		FOR UPDATE`, userID)

	var b model.UserBalance
	err := row.Scan(&b.UserID, &b.Balance, &b.Version, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return r.createZeroBalance(ctx, userID)
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Get loads the user's balance row without a write lock, reporting a zero
// balance for a user who has never transacted rather than creating a row
// (a read should not have write side effects).
func (r *Repository) Get(ctx context.Context, userID int64) (*model.UserBalance, error) {
	row := r.db.QueryRow(ctx, `
		SELECT user_id, balance, version, updated_at
		FROM user_balances
		WHERE user_id = $1`, userID)

	var b model.UserBalance
	err := row.Scan(&b.UserID, &b.Balance, &b.Version, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return &model.UserBalance{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *Repository) createZeroBalance(ctx context.Context, userID int64) (*model.UserBalance, error) {
	now := time.Now()
	_, err := r.db.Exec(ctx, `
		INSERT INTO user_balances (user_id, balance, version, updated_at)
		VALUES ($1, 0, 0, $2)
		ON CONFLICT (user_id) DO NOTHING`, userID, now)
	if err != nil {
		return nil, err
	}
	row := r.db.QueryRow(ctx, `
		SELECT user_id, balance, version, updated_at
		FROM user_balances
		WHERE user_id = $1
		FOR UPDATE`, userID)
	var b model.UserBalance
	if err := row.Scan(&b.UserID, &b.Balance, &b.Version, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

// UpdateBalance performs the optimistic-version-checked write; affected==0
// means a concurrent writer already advanced the version underneath us
// (should not happen under the row lock, but checked anyway as a defense in
// depth matching the teacher's affected-rows idiom).
func (r *Repository) UpdateBalance(ctx context.Context, userID, newBalance int64, expectedVersion int64) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE user_balances
		SET balance = $1, version = version + 1, updated_at = $2
		WHERE user_id = $3 AND version = $4`, newBalance, time.Now(), userID, expectedVersion)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	return nil
}

// InsertHistory appends an immutable BalanceHistory row.
func (r *Repository) InsertHistory(ctx context.Context, h *model.BalanceHistory) error {
	row := r.db.QueryRow(ctx, `
		INSERT INTO balance_histories
			(user_id, amount, type, balance_before, balance_after, order_id, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		h.UserID, h.Amount, h.Type, h.BalanceBefore, h.BalanceAfter, h.OrderID, h.Description, time.Now())
	return row.Scan(&h.ID)
}

// SumTodayUsage sums today's USE history amounts for the daily-limit check
// (§7); amounts are stored signed negative for USE, so the result is
// returned as a positive total.
func (r *Repository) SumTodayUsage(ctx context.Context, userID int64) (int64, error) {
	row := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(-amount), 0)
		FROM balance_histories
		WHERE user_id = $1 AND type = $2 AND created_at >= date_trunc('day', now())`,
		userID, model.BalanceHistoryUse)
	var sum int64
	if err := row.Scan(&sum); err != nil {
		return 0, err
	}
	return sum, nil
}

// UsedAmountForOrder returns the positive point amount a USE history row
// recorded against orderID, or 0 if the order never used points.
func (r *Repository) UsedAmountForOrder(ctx context.Context, userID, orderID int64) (int64, error) {
	row := r.db.QueryRow(ctx, `
		SELECT COALESCE(-SUM(amount), 0)
		FROM balance_histories
		WHERE user_id = $1 AND order_id = $2 AND type = $3`,
		userID, orderID, model.BalanceHistoryUse)
	var sum int64
	if err := row.Scan(&sum); err != nil {
		return 0, err
	}
	return sum, nil
}

// HasRefundForOrder implements refund idempotency: true iff a REFUND history
// row already exists for (userID, orderID).
func (r *Repository) HasRefundForOrder(ctx context.Context, userID, orderID int64) (bool, error) {
	row := r.db.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM balance_histories
			WHERE user_id = $1 AND order_id = $2 AND type = $3
		)`, userID, orderID, model.BalanceHistoryRefund)
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// Histories returns the user's newest-first history, capped at limit.
func (r *Repository) Histories(ctx context.Context, userID int64, limit int) ([]model.BalanceHistory, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, amount, type, balance_before, balance_after, order_id, description, created_at
		FROM balance_histories
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.BalanceHistory
	for rows.Next() {
		var h model.BalanceHistory
		if err := rows.Scan(&h.ID, &h.UserID, &h.Amount, &h.Type, &h.BalanceBefore, &h.BalanceAfter, &h.OrderID, &h.Description, &h.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
