// Package inventory implements the stock reservation/deduction side of
// component F: productId -> (quantity, reservedQuantity, version), with
// 0 <= reservedQuantity <= quantity always (§3). Grounded on the same
// row-lock + optimistic-version pattern as internal/point.
package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/shopsaga/order-core/internal/model"
	"github.com/shopsaga/order-core/pkg/database"
)

// ErrVersionConflict signals a concurrent writer advanced the row's version
// underneath an update.
var ErrVersionConflict = errors.New("inventory: version conflict")

// ErrNotFound signals no inventory row exists for a product.
var ErrNotFound = errors.New("inventory: not found")

type Repository struct {
	db database.TxQuerier
}

func NewRepository(db database.TxQuerier) *Repository {
	return &Repository{db: db}
}

func (r *Repository) LockForUpdate(ctx context.Context, productID int64) (*model.Inventory, error) {
	row := r.db.QueryRow(ctx, `
		SELECT product_id, quantity, reserved_quantity, version
		FROM inventories WHERE product_id = $1 FOR UPDATE`, productID)
	var inv model.Inventory
	err := row.Scan(&inv.ProductID, &inv.Quantity, &inv.ReservedQuantity, &inv.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// UpdateReserved writes the new reserved quantity under the optimistic
// version check.
func (r *Repository) UpdateReserved(ctx context.Context, productID int64, newReserved int, expectedVersion int64) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE inventories
		SET reserved_quantity = $1, version = version + 1
		WHERE product_id = $2 AND version = $3`, newReserved, productID, expectedVersion)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	return nil
}

// DeductQuantity permanently removes stock (used once a payment completes
// and the reservation converts into an actual decrement). The WHERE clause's
// quantity >= $1 guard is the last line of defense for the §3 invariant
// 0 <= reservedQuantity <= quantity: Service.Deduct already checks
// sufficiency before calling this, but the guard keeps the column itself
// from ever going negative even if a caller skips that check.
func (r *Repository) DeductQuantity(ctx context.Context, productID int64, qty int, newReserved int, expectedVersion int64) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE inventories
		SET quantity = quantity - $1, reserved_quantity = $2, version = version + 1
		WHERE product_id = $3 AND version = $4 AND quantity >= $1`, qty, newReserved, productID, expectedVersion)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	return nil
}
