package stats

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/shopsaga/order-core/internal/model"
	"github.com/shopsaga/order-core/pkg/database"
)

// Repository persists ProductStatistics rows and reads the popularity
// ranking.
type Repository struct {
	db database.TxQuerier
}

func NewRepository(db database.TxQuerier) *Repository {
	return &Repository{db: db}
}

// Get loads a product's durable statistics, or a zero-valued row if none
// exists yet.
func (r *Repository) Get(ctx context.Context, productID int64) (*model.ProductStatistics, error) {
	row := r.db.QueryRow(ctx, `
		SELECT product_id, view_count, sales_count, wish_count, version
		FROM product_statistics
		WHERE product_id = $1`, productID)

	var s model.ProductStatistics
	err := row.Scan(&s.ProductID, &s.ViewCount, &s.SalesCount, &s.WishCount, &s.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return &model.ProductStatistics{ProductID: productID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ApplyDelta load-or-creates the row for productID and applies the given
// counter deltas, per §4.10 step 3. Deltas are commutative so applying the
// same delta twice under at-least-once retry only over-counts if the caller
// also double-counted upstream; the fold worker's own retry discipline keeps
// that from happening within a single run.
func (r *Repository) ApplyDelta(ctx context.Context, productID int64, views, sales, wishes int64) error {
	now := time.Now()
	_, err := r.db.Exec(ctx, `
		INSERT INTO product_statistics (product_id, view_count, sales_count, wish_count, version, updated_at)
		VALUES ($1, $2, $3, $4, 1, $5)
		ON CONFLICT (product_id) DO UPDATE SET
			view_count = product_statistics.view_count + EXCLUDED.view_count,
			sales_count = product_statistics.sales_count + EXCLUDED.sales_count,
			wish_count = product_statistics.wish_count + EXCLUDED.wish_count,
			version = product_statistics.version + 1,
			updated_at = EXCLUDED.updated_at`,
		productID, views, sales, wishes, now)
	return err
}
