// Package cart clears a user's cart idempotently once an order's payment
// completes (SPEC_FULL §3.1).
package cart

import (
	"context"
	"encoding/json"

	"github.com/shopsaga/order-core/internal/model"
	"github.com/shopsaga/order-core/pkg/database"
)

type Repository struct {
	db database.TxQuerier
}

func NewRepository(db database.TxQuerier) *Repository {
	return &Repository{db: db}
}

// Get loads a user's cart, returning an empty cart if none exists yet.
func (r *Repository) Get(ctx context.Context, userID int64) (*model.Cart, error) {
	row := r.db.QueryRow(ctx, `SELECT items FROM carts WHERE user_id = $1`, userID)
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		return &model.Cart{UserID: userID}, nil
	}
	var items []model.CartItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	return &model.Cart{UserID: userID, Items: items}, nil
}

// Save upserts a user's cart contents.
func (r *Repository) Save(ctx context.Context, c *model.Cart) error {
	raw, err := json.Marshal(c.Items)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO carts (user_id, items)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET items = EXCLUDED.items`, c.UserID, raw)
	return err
}

// Clear empties a user's cart; idempotent since re-running it on an
// already-empty cart is a no-op write.
func (r *Repository) Clear(ctx context.Context, userID int64) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO carts (user_id, items)
		VALUES ($1, '[]'::jsonb)
		ON CONFLICT (user_id) DO UPDATE SET items = '[]'::jsonb`, userID)
	return err
}
