package cart

import (
	"context"

	"github.com/shopsaga/order-core/internal/model"
	"github.com/shopsaga/order-core/pkg/database"
)

type Service struct {
	pool database.TxQuerier
}

func NewService(pool database.TxQuerier) *Service {
	return &Service{pool: pool}
}

func (s *Service) Get(ctx context.Context, userID int64) (*model.Cart, error) {
	repo := NewRepository(s.pool)
	return repo.Get(ctx, userID)
}

func (s *Service) Save(ctx context.Context, c *model.Cart) error {
	repo := NewRepository(s.pool)
	return repo.Save(ctx, c)
}

// ClearForOrder empties userID's cart inside tx when an order's payment
// completes.
func (s *Service) ClearForOrder(ctx context.Context, tx database.TxQuerier, userID int64) error {
	repo := NewRepository(tx)
	return repo.Clear(ctx, userID)
}
