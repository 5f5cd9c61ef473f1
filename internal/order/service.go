package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/shopsaga/order-core/internal/apperr"
	"github.com/shopsaga/order-core/internal/model"
	"github.com/shopsaga/order-core/pkg/database"
)

// Service implements order creation and the §4.5 transition state machine on
// top of Repository.
type Service struct {
	pool database.TxQuerier
}

func NewService(pool database.TxQuerier) *Service {
	return &Service{pool: pool}
}

// Create validates and persists a new order in PENDING_PAYMENT status, using
// tx so the caller can append an outbox event in the same transaction.
func (s *Service) Create(ctx context.Context, tx database.TxQuerier, o *model.Order) error {
	if err := o.Validate(); err != nil {
		return apperr.New(apperr.CodeAmountMismatch, err.Error()).Wrap(err)
	}
	o.OrderNumber = newOrderNumber()
	o.Status = model.OrderStatusPendingPayment

	repo := NewRepository(tx)
	return repo.Create(ctx, o)
}

func newOrderNumber() string {
	return fmt.Sprintf("ORD-%s", uuid.NewString())
}

// Get loads an order by id, translating a missing row into apperr's
// stable-code taxonomy.
func (s *Service) Get(ctx context.Context, orderID int64) (*model.Order, error) {
	repo := NewRepository(s.pool)
	o, err := repo.Get(ctx, orderID)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.Newf(apperr.CodeOrderNotFound, "order %d not found", orderID)
	}
	return o, err
}

// Transition moves orderID from "from" to "to" using tx, so the saga that
// calls it can append its outbox event atomically with the status change.
func (s *Service) Transition(ctx context.Context, tx database.TxQuerier, orderID int64, from, to model.OrderStatus) error {
	repo := NewRepository(tx)
	err := repo.TransitionStatus(ctx, orderID, from, to)
	if errors.Is(err, ErrInvalidTransition) {
		return apperr.Newf(apperr.CodeInvalidOrderStatus, "cannot transition order %d from %s to %s", orderID, from, to)
	}
	return err
}
