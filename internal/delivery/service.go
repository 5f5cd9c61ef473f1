package delivery

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/shopsaga/order-core/internal/model"
	"github.com/shopsaga/order-core/internal/notify"
	"github.com/shopsaga/order-core/internal/order"
	"github.com/shopsaga/order-core/pkg/database"
)

// Service wraps Repository with the create-on-PaymentCompleted and
// complete-on-delivered use cases.
type Service struct {
	hub *notify.Hub
}

func NewService(hub *notify.Hub) *Service { return &Service{hub: hub} }

func (s *Service) CreateForOrder(ctx context.Context, tx database.TxQuerier, orderID int64, address string) error {
	repo := NewRepository(tx)
	return repo.CreateIfAbsent(ctx, orderID, address)
}

// MarkDelivered closes out an order's lifecycle: the delivery moves to
// DELIVERED and, only on the call that actually made that transition, the
// order moves CONFIRMED -> COMPLETED in the same transaction. Reports
// whether this call was the one that completed the order, so a caller can
// decide whether to fire a one-time OrderCompleted notification.
func (s *Service) MarkDelivered(ctx context.Context, tx database.TxQuerier, orderID int64) (completed bool, err error) {
	repo := NewRepository(tx)
	transitioned, err := repo.MarkDelivered(ctx, orderID)
	if err != nil {
		return false, err
	}
	if !transitioned {
		return false, nil
	}

	orderRepo := order.NewRepository(tx)
	o, err := orderRepo.Get(ctx, orderID)
	if err != nil {
		return false, err
	}
	if o.Status != model.OrderStatusConfirmed {
		return false, nil
	}
	if err := orderRepo.TransitionStatus(ctx, orderID, o.Status, model.OrderStatusCompleted); err != nil {
		return false, err
	}

	if pubErr := s.hub.Publish(ctx, model.Notification{
		UserID: o.UserID,
		Type:   model.NotificationOrderCompleted,
		Data:   model.OrderCompletedPayload{OrderID: orderID, UserID: o.UserID},
	}); pubErr != nil {
		log.Warn().Err(pubErr).Int64("orderID", orderID).Msg("failed to publish order-completed notification")
	}
	return true, nil
}
