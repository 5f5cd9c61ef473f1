package inventory

import (
	"context"
	"errors"

	"github.com/shopsaga/order-core/internal/apperr"
	"github.com/shopsaga/order-core/pkg/database"
)

// Service reserves and releases stock for an order's line items inside the
// caller's transaction, so a failed reservation can roll back alongside the
// order write that triggered it.
type Service struct{}

func NewService() *Service { return &Service{} }

// Reserve increments reservedQuantity for each item, failing the whole call
// with apperr.CodeInsufficientStock if any single item can't be reserved; callers run this inside a transaction
// so a partial reservation never commits.
func (s *Service) Reserve(ctx context.Context, tx database.TxQuerier, items map[int64]int) error {
	repo := NewRepository(tx)
	for productID, qty := range items {
		inv, err := repo.LockForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		if inv.Available() < qty {
			return apperr.Newf(apperr.CodeInsufficientStock, "insufficient stock for product %d: available %d, requested %d", productID, inv.Available(), qty)
		}
		if err := repo.UpdateReserved(ctx, productID, inv.ReservedQuantity+qty, inv.Version); err != nil {
			return err
		}
	}
	return nil
}

// Deduct converts a reservation into a permanent decrement once payment
// completes (§4.4's StockDeducted event). It checks sufficiency the same way
// Reserve does: an order that was never reserved up front (or whose stock
// shrank after reservation) fails here with apperr.CodeInsufficientStock
// instead of driving the quantity column negative, and the error carries the
// offending productID so the caller can publish InventoryInsufficient.
func (s *Service) Deduct(ctx context.Context, tx database.TxQuerier, items map[int64]int) error {
	repo := NewRepository(tx)
	for productID, qty := range items {
		inv, err := repo.LockForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		if inv.Quantity < qty {
			return apperr.Newf(apperr.CodeInsufficientStock, "insufficient stock for product %d: on hand %d, requested %d", productID, inv.Quantity, qty).
				WithData(map[string]any{"productId": productID})
		}
		newReserved := inv.ReservedQuantity - qty
		if newReserved < 0 {
			newReserved = 0
		}
		if err := repo.DeductQuantity(ctx, productID, qty, newReserved, inv.Version); err != nil {
			return err
		}
	}
	return nil
}

// Release reverts a reservation (order cancellation path, §4.4's
// OrderCancelled -> Inventory restore).
func (s *Service) Release(ctx context.Context, tx database.TxQuerier, items map[int64]int) error {
	repo := NewRepository(tx)
	for productID, qty := range items {
		inv, err := repo.LockForUpdate(ctx, productID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return err
		}
		newReserved := inv.ReservedQuantity - qty
		if newReserved < 0 {
			newReserved = 0
		}
		if err := repo.UpdateReserved(ctx, productID, newReserved, inv.Version); err != nil {
			return err
		}
	}
	return nil
}
