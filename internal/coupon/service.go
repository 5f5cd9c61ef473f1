package coupon

import (
	"context"

	"github.com/shopsaga/order-core/pkg/database"
	"github.com/shopsaga/order-core/pkg/memstore"
)

// Service is the public entry point for the coupon issuance engine:
// admission (fast path, memory store) plus the durable operations the order
// saga needs synchronously (use, compensate).
type Service struct {
	admitter *Admitter
}

func NewService(store memstore.Client) *Service {
	return &Service{admitter: NewAdmitter(store)}
}

// Issue runs the admission protocol for (couponID, userID). A successful
// admission does not mean the UserCoupon row exists yet; the drain worker
// writes it durably, typically within one second.
func (s *Service) Issue(ctx context.Context, couponID, userID int64) (*AdmitResult, error) {
	return s.admitter.Admit(ctx, couponID, userID)
}

// Use consumes a previously-issued coupon for an order, inside the caller's
// order-confirmation transaction. It does not touch the memory store; the
// issued-set dedup already happened at admission time.
func (s *Service) Use(ctx context.Context, tx database.TxQuerier, userID, couponID, orderID int64) error {
	repo := NewRepository(tx)
	return repo.MarkUsed(ctx, userID, couponID, orderID)
}

// Restore reverses a coupon use on order cancellation/compensation: the
// UserCoupon row goes back to ISSUED, the coupon's issued_quantity is
// decremented, and the memory-store soldout flag is cleared if quantity
// dropped back under the cap. The user is deliberately not re-added to the
// in-memory issued set (§4.9: "does not re-add the user ... to prevent
// churn").
func (s *Service) Restore(ctx context.Context, tx database.TxQuerier, userID, couponID int64) error {
	repo := NewRepository(tx)

	restored, err := repo.MarkRestored(ctx, userID, couponID)
	if err != nil {
		return err
	}
	if !restored {
		return nil
	}

	c, err := repo.LockCouponForUpdate(ctx, couponID)
	if err != nil {
		return err
	}
	newIssued := c.IssuedQuantity - 1
	if newIssued < 0 {
		newIssued = 0
	}
	if err := repo.UpdateIssuedQuantity(ctx, couponID, newIssued, c.Version); err != nil {
		return err
	}

	return s.admitter.Restore(ctx, couponID, newIssued, c.TotalQuantity)
}
