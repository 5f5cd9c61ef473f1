package point

import (
	"context"
	"errors"
	"strconv"

	"github.com/shopsaga/order-core/internal/apperr"
	"github.com/shopsaga/order-core/internal/config"
	"github.com/shopsaga/order-core/internal/lock"
	"github.com/shopsaga/order-core/internal/model"
	"github.com/shopsaga/order-core/pkg/database"
	"github.com/shopsaga/order-core/pkg/memstore"
)

// ErrVersionConflict is returned by Repository.UpdateBalance when the row's
// version changed between load and write; under the FOR UPDATE lock this
// only happens if the lock discipline was bypassed, so callers treat it as
// a bug-level condition rather than a retryable one.
var ErrVersionConflict = errors.New("point: balance version conflict")

// Service implements charge/deduct/refund/getHistories (§4.8), serialized
// per user by the distributed lock manager (J) and, within the locked
// section, by a row-level DB lock plus optimistic version bump.
type Service struct {
	pool   database.TxQuerier
	locker *lock.Manager
	cfg    config.PointConfig
}

func NewService(pool database.TxQuerier, locker *lock.Manager, cfg config.PointConfig) *Service {
	return &Service{pool: pool, locker: locker, cfg: cfg}
}

func (s *Service) lockKey(userID int64) string {
	return memstore.LockKey(memstore.LockDomainPoint, strconv.FormatInt(userID, 10))
}

// GetBalance reads userID's current balance without locking.
func (s *Service) GetBalance(ctx context.Context, userID int64) (*model.UserBalance, error) {
	return NewRepository(s.pool).Get(ctx, userID)
}

// Charge adds amount to userID's balance, per §4.8's EARN contract.
func (s *Service) Charge(ctx context.Context, userID int64, amount int64, description string) (balance int64, err error) {
	if amount < int64(s.cfg.MinCharge) || amount > int64(s.cfg.MaxCharge) || amount%100 != 0 {
		return 0, apperr.Newf(apperr.CodeInvalidPointAmount, "charge amount %d out of range [%d,%d] or not a multiple of 100", amount, s.cfg.MinCharge, s.cfg.MaxCharge)
	}

	lockErr := s.locker.WithLock(ctx, s.lockKey(userID), func(ctx context.Context) error {
		repo := NewRepository(s.pool)
		b, err := repo.LockBalanceForUpdate(ctx, userID)
		if err != nil {
			return err
		}

		newBalance := b.Balance + amount
		if newBalance > int64(s.cfg.MaxBalance) {
			return apperr.Newf(apperr.CodeMaxBalanceExceeded, "balance %d would exceed max %d", newBalance, s.cfg.MaxBalance)
		}

		if err := repo.InsertHistory(ctx, &model.BalanceHistory{
			UserID:        userID,
			Amount:        amount,
			Type:          model.BalanceHistoryEarn,
			BalanceBefore: b.Balance,
			BalanceAfter:  newBalance,
			Description:   description,
		}); err != nil {
			return err
		}

		if err := repo.UpdateBalance(ctx, userID, newBalance, b.Version); err != nil {
			return err
		}

		balance = newBalance
		return nil
	})
	if lockErr != nil {
		return 0, lockErr
	}
	return balance, nil
}

// Deduct removes amount from userID's balance for orderID, per §4.8's USE
// contract (balance floor, daily limit).
func (s *Service) Deduct(ctx context.Context, userID int64, amount int64, orderID int64, description string) (balance int64, err error) {
	if amount < int64(s.cfg.MinDeduct) || amount%100 != 0 {
		return 0, apperr.Newf(apperr.CodeInvalidPointAmount, "deduct amount %d below minimum %d or not a multiple of 100", amount, s.cfg.MinDeduct)
	}

	lockErr := s.locker.WithLock(ctx, s.lockKey(userID), func(ctx context.Context) error {
		repo := NewRepository(s.pool)

		usedToday, err := repo.SumTodayUsage(ctx, userID)
		if err != nil {
			return err
		}
		if usedToday+amount > int64(s.cfg.DailyLimit) {
			return apperr.Newf(apperr.CodeDailyLimitExceeded, "daily use limit %d exceeded", s.cfg.DailyLimit)
		}

		b, err := repo.LockBalanceForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if b.Balance < amount {
			return apperr.Newf(apperr.CodeInsufficientBalance, "balance %d insufficient for %d", b.Balance, amount).
				WithData(map[string]any{"currentBalance": b.Balance})
		}

		newBalance := b.Balance - amount
		if err := repo.InsertHistory(ctx, &model.BalanceHistory{
			UserID:        userID,
			Amount:        -amount,
			Type:          model.BalanceHistoryUse,
			BalanceBefore: b.Balance,
			BalanceAfter:  newBalance,
			OrderID:       &orderID,
			Description:   description,
		}); err != nil {
			return err
		}

		if err := repo.UpdateBalance(ctx, userID, newBalance, b.Version); err != nil {
			return err
		}

		balance = newBalance
		return nil
	})
	if lockErr != nil {
		return 0, lockErr
	}
	return balance, nil
}

// Refund reverses a prior Deduct for orderID. Idempotent: a second call for
// the same (userID, orderID) is a no-op, returning the current balance.
func (s *Service) Refund(ctx context.Context, userID int64, amount int64, orderID int64) (balance int64, err error) {
	lockErr := s.locker.WithLock(ctx, s.lockKey(userID), func(ctx context.Context) error {
		repo := NewRepository(s.pool)

		already, err := repo.HasRefundForOrder(ctx, userID, orderID)
		if err != nil {
			return err
		}

		b, err := repo.LockBalanceForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if already {
			balance = b.Balance
			return nil
		}

		newBalance := b.Balance + amount
		if err := repo.InsertHistory(ctx, &model.BalanceHistory{
			UserID:        userID,
			Amount:        amount,
			Type:          model.BalanceHistoryRefund,
			BalanceBefore: b.Balance,
			BalanceAfter:  newBalance,
			OrderID:       &orderID,
			Description:   "refund",
		}); err != nil {
			return err
		}

		if err := repo.UpdateBalance(ctx, userID, newBalance, b.Version); err != nil {
			return err
		}

		balance = newBalance
		return nil
	})
	if lockErr != nil {
		return 0, lockErr
	}
	return balance, nil
}

// Histories returns the user's newest-first balance history, capped at 100
// per §4.8.
func (s *Service) Histories(ctx context.Context, userID int64) ([]model.BalanceHistory, error) {
	repo := NewRepository(s.pool)
	return repo.Histories(ctx, userID, 100)
}
