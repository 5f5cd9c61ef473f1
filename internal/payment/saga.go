// Package payment implements the payment saga coordinator (component G,
// §4.7): balance lock, an external gateway call kept outside the database
// transaction, a balance debit guarded by an optimistic version re-check,
// and an order-status transition, all durable via the outbox writer.
// Grounded on the teacher's Begin/defer-Rollback/Commit transaction idiom
// in internal/service/coupon_service.go.
package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/shopsaga/order-core/internal/apperr"
	"github.com/shopsaga/order-core/internal/config"
	"github.com/shopsaga/order-core/internal/lock"
	"github.com/shopsaga/order-core/internal/model"
	"github.com/shopsaga/order-core/internal/order"
	"github.com/shopsaga/order-core/internal/outbox"
	"github.com/shopsaga/order-core/internal/point"
	"github.com/shopsaga/order-core/pkg/memstore"
)

// TxBeginner is implemented by *pgxpool.Pool; abstracted so the saga can be
// tested without a live database.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Request is the input to Coordinator.Pay (§4.7).
type Request struct {
	OrderID        int64
	UserID         int64
	PointAmount    int64
	GatewayAmount  int64
	GatewayRequest GatewayRequest
}

// Coordinator orchestrates the payment saga described in §4.7.
type Coordinator struct {
	pool     TxBeginner
	locker   *lock.Manager
	gateway  Gateway
	orderSvc *order.Service
	cfg      config.PointConfig
}

func NewCoordinator(pool TxBeginner, locker *lock.Manager, gateway Gateway, orderSvc *order.Service, cfg config.PointConfig) *Coordinator {
	return &Coordinator{pool: pool, locker: locker, gateway: gateway, orderSvc: orderSvc, cfg: cfg}
}

func (c *Coordinator) lockKey(userID int64) string {
	return memstore.LockKey(memstore.LockDomainPoint, fmt.Sprintf("%d", userID))
}

// Pay runs the §4.7 algorithm. It returns the completed Payment row, or an
// apperr.Error describing which step rejected the request.
func (c *Coordinator) Pay(ctx context.Context, req Request) (*model.Payment, error) {
	var payment *model.Payment

	lockErr := c.locker.WithLock(ctx, c.lockKey(req.UserID), func(ctx context.Context) error {
		p, err := c.payLocked(ctx, req)
		payment = p
		return err
	})
	if lockErr != nil {
		return nil, lockErr
	}
	return payment, nil
}

func (c *Coordinator) payLocked(ctx context.Context, req Request) (*model.Payment, error) {
	// --- phase 1: validate + pre-checks + lock balance, all inside a tx ---
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("payment: begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	orderRepo := order.NewRepository(tx)
	o, err := orderRepo.LockForUpdate(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if o.Status != model.OrderStatusPendingPayment && o.Status != model.OrderStatusPending {
		return nil, apperr.Newf(apperr.CodeInvalidOrderStatus, "order %d is not awaiting payment (status=%s)", o.ID, o.Status)
	}
	if req.PointAmount+req.GatewayAmount != o.FinalAmount {
		return nil, apperr.Newf(apperr.CodeAmountMismatch, "pointAmount+gatewayAmount (%d) != order finalAmount (%d)", req.PointAmount+req.GatewayAmount, o.FinalAmount)
	}

	pointRepo := point.NewRepository(tx)
	usedToday, err := pointRepo.SumTodayUsage(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if usedToday+req.PointAmount > int64(c.cfg.DailyLimit) {
		return nil, apperr.Newf(apperr.CodeDailyLimitExceeded, "daily use limit %d exceeded", c.cfg.DailyLimit)
	}

	balance, err := pointRepo.LockBalanceForUpdate(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if balance.Balance < req.PointAmount {
		return nil, apperr.Newf(apperr.CodeInsufficientBalance, "balance %d insufficient for %d", balance.Balance, req.PointAmount).
			WithData(map[string]any{"currentBalance": balance.Balance})
	}

	// Close the first transaction before the network call so the balance
	// and order row locks aren't held across the gateway round-trip (§4.7
	// step 3's rationale).
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("payment: commit pre-check tx: %w", err)
	}
	committed = true

	// --- phase 2: external gateway call, outside any DB transaction ---
	var gatewayResult GatewayResult
	if req.GatewayAmount > 0 {
		gwReq := req.GatewayRequest
		gwReq.OrderID, gwReq.UserID, gwReq.AmountMinor = req.OrderID, req.UserID, req.GatewayAmount
		if gwReq.IdempotencyKey == "" {
			gwReq.IdempotencyKey = fmt.Sprintf("order-%d-%s", req.OrderID, uuid.NewString())
		}

		gwCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		res, err := c.gateway.Charge(gwCtx, gwReq)
		cancel()
		if err != nil || !res.Success {
			reason := res.FailureReason
			if err != nil {
				reason = err.Error()
			}
			return nil, apperr.Newf(apperr.CodeGatewayFailed, "gateway charge failed: %s", reason)
		}
		gatewayResult = res
	}

	// --- phase 3: re-open a transaction, re-verify, debit, commit ---
	payment, err := c.settle(ctx, req, balance.Version, gatewayResult, o.Status)
	if err != nil {
		if gatewayResult.ExternalTxnID != "" {
			if cancelErr := c.gateway.Cancel(ctx, gatewayResult.ExternalTxnID); cancelErr != nil {
				log.Error().Err(cancelErr).Str("externalTxnID", gatewayResult.ExternalTxnID).Msg("payment: compensating gateway cancel failed")
			}
		}
		return nil, err
	}
	return payment, nil
}

// settle implements §4.7 steps 4-10: reacquire the balance lock, verify the
// version, debit, record the payment, transition the order and append the
// outbox event, all in one transaction.
func (c *Coordinator) settle(ctx context.Context, req Request, expectedVersion int64, gw GatewayResult, fromStatus model.OrderStatus) (*model.Payment, error) {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("payment: begin settle tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	pointRepo := point.NewRepository(tx)
	balance, err := pointRepo.LockBalanceForUpdate(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if balance.Version != expectedVersion {
		return nil, apperr.Newf(apperr.CodeConcurrencyConflict, "balance for user %d changed underneath the payment saga", req.UserID)
	}

	newBalance := balance.Balance
	if req.PointAmount > 0 {
		newBalance = balance.Balance - req.PointAmount
		if newBalance < 0 {
			return nil, apperr.Newf(apperr.CodeInsufficientBalance, "balance went negative mid-saga for user %d", req.UserID)
		}
		if err := pointRepo.InsertHistory(ctx, &model.BalanceHistory{
			UserID:        req.UserID,
			Amount:        -req.PointAmount,
			Type:          model.BalanceHistoryUse,
			BalanceBefore: balance.Balance,
			BalanceAfter:  newBalance,
			OrderID:       &req.OrderID,
			Description:   fmt.Sprintf("payment for order %d", req.OrderID),
		}); err != nil {
			return nil, err
		}
		if err := pointRepo.UpdateBalance(ctx, req.UserID, newBalance, balance.Version); err != nil {
			if errors.Is(err, point.ErrVersionConflict) {
				return nil, apperr.Newf(apperr.CodeConcurrencyConflict, "balance version conflict for user %d", req.UserID)
			}
			return nil, err
		}
	}

	method := model.PaymentMethodBalance
	switch {
	case req.PointAmount > 0 && req.GatewayAmount > 0:
		method = model.PaymentMethodMixed
	case req.GatewayAmount > 0:
		method = model.PaymentMethodCard
	}

	p := &model.Payment{
		OrderID:       req.OrderID,
		UserID:        req.UserID,
		Method:        method,
		Status:        model.PaymentStatusCompleted,
		ExternalTxnID: gw.ExternalTxnID,
		Amount:        req.PointAmount + req.GatewayAmount,
		PointAmount:   req.PointAmount,
		GatewayAmount: req.GatewayAmount,
		BalanceAfter:  newBalance,
	}
	paymentRepo := NewRepository(tx)
	if err := paymentRepo.Insert(ctx, p); err != nil {
		return nil, err
	}

	if err := c.orderSvc.Transition(ctx, tx, req.OrderID, fromStatus, model.OrderStatusConfirmed); err != nil {
		if fromStatus == model.OrderStatusPendingPayment {
			// PENDING_PAYMENT has no direct path to CONFIRMED; go through
			// PENDING first to honor §4.5's transition DAG.
			if txErr := c.orderSvc.Transition(ctx, tx, req.OrderID, model.OrderStatusPendingPayment, model.OrderStatusPending); txErr != nil {
				return nil, txErr
			}
			if txErr := c.orderSvc.Transition(ctx, tx, req.OrderID, model.OrderStatusPending, model.OrderStatusConfirmed); txErr != nil {
				return nil, txErr
			}
		} else {
			return nil, err
		}
	}

	writer := outbox.NewWriter()
	if err := writer.Append(ctx, tx, model.EventPaymentCompleted, model.AggregatePayment, fmt.Sprintf("%d", p.ID), p); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("payment: commit settle tx: %w", err)
	}
	return p, nil
}
