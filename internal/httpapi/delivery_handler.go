package httpapi

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/shopsaga/order-core/internal/delivery"
)

// TxBeginner is implemented by *pgxpool.Pool; the delivery route opens one
// transaction per call rather than sharing a connection across requests.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// DeliveryService is the subset of *delivery.Service the HTTP surface needs.
type DeliveryService interface {
	MarkDelivered(ctx context.Context, tx pgx.Tx, orderID int64) (bool, error)
}

// deliveryServiceAdapter narrows *delivery.Service's database.TxQuerier
// parameter to pgx.Tx, so DeliveryService stays satisfied by the concrete
// type without the httpapi package importing pkg/database for one call.
type deliveryServiceAdapter struct {
	svc *delivery.Service
}

func (a deliveryServiceAdapter) MarkDelivered(ctx context.Context, tx pgx.Tx, orderID int64) (bool, error) {
	return a.svc.MarkDelivered(ctx, tx, orderID)
}

// DeliveryHandler serves the fulfilment-completion route of §4.5/§6: the one
// external signal that drives an order's last transition, CONFIRMED ->
// COMPLETED.
type DeliveryHandler struct {
	pool    TxBeginner
	service DeliveryService
}

func NewDeliveryHandler(pool TxBeginner, svc *delivery.Service) *DeliveryHandler {
	return &DeliveryHandler{pool: pool, service: deliveryServiceAdapter{svc}}
}

// Deliver handles POST /api/v1/deliveries/:orderId/deliver, the carrier or
// fulfilment webhook's signal that a shipment reached its destination.
func (h *DeliveryHandler) Deliver(c *fiber.Ctx) error {
	orderID, err := parseIDParam(c, "orderId")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: orderId must be a number"})
	}

	var completed bool
	txErr := runInTx(c.Context(), h.pool, func(tx pgx.Tx) error {
		done, err := h.service.MarkDelivered(c.Context(), tx, orderID)
		completed = done
		return err
	})
	if txErr != nil {
		return writeError(c, txErr)
	}

	return c.JSON(fiber.Map{"orderId": orderID, "completed": completed})
}

// runInTx begins a transaction on pool, runs fn, and commits, rolling back
// on any error or panic in fn. Mirrors internal/handlers.runInTx.
func runInTx(ctx context.Context, pool TxBeginner, fn func(tx pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	committed = true
	return nil
}
