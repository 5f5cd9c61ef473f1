package httpapi

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/shopsaga/order-core/internal/model"
	"github.com/shopsaga/order-core/internal/payment"
)

// PaymentService is the subset of *payment.Coordinator the HTTP surface needs.
type PaymentService interface {
	Pay(ctx context.Context, req payment.Request) (*model.Payment, error)
}

// OrderLookup resolves an order's owner, so the payment route doesn't need
// its own userId field on the wire (the caller authenticates as the order's
// owner; this layer carries no auth, so the order itself is the source of
// truth for which user is paying).
type OrderLookup interface {
	Get(ctx context.Context, orderID int64) (*model.Order, error)
}

// PaymentHandler serves POST /api/v1/payments.
type PaymentHandler struct {
	service   PaymentService
	orders    OrderLookup
	validator *validator.Validate
}

func NewPaymentHandler(svc PaymentService, orders OrderLookup, v *validator.Validate) *PaymentHandler {
	return &PaymentHandler{service: svc, orders: orders, validator: v}
}

type payRequest struct {
	OrderID        int64  `json:"orderId" validate:"required"`
	PaymentMethod  string `json:"paymentMethod" validate:"required,oneof=POINT GATEWAY MIXED"`
	PointAmount    int64  `json:"pointAmount" validate:"gte=0"`
	PGAmount       int64  `json:"pgAmount" validate:"gte=0"`
	PGPaymentToken string `json:"pgPaymentRequest"`
}

type payResponse struct {
	PaymentID       int64  `json:"paymentId"`
	OrderID         int64  `json:"orderId"`
	TotalAmount     int64  `json:"totalAmount"`
	PointAmount     int64  `json:"pointAmount"`
	PgAmount        int64  `json:"pgAmount"`
	Status          string `json:"status"`
	PaidAt          string `json:"paidAt"`
	PgTransactionID string `json:"pgTransactionId"`
	BalanceAfter    int64  `json:"balanceAfter"`
}

// Pay handles POST /api/v1/payments. The wire-level paymentMethod
// (POINT/GATEWAY/MIXED) is validated but not otherwise read: pointAmount and
// pgAmount go to the coordinator as given, and the coordinator derives the
// method that's actually stored on the Payment row from which amounts are
// non-zero.
func (h *PaymentHandler) Pay(c *fiber.Ctx) error {
	var req payRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatValidationError(err)})
	}

	o, err := h.orders.Get(c.Context(), req.OrderID)
	if err != nil {
		return writeError(c, err)
	}

	p, err := h.service.Pay(c.Context(), payment.Request{
		OrderID:       req.OrderID,
		UserID:        o.UserID,
		PointAmount:   req.PointAmount,
		GatewayAmount: req.PGAmount,
		GatewayRequest: payment.GatewayRequest{
			IdempotencyKey: req.PGPaymentToken,
		},
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(payResponse{
		PaymentID:       p.ID,
		OrderID:         p.OrderID,
		TotalAmount:     p.Amount,
		PointAmount:     p.PointAmount,
		PgAmount:        p.GatewayAmount,
		Status:          string(p.Status),
		PaidAt:          p.UpdatedAt.Format(timeFormat),
		PgTransactionID: p.ExternalTxnID,
		BalanceAfter:    p.BalanceAfter,
	})
}
