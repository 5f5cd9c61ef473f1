package httpapi

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/shopsaga/order-core/internal/model"
)

// PointService is the subset of *point.Service the HTTP surface needs.
type PointService interface {
	GetBalance(ctx context.Context, userID int64) (*model.UserBalance, error)
	Charge(ctx context.Context, userID int64, amount int64, description string) (int64, error)
	Deduct(ctx context.Context, userID int64, amount int64, orderID int64, description string) (int64, error)
	Histories(ctx context.Context, userID int64) ([]model.BalanceHistory, error)
}

// PointHandler serves the balance and point-ledger routes of §6.
type PointHandler struct {
	service   PointService
	validator *validator.Validate
}

func NewPointHandler(svc PointService, v *validator.Validate) *PointHandler {
	return &PointHandler{service: svc, validator: v}
}

type balanceResponse struct {
	UserID      int64  `json:"userId"`
	Balance     int64  `json:"balance"`
	LastUpdated string `json:"lastUpdated"`
}

// GetBalance handles GET /api/v1/users/:userId/balance and the equivalent
// GET /api/v1/points/:userId.
func (h *PointHandler) GetBalance(c *fiber.Ctx) error {
	userID, err := parseUserID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: userId must be a number"})
	}

	b, err := h.service.GetBalance(c.Context(), userID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(balanceResponse{
		UserID:      b.UserID,
		Balance:     b.Balance,
		LastUpdated: b.UpdatedAt.Format(timeFormat),
	})
}

type chargeRequest struct {
	Amount      int64  `json:"amount" validate:"required,gte=0"`
	Description string `json:"description"`
}

// Charge handles POST /api/v1/points/:userId/charge.
func (h *PointHandler) Charge(c *fiber.Ctx) error {
	userID, err := parseUserID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: userId must be a number"})
	}

	var req chargeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatValidationError(err)})
	}

	balance, err := h.service.Charge(c.Context(), userID, req.Amount, req.Description)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"userId": userID, "balance": balance})
}

type deductRequest struct {
	Amount      int64  `json:"amount" validate:"required,gte=0"`
	OrderID     int64  `json:"orderId" validate:"required"`
	Description string `json:"description"`
}

// Deduct handles POST /api/v1/points/:userId/deduct.
func (h *PointHandler) Deduct(c *fiber.Ctx) error {
	userID, err := parseUserID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: userId must be a number"})
	}

	var req deductRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatValidationError(err)})
	}

	balance, err := h.service.Deduct(c.Context(), userID, req.Amount, req.OrderID, req.Description)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"userId": userID, "balance": balance})
}

type historyResponse struct {
	ID            int64   `json:"id"`
	Amount        int64   `json:"amount"`
	Type          string  `json:"type"`
	BalanceBefore int64   `json:"balanceBefore"`
	BalanceAfter  int64   `json:"balanceAfter"`
	OrderID       *int64  `json:"orderId,omitempty"`
	Description   string  `json:"description"`
	CreatedAt     string  `json:"createdAt"`
}

// Histories handles GET /api/v1/points/:userId/histories.
func (h *PointHandler) Histories(c *fiber.Ctx) error {
	userID, err := parseUserID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: userId must be a number"})
	}

	histories, err := h.service.Histories(c.Context(), userID)
	if err != nil {
		return writeError(c, err)
	}

	out := make([]historyResponse, 0, len(histories))
	for _, hist := range histories {
		out = append(out, historyResponse{
			ID:            hist.ID,
			Amount:        hist.Amount,
			Type:          string(hist.Type),
			BalanceBefore: hist.BalanceBefore,
			BalanceAfter:  hist.BalanceAfter,
			OrderID:       hist.OrderID,
			Description:   hist.Description,
			CreatedAt:     hist.CreatedAt.Format(timeFormat),
		})
	}
	return c.JSON(out)
}

// formatValidationError converts validator errors into the field-level
// messages the point and payment request bodies need.
func formatValidationError(err error) string {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		fe := ve[0]
		switch fe.Tag() {
		case "required":
			return "invalid request: " + fe.Field() + " is required"
		case "gte":
			return "invalid request: " + fe.Field() + " must be at least " + fe.Param()
		case "oneof":
			return "invalid request: " + fe.Field() + " must be one of " + fe.Param()
		default:
			return "invalid request: " + fe.Field() + " is invalid"
		}
	}
	return "invalid request"
}
