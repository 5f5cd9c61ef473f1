package httpapi

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/shopsaga/order-core/internal/apperr"
	"github.com/shopsaga/order-core/internal/coupon"
)

// CouponService is the subset of *coupon.Service the HTTP surface needs.
type CouponService interface {
	Issue(ctx context.Context, couponID, userID int64) (*coupon.AdmitResult, error)
}

type issueRequest struct {
	UserID int64 `json:"userId" validate:"required"`
}

// CouponHandler serves POST /api/v1/coupons/:id/issue.
type CouponHandler struct {
	service   CouponService
	validator *validator.Validate
}

func NewCouponHandler(svc CouponService, v *validator.Validate) *CouponHandler {
	return &CouponHandler{service: svc, validator: v}
}

// Issue returns ACCEPTED/ALREADY_ISSUED/SOLD_OUT per §6, not an HTTP error
// status: these are the expected, common outcomes of a race for a limited
// resource, not server failures.
func (h *CouponHandler) Issue(c *fiber.Ctx) error {
	couponID, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: id must be a number"})
	}

	var req issueRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatValidationError(err)})
	}

	result, err := h.service.Issue(c.Context(), couponID, req.UserID)
	var appErr *apperr.Error
	switch {
	case err == nil:
		return c.JSON(fiber.Map{"status": "ACCEPTED", "queuePosition": result.Position})
	case errors.As(err, &appErr) && appErr.Code == apperr.CodeAlreadyIssued:
		return c.JSON(fiber.Map{"status": "ALREADY_ISSUED"})
	case errors.As(err, &appErr) && appErr.Code == apperr.CodeCouponExhausted:
		return c.JSON(fiber.Map{"status": "SOLD_OUT"})
	default:
		return writeError(c, err)
	}
}
