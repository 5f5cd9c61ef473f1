// Package httpapi exposes the saga's domain services over HTTP (§4.15): a
// thin Fiber layer with no DTO-generation framework, no OpenAPI, no auth —
// just enough surface to drive the system end-to-end. Grounded on the
// teacher's internal/handler package: narrow per-handler service interfaces,
// a shared *validator.Validate, formatValidationError-style field messages,
// and fiber.Map JSON bodies.
package httpapi

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/shopsaga/order-core/internal/apperr"
)

// timeFormat is the RFC3339 wire format every timestamp field in the HTTP
// responses uses.
const timeFormat = time.RFC3339

// writeError dispatches an error to its HTTP status mechanically via
// apperr.Error.HTTPStatus(), the same role the teacher's per-sentinel
// errors.Is chains play, except driven by the stable error-code taxonomy
// instead of one sentinel per case.
func writeError(c *fiber.Ctx, err error) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return c.Status(appErr.HTTPStatus()).JSON(fiber.Map{
			"error":   string(appErr.Code),
			"message": appErr.Message,
			"data":    appErr.Data,
		})
	}
	log.Error().Err(err).Msg("httpapi: unhandled error")
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
}

// parseUserID extracts and validates the :userId path parameter.
func parseUserID(c *fiber.Ctx) (int64, error) {
	id, err := c.ParamsInt("userId")
	return int64(id), err
}

// parseIDParam extracts and validates a path parameter named name as an int64.
func parseIDParam(c *fiber.Ctx, name string) (int64, error) {
	id, err := c.ParamsInt(name)
	return int64(id), err
}
