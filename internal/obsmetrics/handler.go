package obsmetrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler adapts promhttp's net/http handler into a Fiber handler for
// GET /metrics, the way the teacher's stack bridges net/http middleware
// into Fiber wherever it needs one it doesn't have natively.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
