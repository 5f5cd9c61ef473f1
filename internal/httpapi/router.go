package httpapi

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/shopsaga/order-core/internal/delivery"
	"github.com/shopsaga/order-core/internal/notify"
)

// Services bundles every dependency the HTTP surface needs, mirroring the
// outbox registry's Services struct in internal/handlers.
type Services struct {
	Point    PointService
	Payment  PaymentService
	Orders   OrderLookup
	Coupon   CouponService
	Hub      *notify.Hub
	DB       Pinger
	Pool     TxBeginner
	Delivery *delivery.Service
}

// Register mounts every route of §4.15/§6 onto router.
func Register(router fiber.Router, svc Services) {
	v := validator.New()

	point := NewPointHandler(svc.Point, v)
	payment := NewPaymentHandler(svc.Payment, svc.Orders, v)
	coupon := NewCouponHandler(svc.Coupon, v)
	notify := NewNotifyHandler(svc.Hub)
	health := NewHealthHandler(svc.DB)
	delivery := NewDeliveryHandler(svc.Pool, svc.Delivery)

	router.Get("/health", health.Check)

	api := router.Group("/api/v1")
	api.Get("/users/:userId/balance", point.GetBalance)
	api.Post("/payments", payment.Pay)
	api.Get("/points/:userId", point.GetBalance)
	api.Post("/points/:userId/charge", point.Charge)
	api.Post("/points/:userId/deduct", point.Deduct)
	api.Get("/points/:userId/histories", point.Histories)
	api.Post("/coupons/:id/issue", coupon.Issue)
	api.Post("/deliveries/:orderId/deliver", delivery.Deliver)

	router.Get("/sse/subscribe/:userId", notify.Subscribe)
}
