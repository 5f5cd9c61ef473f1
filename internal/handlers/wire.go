package handlers

import (
	"github.com/shopsaga/order-core/internal/cart"
	"github.com/shopsaga/order-core/internal/coupon"
	"github.com/shopsaga/order-core/internal/delivery"
	"github.com/shopsaga/order-core/internal/inventory"
	"github.com/shopsaga/order-core/internal/notify"
	"github.com/shopsaga/order-core/internal/outbox"
	"github.com/shopsaga/order-core/internal/payment"
	"github.com/shopsaga/order-core/internal/point"
	"github.com/shopsaga/order-core/internal/stats"
	"github.com/shopsaga/order-core/pkg/database"
)

// Services bundles every domain service the event handlers depend on, so
// BuildRegistry has a single argument instead of seven.
type Services struct {
	Pool        TxBeginner
	DB          database.TxQuerier
	Payment     *payment.Coordinator
	Inventory   *inventory.Service
	Coupon      *coupon.Service
	Delivery    *delivery.Service
	Cart        *cart.Service
	Point       *point.Service
	PointLookup UsedAmountLookup
	Hub         *notify.Hub
	Stats       *stats.Ingestor
}

// BuildRegistry registers every handler per the §4.4 routing table and
// freezes the registry, ready for the dispatcher to use.
func BuildRegistry(svc Services) *outbox.Registry {
	reg := outbox.NewRegistry()
	reg.Register(NewOrderHandler(svc.Pool))
	reg.Register(NewPaymentHandler(svc.Pool, svc.Payment, svc.Hub))
	reg.Register(NewInventoryHandler(svc.Pool, svc.Inventory))
	reg.Register(NewCouponHandler(svc.Pool, svc.Coupon))
	reg.Register(NewDeliveryHandler(svc.Pool, svc.Delivery))
	reg.Register(NewCartHandler(svc.Pool, svc.Cart))
	reg.Register(NewPointHandler(svc.Point, svc.PointLookup))
	reg.Register(NewStatsHandler(svc.DB, svc.Stats))
	reg.Freeze()
	return reg
}
