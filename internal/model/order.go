// Package model holds the durable-store aggregates and their invariants
// (§3 of the design): Order, UserBalance, Coupon, Inventory, Payment, the
// outbox tables, and product statistics.
package model

import (
	"fmt"
	"time"
)

// OrderStatus is one node in the order lifecycle DAG (§4.5).
type OrderStatus string

const (
	OrderStatusPendingPayment OrderStatus = "PENDING_PAYMENT"
	OrderStatusPending        OrderStatus = "PENDING"
	OrderStatusConfirmed      OrderStatus = "CONFIRMED"
	OrderStatusCompleted      OrderStatus = "COMPLETED"
	OrderStatusCancelled      OrderStatus = "CANCELLED"
	OrderStatusFailed         OrderStatus = "FAILED"
	OrderStatusExpired        OrderStatus = "EXPIRED"
)

// orderTransitions is the allowed-transition DAG of §4.5. A transition not in
// this set fails with apperr.CodeInvalidOrderStatus.
var orderTransitions = map[OrderStatus]map[OrderStatus]bool{
	// Cancelled/Failed are reachable directly from PendingPayment too: a
	// gateway failure or an inventory shortfall can be known before the
	// order ever reaches Pending.
	OrderStatusPendingPayment: {OrderStatusPending: true, OrderStatusExpired: true, OrderStatusCancelled: true, OrderStatusFailed: true},
	OrderStatusPending:        {OrderStatusConfirmed: true, OrderStatusFailed: true, OrderStatusCancelled: true},
	OrderStatusConfirmed:      {OrderStatusCompleted: true, OrderStatusCancelled: true},
}

// CanTransition reports whether moving from "from" to "to" is permitted by
// the state machine, or is a no-op replay of an already-applied transition.
func CanTransition(from, to OrderStatus) bool {
	if from == to {
		return true // replay of an already-applied transition is idempotent
	}
	return orderTransitions[from][to]
}

// OrderItem is the product-oriented line-item shape (see SPEC_FULL/§9 design
// note: the package-type-oriented shape some source variants carry is not
// reproduced here since it doesn't match the external HTTP/event payloads).
type OrderItem struct {
	ProductID     int64
	ProductName   string
	UnitPrice     int64
	Quantity      int
	GiftWrap      bool
	GiftWrapPrice int64
	TotalPrice    int64
}

// Order is the order aggregate (§3). UsedCouponIDs is modeled as a set (0..N
// coupons per order) per the design note resolving the UsedCouponId vs
// UsedCouponIds divergence.
type Order struct {
	ID            int64
	OrderNumber   string
	UserID        int64
	Total         int64
	Discount      int64
	FinalAmount   int64
	UsedCouponIDs []int64
	Status        OrderStatus
	Items         []OrderItem
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Validate checks the order's arithmetic invariants (§3).
func (o *Order) Validate() error {
	var itemTotal int64
	for _, item := range o.Items {
		expected := int64(item.Quantity)*item.UnitPrice + item.GiftWrapPrice
		if item.TotalPrice != expected {
			return errInvalidOrder("item totalPrice mismatch for product %d: want %d got %d", item.ProductID, expected, item.TotalPrice)
		}
		itemTotal += item.TotalPrice
	}
	if o.Discount < 0 || o.Discount > o.Total {
		return errInvalidOrder("discount %d must be within [0, total=%d]", o.Discount, o.Total)
	}
	if o.FinalAmount != o.Total-o.Discount {
		return errInvalidOrder("finalAmount mismatch: want %d got %d", o.Total-o.Discount, o.FinalAmount)
	}
	if o.FinalAmount < 0 {
		return errInvalidOrder("finalAmount must be non-negative, got %d", o.FinalAmount)
	}
	return nil
}

func errInvalidOrder(format string, args ...any) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// ValidationError is a lightweight error kept local to model so this package
// does not depend on apperr (apperr depends on nothing; model stays a pure
// data layer). Services translate it into apperr.Error.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }
