package model

import "time"

// CouponDiscountType is the discount shape a coupon applies (§3).
type CouponDiscountType string

const (
	CouponDiscountFixed      CouponDiscountType = "FIXED"
	CouponDiscountPercentage CouponDiscountType = "PERCENTAGE"
)

// Coupon is the coupon aggregate. 0 <= IssuedQuantity <= TotalQuantity always
// (§3); Version backs the optimistic update the drain worker uses (§4.9).
type Coupon struct {
	ID              int64
	Code            string
	DiscountType    CouponDiscountType
	DiscountValue   int64
	MinOrderAmount  int64
	TotalQuantity   int
	IssuedQuantity  int
	ValidFrom       time.Time
	ValidTo         time.Time
	Version         int64
}

// Discount computes the discount amount for an order total, bounded to
// [0, total].
func (c *Coupon) Discount(orderTotal int64) int64 {
	if orderTotal < c.MinOrderAmount {
		return 0
	}
	var d int64
	switch c.DiscountType {
	case CouponDiscountFixed:
		d = c.DiscountValue
	case CouponDiscountPercentage:
		d = orderTotal * c.DiscountValue / 100
	}
	if d > orderTotal {
		d = orderTotal
	}
	if d < 0 {
		d = 0
	}
	return d
}

// UserCouponStatus is the lifecycle of a single user's claim on a coupon (§3).
type UserCouponStatus string

const (
	UserCouponIssued  UserCouponStatus = "ISSUED"
	UserCouponUsed    UserCouponStatus = "USED"
	UserCouponExpired UserCouponStatus = "EXPIRED"
)

// UserCoupon is the (userId, couponId) claim row. At most one ISSUED row per
// pair may exist at a time (§3).
type UserCoupon struct {
	ID        int64
	UserID    int64
	CouponID  int64
	Status    UserCouponStatus
	UsedOrder *int64
	CreatedAt time.Time
	UpdatedAt time.Time
}
