package coupon

import (
	"errors"

	"github.com/shopsaga/order-core/internal/apperr"
)

// ErrVersionConflict mirrors point.ErrVersionConflict for the coupon
// aggregate's optimistic update.
var ErrVersionConflict = errors.New("coupon: version conflict")

func apperrCouponNotFound(couponID int64) error {
	return apperr.Newf(apperr.CodeCouponNotFound, "coupon %d not found", couponID)
}
