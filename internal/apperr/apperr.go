// Package apperr defines the stable error-code taxonomy of the saga: every
// domain service returns one of these instead of an ad-hoc error string, so
// the HTTP layer and the outbox dispatcher can both translate failures
// mechanically (HTTP status, retry-or-not, DLQ-or-not).
package apperr

import "fmt"

// Code is a stable, machine-readable error code (§7 of the design).
type Code string

const (
	CodeInsufficientBalance   Code = "POINT001"
	CodeMaxBalanceExceeded    Code = "POINT002"
	CodeInvalidPointAmount    Code = "POINT003"
	CodeUserPointNotFound     Code = "POINT004"
	CodeMinimumUseAmount      Code = "POINT005"
	CodeAmountMismatch        Code = "PAYMENT001"
	CodePaymentInsufficient   Code = "PAYMENT002"
	CodeGatewayFailed         Code = "PAYMENT003"
	CodeAlreadyPaidOrder      Code = "PAYMENT004"
	CodeDailyLimitExceeded    Code = "PAYMENT005"
	CodeUserNotFound          Code = "USER001"
	CodeOrderNotFound         Code = "ORDER001"
	CodeInvalidOrderStatus    Code = "ORDER002"
	CodeConcurrencyConflict   Code = "ORDER003"
	CodeLockTimeout           Code = "LOCK001"
	CodeAlreadyIssued         Code = "COUPON001"
	CodeCouponExhausted       Code = "COUPON002"
	CodeCouponNotFound        Code = "COUPON003"
	CodeAlreadyProcessed      Code = "OUTBOX001"
	CodeInsufficientStock     Code = "INVENTORY001"
	CodeInventoryNotFound     Code = "INVENTORY002"
)

// httpStatus maps every Code to the HTTP status §6/§7 prescribe.
var httpStatus = map[Code]int{
	CodeInsufficientBalance: 409,
	CodeMaxBalanceExceeded:  400,
	CodeInvalidPointAmount:  400,
	CodeUserPointNotFound:   404,
	CodeMinimumUseAmount:    400,
	CodeAmountMismatch:      400,
	CodePaymentInsufficient: 409,
	CodeGatewayFailed:       402,
	CodeAlreadyPaidOrder:    409,
	CodeDailyLimitExceeded:  429,
	CodeUserNotFound:        404,
	CodeOrderNotFound:       404,
	CodeInvalidOrderStatus:  409,
	CodeConcurrencyConflict: 409,
	CodeLockTimeout:         409,
	CodeAlreadyIssued:       409,
	CodeCouponExhausted:     409,
	CodeCouponNotFound:      404,
	CodeAlreadyProcessed:    409,
	CodeInsufficientStock:   409,
	CodeInventoryNotFound:   404,
}

// Error is a typed domain error carrying a stable code, a human message, and
// an optional machine-readable data payload (e.g. {"currentBalance": 10000}).
type Error struct {
	Code    Code
	Message string
	Data    map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes a wrapped cause, if any, to errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.cause }

// HTTPStatus returns the HTTP status code this error should surface as.
// Unknown codes default to 500.
func (e *Error) HTTPStatus() int {
	if s, ok := httpStatus[e.Code]; ok {
		return s
	}
	return 500
}

// New creates an Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithData attaches a machine-readable data payload and returns the receiver
// for chaining.
func (e *Error) WithData(data map[string]any) *Error {
	e.Data = data
	return e
}

// Wrap attaches an underlying cause and returns the receiver for chaining.
func (e *Error) Wrap(cause error) *Error {
	e.cause = cause
	return e
}

// Is implements errors.Is comparison by code only, so callers can compare a
// freshly constructed sentinel (apperr.New(CodeX, "")) against a wrapped,
// data-carrying instance.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}
