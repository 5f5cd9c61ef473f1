package model

// Event payloads are the JSON bodies outbox events carry (§4.4); every
// payload carries orderId plus whatever correlation data its handlers need
// for idempotency lookups.

type OrderCreatedPayload struct {
	OrderID       int64       `json:"orderId"`
	UserID        int64       `json:"userId"`
	FinalAmount   int64       `json:"finalAmount"`
	PointAmount   int64       `json:"pointAmount"`
	GatewayAmount int64       `json:"gatewayAmount"`
	Items         []OrderItem `json:"items"`
	UsedCouponIDs []int64     `json:"usedCouponIds"`
}

type PaymentCompletedPayload struct {
	OrderID   int64 `json:"orderId"`
	UserID    int64 `json:"userId"`
	PaymentID int64 `json:"paymentId"`
}

type PaymentFailedPayload struct {
	OrderID int64  `json:"orderId"`
	UserID  int64  `json:"userId"`
	Reason  string `json:"reason"`
}

type InventoryInsufficientPayload struct {
	OrderID   int64 `json:"orderId"`
	ProductID int64 `json:"productId"`
}

type OrderCancelledPayload struct {
	OrderID int64  `json:"orderId"`
	UserID  int64  `json:"userId"`
	Reason  string `json:"reason"`
}

type OrderConfirmedPayload struct {
	OrderID int64 `json:"orderId"`
	UserID  int64 `json:"userId"`
}

type OrderCompletedPayload struct {
	OrderID int64 `json:"orderId"`
	UserID  int64 `json:"userId"`
}
