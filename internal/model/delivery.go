package model

// DeliveryStatus is the lifecycle of a Delivery row (SPEC_FULL §3.1).
type DeliveryStatus string

const (
	DeliveryStatusPreparing DeliveryStatus = "PREPARING"
	DeliveryStatusShipped   DeliveryStatus = "SHIPPED"
	DeliveryStatusDelivered DeliveryStatus = "DELIVERED"
)

// Delivery is created idempotently on PaymentCompleted (SPEC_FULL §3.1).
type Delivery struct {
	ID             int64
	OrderID        int64
	Address        string
	Status         DeliveryStatus
	TrackingNumber string
}

// CartItem is a single line of a user's shopping cart.
type CartItem struct {
	ProductID int64
	Quantity  int
}

// Cart is cleared idempotently on PaymentCompleted (SPEC_FULL §3.1).
type Cart struct {
	UserID int64
	Items  []CartItem
}
