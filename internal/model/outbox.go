package model

import "time"

// EventType names every message that flows through the outbox (§4.4).
type EventType string

const (
	EventOrderCreated          EventType = "OrderCreated"
	EventPaymentCompleted      EventType = "PaymentCompleted"
	EventPaymentFailed         EventType = "PaymentFailed"
	EventInventoryInsufficient EventType = "InventoryInsufficient"
	EventOrderCancelled        EventType = "OrderCancelled"
	EventOrderConfirmed        EventType = "OrderConfirmed"
	EventStockDeducted         EventType = "StockDeducted"
	EventCouponUsed            EventType = "CouponUsed"
	EventCouponRestored        EventType = "CouponRestored"
)

// AggregateType names the aggregate an outbox row belongs to.
type AggregateType string

const (
	AggregateOrder     AggregateType = "ORDER"
	AggregatePayment   AggregateType = "PAYMENT"
	AggregateInventory AggregateType = "INVENTORY"
	AggregateCoupon    AggregateType = "COUPON"
)

// OutboxEvent is a durable, co-written-with-the-aggregate event row (§3/§4.1).
// retryCount <= MaxRetry always; once Processed, never mutated except by
// cleanup.
type OutboxEvent struct {
	ID            int64
	EventType     EventType
	AggregateType AggregateType
	AggregateID   string
	Payload       []byte // JSON
	Processed     bool
	ProcessedAt   *time.Time
	RetryCount    int
	ErrorMessage  string
	CreatedAt     time.Time
}

// OutboxEventDLQ is a dead-lettered snapshot of an event that exhausted its
// retry budget or had no registered handler (§3/§4.2).
type OutboxEventDLQ struct {
	ID              int64
	OriginalEventID int64
	EventType       EventType
	AggregateType   AggregateType
	AggregateID     string
	Payload         []byte
	FailedAt        time.Time
	ErrorMessage    string
	Resolved        bool
	ResolutionNote  string
}

// HandledEvent backs the dedup-table idempotency strategy of §4.6 for
// handlers without a natural-uniqueness or current-state check.
type HandledEvent struct {
	EventType   EventType
	AggregateID string
	EventID     int64
	HandledAt   time.Time
}
