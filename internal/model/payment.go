package model

import "time"

// PaymentMethod is how an order's final amount was tendered (§3/§6).
type PaymentMethod string

const (
	PaymentMethodCard         PaymentMethod = "CARD"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodBalance      PaymentMethod = "BALANCE"
	PaymentMethodMixed        PaymentMethod = "MIXED"
)

// PaymentStatus is the lifecycle of a single Payment row (§3).
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "PENDING"
	PaymentStatusProcessing PaymentStatus = "PROCESSING"
	PaymentStatusCompleted  PaymentStatus = "COMPLETED"
	PaymentStatusFailed     PaymentStatus = "FAILED"
	PaymentStatusCancelled  PaymentStatus = "CANCELLED"
)

// Payment is the payment aggregate (§3).
type Payment struct {
	ID            int64
	OrderID       int64
	UserID        int64
	Method        PaymentMethod
	Status        PaymentStatus
	ExternalTxnID string
	Amount        int64
	PointAmount   int64
	GatewayAmount int64
	// BalanceAfter is the user's point balance once this payment's debit
	// settled. It isn't a payments-table column; it's derivable from
	// user_balances at read time, but the saga already has it in hand at
	// the moment of settlement, so it rides along on the in-memory struct
	// for the HTTP response (§6).
	BalanceAfter int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
