package model

import "time"

// BalanceHistoryType classifies a BalanceHistory row (§3).
type BalanceHistoryType string

const (
	BalanceHistoryEarn   BalanceHistoryType = "EARN"
	BalanceHistoryUse    BalanceHistoryType = "USE"
	BalanceHistoryExpire BalanceHistoryType = "EXPIRE"
	BalanceHistoryRefund BalanceHistoryType = "REFUND"
)

// UserBalance is the per-user point balance singleton (§3). Version backs
// the optimistic-concurrency update in the point engine and payment saga.
type UserBalance struct {
	UserID    int64
	Balance   int64
	Version   int64
	UpdatedAt time.Time
}

// BalanceHistory is an immutable audit row: balance_after must equal
// balance_before + signed amount (§3).
type BalanceHistory struct {
	ID            int64
	UserID        int64
	Amount        int64 // signed: positive for EARN/REFUND, negative for USE/EXPIRE
	Type          BalanceHistoryType
	BalanceBefore int64
	BalanceAfter  int64
	OrderID       *int64
	Description   string
	CreatedAt     time.Time
}
