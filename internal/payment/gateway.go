package payment

import "context"

// GatewayRequest is the outbound charge request handed to the external
// payment gateway, built from the order's gateway-tendered portion (§4.7).
type GatewayRequest struct {
	OrderID        int64
	UserID         int64
	AmountMinor    int64 // smallest currency unit
	Currency       string
	Description    string
	IdempotencyKey string
}

// GatewayResult is what a successful gateway charge returns.
type GatewayResult struct {
	ExternalTxnID string
	Success       bool
	FailureReason string
}

// Gateway abstracts the external payment processor so the saga coordinator
// can be tested without a live network dependency, and so the compensating
// cancel call (§4.7's step on failures 4-10) has a single seam.
type Gateway interface {
	Charge(ctx context.Context, req GatewayRequest) (GatewayResult, error)
	Cancel(ctx context.Context, externalTxnID string) error
}
