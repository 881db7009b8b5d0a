package ports

import (
	"context"
	"encoding/json"

	"github.com/civicgate/payment-orchestrator/internal/domain"
)

// ApplePayStartRequest opens a payment sheet flow
type ApplePayStartRequest struct {
	CustomerID string
	MerchantID string
	Entity     domain.EntityRef
	QuoteID    string

	// Session tokens for the user driving the sheet
	AccessToken  string
	RefreshToken string

	Customer       domain.CustomerInfo
	FraudSessionID string
}

// ApplePayFlowService drives the payment sheet's callback contract as an
// explicit state machine. Each flow accepts exactly one terminal callback
// (authorized, cancel, or error); a flow with no terminal callback inside
// the session timeout fails with a wallet timeout.
type ApplePayFlowService interface {
	// Start opens a flow and returns its id
	Start(ctx context.Context, req *ApplePayStartRequest) (flowID string, err error)

	// ValidateMerchant handles the sheet's onvalidatemerchant callback:
	// refreshes the session if it is missing or expiring, exchanges the
	// validation URL for a merchant session, and returns it verbatim
	ValidateMerchant(ctx context.Context, flowID, validationURL string) (json.RawMessage, error)

	// Authorize handles onpaymentauthorized: submits the wallet token with
	// the pre-validated session token, refreshing and retrying exactly once
	// on a stale token
	Authorize(ctx context.Context, flowID string, token json.RawMessage) (*domain.PaymentResponse, error)

	// Cancel handles oncancel: a clean abort, not an error
	Cancel(ctx context.Context, flowID string) error

	// Fail handles onerror: the flow resolves as a retryable failure
	Fail(ctx context.Context, flowID, reason string) error
}
