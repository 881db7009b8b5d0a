package ports

import (
	"context"
	"encoding/json"

	"github.com/civicgate/payment-orchestrator/internal/auth"
	"github.com/civicgate/payment-orchestrator/internal/domain"
)

// PayRequest is one press of the Pay button
type PayRequest struct {
	CustomerID string
	MerchantID string
	Entity     domain.EntityRef
	Method     domain.PaymentMethod

	// QuoteID references the fee quote shown to the user; its total is
	// what gets charged
	QuoteID string

	// InstrumentID is required for card/ach
	InstrumentID string

	// Wallet tokens, one per wallet path
	GooglePayToken string
	ApplePayToken  json.RawMessage

	// AuthSession carries the user's tokens for paths that call functions
	// on the user's behalf (Apple Pay)
	AuthSession *auth.Session

	Customer       domain.CustomerInfo
	FraudSessionID string
	Metadata       map[string]string
}

// CheckoutService coordinates payment submission. Per (customer, entity)
// checkout it guarantees at most one in-flight submission, a minimum
// cooldown between attempts, and a correlation id that is stable across
// retries of the same attempt.
type CheckoutService interface {
	Pay(ctx context.Context, req *PayRequest) (*domain.PaymentResponse, error)

	// GetAttempt returns a ledger entry for status polling
	GetAttempt(ctx context.Context, customerID, attemptID string) (*domain.PaymentAttempt, error)
}
