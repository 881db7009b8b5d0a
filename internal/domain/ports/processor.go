package ports

import (
	"context"
	"encoding/json"

	"github.com/civicgate/payment-orchestrator/internal/domain"
)

// FeeRequest asks the fee function to price a base amount for a payment
// method. Exactly one of InstrumentID / MethodType is set: wallet payments
// have no concrete instrument and are priced generically by method type.
type FeeRequest struct {
	BaseAmountCents int64
	InstrumentID    *string
	MethodType      *string // "card" for wallet tags
	MerchantID      string
}

// FeeQuoter prices the convenience fee for a payment
type FeeQuoter interface {
	QuoteFee(ctx context.Context, req FeeRequest) (*domain.ServiceFeeQuote, error)
}

// CardPaymentRequest is the card/ACH submission handed to the processor.
// TotalAmountCents always originates from the fee quote captured when the
// payment was triggered; it is never recomputed at submit time.
type CardPaymentRequest struct {
	Entity           domain.EntityRef
	CustomerID       string
	MerchantID       string
	BaseAmountCents  int64
	TotalAmountCents int64
	InstrumentID     string
	PaymentType      domain.PaymentMethod // card or ach
	FraudSessionID   string
	SessionID        string // correlation/idempotency id
	Metadata         map[string]string
}

// CardProcessor submits saved-instrument payments to the processing function
type CardProcessor interface {
	ProcessCard(ctx context.Context, req *CardPaymentRequest) (*domain.PaymentResponse, error)
}

// GooglePayPaymentRequest forwards a wallet token to the Google Pay function
type GooglePayPaymentRequest struct {
	Entity          domain.EntityRef
	CustomerID      string
	MerchantID      string
	BaseAmountCents int64
	Token           string // opaque wallet token
	FraudSessionID  string
	SessionID       string
	Customer        domain.CustomerInfo
}

// GooglePayProcessor submits Google Pay tokens to the processing function
type GooglePayProcessor interface {
	ProcessGooglePay(ctx context.Context, req *GooglePayPaymentRequest) (*domain.PaymentResponse, error)
}

// ApplePaySessionRequest carries the sheet's validation URL to the
// merchant-session function
type ApplePaySessionRequest struct {
	ValidationURL string
	MerchantID    string
	Domain        string
}

// ApplePayPaymentRequest forwards an authorized wallet token. AuthToken is
// the user's pre-validated session token; on a 401 the flow refreshes it
// exactly once and retries exactly once.
type ApplePayPaymentRequest struct {
	Entity           domain.EntityRef
	CustomerID       string
	MerchantID       string
	BaseAmountCents  int64
	TotalAmountCents int64
	Token            json.RawMessage // platform payment token, forwarded opaquely
	AuthToken        string
	FraudSessionID   string
	SessionID        string
}

// ApplePayProcessor drives the backend half of the Apple Pay flow
type ApplePayProcessor interface {
	CreateSession(ctx context.Context, req ApplePaySessionRequest) (json.RawMessage, error)
	ProcessPayment(ctx context.Context, req *ApplePayPaymentRequest) (*domain.PaymentResponse, error)
}

// StatusChecker resolves the settled state of a previously submitted attempt.
// Used by the reconciler to settle unknown outcomes.
type StatusChecker interface {
	CheckStatus(ctx context.Context, sessionID string) (*domain.PaymentResponse, error)
}
