package functions

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/civicgate/payment-orchestrator/internal/domain"
	"github.com/civicgate/payment-orchestrator/internal/domain/ports"
)

const (
	applePaySessionFunction = "create-apple-pay-session"
	applePayPaymentFunction = "process-apple-pay-payment"
)

// ApplePayAdapter implements ports.ApplePayProcessor against the
// create-apple-pay-session and process-apple-pay-payment functions
type ApplePayAdapter struct {
	client *Client
	logger *zap.Logger
}

func NewApplePayAdapter(client *Client, logger *zap.Logger) *ApplePayAdapter {
	return &ApplePayAdapter{client: client, logger: logger}
}

type applePaySessionRequest struct {
	ValidationURL string `json:"validation_url"`
	MerchantID    string `json:"merchant_id"`
	Domain        string `json:"domain"`
}

type applePayPaymentRequest struct {
	EntityType       string          `json:"entity_type"`
	EntityID         string          `json:"entity_id"`
	CustomerID       string          `json:"customer_id"`
	MerchantID       string          `json:"merchant_id"`
	BaseAmountCents  int64           `json:"base_amount_cents"`
	TotalAmountCents int64           `json:"total_amount_cents"`
	ApplePayToken    json.RawMessage `json:"apple_pay_token"`
	FraudSessionID   string          `json:"fraud_session_id"`
	SessionUUID      string          `json:"session_uuid"`
}

// CreateSession exchanges the payment sheet's validation URL for a merchant
// session object. The session object is opaque: it is handed back to the
// sheet exactly as received.
func (a *ApplePayAdapter) CreateSession(ctx context.Context, req ports.ApplePaySessionRequest) (json.RawMessage, error) {
	body, err := a.client.InvokeIdempotent(ctx, applePaySessionFunction, applePaySessionRequest{
		ValidationURL: req.ValidationURL,
		MerchantID:    req.MerchantID,
		Domain:        req.Domain,
	})
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) || len(body) == 0 {
		return nil, domain.NewDomainError(domain.ErrorCodeWalletFailed, "merchant validation returned an invalid session")
	}
	return json.RawMessage(body), nil
}

// ProcessPayment forwards the authorized wallet token using the caller's
// session token. A stale token surfaces as domain.ErrAuthExpired; the flow
// layer owns the refresh-and-retry policy, not this adapter.
func (a *ApplePayAdapter) ProcessPayment(ctx context.Context, req *ports.ApplePayPaymentRequest) (*domain.PaymentResponse, error) {
	body, err := a.client.Invoke(ctx, applePayPaymentFunction, applePayPaymentRequest{
		EntityType:       string(req.Entity.Type),
		EntityID:         req.Entity.ID,
		CustomerID:       req.CustomerID,
		MerchantID:       req.MerchantID,
		BaseAmountCents:  req.BaseAmountCents,
		TotalAmountCents: req.TotalAmountCents,
		ApplePayToken:    req.Token,
		FraudSessionID:   req.FraudSessionID,
		SessionUUID:      req.SessionID,
	}, WithAuthToken(req.AuthToken))
	if err != nil {
		return nil, err
	}

	resp := ParsePaymentResponse(body)
	if resp.Outcome == domain.OutcomeUnknown {
		a.logger.Warn("apple pay function returned an unrecognizable response",
			zap.String("session_uuid", req.SessionID),
			zap.Int("body_bytes", len(body)))
	}
	return resp, nil
}
