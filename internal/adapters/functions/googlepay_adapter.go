package functions

import (
	"context"

	"go.uber.org/zap"

	"github.com/civicgate/payment-orchestrator/internal/domain"
	"github.com/civicgate/payment-orchestrator/internal/domain/ports"
)

const googlePayFunction = "process-unified-google-pay"

// GooglePayAdapter implements ports.GooglePayProcessor against the
// process-unified-google-pay function
type GooglePayAdapter struct {
	client *Client
	logger *zap.Logger
}

func NewGooglePayAdapter(client *Client, logger *zap.Logger) *GooglePayAdapter {
	return &GooglePayAdapter{client: client, logger: logger}
}

// Field names are the wire contract; do not rename.
type googlePayRequest struct {
	EntityType      string `json:"entity_type"`
	EntityID        string `json:"entity_id"`
	CustomerID      string `json:"customer_id"`
	MerchantID      string `json:"merchant_id"`
	BaseAmountCents int64  `json:"base_amount_cents"`
	GooglePayToken  string `json:"google_pay_token"`
	FraudSessionID  string `json:"fraud_session_id"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	UserEmail       string `json:"user_email"`
	SessionUUID     string `json:"session_uuid"`
}

// ProcessGooglePay forwards the wallet token. Single attempt, same as card:
// a lost response does not mean a lost charge.
func (a *GooglePayAdapter) ProcessGooglePay(ctx context.Context, req *ports.GooglePayPaymentRequest) (*domain.PaymentResponse, error) {
	body, err := a.client.Invoke(ctx, googlePayFunction, googlePayRequest{
		EntityType:      string(req.Entity.Type),
		EntityID:        req.Entity.ID,
		CustomerID:      req.CustomerID,
		MerchantID:      req.MerchantID,
		BaseAmountCents: req.BaseAmountCents,
		GooglePayToken:  req.Token,
		FraudSessionID:  req.FraudSessionID,
		FirstName:       req.Customer.FirstName,
		LastName:        req.Customer.LastName,
		UserEmail:       req.Customer.Email,
		SessionUUID:     req.SessionID,
	})
	if err != nil {
		return nil, err
	}

	resp := ParsePaymentResponse(body)
	if resp.Outcome == domain.OutcomeUnknown {
		a.logger.Warn("google pay function returned an unrecognizable response",
			zap.String("session_uuid", req.SessionID),
			zap.Int("body_bytes", len(body)))
	}
	return resp, nil
}
