package functions

import (
	"context"

	"go.uber.org/zap"

	"github.com/civicgate/payment-orchestrator/internal/domain"
	"github.com/civicgate/payment-orchestrator/internal/domain/ports"
)

const unifiedPaymentFunction = "process-unified-payment"

// CardAdapter implements ports.CardProcessor against the
// process-unified-payment function. It covers both card and ACH charges on
// saved instruments; the function distinguishes them by payment_type.
type CardAdapter struct {
	client *Client
	logger *zap.Logger
}

func NewCardAdapter(client *Client, logger *zap.Logger) *CardAdapter {
	return &CardAdapter{client: client, logger: logger}
}

// Field names are the wire contract; do not rename.
type unifiedPaymentRequest struct {
	EntityType          string            `json:"entity_type"`
	EntityID            string            `json:"entity_id"`
	CustomerID          string            `json:"customer_id"`
	MerchantID          string            `json:"merchant_id"`
	BaseAmountCents     int64             `json:"base_amount_cents"`
	TotalAmountCents    int64             `json:"total_amount_cents"`
	PaymentInstrumentID string            `json:"payment_instrument_id"`
	PaymentType         string            `json:"payment_type"`
	FraudSessionID      string            `json:"fraud_session_id"`
	SessionUUID         string            `json:"session_uuid"`
	IdempotencyMetadata map[string]string `json:"idempotency_metadata"`
}

// ProcessCard submits the charge. Exactly one attempt: the function may have
// received the request even when the response is lost, so transport errors
// surface to the caller instead of being retried, and an unreadable body
// comes back as an unknown outcome rather than an error.
func (a *CardAdapter) ProcessCard(ctx context.Context, req *ports.CardPaymentRequest) (*domain.PaymentResponse, error) {
	body, err := a.client.Invoke(ctx, unifiedPaymentFunction, unifiedPaymentRequest{
		EntityType:          string(req.Entity.Type),
		EntityID:            req.Entity.ID,
		CustomerID:          req.CustomerID,
		MerchantID:          req.MerchantID,
		BaseAmountCents:     req.BaseAmountCents,
		TotalAmountCents:    req.TotalAmountCents,
		PaymentInstrumentID: req.InstrumentID,
		PaymentType:         string(req.PaymentType),
		FraudSessionID:      req.FraudSessionID,
		SessionUUID:         req.SessionID,
		IdempotencyMetadata: req.Metadata,
	})
	if err != nil {
		return nil, err
	}

	resp := ParsePaymentResponse(body)
	if resp.Outcome == domain.OutcomeUnknown {
		a.logger.Warn("unified payment returned an unrecognizable response",
			zap.String("session_uuid", req.SessionID),
			zap.Int("body_bytes", len(body)))
	}
	return resp, nil
}
