package functions

import (
	"context"

	"go.uber.org/zap"

	"github.com/civicgate/payment-orchestrator/internal/domain"
)

const paymentStatusFunction = "get-payment-status"

// StatusAdapter implements ports.StatusChecker. The reconciler uses it to
// settle attempts whose submission ended in an unknown outcome.
type StatusAdapter struct {
	client *Client
	logger *zap.Logger
}

func NewStatusAdapter(client *Client, logger *zap.Logger) *StatusAdapter {
	return &StatusAdapter{client: client, logger: logger}
}

type statusRequest struct {
	SessionUUID string `json:"session_uuid"`
}

// CheckStatus looks up the settled state for a correlation id. Read-only,
// so transport failures are retried. The response goes through the same
// permissive parser as submissions; an attempt can stay unknown across
// multiple sweeps.
func (a *StatusAdapter) CheckStatus(ctx context.Context, sessionID string) (*domain.PaymentResponse, error) {
	body, err := a.client.InvokeIdempotent(ctx, paymentStatusFunction, statusRequest{SessionUUID: sessionID})
	if err != nil {
		return nil, err
	}
	return ParsePaymentResponse(body), nil
}
