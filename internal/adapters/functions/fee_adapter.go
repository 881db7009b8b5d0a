package functions

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/civicgate/payment-orchestrator/internal/domain"
	"github.com/civicgate/payment-orchestrator/internal/domain/ports"
)

const feeFunction = "calculate-service-fee"

// FeeAdapter implements ports.FeeQuoter against the calculate-service-fee
// function
type FeeAdapter struct {
	client *Client
	logger *zap.Logger
}

func NewFeeAdapter(client *Client, logger *zap.Logger) *FeeAdapter {
	return &FeeAdapter{client: client, logger: logger}
}

// Field names are the wire contract; do not rename.
type feeRequest struct {
	BaseAmountCents     int64   `json:"baseAmountCents"`
	PaymentInstrumentID *string `json:"paymentInstrumentId"`
	PaymentMethodType   *string `json:"paymentMethodType"`
	MerchantID          string  `json:"merchantId"`
}

type feeResponse struct {
	ServiceFee  int64 `json:"serviceFee"`
	TotalAmount int64 `json:"totalAmount"`
	BasisPoints int64 `json:"basisPoints"`
	IsCard      bool  `json:"isCard"`
}

// QuoteFee prices the convenience fee for the given base amount and method.
// Quote calls are read-only, so transport failures are retried.
func (a *FeeAdapter) QuoteFee(ctx context.Context, req ports.FeeRequest) (*domain.ServiceFeeQuote, error) {
	body, err := a.client.InvokeIdempotent(ctx, feeFunction, feeRequest{
		BaseAmountCents:     req.BaseAmountCents,
		PaymentInstrumentID: req.InstrumentID,
		PaymentMethodType:   req.MethodType,
		MerchantID:          req.MerchantID,
	})
	if err != nil {
		return nil, err
	}

	var resp feeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, domain.WrapError(domain.ErrorCodeProcessorError, "unreadable fee response", err)
	}

	if resp.TotalAmount < req.BaseAmountCents {
		a.logger.Warn("fee function returned total below base amount",
			zap.Int64("base_amount_cents", req.BaseAmountCents),
			zap.Int64("total_amount", resp.TotalAmount))
		return nil, domain.NewDomainError(domain.ErrorCodeProcessorError, "fee quote is inconsistent")
	}

	return &domain.ServiceFeeQuote{
		ID:               uuid.NewString(),
		BaseAmountCents:  req.BaseAmountCents,
		ServiceFeeCents:  resp.ServiceFee,
		TotalAmountCents: resp.TotalAmount,
		BasisPoints:      resp.BasisPoints,
		IsCard:           resp.IsCard,
		InstrumentID:     req.InstrumentID,
		IssuedAt:         time.Now(),
	}, nil
}
