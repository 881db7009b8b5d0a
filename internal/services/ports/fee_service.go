package ports

import (
	"context"

	"github.com/civicgate/payment-orchestrator/internal/domain"
)

// QuoteRequest prices a base amount for a payment selection. Exactly one of
// InstrumentID / Method is set: saved instruments are priced concretely,
// wallet methods generically as card.
type QuoteRequest struct {
	MerchantID      string
	CustomerID      string
	BaseAmountCents int64
	InstrumentID    string
	Method          domain.PaymentMethod
}

// FeeService issues service fee quotes. An issued quote is binding: checkout
// charges the quote's total, never a recomputed value, so the amount the
// user saw is the amount charged.
type FeeService interface {
	// Quote prices the selection and caches the result under the quote id
	Quote(ctx context.Context, req *QuoteRequest) (*domain.ServiceFeeQuote, error)

	// GetQuote returns a previously issued, still-fresh quote
	GetQuote(ctx context.Context, quoteID string) (*domain.ServiceFeeQuote, error)
}
