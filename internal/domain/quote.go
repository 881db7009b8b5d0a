package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// NewQuoteID issues a fresh quote identifier
func NewQuoteID() string {
	return uuid.NewString()
}

// ServiceFeeQuote is the backend-priced convenience fee for a base amount and
// payment method. Quotes are ephemeral: recomputed whenever the selection or
// amount changes, never persisted past checkout.
//
// The quote captured at the moment Pay is pressed is binding: the total
// submitted to the processor is this quote's TotalAmountCents, never an
// independently recomputed value. This keeps the displayed amount and the
// charged amount identical under any repricing race.
type ServiceFeeQuote struct {
	ID string `json:"quote_id"` // UUID, issued per quote

	BaseAmountCents  int64 `json:"base_amount_cents"`
	ServiceFeeCents  int64 `json:"service_fee_cents"`
	TotalAmountCents int64 `json:"total_amount_cents"`

	// Pricing inputs echoed back by the fee function
	BasisPoints int64 `json:"basis_points"`
	IsCard      bool  `json:"is_card"`

	// What was priced
	Method       PaymentMethod `json:"method"`
	InstrumentID *string       `json:"payment_instrument_id"`

	IssuedAt time.Time `json:"issued_at"`
}

// DisplayTotal renders the total charge as a dollar string, e.g. "$103.00"
func (q *ServiceFeeQuote) DisplayTotal() string {
	return "$" + centsToDollars(q.TotalAmountCents)
}

// DisplayFee renders the convenience fee as a dollar string
func (q *ServiceFeeQuote) DisplayFee() string {
	return "$" + centsToDollars(q.ServiceFeeCents)
}

func centsToDollars(cents int64) string {
	return decimal.NewFromInt(cents).Div(decimal.NewFromInt(100)).StringFixed(2)
}
