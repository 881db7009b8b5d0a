package domain

import (
	"time"
)

// AttemptStatus is the persisted lifecycle state of a payment attempt
type AttemptStatus string

const (
	AttemptStatusPending   AttemptStatus = "pending"
	AttemptStatusSucceeded AttemptStatus = "succeeded"
	AttemptStatusFailed    AttemptStatus = "failed"
	AttemptStatusUnknown   AttemptStatus = "unknown"
)

// StatusForOutcome maps a submission outcome to the persisted attempt status
func StatusForOutcome(o Outcome) AttemptStatus {
	switch o {
	case OutcomeSucceeded:
		return AttemptStatusSucceeded
	case OutcomeFailed:
		return AttemptStatusFailed
	default:
		return AttemptStatusUnknown
	}
}

// PaymentAttempt is the durable record of one checkout submission. The
// session id doubles as the idempotency key sent to the processor; attempts
// whose outcome came back unclear stay in status unknown until the
// reconciler settles them.
type PaymentAttempt struct {
	ID        string `json:"id"`         // UUID
	SessionID string `json:"session_id"` // correlation/idempotency id

	CustomerID string    `json:"customer_id"`
	MerchantID string    `json:"merchant_id"`
	Entity     EntityRef `json:"entity"`

	Method       PaymentMethod `json:"method"`
	InstrumentID *string       `json:"payment_instrument_id"`

	BaseAmountCents  int64 `json:"base_amount_cents"`
	TotalAmountCents int64 `json:"total_amount_cents"`

	Status         AttemptStatus `json:"status"`
	TransactionID  string        `json:"transaction_id,omitempty"`
	FailureMessage string        `json:"failure_message,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// IsResolved reports whether the attempt reached a terminal status
func (a *PaymentAttempt) IsResolved() bool {
	return a.Status == AttemptStatusSucceeded || a.Status == AttemptStatusFailed
}
