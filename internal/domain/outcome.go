package domain

// Outcome is the three-valued result of a payment submission. Unknown is a
// first-class outcome, not an error: the processor's response did not say
// whether money moved, so the attempt must be reconciled later rather than
// retried blindly or reported as failed.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeUnknown   Outcome = "unknown"
)

// IsTerminal reports whether the outcome needs no further reconciliation
func (o Outcome) IsTerminal() bool {
	return o == OutcomeSucceeded || o == OutcomeFailed
}

// PaymentResponse is the normalized result handed back to callers. It is
// constructed from a deliberately permissive reading of the processor's JSON
// because the processor's response shape has drifted across service versions.
type PaymentResponse struct {
	Outcome       Outcome `json:"outcome"`
	TransactionID string  `json:"transaction_id,omitempty"`
	PaymentID     string  `json:"payment_id,omitempty"`
	Status        string  `json:"status,omitempty"`
	ErrorMessage  string  `json:"error,omitempty"`
	Retryable     bool    `json:"retryable"`
}

// Succeeded reports whether the payment definitively went through
func (r *PaymentResponse) Succeeded() bool {
	return r.Outcome == OutcomeSucceeded
}
