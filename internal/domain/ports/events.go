package ports

import (
	"context"
	"time"

	"github.com/civicgate/payment-orchestrator/internal/domain"
)

// PaymentEvent is published after an attempt reaches a known outcome
type PaymentEvent struct {
	AttemptID        string               `json:"attempt_id"`
	SessionID        string               `json:"session_id"`
	EntityType       string               `json:"entity_type"`
	EntityID         string               `json:"entity_id"`
	CustomerID       string               `json:"customer_id"`
	Method           domain.PaymentMethod `json:"method"`
	BaseAmountCents  int64                `json:"base_amount_cents"`
	TotalAmountCents int64                `json:"total_amount_cents"`
	Outcome          domain.Outcome       `json:"outcome"`
	TransactionID    string               `json:"transaction_id,omitempty"`
	FailureMessage   string               `json:"failure_message,omitempty"`
	OccurredAt       time.Time            `json:"occurred_at"`
}

// EventPublisher emits payment lifecycle events to downstream consumers.
// Publishing is best-effort: a broker outage never fails a payment.
type EventPublisher interface {
	PublishPaymentEvent(ctx context.Context, event PaymentEvent) error
	Close() error
}
