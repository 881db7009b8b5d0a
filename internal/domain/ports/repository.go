package ports

import (
	"context"
	"time"

	"github.com/civicgate/payment-orchestrator/internal/domain"
)

// InstrumentRepository persists saved payment instruments
type InstrumentRepository interface {
	// ListByCustomer returns all instruments for a customer, default first
	ListByCustomer(ctx context.Context, merchantID, customerID string) ([]*domain.PaymentInstrument, error)

	// GetByID returns a single instrument or domain.ErrInstrumentNotFound
	GetByID(ctx context.Context, id string) (*domain.PaymentInstrument, error)

	// SetDefault marks the instrument as the customer's default and clears
	// the flag on every other instrument of the same customer atomically
	SetDefault(ctx context.Context, merchantID, customerID, id string) error

	// Disable soft-removes an instrument
	Disable(ctx context.Context, id string) error

	// TouchLastUsed stamps last_used_at after a successful charge
	TouchLastUsed(ctx context.Context, id string) error
}

// AttemptRepository persists the payment attempt ledger
type AttemptRepository interface {
	Create(ctx context.Context, attempt *domain.PaymentAttempt) error

	// Resolve transitions an attempt to a terminal-or-unknown status
	Resolve(ctx context.Context, id string, status domain.AttemptStatus, transactionID, failureMessage string) error

	GetByID(ctx context.Context, id string) (*domain.PaymentAttempt, error)

	GetBySessionID(ctx context.Context, sessionID string) (*domain.PaymentAttempt, error)

	// ListUnresolved returns pending/unknown attempts created before the
	// cutoff, oldest first, for the reconciliation sweep
	ListUnresolved(ctx context.Context, olderThan time.Time, limit int32) ([]*domain.PaymentAttempt, error)
}
