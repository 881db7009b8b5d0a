package ports

import (
	"context"

	"github.com/civicgate/payment-orchestrator/internal/domain"
)

// InstrumentService manages a customer's saved payment instruments.
// Instruments are created by the separate vaulting flow; this service only
// loads them and applies default-selection and soft-delete requests.
type InstrumentService interface {
	// List returns the customer's usable instruments, default first
	List(ctx context.Context, merchantID, customerID string) ([]*domain.PaymentInstrument, error)

	// SetDefault makes the instrument the customer's default
	SetDefault(ctx context.Context, merchantID, customerID, instrumentID string) error

	// Disable soft-removes an instrument the customer owns
	Disable(ctx context.Context, merchantID, customerID, instrumentID string) error
}
