package instrument

import (
	"context"

	"go.uber.org/zap"

	"github.com/civicgate/payment-orchestrator/internal/domain"
	domainports "github.com/civicgate/payment-orchestrator/internal/domain/ports"
	"github.com/civicgate/payment-orchestrator/internal/services/ports"
)

// instrumentService implements the InstrumentService port. Instruments are
// vaulted elsewhere; the only mutations allowed here are default selection
// and soft delete, both applied server-side with no optimistic echo.
type instrumentService struct {
	repo   domainports.InstrumentRepository
	logger *zap.Logger
}

func NewInstrumentService(repo domainports.InstrumentRepository, logger *zap.Logger) ports.InstrumentService {
	return &instrumentService{repo: repo, logger: logger}
}

func (s *instrumentService) List(ctx context.Context, merchantID, customerID string) ([]*domain.PaymentInstrument, error) {
	if customerID == "" {
		return nil, domain.ErrCustomerRequired
	}
	return s.repo.ListByCustomer(ctx, merchantID, customerID)
}

func (s *instrumentService) SetDefault(ctx context.Context, merchantID, customerID, instrumentID string) error {
	if err := s.repo.SetDefault(ctx, merchantID, customerID, instrumentID); err != nil {
		return err
	}
	s.logger.Info("set default instrument",
		zap.String("customer_id", customerID),
		zap.String("instrument_id", instrumentID))
	return nil
}

// Disable soft-removes an instrument after verifying the caller owns it
func (s *instrumentService) Disable(ctx context.Context, merchantID, customerID, instrumentID string) error {
	instrument, err := s.repo.GetByID(ctx, instrumentID)
	if err != nil {
		return err
	}
	if instrument.CustomerID != customerID || instrument.MerchantID != merchantID {
		return domain.ErrInstrumentNotFound
	}

	if err := s.repo.Disable(ctx, instrumentID); err != nil {
		return err
	}
	s.logger.Info("disabled instrument",
		zap.String("customer_id", customerID),
		zap.String("instrument_id", instrumentID))
	return nil
}
