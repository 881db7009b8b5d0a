package fee

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/civicgate/payment-orchestrator/internal/domain"
	domainports "github.com/civicgate/payment-orchestrator/internal/domain/ports"
	"github.com/civicgate/payment-orchestrator/internal/services/ports"
)

const (
	defaultQuoteTTL     = 10 * time.Minute
	defaultMaxQuotes    = 10000
	genericCardPriceTag = "card"
)

// feeService implements the FeeService port
type feeService struct {
	quoter      domainports.FeeQuoter
	instruments domainports.InstrumentRepository
	cache       *quoteCache
	group       singleflight.Group
	logger      *zap.Logger
}

// NewFeeService creates a fee service backed by the fee function. Identical
// concurrent pricing requests are collapsed into one function call. Quotes
// are held for quoteTTL; zero selects the default.
func NewFeeService(
	quoter domainports.FeeQuoter,
	instruments domainports.InstrumentRepository,
	quoteTTL time.Duration,
	logger *zap.Logger,
) ports.FeeService {
	if quoteTTL <= 0 {
		quoteTTL = defaultQuoteTTL
	}
	return &feeService{
		quoter:      quoter,
		instruments: instruments,
		cache:       newQuoteCache(quoteTTL, defaultMaxQuotes, logger),
		logger:      logger,
	}
}

// Quote prices the selection. The selection repricing is reactive on the
// portal side (any change to amount or instrument re-quotes), so rapid
// duplicate requests are common and are deduplicated with singleflight.
func (s *feeService) Quote(ctx context.Context, req *ports.QuoteRequest) (*domain.ServiceFeeQuote, error) {
	if req.BaseAmountCents <= 0 {
		return nil, domain.ErrValidationAmountInvalid
	}
	if req.InstrumentID == "" && !req.Method.IsWallet() {
		return nil, domain.ErrInstrumentRequired
	}

	feeReq, method, err := s.buildFeeRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	// Dedup key covers everything that affects the price, not the customer:
	// two customers pricing the same selection can share one function call
	key := fmt.Sprintf("%s|%d|%s|%s", req.MerchantID, req.BaseAmountCents, req.InstrumentID, method)

	v, err, shared := s.group.Do(key, func() (any, error) {
		return s.quoter.QuoteFee(ctx, *feeReq)
	})
	if err != nil {
		return nil, err
	}

	// Shared results are cloned so each caller gets a distinct quote id:
	// two checkouts must never reference the same quote, even though a
	// single checkout may re-read its own quote across retries
	quote := v.(*domain.ServiceFeeQuote)
	if shared {
		quote = cloneQuote(quote)
	}
	quote.Method = method

	s.cache.put(quote)

	s.logger.Info("issued fee quote",
		zap.String("quote_id", quote.ID),
		zap.String("method", string(method)),
		zap.Int64("base_amount_cents", quote.BaseAmountCents),
		zap.Int64("total_amount_cents", quote.TotalAmountCents))

	return quote, nil
}

// GetQuote redeems a previously issued quote
func (s *feeService) GetQuote(ctx context.Context, quoteID string) (*domain.ServiceFeeQuote, error) {
	if quoteID == "" {
		return nil, domain.ErrQuoteRequired
	}
	quote, ok := s.cache.get(quoteID)
	if !ok {
		return nil, domain.ErrQuoteNotFound
	}
	return quote, nil
}

// buildFeeRequest resolves the selection into the fee function's inputs.
// Wallet methods carry no stored instrument and are priced as a generic
// card; saved instruments are passed through so the function can
// distinguish card and ACH pricing.
func (s *feeService) buildFeeRequest(ctx context.Context, req *ports.QuoteRequest) (*domainports.FeeRequest, domain.PaymentMethod, error) {
	if req.Method.IsWallet() {
		methodType := genericCardPriceTag
		return &domainports.FeeRequest{
			BaseAmountCents: req.BaseAmountCents,
			MethodType:      &methodType,
			MerchantID:      req.MerchantID,
		}, req.Method, nil
	}

	instrument, err := s.instruments.GetByID(ctx, req.InstrumentID)
	if err != nil {
		return nil, "", err
	}
	if instrument.CustomerID != req.CustomerID || instrument.MerchantID != req.MerchantID {
		return nil, "", domain.ErrInstrumentNotFound
	}
	if !instrument.CanBeCharged() {
		return nil, "", domain.ErrInstrumentDisabled
	}

	instrumentID := instrument.ID
	return &domainports.FeeRequest{
		BaseAmountCents: req.BaseAmountCents,
		InstrumentID:    &instrumentID,
		MerchantID:      req.MerchantID,
	}, domain.MethodForInstrument(instrument), nil
}

func cloneQuote(quote *domain.ServiceFeeQuote) *domain.ServiceFeeQuote {
	clone := *quote
	clone.ID = domain.NewQuoteID()
	return &clone
}
