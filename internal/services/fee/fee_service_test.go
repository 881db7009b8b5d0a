package fee

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/civicgate/payment-orchestrator/internal/domain"
	domainports "github.com/civicgate/payment-orchestrator/internal/domain/ports"
	"github.com/civicgate/payment-orchestrator/internal/services/ports"
)

type stubQuoter struct {
	calls atomic.Int32
	delay time.Duration
	err   error
}

func (q *stubQuoter) QuoteFee(ctx context.Context, req domainports.FeeRequest) (*domain.ServiceFeeQuote, error) {
	q.calls.Add(1)
	if q.delay > 0 {
		time.Sleep(q.delay)
	}
	if q.err != nil {
		return nil, q.err
	}
	return &domain.ServiceFeeQuote{
		ID:               domain.NewQuoteID(),
		BaseAmountCents:  req.BaseAmountCents,
		ServiceFeeCents:  300,
		TotalAmountCents: req.BaseAmountCents + 300,
		BasisPoints:      300,
		IsCard:           true,
		InstrumentID:     req.InstrumentID,
		IssuedAt:         time.Now(),
	}, nil
}

type stubInstrumentRepo struct {
	instruments map[string]*domain.PaymentInstrument
}

func (r *stubInstrumentRepo) ListByCustomer(ctx context.Context, merchantID, customerID string) ([]*domain.PaymentInstrument, error) {
	return nil, nil
}

func (r *stubInstrumentRepo) GetByID(ctx context.Context, id string) (*domain.PaymentInstrument, error) {
	if pi, ok := r.instruments[id]; ok {
		return pi, nil
	}
	return nil, domain.ErrInstrumentNotFound
}

func (r *stubInstrumentRepo) SetDefault(ctx context.Context, merchantID, customerID, id string) error {
	return nil
}

func (r *stubInstrumentRepo) Disable(ctx context.Context, id string) error { return nil }

func (r *stubInstrumentRepo) TouchLastUsed(ctx context.Context, id string) error { return nil }

func cardInstrument(id, customerID string) *domain.PaymentInstrument {
	brand := "visa"
	return &domain.PaymentInstrument{
		ID:         id,
		CustomerID: customerID,
		MerchantID: "merch-1",
		Type:       domain.InstrumentTypeCard,
		LastFour:   "4242",
		Brand:      &brand,
		IsEnabled:  true,
		Status:     domain.InstrumentStatusActive,
	}
}

func TestFeeService_Quote_Instrument(t *testing.T) {
	quoter := &stubQuoter{}
	repo := &stubInstrumentRepo{instruments: map[string]*domain.PaymentInstrument{
		"inst-1": cardInstrument("inst-1", "cust-1"),
	}}
	svc := NewFeeService(quoter, repo, 0, zap.NewNop())

	quote, err := svc.Quote(context.Background(), &ports.QuoteRequest{
		MerchantID:      "merch-1",
		CustomerID:      "cust-1",
		BaseAmountCents: 10000,
		InstrumentID:    "inst-1",
	})

	require.NoError(t, err)
	assert.Equal(t, int64(10300), quote.TotalAmountCents)
	assert.Equal(t, domain.PaymentMethodCard, quote.Method)
	assert.Equal(t, "$103.00", quote.DisplayTotal())
}

func TestFeeService_Quote_RejectsForeignInstrument(t *testing.T) {
	quoter := &stubQuoter{}
	repo := &stubInstrumentRepo{instruments: map[string]*domain.PaymentInstrument{
		"inst-1": cardInstrument("inst-1", "someone-else"),
	}}
	svc := NewFeeService(quoter, repo, 0, zap.NewNop())

	_, err := svc.Quote(context.Background(), &ports.QuoteRequest{
		MerchantID:      "merch-1",
		CustomerID:      "cust-1",
		BaseAmountCents: 10000,
		InstrumentID:    "inst-1",
	})

	assert.ErrorIs(t, err, domain.ErrInstrumentNotFound)
	assert.Zero(t, quoter.calls.Load(), "ownership is checked before any pricing call")
}

func TestFeeService_Quote_WalletPricedGenerically(t *testing.T) {
	quoter := &stubQuoter{}
	svc := NewFeeService(quoter, &stubInstrumentRepo{}, 0, zap.NewNop())

	quote, err := svc.Quote(context.Background(), &ports.QuoteRequest{
		MerchantID:      "merch-1",
		CustomerID:      "cust-1",
		BaseAmountCents: 10000,
		Method:          domain.PaymentMethodGooglePay,
	})

	require.NoError(t, err)
	assert.Equal(t, domain.PaymentMethodGooglePay, quote.Method)
	assert.Nil(t, quote.InstrumentID, "wallets have no concrete instrument")
}

func TestFeeService_Quote_Validation(t *testing.T) {
	svc := NewFeeService(&stubQuoter{}, &stubInstrumentRepo{}, 0, zap.NewNop())

	_, err := svc.Quote(context.Background(), &ports.QuoteRequest{
		MerchantID: "merch-1", CustomerID: "cust-1", BaseAmountCents: 0, InstrumentID: "inst-1",
	})
	assert.ErrorIs(t, err, domain.ErrValidationAmountInvalid)

	_, err = svc.Quote(context.Background(), &ports.QuoteRequest{
		MerchantID: "merch-1", CustomerID: "cust-1", BaseAmountCents: 100,
	})
	assert.ErrorIs(t, err, domain.ErrInstrumentRequired)
}

func TestFeeService_Quote_DeduplicatesConcurrentCalls(t *testing.T) {
	quoter := &stubQuoter{delay: 50 * time.Millisecond}
	repo := &stubInstrumentRepo{instruments: map[string]*domain.PaymentInstrument{
		"inst-1": cardInstrument("inst-1", "cust-1"),
	}}
	svc := NewFeeService(quoter, repo, 0, zap.NewNop())

	const callers = 8
	quotes := make([]*domain.ServiceFeeQuote, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			quote, err := svc.Quote(context.Background(), &ports.QuoteRequest{
				MerchantID:      "merch-1",
				CustomerID:      "cust-1",
				BaseAmountCents: 10000,
				InstrumentID:    "inst-1",
			})
			require.NoError(t, err)
			quotes[i] = quote
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), quoter.calls.Load(), "identical concurrent pricing collapses to one call")

	seen := map[string]bool{}
	for _, quote := range quotes {
		assert.False(t, seen[quote.ID], "every caller gets a distinct redeemable quote id")
		seen[quote.ID] = true
		assert.Equal(t, int64(10300), quote.TotalAmountCents)
	}
}

func TestFeeService_GetQuote(t *testing.T) {
	quoter := &stubQuoter{}
	repo := &stubInstrumentRepo{instruments: map[string]*domain.PaymentInstrument{
		"inst-1": cardInstrument("inst-1", "cust-1"),
	}}
	svc := NewFeeService(quoter, repo, 0, zap.NewNop())

	quote, err := svc.Quote(context.Background(), &ports.QuoteRequest{
		MerchantID: "merch-1", CustomerID: "cust-1", BaseAmountCents: 10000, InstrumentID: "inst-1",
	})
	require.NoError(t, err)

	got, err := svc.GetQuote(context.Background(), quote.ID)
	require.NoError(t, err)
	assert.Equal(t, quote.TotalAmountCents, got.TotalAmountCents)

	_, err = svc.GetQuote(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrQuoteNotFound)

	_, err = svc.GetQuote(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrQuoteRequired)
}
