package checkout

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/civicgate/payment-orchestrator/internal/auth"
	"github.com/civicgate/payment-orchestrator/internal/domain"
	domainports "github.com/civicgate/payment-orchestrator/internal/domain/ports"
	"github.com/civicgate/payment-orchestrator/internal/services/ports"
)

// --- stubs ---

type stubFees struct {
	quotes map[string]*domain.ServiceFeeQuote
}

func (f *stubFees) Quote(ctx context.Context, req *ports.QuoteRequest) (*domain.ServiceFeeQuote, error) {
	return nil, nil
}

func (f *stubFees) GetQuote(ctx context.Context, quoteID string) (*domain.ServiceFeeQuote, error) {
	if quoteID == "" {
		return nil, domain.ErrQuoteRequired
	}
	if q, ok := f.quotes[quoteID]; ok {
		return q, nil
	}
	return nil, domain.ErrQuoteNotFound
}

type stubInstruments struct {
	instruments map[string]*domain.PaymentInstrument
	touched     []string
}

func (r *stubInstruments) ListByCustomer(ctx context.Context, merchantID, customerID string) ([]*domain.PaymentInstrument, error) {
	return nil, nil
}

func (r *stubInstruments) GetByID(ctx context.Context, id string) (*domain.PaymentInstrument, error) {
	if pi, ok := r.instruments[id]; ok {
		return pi, nil
	}
	return nil, domain.ErrInstrumentNotFound
}

func (r *stubInstruments) SetDefault(ctx context.Context, merchantID, customerID, id string) error {
	return nil
}

func (r *stubInstruments) Disable(ctx context.Context, id string) error { return nil }

func (r *stubInstruments) TouchLastUsed(ctx context.Context, id string) error {
	r.touched = append(r.touched, id)
	return nil
}

type stubAttempts struct {
	mu       sync.Mutex
	created  []*domain.PaymentAttempt
	resolved map[string]domain.AttemptStatus
}

func newStubAttempts() *stubAttempts {
	return &stubAttempts{resolved: map[string]domain.AttemptStatus{}}
}

func (r *stubAttempts) Create(ctx context.Context, attempt *domain.PaymentAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *attempt
	r.created = append(r.created, &copied)
	return nil
}

func (r *stubAttempts) Resolve(ctx context.Context, id string, status domain.AttemptStatus, transactionID, failureMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolved[id] = status
	return nil
}

func (r *stubAttempts) GetByID(ctx context.Context, id string) (*domain.PaymentAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.created {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, domain.ErrAttemptNotFound
}

func (r *stubAttempts) GetBySessionID(ctx context.Context, sessionID string) (*domain.PaymentAttempt, error) {
	return nil, domain.ErrAttemptNotFound
}

func (r *stubAttempts) ListUnresolved(ctx context.Context, olderThan time.Time, limit int32) ([]*domain.PaymentAttempt, error) {
	return nil, nil
}

type stubCardProcessor struct {
	requests []*domainports.CardPaymentRequest
	resp     *domain.PaymentResponse
	err      error
}

func (p *stubCardProcessor) ProcessCard(ctx context.Context, req *domainports.CardPaymentRequest) (*domain.PaymentResponse, error) {
	copied := *req
	p.requests = append(p.requests, &copied)
	return p.resp, p.err
}

type stubGooglePay struct {
	requests []*domainports.GooglePayPaymentRequest
	resp     *domain.PaymentResponse
}

func (p *stubGooglePay) ProcessGooglePay(ctx context.Context, req *domainports.GooglePayPaymentRequest) (*domain.PaymentResponse, error) {
	copied := *req
	p.requests = append(p.requests, &copied)
	return p.resp, nil
}

type stubApplePay struct {
	tokensSeen []string
	responses  []applePayResult
}

type applePayResult struct {
	resp *domain.PaymentResponse
	err  error
}

func (p *stubApplePay) CreateSession(ctx context.Context, req domainports.ApplePaySessionRequest) (json.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}

func (p *stubApplePay) ProcessPayment(ctx context.Context, req *domainports.ApplePayPaymentRequest) (*domain.PaymentResponse, error) {
	p.tokensSeen = append(p.tokensSeen, req.AuthToken)
	result := p.responses[0]
	if len(p.responses) > 1 {
		p.responses = p.responses[1:]
	}
	return result.resp, result.err
}

type stubPublisher struct {
	mu     sync.Mutex
	events []domainports.PaymentEvent
}

func (p *stubPublisher) PublishPaymentEvent(ctx context.Context, event domainports.PaymentEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *stubPublisher) Close() error { return nil }

type stubRefresher struct {
	token string
	err   error
	calls int
}

func (r *stubRefresher) RefreshSession(ctx context.Context, refreshToken string) (string, error) {
	r.calls++
	return r.token, r.err
}

// --- fixtures ---

type fixture struct {
	fees        *stubFees
	instruments *stubInstruments
	attempts    *stubAttempts
	cards       *stubCardProcessor
	googlePay   *stubGooglePay
	applePay    *stubApplePay
	events      *stubPublisher
	svc         ports.CheckoutService
}

func cardQuote(id, instrumentID string) *domain.ServiceFeeQuote {
	return &domain.ServiceFeeQuote{
		ID:               id,
		BaseAmountCents:  10000,
		ServiceFeeCents:  300,
		TotalAmountCents: 10300,
		BasisPoints:      300,
		IsCard:           true,
		Method:           domain.PaymentMethodCard,
		InstrumentID:     &instrumentID,
		IssuedAt:         time.Now(),
	}
}

func walletQuote(id string, method domain.PaymentMethod) *domain.ServiceFeeQuote {
	return &domain.ServiceFeeQuote{
		ID:               id,
		BaseAmountCents:  10000,
		ServiceFeeCents:  250,
		TotalAmountCents: 10250,
		Method:           method,
		IssuedAt:         time.Now(),
	}
}

func newFixture() *fixture {
	brand := "visa"
	f := &fixture{
		fees: &stubFees{quotes: map[string]*domain.ServiceFeeQuote{
			"quote-1":    cardQuote("quote-1", "inst-1"),
			"quote-gpay": walletQuote("quote-gpay", domain.PaymentMethodGooglePay),
			"quote-apay": walletQuote("quote-apay", domain.PaymentMethodApplePay),
		}},
		instruments: &stubInstruments{instruments: map[string]*domain.PaymentInstrument{
			"inst-1": {
				ID: "inst-1", CustomerID: "cust-1", MerchantID: "merch-1",
				Type: domain.InstrumentTypeCard, LastFour: "4242", Brand: &brand,
				IsEnabled: true, Status: domain.InstrumentStatusActive,
			},
		}},
		attempts:  newStubAttempts(),
		cards:     &stubCardProcessor{resp: &domain.PaymentResponse{Outcome: domain.OutcomeSucceeded, TransactionID: "txn-1"}},
		googlePay: &stubGooglePay{resp: &domain.PaymentResponse{Outcome: domain.OutcomeSucceeded, TransactionID: "txn-2"}},
		applePay:  &stubApplePay{responses: []applePayResult{{resp: &domain.PaymentResponse{Outcome: domain.OutcomeSucceeded, TransactionID: "txn-3"}}}},
		events:    &stubPublisher{},
	}
	f.svc = NewCheckoutService(f.fees, f.instruments, f.attempts, f.cards, f.googlePay, f.applePay, f.events, 0, zap.NewNop())
	return f
}

func cardPayRequest() *ports.PayRequest {
	return &ports.PayRequest{
		CustomerID:   "cust-1",
		MerchantID:   "merch-1",
		Entity:       domain.EntityRef{Type: domain.EntityTypePermit, ID: "permit-42"},
		Method:       domain.PaymentMethodCard,
		QuoteID:      "quote-1",
		InstrumentID: "inst-1",
	}
}

// --- tests ---

func TestCheckoutService_Pay_Card(t *testing.T) {
	f := newFixture()

	resp, err := f.svc.Pay(context.Background(), cardPayRequest())

	require.NoError(t, err)
	assert.True(t, resp.Succeeded())

	require.Len(t, f.cards.requests, 1)
	sent := f.cards.requests[0]
	assert.Equal(t, int64(10000), sent.BaseAmountCents)
	assert.Equal(t, int64(10300), sent.TotalAmountCents,
		"the charged total always comes from the redeemed quote")
	assert.NotEmpty(t, sent.SessionID)

	require.Len(t, f.attempts.created, 1)
	attempt := f.attempts.created[0]
	assert.Equal(t, sent.SessionID, attempt.SessionID)
	assert.Equal(t, domain.AttemptStatusSucceeded, f.attempts.resolved[attempt.ID])

	assert.Equal(t, []string{"inst-1"}, f.instruments.touched)

	require.Len(t, f.events.events, 1)
	assert.Equal(t, domain.OutcomeSucceeded, f.events.events[0].Outcome)
	assert.Equal(t, "txn-1", f.events.events[0].TransactionID)
}

func TestCheckoutService_Pay_ValidationBeforeAnyNetworkCall(t *testing.T) {
	f := newFixture()

	cases := []struct {
		name string
		req  *ports.PayRequest
		want error
	}{
		{"missing quote", &ports.PayRequest{
			CustomerID: "cust-1", MerchantID: "merch-1",
			Entity: domain.EntityRef{Type: domain.EntityTypePermit, ID: "p"},
			Method: domain.PaymentMethodCard, QuoteID: "nope", InstrumentID: "inst-1",
		}, domain.ErrQuoteNotFound},
		{"no customer", &ports.PayRequest{
			MerchantID: "merch-1",
			Entity:     domain.EntityRef{Type: domain.EntityTypePermit, ID: "p"},
			Method:     domain.PaymentMethodCard, QuoteID: "quote-1", InstrumentID: "inst-1",
		}, domain.ErrCustomerRequired},
		{"bad entity", &ports.PayRequest{
			CustomerID: "cust-1", MerchantID: "merch-1",
			Entity: domain.EntityRef{Type: "parking_ticket", ID: "p"},
			Method: domain.PaymentMethodCard, QuoteID: "quote-1", InstrumentID: "inst-1",
		}, domain.ErrValidationEntityInvalid},
		{"missing instrument", &ports.PayRequest{
			CustomerID: "cust-1", MerchantID: "merch-1",
			Entity: domain.EntityRef{Type: domain.EntityTypePermit, ID: "p"},
			Method: domain.PaymentMethodCard, QuoteID: "quote-1",
		}, domain.ErrInstrumentRequired},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Pay(context.Background(), tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	assert.Empty(t, f.cards.requests, "rejected requests never reach the processor")
	assert.Empty(t, f.attempts.created, "rejected requests are not recorded as attempts")
}

func TestCheckoutService_Pay_QuoteMethodMismatch(t *testing.T) {
	f := newFixture()

	req := cardPayRequest()
	req.QuoteID = "quote-gpay" // quote priced for a wallet, paid as card

	_, err := f.svc.Pay(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrQuoteNotFound)
	assert.Empty(t, f.cards.requests)
}

func TestCheckoutService_Pay_UnknownOutcome(t *testing.T) {
	f := newFixture()
	f.cards.resp = &domain.PaymentResponse{Outcome: domain.OutcomeUnknown, Retryable: true}

	resp, err := f.svc.Pay(context.Background(), cardPayRequest())

	require.NoError(t, err, "an unclear outcome is a result, not an error")
	assert.Equal(t, domain.OutcomeUnknown, resp.Outcome)
	assert.True(t, resp.Retryable)

	require.Len(t, f.attempts.created, 1)
	assert.Equal(t, domain.AttemptStatusUnknown, f.attempts.resolved[f.attempts.created[0].ID])
	assert.Empty(t, f.events.events, "unknown outcomes publish nothing until reconciled")
	assert.Empty(t, f.instruments.touched)
}

func TestCheckoutService_Pay_ProcessorErrorResolvesAttempt(t *testing.T) {
	f := newFixture()
	f.cards.resp = nil
	f.cards.err = domain.ErrProcessorError

	_, err := f.svc.Pay(context.Background(), cardPayRequest())

	assert.ErrorIs(t, err, domain.ErrProcessorError)
	require.Len(t, f.attempts.created, 1)
	assert.Equal(t, domain.AttemptStatusFailed, f.attempts.resolved[f.attempts.created[0].ID])
}

func TestCheckoutService_Pay_GooglePay(t *testing.T) {
	f := newFixture()

	resp, err := f.svc.Pay(context.Background(), &ports.PayRequest{
		CustomerID:     "cust-1",
		MerchantID:     "merch-1",
		Entity:         domain.EntityRef{Type: domain.EntityTypeBusinessLicense, ID: "lic-1"},
		Method:         domain.PaymentMethodGooglePay,
		QuoteID:        "quote-gpay",
		GooglePayToken: "opaque-wallet-token",
		Customer:       domain.CustomerInfo{FirstName: "Pat", LastName: "Jordan", Email: "pat@example.gov"},
	})

	require.NoError(t, err)
	assert.True(t, resp.Succeeded())

	require.Len(t, f.googlePay.requests, 1)
	sent := f.googlePay.requests[0]
	assert.Equal(t, "opaque-wallet-token", sent.Token)
	assert.Equal(t, "pat@example.gov", sent.Customer.Email)
	assert.NotEmpty(t, sent.SessionID)
}

func TestCheckoutService_Pay_ApplePayRefreshesOnceOn401(t *testing.T) {
	f := newFixture()
	f.applePay.responses = []applePayResult{
		{err: domain.ErrAuthExpired},
		{resp: &domain.PaymentResponse{Outcome: domain.OutcomeSucceeded, TransactionID: "txn-3"}},
	}
	refresher := &stubRefresher{token: "fresh-token"}

	resp, err := f.svc.Pay(context.Background(), &ports.PayRequest{
		CustomerID:    "cust-1",
		MerchantID:    "merch-1",
		Entity:        domain.EntityRef{Type: domain.EntityTypeTaxSubmission, ID: "tax-1"},
		Method:        domain.PaymentMethodApplePay,
		QuoteID:       "quote-apay",
		ApplePayToken: json.RawMessage(`{"paymentData":{}}`),
		AuthSession:   auth.NewSession("stale-token", "refresh-1", refresher),
	})

	require.NoError(t, err)
	assert.True(t, resp.Succeeded())
	assert.Equal(t, 1, refresher.calls, "exactly one refresh")
	assert.Equal(t, []string{"stale-token", "fresh-token"}, f.applePay.tokensSeen,
		"exactly one retry, with the refreshed token")
}

func TestCheckoutService_Pay_ApplePayGivesUpAfterSecond401(t *testing.T) {
	f := newFixture()
	f.applePay.responses = []applePayResult{
		{err: domain.ErrAuthExpired},
		{err: domain.ErrAuthExpired},
	}
	refresher := &stubRefresher{token: "fresh-token"}

	_, err := f.svc.Pay(context.Background(), &ports.PayRequest{
		CustomerID:    "cust-1",
		MerchantID:    "merch-1",
		Entity:        domain.EntityRef{Type: domain.EntityTypeTaxSubmission, ID: "tax-1"},
		Method:        domain.PaymentMethodApplePay,
		QuoteID:       "quote-apay",
		ApplePayToken: json.RawMessage(`{"paymentData":{}}`),
		AuthSession:   auth.NewSession("stale-token", "refresh-1", refresher),
	})

	assert.ErrorIs(t, err, domain.ErrAuthExpired)
	assert.Equal(t, 1, refresher.calls, "no second refresh")
	assert.Len(t, f.applePay.tokensSeen, 2, "no second retry")
}

func TestCheckoutService_GetAttempt_OwnershipEnforced(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Pay(context.Background(), cardPayRequest())
	require.NoError(t, err)
	attemptID := f.attempts.created[0].ID

	got, err := f.svc.GetAttempt(context.Background(), "cust-1", attemptID)
	require.NoError(t, err)
	assert.Equal(t, attemptID, got.ID)

	_, err = f.svc.GetAttempt(context.Background(), "cust-2", attemptID)
	assert.ErrorIs(t, err, domain.ErrAttemptNotFound)
}
