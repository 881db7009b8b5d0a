package applepay

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/civicgate/payment-orchestrator/internal/auth"
	"github.com/civicgate/payment-orchestrator/internal/domain"
	domainports "github.com/civicgate/payment-orchestrator/internal/domain/ports"
	"github.com/civicgate/payment-orchestrator/internal/services/ports"
)

// DefaultSessionTimeout bounds how long a payment sheet may stay open. A
// flow that receives no terminal callback before the deadline is failed
// with a wallet timeout so it cannot hold its resources forever.
const DefaultSessionTimeout = 5 * time.Minute

var (
	flowsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "applepay_flows_active",
		Help: "Payment sheet flows currently open",
	})

	flowOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "applepay_flow_outcomes_total",
		Help: "Terminal payment sheet flow outcomes",
	}, []string{"outcome"})
)

type flowState string

const (
	stateStarted            flowState = "started"
	stateValidatingMerchant flowState = "validating_merchant"
	stateAwaitingAuth       flowState = "awaiting_authorization"
	stateProcessing         flowState = "processing_payment"
	stateCompleted          flowState = "completed"
	stateCancelled          flowState = "cancelled"
	stateFailed             flowState = "failed"
)

func (s flowState) terminal() bool {
	return s == stateCompleted || s == stateCancelled || s == stateFailed
}

// flow is one open payment sheet. The per-flow mutex serializes the sheet's
// callbacks against each other and against the timeout.
type flow struct {
	id      string
	req     ports.ApplePayStartRequest
	session *auth.Session
	timer   *time.Timer

	mu    sync.Mutex
	state flowState
}

type flowService struct {
	fees      ports.FeeService
	checkout  ports.CheckoutService
	wallet    domainports.ApplePayProcessor
	refresher domainports.TokenRefresher

	// webDomain is the portal domain registered with the wallet for
	// merchant validation
	webDomain      string
	sessionTimeout time.Duration
	logger         *zap.Logger

	mu    sync.Mutex
	flows map[string]*flow
}

// NewFlowService drives the payment sheet callback contract as an explicit
// state machine. Each flow accepts exactly one terminal callback; Cancel is
// a clean abort while Fail and the session timeout resolve as retryable
// failures.
func NewFlowService(
	fees ports.FeeService,
	checkout ports.CheckoutService,
	wallet domainports.ApplePayProcessor,
	refresher domainports.TokenRefresher,
	webDomain string,
	logger *zap.Logger,
) ports.ApplePayFlowService {
	return &flowService{
		fees:           fees,
		checkout:       checkout,
		wallet:         wallet,
		refresher:      refresher,
		webDomain:      webDomain,
		sessionTimeout: DefaultSessionTimeout,
		logger:         logger,
		flows:          make(map[string]*flow),
	}
}

func (s *flowService) Start(ctx context.Context, req *ports.ApplePayStartRequest) (string, error) {
	if req.CustomerID == "" {
		return "", domain.ErrCustomerRequired
	}
	if !req.Entity.Type.IsValid() || req.Entity.ID == "" {
		return "", domain.ErrValidationEntityInvalid
	}
	if req.AccessToken == "" || req.RefreshToken == "" {
		return "", domain.ErrAuthMissing
	}
	// The quote must exist before the sheet opens; Pay re-validates it at
	// authorization time
	if _, err := s.fees.GetQuote(ctx, req.QuoteID); err != nil {
		return "", err
	}

	f := &flow{
		id:      uuid.NewString(),
		req:     *req,
		session: auth.NewSession(req.AccessToken, req.RefreshToken, s.refresher),
		state:   stateStarted,
	}
	f.timer = time.AfterFunc(s.sessionTimeout, func() { s.expire(f.id) })

	s.mu.Lock()
	s.flows[f.id] = f
	s.mu.Unlock()
	flowsActive.Inc()

	s.logger.Info("payment sheet flow opened",
		zap.String("flow_id", f.id),
		zap.String("entity_type", string(req.Entity.Type)),
		zap.String("entity_id", req.Entity.ID))
	return f.id, nil
}

// ValidateMerchant exchanges the sheet's validation URL for a merchant
// session. The access token is refreshed first if it is missing or expiring,
// so the processing call that follows will not race token expiry. A failed
// validation returns the flow to its starting state; the sheet may retry.
func (s *flowService) ValidateMerchant(ctx context.Context, flowID, validationURL string) (json.RawMessage, error) {
	f, err := s.get(flowID)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != stateStarted {
		return nil, unexpectedCallback(f.state, "onvalidatemerchant")
	}
	f.state = stateValidatingMerchant

	if _, err := f.session.EnsureFresh(ctx); err != nil {
		f.state = stateStarted
		return nil, err
	}

	merchantSession, err := s.wallet.CreateSession(ctx, domainports.ApplePaySessionRequest{
		ValidationURL: validationURL,
		MerchantID:    f.req.MerchantID,
		Domain:        s.webDomain,
	})
	if err != nil {
		f.state = stateStarted
		return nil, err
	}

	f.state = stateAwaitingAuth
	return merchantSession, nil
}

// Authorize is the flow's terminal success callback. The payment submission
// itself runs under the checkout coordinator, which owns the single-flight
// guard and the one refresh-and-retry on a stale token.
func (s *flowService) Authorize(ctx context.Context, flowID string, token json.RawMessage) (*domain.PaymentResponse, error) {
	f, err := s.get(flowID)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != stateAwaitingAuth {
		return nil, unexpectedCallback(f.state, "onpaymentauthorized")
	}
	f.state = stateProcessing

	resp, err := s.checkout.Pay(ctx, &ports.PayRequest{
		CustomerID:     f.req.CustomerID,
		MerchantID:     f.req.MerchantID,
		Entity:         f.req.Entity,
		Method:         domain.PaymentMethodApplePay,
		QuoteID:        f.req.QuoteID,
		ApplePayToken:  token,
		AuthSession:    f.session,
		Customer:       f.req.Customer,
		FraudSessionID: f.req.FraudSessionID,
	})
	if err != nil {
		s.finish(f, stateFailed, "failed")
		return nil, err
	}

	if resp.Succeeded() {
		s.finish(f, stateCompleted, "completed")
	} else {
		// Unknown outcomes also close the sheet; reconciliation settles
		// the attempt later
		s.finish(f, stateFailed, "failed")
	}
	return resp, nil
}

// Cancel is the sheet's oncancel callback: the user dismissed the sheet.
// This is a clean abort, not an error.
func (s *flowService) Cancel(ctx context.Context, flowID string) error {
	f, err := s.get(flowID)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state.terminal() {
		return domain.ErrFlowNotFound
	}
	s.finish(f, stateCancelled, "cancelled")
	s.logger.Info("payment sheet cancelled by user", zap.String("flow_id", f.id))
	return nil
}

// Fail is the sheet's onerror callback. The flow resolves as a retryable
// failure; the caller may start a fresh flow.
func (s *flowService) Fail(ctx context.Context, flowID, reason string) error {
	f, err := s.get(flowID)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state.terminal() {
		return domain.ErrFlowNotFound
	}
	s.finish(f, stateFailed, "failed")
	s.logger.Warn("payment sheet reported an error",
		zap.String("flow_id", f.id),
		zap.String("reason", reason))
	return nil
}

// expire fails a flow that received no terminal callback in time
func (s *flowService) expire(flowID string) {
	s.mu.Lock()
	f, ok := s.flows[flowID]
	s.mu.Unlock()
	if !ok {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state.terminal() {
		return
	}
	s.finish(f, stateFailed, "timed_out")
	s.logger.Warn("payment sheet flow timed out", zap.String("flow_id", f.id))
}

func (s *flowService) get(flowID string) (*flow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.flows[flowID]
	if !ok {
		return nil, domain.ErrFlowNotFound
	}
	return f, nil
}

// finish moves the flow to a terminal state and forgets it. Callers hold
// the flow mutex.
func (s *flowService) finish(f *flow, state flowState, outcome string) {
	f.state = state
	f.timer.Stop()

	s.mu.Lock()
	delete(s.flows, f.id)
	s.mu.Unlock()

	flowsActive.Dec()
	flowOutcomes.WithLabelValues(outcome).Inc()
}

func unexpectedCallback(state flowState, callback string) error {
	return domain.NewDomainError(domain.ErrorCodeWalletFailed, "unexpected "+callback+" callback").
		WithDetail("state", string(state))
}
