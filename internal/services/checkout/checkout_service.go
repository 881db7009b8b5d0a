package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/civicgate/payment-orchestrator/internal/domain"
	domainports "github.com/civicgate/payment-orchestrator/internal/domain/ports"
	"github.com/civicgate/payment-orchestrator/internal/services/ports"
)

var (
	attemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_attempts_total",
		Help: "Payment attempts by method and outcome",
	}, []string{"method", "outcome"})

	attemptDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_attempt_duration_seconds",
		Help:    "End-to-end submission duration by method",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	cooldownRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_cooldown_rejections_total",
		Help: "Attempts rejected because the cooldown was still active",
	})
)

// submission is a validated, priced pay request ready for the coordinator
type submission struct {
	method     domain.PaymentMethod
	quote      *domain.ServiceFeeQuote
	instrument *domain.PaymentInstrument
}

type checkoutService struct {
	fees        ports.FeeService
	instruments domainports.InstrumentRepository
	attempts    domainports.AttemptRepository
	cards       domainports.CardProcessor
	googlePay   domainports.GooglePayProcessor
	applePay    domainports.ApplePayProcessor
	events      domainports.EventPublisher
	checkouts   *registry
	logger      *zap.Logger
}

// NewCheckoutService wires the payment coordinator. One coordinator is held
// per (customer, entity) checkout; see Coordinator for the guarantees.
// A non-positive cooldown selects DefaultCooldown.
func NewCheckoutService(
	fees ports.FeeService,
	instruments domainports.InstrumentRepository,
	attempts domainports.AttemptRepository,
	cards domainports.CardProcessor,
	googlePay domainports.GooglePayProcessor,
	applePay domainports.ApplePayProcessor,
	events domainports.EventPublisher,
	cooldown time.Duration,
	logger *zap.Logger,
) ports.CheckoutService {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &checkoutService{
		fees:        fees,
		instruments: instruments,
		attempts:    attempts,
		cards:       cards,
		googlePay:   googlePay,
		applePay:    applePay,
		events:      events,
		checkouts:   newRegistry(cooldown),
		logger:      logger,
	}
}

// Pay validates the request, then runs the submission under the checkout's
// coordinator. All validation happens before the guard is touched: a request
// that cannot possibly be submitted must not consume the caller's cooldown
// or start a session.
func (s *checkoutService) Pay(ctx context.Context, req *ports.PayRequest) (*domain.PaymentResponse, error) {
	sub, err := s.validate(ctx, req)
	if err != nil {
		return nil, err
	}

	coordinator := s.checkouts.forCheckout(req.CustomerID, req.Entity)

	start := time.Now()
	resp, err := coordinator.Execute(ctx, func(ctx context.Context, sessionID string) (*domain.PaymentResponse, error) {
		return s.submit(ctx, req, sub, sessionID)
	})
	if err != nil {
		if errors.Is(err, domain.ErrCheckoutCooldown) {
			cooldownRejections.Inc()
		}
		attemptsTotal.WithLabelValues(string(sub.method), "error").Inc()
		return nil, err
	}

	attemptsTotal.WithLabelValues(string(sub.method), string(resp.Outcome)).Inc()
	attemptDuration.WithLabelValues(string(sub.method)).Observe(time.Since(start).Seconds())
	return resp, nil
}

func (s *checkoutService) GetAttempt(ctx context.Context, customerID, attemptID string) (*domain.PaymentAttempt, error) {
	attempt, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.CustomerID != customerID {
		return nil, domain.ErrAttemptNotFound
	}
	return attempt, nil
}

// validate checks the request and redeems the fee quote. No network calls
// to the processor happen here.
func (s *checkoutService) validate(ctx context.Context, req *ports.PayRequest) (*submission, error) {
	if req.CustomerID == "" {
		return nil, domain.ErrCustomerRequired
	}
	if !req.Entity.Type.IsValid() || req.Entity.ID == "" {
		return nil, domain.ErrValidationEntityInvalid
	}
	if !req.Method.IsValid() {
		return nil, domain.NewDomainError(domain.ErrorCodeValidationFailed, "unsupported payment method")
	}

	quote, err := s.fees.GetQuote(ctx, req.QuoteID)
	if err != nil {
		return nil, err
	}
	// The quote must price the selection actually being paid; a stale quote
	// for a different method or instrument cannot be redeemed
	if quote.Method != req.Method {
		return nil, domain.ErrQuoteNotFound
	}

	sub := &submission{method: req.Method, quote: quote}

	switch req.Method {
	case domain.PaymentMethodCard, domain.PaymentMethodACH:
		if req.InstrumentID == "" {
			return nil, domain.ErrInstrumentRequired
		}
		if quote.InstrumentID == nil || *quote.InstrumentID != req.InstrumentID {
			return nil, domain.ErrQuoteNotFound
		}
		instrument, err := s.instruments.GetByID(ctx, req.InstrumentID)
		if err != nil {
			return nil, err
		}
		if instrument.CustomerID != req.CustomerID || instrument.MerchantID != req.MerchantID {
			return nil, domain.ErrInstrumentNotFound
		}
		if !instrument.CanBeCharged() {
			return nil, domain.ErrInstrumentDisabled
		}
		sub.instrument = instrument

	case domain.PaymentMethodGooglePay:
		if req.GooglePayToken == "" {
			return nil, domain.NewDomainError(domain.ErrorCodeValidationFailed, "missing wallet token")
		}

	case domain.PaymentMethodApplePay:
		if len(req.ApplePayToken) == 0 {
			return nil, domain.NewDomainError(domain.ErrorCodeValidationFailed, "missing wallet token")
		}
		if req.AuthSession == nil {
			return nil, domain.ErrAuthMissing
		}
	}

	return sub, nil
}

// submit runs one attempt under the coordinator guard: record the attempt,
// call the processor, record the result, publish the event
func (s *checkoutService) submit(ctx context.Context, req *ports.PayRequest, sub *submission, sessionID string) (*domain.PaymentResponse, error) {
	attempt := &domain.PaymentAttempt{
		ID:               uuid.NewString(),
		SessionID:        sessionID,
		CustomerID:       req.CustomerID,
		MerchantID:       req.MerchantID,
		Entity:           req.Entity,
		Method:           sub.method,
		BaseAmountCents:  sub.quote.BaseAmountCents,
		TotalAmountCents: sub.quote.TotalAmountCents,
		Status:           domain.AttemptStatusPending,
	}
	if sub.instrument != nil {
		attempt.InstrumentID = &sub.instrument.ID
	}

	if err := s.attempts.Create(ctx, attempt); err != nil {
		// No submission happened; failing here is safe and keeps the
		// ledger authoritative
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "failed to record payment attempt", err)
	}

	s.logger.Info("submitting payment",
		zap.String("attempt_id", attempt.ID),
		zap.String("session_uuid", sessionID),
		zap.String("method", string(sub.method)),
		zap.String("entity_type", string(req.Entity.Type)),
		zap.String("entity_id", req.Entity.ID),
		zap.Int64("total_amount_cents", sub.quote.TotalAmountCents))

	resp, err := s.dispatch(ctx, req, sub, sessionID)
	if err != nil {
		if resolveErr := s.attempts.Resolve(ctx, attempt.ID, domain.AttemptStatusFailed, "", err.Error()); resolveErr != nil {
			s.logger.Error("failed to resolve attempt after error",
				zap.String("attempt_id", attempt.ID), zap.Error(resolveErr))
		}
		return nil, err
	}

	status := domain.StatusForOutcome(resp.Outcome)
	if resolveErr := s.attempts.Resolve(ctx, attempt.ID, status, resp.TransactionID, resp.ErrorMessage); resolveErr != nil {
		s.logger.Error("failed to resolve attempt",
			zap.String("attempt_id", attempt.ID), zap.Error(resolveErr))
	}
	attempt.Status = status
	attempt.TransactionID = resp.TransactionID
	attempt.FailureMessage = resp.ErrorMessage

	if resp.Succeeded() && sub.instrument != nil {
		if err := s.instruments.TouchLastUsed(ctx, sub.instrument.ID); err != nil {
			s.logger.Warn("failed to stamp instrument usage",
				zap.String("instrument_id", sub.instrument.ID), zap.Error(err))
		}
	}

	if resp.Outcome.IsTerminal() {
		s.publish(ctx, attempt)
	}

	return resp, nil
}

// dispatch routes the submission to the method's processor
func (s *checkoutService) dispatch(ctx context.Context, req *ports.PayRequest, sub *submission, sessionID string) (*domain.PaymentResponse, error) {
	switch sub.method {
	case domain.PaymentMethodCard, domain.PaymentMethodACH:
		return s.cards.ProcessCard(ctx, &domainports.CardPaymentRequest{
			Entity:           req.Entity,
			CustomerID:       req.CustomerID,
			MerchantID:       req.MerchantID,
			BaseAmountCents:  sub.quote.BaseAmountCents,
			TotalAmountCents: sub.quote.TotalAmountCents,
			InstrumentID:     sub.instrument.ID,
			PaymentType:      sub.method,
			FraudSessionID:   req.FraudSessionID,
			SessionID:        sessionID,
			Metadata:         req.Metadata,
		})

	case domain.PaymentMethodGooglePay:
		return s.googlePay.ProcessGooglePay(ctx, &domainports.GooglePayPaymentRequest{
			Entity:          req.Entity,
			CustomerID:      req.CustomerID,
			MerchantID:      req.MerchantID,
			BaseAmountCents: sub.quote.BaseAmountCents,
			Token:           req.GooglePayToken,
			FraudSessionID:  req.FraudSessionID,
			SessionID:       sessionID,
			Customer:        req.Customer,
		})

	case domain.PaymentMethodApplePay:
		return s.dispatchApplePay(ctx, req, sub, sessionID)

	default:
		return nil, domain.NewDomainError(domain.ErrorCodeValidationFailed, "unsupported payment method")
	}
}

// dispatchApplePay submits with the pre-validated session token. On a stale
// token it refreshes and retries exactly once; a second 401 gives up.
func (s *checkoutService) dispatchApplePay(ctx context.Context, req *ports.PayRequest, sub *submission, sessionID string) (*domain.PaymentResponse, error) {
	processorReq := &domainports.ApplePayPaymentRequest{
		Entity:           req.Entity,
		CustomerID:       req.CustomerID,
		MerchantID:       req.MerchantID,
		BaseAmountCents:  sub.quote.BaseAmountCents,
		TotalAmountCents: sub.quote.TotalAmountCents,
		Token:            req.ApplePayToken,
		AuthToken:        req.AuthSession.Token(),
		FraudSessionID:   req.FraudSessionID,
		SessionID:        sessionID,
	}

	resp, err := s.applePay.ProcessPayment(ctx, processorReq)
	if !errors.Is(err, domain.ErrAuthExpired) {
		return resp, err
	}

	s.logger.Info("session token rejected, refreshing once",
		zap.String("session_uuid", sessionID))

	token, refreshErr := req.AuthSession.Refresh(ctx)
	if refreshErr != nil {
		return nil, domain.ErrAuthExpired
	}
	processorReq.AuthToken = token
	return s.applePay.ProcessPayment(ctx, processorReq)
}

// publish emits the settlement event. Best effort: the payment result is
// already durable in the ledger, a broker outage must not fail the payment.
func (s *checkoutService) publish(ctx context.Context, attempt *domain.PaymentAttempt) {
	event := domainports.PaymentEvent{
		AttemptID:        attempt.ID,
		SessionID:        attempt.SessionID,
		EntityType:       string(attempt.Entity.Type),
		EntityID:         attempt.Entity.ID,
		CustomerID:       attempt.CustomerID,
		Method:           attempt.Method,
		BaseAmountCents:  attempt.BaseAmountCents,
		TotalAmountCents: attempt.TotalAmountCents,
		TransactionID:    attempt.TransactionID,
		FailureMessage:   attempt.FailureMessage,
		OccurredAt:       time.Now(),
	}
	switch attempt.Status {
	case domain.AttemptStatusSucceeded:
		event.Outcome = domain.OutcomeSucceeded
	case domain.AttemptStatusFailed:
		event.Outcome = domain.OutcomeFailed
	default:
		return
	}

	if err := s.events.PublishPaymentEvent(ctx, event); err != nil {
		s.logger.Warn("failed to publish payment event",
			zap.String("attempt_id", attempt.ID), zap.Error(err))
	}
}
