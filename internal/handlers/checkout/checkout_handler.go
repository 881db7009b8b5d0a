package checkout

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/civicgate/payment-orchestrator/internal/auth"
	"github.com/civicgate/payment-orchestrator/internal/domain"
	"github.com/civicgate/payment-orchestrator/internal/handlers/respond"
	"github.com/civicgate/payment-orchestrator/internal/middleware"
	"github.com/civicgate/payment-orchestrator/internal/services/ports"
	pkgerrors "github.com/civicgate/payment-orchestrator/pkg/errors"
)

// Handler serves checkout submission, the Apple Pay sheet callbacks, and
// attempt status polling
type Handler struct {
	checkout ports.CheckoutService
	applePay ports.ApplePayFlowService
	logger   *zap.Logger
}

func NewHandler(checkout ports.CheckoutService, applePay ports.ApplePayFlowService, logger *zap.Logger) *Handler {
	return &Handler{checkout: checkout, applePay: applePay, logger: logger}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/checkout/pay", h.pay)
	r.Post("/checkout/google-pay", h.payGooglePay)

	r.Post("/checkout/apple-pay/session", h.applePayStart)
	r.Post("/checkout/apple-pay/{flowID}/validate-merchant", h.applePayValidateMerchant)
	r.Post("/checkout/apple-pay/{flowID}/authorize", h.applePayAuthorize)
	r.Post("/checkout/apple-pay/{flowID}/cancel", h.applePayCancel)
	r.Post("/checkout/apple-pay/{flowID}/error", h.applePayError)

	r.Get("/checkout/attempts/{attemptID}", h.getAttempt)
}

type entityRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

func (e entityRef) domain() domain.EntityRef {
	return domain.EntityRef{Type: domain.EntityType(e.Type), ID: e.ID}
}

type payRequest struct {
	Entity         entityRef `json:"entity"`
	QuoteID        string    `json:"quote_id"`
	InstrumentID   string    `json:"payment_instrument_id"`
	Method         string    `json:"payment_method,omitempty"`
	FraudSessionID string    `json:"fraud_session_id,omitempty"`
}

// pay submits a card or ach payment with a saved instrument
func (h *Handler) pay(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())

	var req payRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, domain.NewDomainError(domain.ErrorCodeValidationFailed, "invalid request body"))
		return
	}

	method := domain.PaymentMethod(req.Method)
	if req.Method == "" {
		method = domain.PaymentMethodCard
	}

	resp, err := h.checkout.Pay(r.Context(), &ports.PayRequest{
		CustomerID:     claims.Subject,
		MerchantID:     claims.MerchantID,
		Entity:         req.Entity.domain(),
		Method:         method,
		QuoteID:        req.QuoteID,
		InstrumentID:   req.InstrumentID,
		Customer:       claims.CustomerInfo(),
		FraudSessionID: req.FraudSessionID,
	})
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, statusForOutcome(resp), resp)
}

type googlePayRequest struct {
	Entity         entityRef `json:"entity"`
	QuoteID        string    `json:"quote_id"`
	Token          string    `json:"google_pay_token"`
	FraudSessionID string    `json:"fraud_session_id,omitempty"`
}

func (h *Handler) payGooglePay(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())

	var req googlePayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, domain.NewDomainError(domain.ErrorCodeValidationFailed, "invalid request body"))
		return
	}

	resp, err := h.checkout.Pay(r.Context(), &ports.PayRequest{
		CustomerID:     claims.Subject,
		MerchantID:     claims.MerchantID,
		Entity:         req.Entity.domain(),
		Method:         domain.PaymentMethodGooglePay,
		QuoteID:        req.QuoteID,
		GooglePayToken: req.Token,
		Customer:       claims.CustomerInfo(),
		FraudSessionID: req.FraudSessionID,
	})
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, statusForOutcome(resp), resp)
}

type applePayStartRequest struct {
	Entity         entityRef `json:"entity"`
	QuoteID        string    `json:"quote_id"`
	FraudSessionID string    `json:"fraud_session_id,omitempty"`
}

type applePayStartResponse struct {
	FlowID string `json:"flow_id"`
}

// applePayStart opens a payment sheet flow. The refresh token rides on a
// header so the flow can renew the session mid-sheet.
func (h *Handler) applePayStart(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())

	var req applePayStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, domain.NewDomainError(domain.ErrorCodeValidationFailed, "invalid request body"))
		return
	}

	flowID, err := h.applePay.Start(r.Context(), &ports.ApplePayStartRequest{
		CustomerID:     claims.Subject,
		MerchantID:     claims.MerchantID,
		Entity:         req.Entity.domain(),
		QuoteID:        req.QuoteID,
		AccessToken:    middleware.BearerToken(r),
		RefreshToken:   r.Header.Get(middleware.RefreshTokenHeader),
		Customer:       claims.CustomerInfo(),
		FraudSessionID: req.FraudSessionID,
	})
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, applePayStartResponse{FlowID: flowID})
}

type validateMerchantRequest struct {
	ValidationURL string `json:"validation_url"`
}

func (h *Handler) applePayValidateMerchant(w http.ResponseWriter, r *http.Request) {
	var req validateMerchantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, domain.NewDomainError(domain.ErrorCodeValidationFailed, "invalid request body"))
		return
	}

	session, err := h.applePay.ValidateMerchant(r.Context(), chi.URLParam(r, "flowID"), req.ValidationURL)
	if err != nil {
		respond.Error(w, err)
		return
	}

	// the merchant session is returned verbatim; the sheet consumes it as-is
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(session)
}

type authorizeRequest struct {
	Token json.RawMessage `json:"token"`
}

func (h *Handler) applePayAuthorize(w http.ResponseWriter, r *http.Request) {
	var req authorizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, domain.NewDomainError(domain.ErrorCodeValidationFailed, "invalid request body"))
		return
	}

	resp, err := h.applePay.Authorize(r.Context(), chi.URLParam(r, "flowID"), req.Token)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, statusForOutcome(resp), resp)
}

// cancelledResponse carries the canonical cancellation classification so
// every portal widget applies the same handling: silent, freely retryable
type cancelledResponse struct {
	Outcome        string               `json:"outcome"`
	Classification pkgerrors.Normalized `json:"classification"`
}

func (h *Handler) applePayCancel(w http.ResponseWriter, r *http.Request) {
	if err := h.applePay.Cancel(r.Context(), chi.URLParam(r, "flowID")); err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, cancelledResponse{
		Outcome:        "cancelled",
		Classification: pkgerrors.Classify(domain.ErrUserCancelled),
	})
}

type flowErrorRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) applePayError(w http.ResponseWriter, r *http.Request) {
	var req flowErrorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, domain.NewDomainError(domain.ErrorCodeValidationFailed, "invalid request body"))
		return
	}

	if err := h.applePay.Fail(r.Context(), chi.URLParam(r, "flowID"), req.Reason); err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusNoContent, nil)
}

func (h *Handler) getAttempt(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())

	attempt, err := h.checkout.GetAttempt(r.Context(), claims.Subject, chi.URLParam(r, "attemptID"))
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, attempt)
}

// statusForOutcome maps the three-valued outcome onto HTTP: unknown is 202
// because the attempt is still being settled, a definitive failure is 402
func statusForOutcome(resp *domain.PaymentResponse) int {
	switch resp.Outcome {
	case domain.OutcomeSucceeded:
		return http.StatusOK
	case domain.OutcomeUnknown:
		return http.StatusAccepted
	default:
		return http.StatusPaymentRequired
	}
}
