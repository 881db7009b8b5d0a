package fee

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/civicgate/payment-orchestrator/internal/auth"
	"github.com/civicgate/payment-orchestrator/internal/domain"
	"github.com/civicgate/payment-orchestrator/internal/handlers/respond"
	"github.com/civicgate/payment-orchestrator/internal/services/ports"
)

// Handler issues service fee quotes
type Handler struct {
	fees   ports.FeeService
	logger *zap.Logger
}

func NewHandler(fees ports.FeeService, logger *zap.Logger) *Handler {
	return &Handler{fees: fees, logger: logger}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/fees/quote", h.quote)
}

type quoteRequest struct {
	BaseAmountCents int64  `json:"base_amount_cents"`
	InstrumentID    string `json:"payment_instrument_id,omitempty"`
	Method          string `json:"payment_method,omitempty"`
}

type quoteResponse struct {
	Quote        *domain.ServiceFeeQuote `json:"quote"`
	DisplayFee   string                  `json:"display_fee"`
	DisplayTotal string                  `json:"display_total"`
}

func (h *Handler) quote(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())

	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, domain.NewDomainError(domain.ErrorCodeValidationFailed, "invalid request body"))
		return
	}

	quote, err := h.fees.Quote(r.Context(), &ports.QuoteRequest{
		MerchantID:      claims.MerchantID,
		CustomerID:      claims.Subject,
		BaseAmountCents: req.BaseAmountCents,
		InstrumentID:    req.InstrumentID,
		Method:          domain.PaymentMethod(req.Method),
	})
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, quoteResponse{
		Quote:        quote,
		DisplayFee:   quote.DisplayFee(),
		DisplayTotal: quote.DisplayTotal(),
	})
}
