package instrument

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/civicgate/payment-orchestrator/internal/auth"
	"github.com/civicgate/payment-orchestrator/internal/domain"
	"github.com/civicgate/payment-orchestrator/internal/handlers/respond"
	"github.com/civicgate/payment-orchestrator/internal/services/ports"
)

// Handler serves the customer's saved payment instruments
type Handler struct {
	instruments ports.InstrumentService
	logger      *zap.Logger
}

func NewHandler(instruments ports.InstrumentService, logger *zap.Logger) *Handler {
	return &Handler{instruments: instruments, logger: logger}
}

// RegisterRoutes mounts the instrument endpoints. All routes require an
// authenticated session.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/instruments", h.list)
	r.Post("/instruments/{instrumentID}/default", h.setDefault)
	r.Delete("/instruments/{instrumentID}", h.disable)
}

type listResponse struct {
	Instruments []*domain.PaymentInstrument `json:"instruments"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())

	instruments, err := h.instruments.List(r.Context(), claims.MerchantID, claims.Subject)
	if err != nil {
		respond.Error(w, err)
		return
	}
	if instruments == nil {
		instruments = []*domain.PaymentInstrument{}
	}
	respond.JSON(w, http.StatusOK, listResponse{Instruments: instruments})
}

func (h *Handler) setDefault(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	instrumentID := chi.URLParam(r, "instrumentID")

	if err := h.instruments.SetDefault(r.Context(), claims.MerchantID, claims.Subject, instrumentID); err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusNoContent, nil)
}

func (h *Handler) disable(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	instrumentID := chi.URLParam(r, "instrumentID")

	if err := h.instruments.Disable(r.Context(), claims.MerchantID, claims.Subject, instrumentID); err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusNoContent, nil)
}
