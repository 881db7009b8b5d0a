// Package respond writes the service's JSON envelopes. Errors pass through
// the normalization taxonomy so every handler surfaces the same shape.
package respond

import (
	"encoding/json"
	"net/http"

	"github.com/civicgate/payment-orchestrator/internal/domain"
	pkgerrors "github.com/civicgate/payment-orchestrator/pkg/errors"
)

type errorBody struct {
	Code  domain.ErrorCode     `json:"code,omitempty"`
	Error pkgerrors.Normalized `json:"error"`
}

// JSON writes v with the given status
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// Error classifies err and writes the error envelope with a status derived
// from the domain error code
func Error(w http.ResponseWriter, err error) {
	JSON(w, statusFor(err), errorBody{
		Code:  domain.GetErrorCode(err),
		Error: pkgerrors.Classify(err),
	})
}

// Unauthorized writes a 401 for requests that never reached a handler. The
// message, when given, replaces the generic auth-missing text.
func Unauthorized(w http.ResponseWriter, message string) {
	normalized := pkgerrors.Classify(domain.ErrAuthMissing)
	if message != "" {
		normalized.Message = message
	}
	JSON(w, http.StatusUnauthorized, errorBody{
		Code:  domain.ErrorCodeAuthMissing,
		Error: normalized,
	})
}

func statusFor(err error) int {
	switch domain.GetErrorCode(err) {
	case domain.ErrorCodeAuthMissing, domain.ErrorCodeAuthInvalid, domain.ErrorCodeAuthExpired:
		return http.StatusUnauthorized
	case domain.ErrorCodeInstrumentNotFound, domain.ErrorCodeQuoteNotFound,
		domain.ErrorCodeAttemptNotFound, domain.ErrorCodeFlowNotFound:
		return http.StatusNotFound
	case domain.ErrorCodeValidationFailed, domain.ErrorCodeValidationAmountInvalid,
		domain.ErrorCodeValidationEntityInvalid, domain.ErrorCodeInstrumentRequired,
		domain.ErrorCodeQuoteRequired, domain.ErrorCodeCustomerRequired,
		domain.ErrorCodeInstrumentDisabled, domain.ErrorCodeInstrumentExpired:
		return http.StatusBadRequest
	case domain.ErrorCodeCheckoutCooldown:
		return http.StatusTooManyRequests
	case domain.ErrorCodeProcessorDeclined:
		return http.StatusPaymentRequired
	case domain.ErrorCodeProcessorError, domain.ErrorCodeProcessorTimeout,
		domain.ErrorCodeWalletFailed:
		return http.StatusBadGateway
	case domain.ErrorCodeWalletTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
