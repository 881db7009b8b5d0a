// Package errors normalizes payment path failures into the taxonomy the
// portal surfaces to users: clean cancellations and expired sessions are
// silent, transient failures invite a retry, everything else is fatal.
package errors

import (
	"errors"

	"github.com/civicgate/payment-orchestrator/internal/domain"
)

// Class is the normalized failure class
type Class string

const (
	// ClassUserCancelled is a clean abort: the user closed the wallet
	// sheet. No message is shown and the caller may re-invoke freely.
	ClassUserCancelled Class = "user_cancelled"

	// ClassRetryable failures show a message and invite a retry
	ClassRetryable Class = "retryable"

	// ClassFatal failures show a message; blind retries are discouraged
	ClassFatal Class = "fatal"

	// ClassAuthExpired is suppressed: the session-refresh prompt owns the
	// messaging for expired sessions
	ClassAuthExpired Class = "auth_expired"
)

// Normalized is the classified pair handed to the presentation layer
type Normalized struct {
	Class     Class  `json:"class"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
	Silent    bool   `json:"silent"`
}

const genericMessage = "Payment failed. Please try again."

// Classify maps any payment path error onto the surfaced taxonomy. Unknown
// errors classify as fatal: an unrecognized failure must not be silently
// retried against a real-money endpoint.
func Classify(err error) Normalized {
	if err == nil {
		return Normalized{}
	}

	if domain.IsUserCancellation(err) {
		return Normalized{
			Class:     ClassUserCancelled,
			Message:   message(err),
			Retryable: true,
			Silent:    true,
		}
	}

	if errors.Is(err, domain.ErrAuthExpired) || domain.GetErrorCode(err) == domain.ErrorCodeAuthExpired {
		return Normalized{
			Class:   ClassAuthExpired,
			Message: message(err),
			Silent:  true,
		}
	}

	switch domain.GetErrorCode(err) {
	case domain.ErrorCodePaymentUnclear,
		domain.ErrorCodeProcessorError,
		domain.ErrorCodeProcessorTimeout,
		domain.ErrorCodeWalletTimeout,
		domain.ErrorCodeWalletFailed,
		domain.ErrorCodeCheckoutCooldown:
		return Normalized{
			Class:     ClassRetryable,
			Message:   message(err),
			Retryable: true,
		}
	}

	return Normalized{
		Class:   ClassFatal,
		Message: message(err),
	}
}

// message prefers the domain error's user-facing message over the raw chain
func message(err error) string {
	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) && domainErr.Message != "" {
		return domainErr.Message
	}
	return genericMessage
}
