package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a machine-readable error code
type ErrorCode string

const (
	// Authentication Errors (AUTH_*)
	ErrorCodeAuthMissing ErrorCode = "AUTH_MISSING"
	ErrorCodeAuthInvalid ErrorCode = "AUTH_INVALID"
	ErrorCodeAuthExpired ErrorCode = "AUTH_EXPIRED"

	// Checkout Coordinator Errors (CHECKOUT_*)
	ErrorCodeCheckoutCooldown ErrorCode = "CHECKOUT_COOLDOWN_ACTIVE"

	// Instrument Errors (INSTRUMENT_*)
	ErrorCodeInstrumentNotFound ErrorCode = "INSTRUMENT_NOT_FOUND"
	ErrorCodeInstrumentDisabled ErrorCode = "INSTRUMENT_DISABLED"
	ErrorCodeInstrumentExpired  ErrorCode = "INSTRUMENT_EXPIRED"
	ErrorCodeInstrumentRequired ErrorCode = "INSTRUMENT_REQUIRED"

	// Fee Quote Errors (QUOTE_*)
	ErrorCodeQuoteRequired ErrorCode = "QUOTE_REQUIRED"
	ErrorCodeQuoteNotFound ErrorCode = "QUOTE_NOT_FOUND"

	// Attempt Ledger Errors (ATTEMPT_*)
	ErrorCodeAttemptNotFound ErrorCode = "ATTEMPT_NOT_FOUND"

	// Customer Errors (CUSTOMER_*)
	ErrorCodeCustomerRequired ErrorCode = "CUSTOMER_REQUIRED"

	// Validation Errors (VALIDATION_*)
	ErrorCodeValidationFailed        ErrorCode = "VALIDATION_FAILED"
	ErrorCodeValidationAmountInvalid ErrorCode = "VALIDATION_AMOUNT_INVALID"
	ErrorCodeValidationEntityInvalid ErrorCode = "VALIDATION_ENTITY_INVALID"

	// Processor Errors (PROCESSOR_*)
	ErrorCodeProcessorError    ErrorCode = "PROCESSOR_ERROR"
	ErrorCodeProcessorTimeout  ErrorCode = "PROCESSOR_TIMEOUT"
	ErrorCodeProcessorDeclined ErrorCode = "PROCESSOR_DECLINED"
	ErrorCodePaymentUnclear    ErrorCode = "PAYMENT_STATUS_UNCLEAR"

	// Wallet Errors (WALLET_*)
	ErrorCodeWalletCancelled ErrorCode = "WALLET_CANCELLED"
	ErrorCodeWalletTimeout     ErrorCode = "WALLET_SESSION_TIMEOUT"
	ErrorCodeWalletFailed      ErrorCode = "WALLET_SESSION_FAILED"
	ErrorCodeFlowNotFound      ErrorCode = "WALLET_FLOW_NOT_FOUND"

	// Internal Errors (INTERNAL_*)
	ErrorCodeInternalError ErrorCode = "INTERNAL_ERROR"
	ErrorCodeDatabaseError ErrorCode = "INTERNAL_DATABASE_ERROR"
)

// DomainError represents a structured domain error with error code and context
type DomainError struct {
	Err     error
	Details map[string]interface{}
	Code    ErrorCode
	Message string
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// WithDetail adds a detail field to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(code ErrorCode, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with a domain error code
func WrapError(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Err:     err,
	}
}

// IsDomainError checks if an error is a DomainError with the given code
func IsDomainError(err error, code ErrorCode) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error, returns empty string if not a DomainError
func GetErrorCode(err error) ErrorCode {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// IsAuthError checks if an error is authentication related
func IsAuthError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeAuthMissing ||
		code == ErrorCodeAuthInvalid ||
		code == ErrorCodeAuthExpired
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeValidationFailed ||
		code == ErrorCodeValidationAmountInvalid ||
		code == ErrorCodeValidationEntityInvalid ||
		code == ErrorCodeInstrumentRequired ||
		code == ErrorCodeQuoteRequired ||
		code == ErrorCodeCustomerRequired
}

// IsProcessorError checks if an error came from the payment processor
func IsProcessorError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeProcessorError ||
		code == ErrorCodeProcessorTimeout ||
		code == ErrorCodeProcessorDeclined
}

// IsUserCancellation checks for the distinguished clean-abort outcome
func IsUserCancellation(err error) bool {
	return IsDomainError(err, ErrorCodeWalletCancelled)
}

// Structured error instances
var (
	ErrAuthMissing = NewDomainError(ErrorCodeAuthMissing, "authentication required")
	ErrAuthInvalid = NewDomainError(ErrorCodeAuthInvalid, "invalid authentication")
	// ErrAuthExpired is the sentinel the classifier marks silent: the session
	// refresh prompt communicates its own message upstream, so surfacing this
	// one too would double-notify the user.
	ErrAuthExpired = NewDomainError(ErrorCodeAuthExpired, "Authentication expired")

	ErrCheckoutCooldown = NewDomainError(ErrorCodeCheckoutCooldown, "please wait a moment before retrying")

	ErrInstrumentNotFound = NewDomainError(ErrorCodeInstrumentNotFound, "payment instrument not found")
	ErrInstrumentDisabled = NewDomainError(ErrorCodeInstrumentDisabled, "payment instrument is disabled")
	ErrInstrumentExpired  = NewDomainError(ErrorCodeInstrumentExpired, "payment instrument has expired")
	ErrInstrumentRequired = NewDomainError(ErrorCodeInstrumentRequired, "payment instrument is required")

	ErrQuoteRequired = NewDomainError(ErrorCodeQuoteRequired, "fee quote is required")
	ErrQuoteNotFound = NewDomainError(ErrorCodeQuoteNotFound, "fee quote not found or expired")

	ErrAttemptNotFound = NewDomainError(ErrorCodeAttemptNotFound, "payment attempt not found")

	ErrCustomerRequired = NewDomainError(ErrorCodeCustomerRequired, "customer is required")

	ErrValidationAmountInvalid = NewDomainError(ErrorCodeValidationAmountInvalid, "invalid amount")
	ErrValidationEntityInvalid = NewDomainError(ErrorCodeValidationEntityInvalid, "invalid entity reference")

	ErrProcessorError   = NewDomainError(ErrorCodeProcessorError, "payment processor error")
	ErrProcessorTimeout = NewDomainError(ErrorCodeProcessorTimeout, "payment processor timeout")
	ErrPaymentUnclear   = NewDomainError(ErrorCodePaymentUnclear, "payment status could not be confirmed")

	ErrUserCancelled = NewDomainError(ErrorCodeWalletCancelled, "payment cancelled")
	ErrWalletTimeout = NewDomainError(ErrorCodeWalletTimeout, "wallet session timed out")
	ErrFlowNotFound  = NewDomainError(ErrorCodeFlowNotFound, "payment flow not found or already finished")

	ErrInternalError = NewDomainError(ErrorCodeInternalError, "internal server error")
	ErrDatabaseError = NewDomainError(ErrorCodeDatabaseError, "database error")
)
