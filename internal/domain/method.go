package domain

// PaymentMethod identifies which path a checkout attempt takes. Saved
// instruments resolve to card or ach; the wallet tags are synthetic methods
// with no concrete instrument behind them.
type PaymentMethod string

const (
	PaymentMethodCard      PaymentMethod = "card"
	PaymentMethodACH       PaymentMethod = "ach"
	PaymentMethodGooglePay PaymentMethod = "google-pay"
	PaymentMethodApplePay  PaymentMethod = "apple-pay"
)

// IsWallet returns true for the digital wallet methods
func (m PaymentMethod) IsWallet() bool {
	return m == PaymentMethodGooglePay || m == PaymentMethodApplePay
}

// IsValid reports whether the method is one of the known payment paths
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCard, PaymentMethodACH, PaymentMethodGooglePay, PaymentMethodApplePay:
		return true
	}
	return false
}

// MethodForInstrument maps a saved instrument to its payment path
func MethodForInstrument(pi *PaymentInstrument) PaymentMethod {
	if pi.IsBankAccount() {
		return PaymentMethodACH
	}
	return PaymentMethodCard
}
