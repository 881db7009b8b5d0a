package domain

import (
	"time"
)

// InstrumentType distinguishes saved card and bank account instruments
type InstrumentType string

const (
	InstrumentTypeCard        InstrumentType = "card"
	InstrumentTypeBankAccount InstrumentType = "bank_account"
)

// InstrumentStatus is the backend-owned lifecycle status of an instrument
type InstrumentStatus string

const (
	InstrumentStatusActive   InstrumentStatus = "active"
	InstrumentStatusDisabled InstrumentStatus = "disabled"
	InstrumentStatusExpired  InstrumentStatus = "expired"
)

// PaymentInstrument represents a saved, tokenized payment method (card or
// bank account) referenced by an opaque id. Raw account data never passes
// through this layer; only masked display fields are held.
type PaymentInstrument struct {
	// Identity
	ID string `json:"id"` // UUID

	// Owner
	CustomerID string `json:"customer_id"`
	MerchantID string `json:"merchant_id"`

	// Instrument type
	Type InstrumentType `json:"type"` // card or bank_account

	// Display metadata (NEVER full card/account numbers)
	LastFour string `json:"last_four"`

	// Card specific (optional)
	Brand    *string `json:"brand"`     // "visa", "mastercard", "amex", "discover"
	ExpMonth *int    `json:"exp_month"` // 1-12
	ExpYear  *int    `json:"exp_year"`  // 2026, 2027, etc.

	// Bank account specific (optional)
	BankName    *string `json:"bank_name"`
	AccountType *string `json:"account_type"` // "checking" or "savings"

	// Status
	IsDefault bool             `json:"is_default"`
	IsEnabled bool             `json:"is_enabled"`
	Status    InstrumentStatus `json:"status"`

	// Timestamps
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	LastUsedAt *time.Time `json:"last_used_at"`
}

// IsCard returns true if this is a card instrument
func (pi *PaymentInstrument) IsCard() bool {
	return pi.Type == InstrumentTypeCard
}

// IsBankAccount returns true if this is a bank account instrument
func (pi *PaymentInstrument) IsBankAccount() bool {
	return pi.Type == InstrumentTypeBankAccount
}

// IsExpired returns true if the card is past its expiry month
func (pi *PaymentInstrument) IsExpired() bool {
	if !pi.IsCard() || pi.ExpMonth == nil || pi.ExpYear == nil {
		return false
	}

	now := time.Now()
	if *pi.ExpYear < now.Year() {
		return true
	}
	if *pi.ExpYear == now.Year() && *pi.ExpMonth < int(now.Month()) {
		return true
	}

	return false
}

// CanBeCharged returns true if the instrument can be submitted for payment
func (pi *PaymentInstrument) CanBeCharged() bool {
	if !pi.IsEnabled || pi.Status != InstrumentStatusActive {
		return false
	}
	if pi.IsCard() && pi.IsExpired() {
		return false
	}
	return true
}

// DisplayName returns a human-readable label for the instrument
func (pi *PaymentInstrument) DisplayName() string {
	if pi.IsCard() {
		brand := "Card"
		if pi.Brand != nil {
			brand = *pi.Brand
		}
		return brand + " •••• " + pi.LastFour
	}

	accountType := "Account"
	if pi.AccountType != nil {
		accountType = *pi.AccountType
	}
	bankName := ""
	if pi.BankName != nil {
		bankName = *pi.BankName + " "
	}
	return bankName + accountType + " •••• " + pi.LastFour
}

// MarkUsed updates the last used timestamp
func (pi *PaymentInstrument) MarkUsed() {
	now := time.Now()
	pi.LastUsedAt = &now
}
