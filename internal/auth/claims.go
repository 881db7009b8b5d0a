package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"

	"github.com/civicgate/payment-orchestrator/internal/domain"
)

// SessionClaims are the portal session token claims this service relies on.
// Subject carries the customer id.
type SessionClaims struct {
	jwt.RegisteredClaims
	Email      string `json:"email,omitempty"`
	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
	MerchantID string `json:"merchant_id,omitempty"`
}

// CustomerInfo extracts the customer fields the wallet paths forward
func (c *SessionClaims) CustomerInfo() domain.CustomerInfo {
	return domain.CustomerInfo{
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Email:     c.Email,
	}
}

// Verifier validates inbound portal session tokens
type Verifier struct {
	secret []byte
	issuer string
}

func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer}
}

// Verify parses and validates a bearer token. Expired tokens map to the
// silent auth-expired sentinel; everything else invalid is a hard reject.
func (v *Verifier) Verify(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrAuthInvalid
		}
		return v.secret, nil
	}, jwt.WithIssuer(v.issuer), jwt.WithValidMethods([]string{"HS256"}))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrAuthExpired
		}
		return nil, domain.ErrAuthInvalid
	}
	if !token.Valid || claims.Subject == "" {
		return nil, domain.ErrAuthInvalid
	}
	return claims, nil
}
