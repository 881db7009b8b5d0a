package middleware

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/civicgate/payment-orchestrator/internal/auth"
	"github.com/civicgate/payment-orchestrator/internal/handlers/respond"
)

// RefreshTokenHeader carries the caller's refresh token on requests that
// may need a session refresh mid-flow (the Apple Pay sheet).
const RefreshTokenHeader = "X-Refresh-Token"

// Authenticator verifies portal session tokens and attaches the claims to
// the request context.
type Authenticator struct {
	verifier *auth.Verifier
	logger   *zap.Logger
}

func NewAuthenticator(verifier *auth.Verifier, logger *zap.Logger) *Authenticator {
	return &Authenticator{verifier: verifier, logger: logger}
}

// Middleware rejects requests without a valid bearer token
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := BearerToken(r)
		if token == "" {
			respond.Unauthorized(w, "authentication required")
			return
		}

		claims, err := a.verifier.Verify(token)
		if err != nil {
			a.logger.Debug("rejected session token", zap.Error(err))
			respond.Error(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
	})
}

// BearerToken extracts the raw bearer token from the Authorization header
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
