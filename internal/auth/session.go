package auth

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/civicgate/payment-orchestrator/internal/domain"
	"github.com/civicgate/payment-orchestrator/internal/domain/ports"
)

// refreshWindow is how close to expiry a token is still trusted. The Apple
// Pay merchant validation callback refreshes opportunistically inside this
// window so the processing call that follows does not race expiry.
const refreshWindow = 5 * time.Minute

// Session holds a user's access and refresh tokens for the duration of one
// wallet flow. Safe for concurrent use; the Apple Pay callbacks can overlap
// with the session timeout path.
type Session struct {
	refresher ports.TokenRefresher
	clock     func() time.Time

	mu           sync.Mutex
	accessToken  string
	refreshToken string
}

func NewSession(accessToken, refreshToken string, refresher ports.TokenRefresher) *Session {
	return &Session{
		accessToken:  accessToken,
		refreshToken: refreshToken,
		refresher:    refresher,
		clock:        time.Now,
	}
}

// Token returns the current access token without refreshing
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken
}

// EnsureFresh returns an access token valid for at least the refresh
// window, refreshing first when the current one is missing or expiring
func (s *Session) EnsureFresh(ctx context.Context) (string, error) {
	s.mu.Lock()
	token := s.accessToken
	s.mu.Unlock()

	if token != "" && !expiresWithin(token, s.clock(), refreshWindow) {
		return token, nil
	}
	return s.Refresh(ctx)
}

// Refresh forces a token refresh. The Apple Pay processing path calls this
// exactly once after a 401 before its single retry.
func (s *Session) Refresh(ctx context.Context) (string, error) {
	s.mu.Lock()
	refreshToken := s.refreshToken
	s.mu.Unlock()

	if refreshToken == "" {
		return "", domain.ErrAuthExpired
	}

	accessToken, err := s.refresher.RefreshSession(ctx, refreshToken)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.accessToken = accessToken
	s.mu.Unlock()
	return accessToken, nil
}

// expiresWithin inspects the token's exp claim without verifying the
// signature; the function gateway is the verifier, this layer only needs
// the deadline
func expiresWithin(tokenString string, now time.Time, window time.Duration) bool {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return true // unreadable tokens are treated as expiring
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return claims.ExpiresAt.Time.Before(now.Add(window))
}
