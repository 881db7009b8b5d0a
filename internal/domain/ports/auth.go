package ports

import "context"

// TokenRefresher exchanges a refresh token for a new access token.
// Implementations return domain.ErrAuthExpired when the refresh token
// itself is no longer valid.
type TokenRefresher interface {
	RefreshSession(ctx context.Context, refreshToken string) (accessToken string, err error)
}

// SecretProvider resolves named secrets (signing keys, broker credentials)
type SecretProvider interface {
	GetSecret(ctx context.Context, name string) (string, error)
}
