package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicgate/payment-orchestrator/internal/domain"
)

type stubRefresher struct {
	token string
	err   error
	calls int
}

func (r *stubRefresher) RefreshSession(ctx context.Context, refreshToken string) (string, error) {
	r.calls++
	return r.token, r.err
}

func signedToken(t *testing.T, expiresAt time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "cust-1",
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func TestSession_EnsureFresh_KeepsValidToken(t *testing.T) {
	refresher := &stubRefresher{token: "new-token"}
	current := signedToken(t, time.Now().Add(time.Hour))
	session := NewSession(current, "refresh-1", refresher)

	token, err := session.EnsureFresh(context.Background())

	require.NoError(t, err)
	assert.Equal(t, current, token)
	assert.Zero(t, refresher.calls, "a token valid beyond the window is not refreshed")
}

func TestSession_EnsureFresh_RefreshesExpiringToken(t *testing.T) {
	refresher := &stubRefresher{token: "new-token"}
	// Expires inside the 5 minute window
	session := NewSession(signedToken(t, time.Now().Add(2*time.Minute)), "refresh-1", refresher)

	token, err := session.EnsureFresh(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "new-token", token)
	assert.Equal(t, 1, refresher.calls)
	assert.Equal(t, "new-token", session.Token(), "refreshed token is retained")
}

func TestSession_EnsureFresh_RefreshesMissingToken(t *testing.T) {
	refresher := &stubRefresher{token: "new-token"}
	session := NewSession("", "refresh-1", refresher)

	token, err := session.EnsureFresh(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "new-token", token)
}

func TestSession_EnsureFresh_UnreadableTokenTreatedAsExpiring(t *testing.T) {
	refresher := &stubRefresher{token: "new-token"}
	session := NewSession("not-a-jwt", "refresh-1", refresher)

	token, err := session.EnsureFresh(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "new-token", token)
}

func TestSession_Refresh_WithoutRefreshToken(t *testing.T) {
	session := NewSession("access", "", &stubRefresher{})

	_, err := session.Refresh(context.Background())

	assert.ErrorIs(t, err, domain.ErrAuthExpired)
}

func TestVerifier_Verify(t *testing.T) {
	verifier := NewVerifier("test-secret", "civicgate")

	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "cust-1",
			Issuer:    "civicgate",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Email:     "resident@example.gov",
		FirstName: "Pat",
		LastName:  "Jordan",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	got, err := verifier.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, "cust-1", got.Subject)
	assert.Equal(t, "resident@example.gov", got.CustomerInfo().Email)
}

func TestVerifier_Verify_Expired(t *testing.T) {
	verifier := NewVerifier("test-secret", "civicgate")

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "cust-1",
		Issuer:    "civicgate",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = verifier.Verify(signed)
	assert.ErrorIs(t, err, domain.ErrAuthExpired)
}

func TestVerifier_Verify_WrongSecret(t *testing.T) {
	verifier := NewVerifier("test-secret", "civicgate")

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "cust-1",
		Issuer:    "civicgate",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte("other-secret"))
	require.NoError(t, err)

	_, err = verifier.Verify(signed)
	assert.ErrorIs(t, err, domain.ErrAuthInvalid)
}
