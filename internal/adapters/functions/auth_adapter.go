package functions

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/civicgate/payment-orchestrator/internal/domain"
	"github.com/civicgate/payment-orchestrator/internal/domain/ports"
)

const refreshFunction = "refresh-session"

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type refreshResponse struct {
	AccessToken string `json:"access_token"`
}

// authAdapter exchanges refresh tokens through the gateway's session
// function. Implements ports.TokenRefresher.
type authAdapter struct {
	client *Client
	logger *zap.Logger
}

func NewTokenRefresher(client *Client, logger *zap.Logger) ports.TokenRefresher {
	return &authAdapter{client: client, logger: logger}
}

func (a *authAdapter) RefreshSession(ctx context.Context, refreshToken string) (string, error) {
	body, err := a.client.InvokeIdempotent(ctx, refreshFunction, refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		// A 401 here means the refresh token itself is spent; the user
		// has to sign in again
		if errors.Is(err, domain.ErrAuthExpired) {
			return "", domain.ErrAuthExpired
		}
		return "", err
	}

	var resp refreshResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", domain.WrapError(domain.ErrorCodeProcessorError, "unreadable session refresh response", err)
	}
	if resp.AccessToken == "" {
		return "", domain.ErrAuthExpired
	}

	a.logger.Debug("session refreshed")
	return resp.AccessToken, nil
}
