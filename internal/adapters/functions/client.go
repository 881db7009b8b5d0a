package functions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/civicgate/payment-orchestrator/internal/domain"
	"github.com/civicgate/payment-orchestrator/pkg/resilience"
)

// HTTPClient is a minimal HTTP client interface so adapters can be tested
// without a live function gateway
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config configures the function gateway client
type Config struct {
	// BaseURL is the gateway root; functions are invoked at
	// {BaseURL}/functions/v1/{name}
	BaseURL string

	Signing SigningConfig

	// MaxRetries bounds InvokeIdempotent's transport retries
	MaxRetries int

	Backoff resilience.BackoffStrategy
}

// Client invokes named backend functions with a JSON body and an HMAC
// signature over the function name and payload.
type Client struct {
	config     Config
	httpClient HTTPClient
	logger     *zap.Logger
}

func NewClient(config Config, httpClient HTTPClient, logger *zap.Logger) *Client {
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.Backoff == nil {
		config.Backoff = resilience.DefaultExponentialBackoff()
	}
	return &Client{
		config:     config,
		httpClient: httpClient,
		logger:     logger,
	}
}

type invokeOptions struct {
	authToken string
}

// InvokeOption customizes a single function call
type InvokeOption func(*invokeOptions)

// WithAuthToken attaches the caller's bearer token to the call. Functions
// acting on behalf of a signed-in user require it; a stale token yields
// domain.ErrAuthExpired.
func WithAuthToken(token string) InvokeOption {
	return func(o *invokeOptions) {
		o.authToken = token
	}
}

// Invoke makes exactly one attempt against the named function. Payment
// submission calls go through here: a request that may have reached the
// processor must never be transparently replayed.
func (c *Client) Invoke(ctx context.Context, name string, payload any, opts ...InvokeOption) ([]byte, error) {
	var options invokeOptions
	for _, opt := range opts {
		opt(&options)
	}
	return c.invoke(ctx, name, payload, options)
}

// InvokeIdempotent retries transport failures and 5xx responses with
// exponential backoff. Only safe for read-style functions (fee quotes,
// merchant sessions, status checks).
func (c *Client) InvokeIdempotent(ctx context.Context, name string, payload any, opts ...InvokeOption) ([]byte, error) {
	var options invokeOptions
	for _, opt := range opts {
		opt(&options)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.config.Backoff.NextDelay(attempt - 1)
			c.logger.Debug("retrying function call",
				zap.String("function", name),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		body, err := c.invoke(ctx, name, payload, options)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if !isTransient(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *Client) invoke(ctx context.Context, name string, payload any, options invokeOptions) ([]byte, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload for %s: %w", name, err)
	}

	url := strings.TrimRight(c.config.BaseURL, "/") + "/functions/v1/" + name
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", name, err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Signature", CalculateSignature(c.config.Signing.Key, name, payloadBytes))
	httpReq.Header.Set("X-Signature-Key-Id", c.config.Signing.KeyID)
	if options.authToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+options.authToken)
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, domain.WrapError(domain.ErrorCodeProcessorTimeout, "function call cancelled or timed out", err)
		}
		return nil, domain.WrapError(domain.ErrorCodeProcessorError, "failed to reach function gateway", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeProcessorError, "failed to read function response", err)
	}

	c.logger.Debug("function call completed",
		zap.String("function", name),
		zap.Int("status", httpResp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	switch {
	case httpResp.StatusCode == http.StatusUnauthorized:
		return nil, domain.ErrAuthExpired
	case httpResp.StatusCode == http.StatusTooManyRequests:
		return nil, domain.NewDomainError(domain.ErrorCodeProcessorError, "function gateway is throttling requests")
	case httpResp.StatusCode >= 500:
		return nil, domain.NewDomainError(domain.ErrorCodeProcessorError,
			fmt.Sprintf("function %s returned status %d", name, httpResp.StatusCode))
	case httpResp.StatusCode >= 400:
		return nil, domain.NewDomainError(domain.ErrorCodeProcessorDeclined, errorMessageFromBody(body)).
			WithDetail("function", name).
			WithDetail("status", fmt.Sprintf("%d", httpResp.StatusCode))
	}

	return body, nil
}

// isTransient reports whether a failed call is safe and useful to retry
func isTransient(err error) bool {
	code := domain.GetErrorCode(err)
	return code == domain.ErrorCodeProcessorError || code == domain.ErrorCodeProcessorTimeout
}

// errorMessageFromBody pulls a human-readable message out of a 4xx body,
// falling back to a generic message when the body has no recognizable shape
func errorMessageFromBody(body []byte) string {
	var envelope struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.Error != "" {
			return envelope.Error
		}
		if envelope.Message != "" {
			return envelope.Message
		}
	}
	return "function call was rejected"
}
