package secrets

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"go.uber.org/zap"

	"github.com/civicgate/payment-orchestrator/internal/domain/ports"
)

// AWSConfig configures the Secrets Manager provider
type AWSConfig struct {
	Region string

	// Optional AWS profile for local development
	Profile string

	// Optional custom endpoint for LocalStack testing
	Endpoint string

	// How long retrieved secrets stay cached (default 5 minutes)
	CacheTTL time.Duration
}

// awsProvider resolves named secrets from AWS Secrets Manager with a small
// in-memory cache. The orchestrator only reads secrets (function signing
// keys, the session token secret), so the provider is read-only.
type awsProvider struct {
	client *secretsmanager.Client
	ttl    time.Duration
	logger *zap.Logger

	mu    sync.Mutex
	cache map[string]cachedSecret
}

type cachedSecret struct {
	value     string
	expiresAt time.Time
}

// NewAWSProvider builds a ports.SecretProvider backed by AWS Secrets Manager
func NewAWSProvider(ctx context.Context, cfg AWSConfig, logger *zap.Logger) (ports.SecretProvider, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	clientOpts := []func(*secretsmanager.Options){}
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *secretsmanager.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	logger.Info("AWS Secrets Manager provider initialized",
		zap.String("region", cfg.Region),
		zap.Duration("cache_ttl", ttl))

	return &awsProvider{
		client: secretsmanager.NewFromConfig(awsCfg, clientOpts...),
		ttl:    ttl,
		logger: logger,
		cache:  make(map[string]cachedSecret),
	}, nil
}

func (p *awsProvider) GetSecret(ctx context.Context, name string) (string, error) {
	p.mu.Lock()
	entry, ok := p.cache[name]
	p.mu.Unlock()
	if ok && time.Now().Before(entry.expiresAt) {
		return entry.value, nil
	}

	result, err := p.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		p.logger.Error("failed to retrieve secret", zap.String("name", name), zap.Error(err))
		return "", fmt.Errorf("failed to get secret %s: %w", name, err)
	}

	value := aws.ToString(result.SecretString)
	p.mu.Lock()
	p.cache[name] = cachedSecret{value: value, expiresAt: time.Now().Add(p.ttl)}
	p.mu.Unlock()

	return value, nil
}
