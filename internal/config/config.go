package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all service configuration, loaded from environment variables
// with an optional .env file for local development.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Functions FunctionsConfig `mapstructure:"functions"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Checkout  CheckoutConfig  `mapstructure:"checkout"`
	RabbitMQ  RabbitMQConfig  `mapstructure:"rabbitmq"`
	Secrets   SecretsConfig   `mapstructure:"secrets"`
	Logger    LoggerConfig    `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	MetricsPort int    `mapstructure:"metrics_port"`

	// AllowedOrigins is the CORS allowlist for the portal frontend
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// ConnectionString returns the PostgreSQL connection string
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// FunctionsConfig holds the backend function gateway configuration
type FunctionsConfig struct {
	BaseURL string `mapstructure:"base_url"`

	// SigningKeyID identifies the HMAC key; the key itself is resolved
	// through the secret provider under SigningKeySecret
	SigningKeyID     string `mapstructure:"signing_key_id"`
	SigningKeySecret string `mapstructure:"signing_key_secret"`

	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	MaxRetries     int `mapstructure:"max_retries"`
}

// AuthConfig holds inbound session token verification settings
type AuthConfig struct {
	// TokenSecretName is the secret provider name of the HS256 key
	TokenSecretName string `mapstructure:"token_secret_name"`
	Issuer          string `mapstructure:"issuer"`
}

// CheckoutConfig tunes the payment coordinator and fee quotes
type CheckoutConfig struct {
	CooldownSeconds   int    `mapstructure:"cooldown_seconds"`
	QuoteTTLMinutes   int    `mapstructure:"quote_ttl_minutes"`
	ReconcileSchedule string `mapstructure:"reconcile_schedule"`
	ApplePayWebDomain string `mapstructure:"applepay_web_domain"`
}

// RabbitMQConfig holds event broker configuration. An empty URL disables
// event publishing.
type RabbitMQConfig struct {
	URL string `mapstructure:"url"`
}

// SecretsConfig selects the secret backend
type SecretsConfig struct {
	// Provider is "aws" or "env"
	Provider  string `mapstructure:"provider"`
	AWSRegion string `mapstructure:"aws_region"`
	EnvPrefix string `mapstructure:"env_prefix"`
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Load reads configuration from the environment, with PAYMENT_ORCH_ as the
// variable prefix (e.g. PAYMENT_ORCH_DATABASE_HOST)
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PAYMENT_ORCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// every key needs an explicit bind for Unmarshal to see env-only values
	for _, key := range v.AllKeys() {
		_ = v.BindEnv(key)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "payment_orchestrator")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_conns", 25)
	v.SetDefault("database.min_conns", 5)

	v.SetDefault("functions.base_url", "")
	v.SetDefault("functions.signing_key_id", "")
	v.SetDefault("functions.signing_key_secret", "functions/signing-key")
	v.SetDefault("functions.timeout_seconds", 30)
	v.SetDefault("functions.max_retries", 3)

	v.SetDefault("auth.token_secret_name", "auth/token-secret")
	v.SetDefault("auth.issuer", "civicgate")

	v.SetDefault("checkout.cooldown_seconds", 2)
	v.SetDefault("checkout.quote_ttl_minutes", 10)
	v.SetDefault("checkout.reconcile_schedule", "*/5 * * * *")
	v.SetDefault("checkout.applepay_web_domain", "")

	v.SetDefault("rabbitmq.url", "")

	v.SetDefault("secrets.provider", "env")
	v.SetDefault("secrets.aws_region", "us-east-1")
	v.SetDefault("secrets.env_prefix", "SECRET_")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.development", false)
}

func (c *Config) validate() error {
	if c.Database.Password == "" {
		return fmt.Errorf("PAYMENT_ORCH_DATABASE_PASSWORD is required")
	}
	if c.Functions.BaseURL == "" {
		return fmt.Errorf("PAYMENT_ORCH_FUNCTIONS_BASE_URL is required")
	}
	if c.Functions.SigningKeyID == "" {
		return fmt.Errorf("PAYMENT_ORCH_FUNCTIONS_SIGNING_KEY_ID is required")
	}
	if c.Checkout.CooldownSeconds < 0 {
		return fmt.Errorf("checkout cooldown cannot be negative")
	}
	switch c.Secrets.Provider {
	case "aws", "env":
	default:
		return fmt.Errorf("unknown secrets provider %q", c.Secrets.Provider)
	}
	return nil
}

// Cooldown returns the coordinator cooldown as a duration
func (c *CheckoutConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownSeconds) * time.Second
}

// QuoteTTL returns the fee quote lifetime as a duration
func (c *CheckoutConfig) QuoteTTL() time.Duration {
	return time.Duration(c.QuoteTTLMinutes) * time.Minute
}

// Timeout returns the function gateway request timeout
func (c *FunctionsConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
