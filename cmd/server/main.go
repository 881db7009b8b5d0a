package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/civicgate/payment-orchestrator/internal/adapters/functions"
	"github.com/civicgate/payment-orchestrator/internal/adapters/postgres"
	"github.com/civicgate/payment-orchestrator/internal/adapters/rabbitmq"
	"github.com/civicgate/payment-orchestrator/internal/adapters/secrets"
	"github.com/civicgate/payment-orchestrator/internal/auth"
	"github.com/civicgate/payment-orchestrator/internal/config"
	domainports "github.com/civicgate/payment-orchestrator/internal/domain/ports"
	checkoutHandler "github.com/civicgate/payment-orchestrator/internal/handlers/checkout"
	feeHandler "github.com/civicgate/payment-orchestrator/internal/handlers/fee"
	instrumentHandler "github.com/civicgate/payment-orchestrator/internal/handlers/instrument"
	authmiddleware "github.com/civicgate/payment-orchestrator/internal/middleware"
	applepayService "github.com/civicgate/payment-orchestrator/internal/services/applepay"
	checkoutService "github.com/civicgate/payment-orchestrator/internal/services/checkout"
	feeService "github.com/civicgate/payment-orchestrator/internal/services/fee"
	instrumentService "github.com/civicgate/payment-orchestrator/internal/services/instrument"
	reconcileService "github.com/civicgate/payment-orchestrator/internal/services/reconcile"
	httppkg "github.com/civicgate/payment-orchestrator/pkg/http"
	ratelimit "github.com/civicgate/payment-orchestrator/pkg/middleware"
	"github.com/civicgate/payment-orchestrator/pkg/observability"
	"github.com/civicgate/payment-orchestrator/pkg/shutdown"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Optional .env for local development
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}

	logger := initLogger(cfg.Logger)
	defer logger.Sync()

	logger.Info("Starting payment orchestrator",
		zap.String("version", "0.1.0"),
	)

	ctx := context.Background()

	secretProvider, err := initSecrets(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize secret provider", zap.Error(err))
	}

	signingKey, err := secretProvider.GetSecret(ctx, cfg.Functions.SigningKeySecret)
	if err != nil {
		logger.Fatal("Failed to resolve function signing key", zap.Error(err))
	}
	tokenSecret, err := secretProvider.GetSecret(ctx, cfg.Auth.TokenSecretName)
	if err != nil {
		logger.Fatal("Failed to resolve session token secret", zap.Error(err))
	}

	dbPool, err := initDatabase(ctx, &cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbPool.Close()

	logger.Info("Database connection established",
		zap.String("database", cfg.Database.Database),
	)

	sm := shutdown.NewManager(logger, shutdownTimeout)
	sm.RegisterNoErr("database", dbPool.Close)

	// Repositories
	executor := postgres.NewExecutor(dbPool)
	instrumentRepo := postgres.NewInstrumentRepository(executor)
	attemptRepo := postgres.NewAttemptRepository(executor)

	// Function gateway client and adapters
	fnClient := functions.NewClient(functions.Config{
		BaseURL: cfg.Functions.BaseURL,
		Signing: functions.SigningConfig{
			KeyID: cfg.Functions.SigningKeyID,
			Key:   signingKey,
		},
		MaxRetries: cfg.Functions.MaxRetries,
	}, httppkg.NewHTTPClient(
		httppkg.FunctionsClientConfig(),
		time.Duration(cfg.Functions.TimeoutSeconds)*time.Second,
	), logger)

	feeAdapter := functions.NewFeeAdapter(fnClient, logger)
	cardAdapter := functions.NewCardAdapter(fnClient, logger)
	googlePayAdapter := functions.NewGooglePayAdapter(fnClient, logger)
	applePayAdapter := functions.NewApplePayAdapter(fnClient, logger)
	statusAdapter := functions.NewStatusAdapter(fnClient, logger)
	refresher := functions.NewTokenRefresher(fnClient, logger)

	events := initEvents(cfg, sm, logger)

	// Services
	fees := feeService.NewFeeService(feeAdapter, instrumentRepo, cfg.Checkout.QuoteTTL(), logger)
	instruments := instrumentService.NewInstrumentService(instrumentRepo, logger)
	checkout := checkoutService.NewCheckoutService(
		fees,
		instrumentRepo,
		attemptRepo,
		cardAdapter,
		googlePayAdapter,
		applePayAdapter,
		events,
		cfg.Checkout.Cooldown(),
		logger,
	)
	applePayFlows := applepayService.NewFlowService(
		fees,
		checkout,
		applePayAdapter,
		refresher,
		cfg.Checkout.ApplePayWebDomain,
		logger,
	)

	// Background settlement of attempts whose outcome was unclear at
	// submission time
	reconciler := reconcileService.NewReconciler(attemptRepo, statusAdapter, events, logger)
	schedule := cfg.Checkout.ReconcileSchedule
	if schedule == "" {
		schedule = reconcileService.DefaultSchedule
	}
	if err := reconciler.Start(schedule); err != nil {
		logger.Fatal("Failed to start reconciler", zap.Error(err))
	}
	sm.RegisterNoErr("reconciler", reconciler.Stop)
	logger.Info("Reconciler started", zap.String("schedule", schedule))

	// HTTP API
	verifier := auth.NewVerifier(tokenSecret, cfg.Auth.Issuer)
	authenticator := authmiddleware.NewAuthenticator(verifier, logger)

	rateLimiter := ratelimit.NewRateLimiter(10, 20)
	sm.RegisterNoErr("rate_limiter", rateLimiter.Shutdown)

	router := chi.NewRouter()
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(authmiddleware.SecurityHeaders(cfg.Logger.Development))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", authmiddleware.RefreshTokenHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	router.Use(rateLimiter.Middleware)
	router.Use(observability.Metrics)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(authenticator.Middleware)
		instrumentHandler.NewHandler(instruments, logger).RegisterRoutes(r)
		feeHandler.NewHandler(fees, logger).RegisterRoutes(r)
		checkoutHandler.NewHandler(checkout, applePayFlows, logger).RegisterRoutes(r)
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()
	sm.RegisterServer("http_server", httpServer)

	metricsServer := observability.StartMetricsServer(
		fmt.Sprintf("%d", cfg.Server.MetricsPort),
		observability.NewHealthChecker(dbPool),
		logger,
	)
	sm.RegisterServer("metrics_server", metricsServer)

	sm.WaitForShutdown()
}

func initLogger(cfg config.LoggerConfig) *zap.Logger {
	var zapCfg zap.Config
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	if cfg.Level != "" {
		level, err := zapcore.ParseLevel(cfg.Level)
		if err == nil {
			zapCfg.Level = zap.NewAtomicLevelAt(level)
		}
	}

	logger, err := zapCfg.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to build logger: %v", err))
	}
	return logger
}

func initSecrets(ctx context.Context, cfg *config.Config, logger *zap.Logger) (domainports.SecretProvider, error) {
	switch cfg.Secrets.Provider {
	case "aws":
		return secrets.NewAWSProvider(ctx, secrets.AWSConfig{
			Region: cfg.Secrets.AWSRegion,
		}, logger)
	case "env":
		return secrets.NewEnvProvider(cfg.Secrets.EnvPrefix), nil
	default:
		return nil, fmt.Errorf("unknown secrets provider: %q", cfg.Secrets.Provider)
	}
}

func initDatabase(ctx context.Context, cfg *config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// initEvents connects the broker publisher, falling back to a noop publisher
// when no broker is configured or the connection fails. Payment submission
// must not depend on the broker being up.
func initEvents(cfg *config.Config, sm *shutdown.Manager, logger *zap.Logger) domainports.EventPublisher {
	if cfg.RabbitMQ.URL == "" {
		logger.Info("No broker configured, payment events disabled")
		return &rabbitmq.NoopPublisher{Logger: logger}
	}

	publisher, err := rabbitmq.NewPublisher(cfg.RabbitMQ.URL, logger)
	if err != nil {
		logger.Warn("Broker connection failed, payment events disabled", zap.Error(err))
		return &rabbitmq.NoopPublisher{Logger: logger}
	}

	sm.RegisterCloser("event_publisher", publisher)
	logger.Info("Event publisher connected")
	return publisher
}
