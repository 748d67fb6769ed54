// Command gatehouse runs the authentication and authorization service: the
// self-service auth endpoints, the admin API and a separate health/metrics
// listener.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/platinummonkey/gatehouse/pkg/api"
	"github.com/platinummonkey/gatehouse/pkg/authn"
	"github.com/platinummonkey/gatehouse/pkg/config"
	"github.com/platinummonkey/gatehouse/pkg/credentials"
	"github.com/platinummonkey/gatehouse/pkg/identity"
	"github.com/platinummonkey/gatehouse/pkg/identity/postgres"
	"github.com/platinummonkey/gatehouse/pkg/middleware"
	"github.com/platinummonkey/gatehouse/pkg/observability"
	"github.com/platinummonkey/gatehouse/pkg/tokens"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "gatehouse: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := observability.NewLogger(parseLogLevel(cfg.Observability.LogLevel), os.Stdout)
	logger.Info("starting gatehouse")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Connect(postgres.Config{
		URL:         cfg.Database.URL,
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		Timeout:     cfg.Database.Timeout,
		MaxLifetime: cfg.Database.MaxLifetime,
		MaxIdleTime: cfg.Database.MaxIdleTime,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	if err := postgres.Migrate(ctx, db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Info("migrations applied")

	store := postgres.NewStore(db)

	issuer, err := tokens.NewIssuer(cfg.Auth.SecretKey, cfg.Auth.Algorithm, cfg.Auth.AccessTokenExpireMinutes)
	if err != nil {
		return err
	}

	policy, err := credentials.NewPolicy(cfg.Auth.PasswordRegex, cfg.Auth.PasswordHelp)
	if err != nil {
		return fmt.Errorf("invalid password policy pattern: %w", err)
	}
	hasher := credentials.NewHasher(cfg.Auth.BcryptCost)

	hooks := []authn.Hook{
		func(ctx context.Context, user *identity.User) error {
			logger.WithField("email", user.Email).Info("user registered")
			return nil
		},
	}
	service := authn.NewService(store, issuer, hasher, policy, hooks, logger)

	var redisClient *redis.Client
	if cfg.Auth.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.Auth.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid redis URL: %w", err)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
	}

	registry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
		metrics.CollectDBStats(ctx, db, 0)
	}

	limitConfig := middleware.DefaultLoginRateLimitConfig()
	limitConfig.RequestsPerWindow = cfg.Auth.LoginRateLimit
	var limiter middleware.Limiter
	if redisClient != nil {
		limiter = middleware.NewDistributedRateLimiter(redisClient, limitConfig, "")
	} else {
		limiter, err = middleware.NewRateLimiter(limitConfig)
		if err != nil {
			return err
		}
	}

	server := api.NewServer(service, store, metrics, api.Options{
		LoginLimiter: middleware.LoginRateLimit(limiter, limitConfig.WindowDuration, metrics),
	})

	router := mux.NewRouter()
	router.Use(middleware.RequestLogger(logger))
	if metrics != nil {
		router.Use(observability.HTTPMetricsMiddleware(metrics))
	}
	server.RegisterRoutes(router)

	apiServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(db, redisClient))
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Observability.HealthPort),
		Handler: healthMux,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.WithField("addr", apiServer.Addr).Info("api listening")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	go func() {
		logger.WithField("addr", healthServer.Addr).Info("health listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("api shutdown incomplete")
	}
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("health shutdown incomplete")
	}

	logger.Info("gatehouse stopped")
	return nil
}

func parseLogLevel(level string) observability.LogLevel {
	switch level {
	case "debug":
		return observability.DebugLevel
	case "warn":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}
