// Package main is the entrypoint for the Textship API server.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/textship/textship/internal/billing"
	"github.com/textship/textship/internal/cache"
	"github.com/textship/textship/internal/config"
	"github.com/textship/textship/internal/handler"
	"github.com/textship/textship/internal/metrics"
	"github.com/textship/textship/internal/middleware"
	"github.com/textship/textship/internal/provider"
	"github.com/textship/textship/internal/repository"
	"github.com/textship/textship/internal/server"
	"github.com/textship/textship/internal/service"
	"github.com/textship/textship/internal/usage"
)

func main() {
	// Initialize context
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg)

	// Initialize database
	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to database")

	// Initialize cache
	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	defer cacheClient.Close()
	logger.Info("connected to Redis")

	// Billing calculator from the configured rate tables
	calc := billing.NewCalculator(billing.Rates{
		EndpointMicro:        cfg.GetEndpointRates(),
		DefaultEndpointMicro: cfg.DefaultEndpointRateMicro,
		PerByteMicro:         cfg.PerByteRateMicro,
		SegmentMicro:         cfg.SegmentRateMicro,
	})

	// Upstream SMS provider client
	smsProvider := provider.NewClient(cfg.ProviderBaseURL, cfg.ProviderAPIKey, cfg.ProviderTimeout, logger)

	// Initialize services
	metricsRecorder := metrics.NewInMemory()
	senderIDService := service.NewSenderIDService(repo, cacheClient, metricsRecorder)
	dispatchService := service.NewDispatchService(senderIDService, repo, smsProvider, calc, metricsRecorder)
	otpService := service.NewOTPService(cacheClient, dispatchService, cfg.OTPLength, cfg.OTPTTL, cfg.OTPMaxAttempts, metricsRecorder)
	routeService := service.NewRouteService(repo)

	// Usage metering pipeline: publisher feeds the Redis stream, the
	// worker drains it into Postgres.
	usagePublisher := usage.NewPublisher(cacheClient.Client(), logger, metricsRecorder)
	usageRepo := repository.NewUsageRepository(repo)
	usageWorker := usage.NewWorker(cacheClient.Client(), usageRepo, logger, usage.NewConsumerID(), metricsRecorder)

	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	go func() {
		if err := usageWorker.Run(workerCtx); err != nil && workerCtx.Err() == nil {
			logger.Error("usage worker stopped", "error", err)
		}
	}()

	// Initialize handlers
	h := handler.New()
	healthHandler := handler.NewHealthHandler(repo, cacheClient)
	senderIDHandler := handler.NewSenderIDHandler(senderIDService, logger)
	smsHandler := handler.NewSMSHandler(dispatchService, logger)
	otpHandler := handler.NewOTPHandler(otpService, logger)
	routeHandler := handler.NewRouteHandler(routeService, logger)
	usageHandler := handler.NewUsageHandler(usageRepo, logger)
	walletHandler := handler.NewWalletHandler(repo, logger)
	apiKeyHandler := handler.NewAPIKeyHandler(logger, repo)
	adminHandler := handler.NewAdminHandler(repo, repo, logger)
	metricsHandler := handler.NewMetricsHandler(metricsRecorder)
	gatewayHandler := handler.NewGatewayHandler(routeService, logger)

	// Setup router
	r := setupRouter(routerDeps{
		base:     h,
		health:   healthHandler,
		senderID: senderIDHandler,
		sms:      smsHandler,
		otp:      otpHandler,
		route:    routeHandler,
		usage:    usageHandler,
		wallet:   walletHandler,
		apiKey:   apiKeyHandler,
		admin:    adminHandler,
		metrics:  metricsHandler,
		gateway:  gatewayHandler,
		repo:     repo,
		cache:    cacheClient,
		calc:     calc,
		usagePub: usagePublisher,
		cfg:      cfg,
		logger:   logger,
	})

	// Forwarded gateway requests re-enter the assembled router.
	gatewayHandler.SetRouter(r)

	// Create and run server
	srv := server.New(
		r,
		cfg.AppPort,
		cfg.ReadTimeout,
		cfg.WriteTimeout,
		cfg.ShutdownTimeout,
		logger,
	)

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"provider_url", redactURL(cfg.ProviderBaseURL),
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	// Drain the usage pipeline before exiting so accepted requests
	// still get billed.
	stopWorker()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := usageWorker.Shutdown(shutdownCtx); err != nil {
		logger.Error("usage worker shutdown error", "error", err)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	level := parseLogLevel(cfg.LogLevel)

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// routerDeps bundles everything setupRouter needs.
type routerDeps struct {
	base     *handler.Handler
	health   *handler.HealthHandler
	senderID *handler.SenderIDHandler
	sms      *handler.SMSHandler
	otp      *handler.OTPHandler
	route    *handler.RouteHandler
	usage    *handler.UsageHandler
	wallet   *handler.WalletHandler
	apiKey   *handler.APIKeyHandler
	admin    *handler.AdminHandler
	metrics  *handler.MetricsHandler
	gateway  *handler.GatewayHandler
	repo     *repository.Repository
	cache    *cache.Cache
	calc     *billing.Calculator
	usagePub *usage.Publisher
	cfg      *config.Config
	logger   *slog.Logger
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(deps routerDeps) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(deps.logger))
	r.Use(middleware.Recoverer(deps.logger))

	// Health endpoints (no auth required)
	r.Get("/healthz", deps.health.Healthz)
	r.Get("/readyz", deps.health.Readyz)

	// Root info endpoint
	r.Get("/", deps.base.Hello)

	// Prometheus-style metrics
	r.Get("/metrics", deps.metrics.Metrics)

	// Auth middleware configuration
	authCfg := middleware.AuthConfig{
		Logger:     deps.logger,
		Repository: deps.repo,
		Cache:      deps.cache,
	}

	// Rate limit middleware configuration
	rateLimitCfg := middleware.RateLimitConfig{
		Logger:         deps.logger,
		Cache:          deps.cache,
		APIEnabled:     deps.cfg.RateLimitAPIEnabled,
		GatewayEnabled: deps.cfg.RateLimitGatewayEnabled,
		GatewayRPS:     deps.cfg.RateLimitGatewayRPS,
		GatewayBurst:   deps.cfg.RateLimitGatewayBurst,
	}

	// API v1 routes (require authentication; every authenticated call
	// is metered for billing)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(authCfg))
		r.Use(middleware.RateLimitAPI(rateLimitCfg))
		r.Use(middleware.Metering(deps.usagePub, deps.calc))

		// Sender ID registration and review
		r.Route("/sender-ids", func(r chi.Router) {
			r.With(middleware.RequireRead()).Get("/", deps.senderID.List)
			r.With(middleware.RequireRead()).Get("/{id}", deps.senderID.Get)
			r.With(middleware.RequireWrite()).Post("/", deps.senderID.Submit)
		})

		// Client dispatch surface
		r.Route("/client", func(r chi.Router) {
			r.With(middleware.RequireSend()).Post("/sms/send", deps.sms.Send)
			r.With(middleware.RequireSend()).Post("/sms/send-bulk", deps.sms.SendBulk)
			r.With(middleware.RequireSend()).Post("/otp/send", deps.otp.Send)
			r.With(middleware.RequireSend()).Post("/otp/verify", deps.otp.Verify)

			r.Route("/routes", func(r chi.Router) {
				r.With(middleware.RequireRead()).Get("/", deps.route.List)
				r.With(middleware.RequireWrite()).Post("/", deps.route.Create)
				r.With(middleware.RequireWrite()).Delete("/{id}", deps.route.Delete)
			})

			r.With(middleware.RequireRead()).Get("/usage/summary", deps.usage.Summary)
			r.With(middleware.RequireRead()).Get("/usage/recent", deps.usage.Recent)
			r.With(middleware.RequireRead()).Get("/wallet", deps.wallet.Get)
		})

		// API key management (requires admin scope for mutations)
		r.Route("/api-keys", func(r chi.Router) {
			r.With(middleware.RequireRead()).Get("/", deps.apiKey.ListAPIKeys)
			r.With(middleware.RequireAdmin()).Post("/", deps.apiKey.CreateAPIKey)
			r.With(middleware.RequireAdmin()).Delete("/{key_id}", deps.apiKey.RevokeAPIKey)
			r.With(middleware.RequireAdmin()).Post("/{key_id}/rotate", deps.apiKey.RotateAPIKey)
		})

		// Admin surface
		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin())
			r.Get("/sender-ids", deps.admin.LookupSenderIDs)
			r.Put("/sender-ids/{id}/status", deps.senderID.SetStatus)
			r.Post("/wallets/{user_id}/credit", deps.wallet.AdminCredit)
			r.Get("/api-keys", deps.admin.ListAPIKeysByUser)
			r.Get("/stats", deps.admin.Stats)
		})
	})

	// Client gateway namespace: registered routes are forwarded to
	// their allow-listed internal targets.
	r.Route("/x", func(r chi.Router) {
		r.Use(middleware.Auth(authCfg))
		r.Use(middleware.RateLimitIP(rateLimitCfg))
		r.Handle("/*", http.HandlerFunc(deps.gateway.Forward))
	})

	// 404 and 405 handlers
	r.NotFound(deps.base.NotFound)
	r.MethodNotAllowed(deps.base.MethodNotAllowed)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
