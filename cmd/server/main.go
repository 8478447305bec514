package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DukeRupert/ohscentric/internal"
	"github.com/DukeRupert/ohscentric/internal/ai"
	"github.com/DukeRupert/ohscentric/internal/ai/anthropic"
	aimock "github.com/DukeRupert/ohscentric/internal/ai/mock"
	"github.com/DukeRupert/ohscentric/internal/auth"
	"github.com/DukeRupert/ohscentric/internal/billing"
	"github.com/DukeRupert/ohscentric/internal/email"
	"github.com/DukeRupert/ohscentric/internal/handler"
	"github.com/DukeRupert/ohscentric/internal/metrics"
	"github.com/DukeRupert/ohscentric/internal/middleware"
	"github.com/DukeRupert/ohscentric/internal/repository"
	"github.com/DukeRupert/ohscentric/internal/service"
	"github.com/DukeRupert/ohscentric/internal/storage"
	"github.com/DukeRupert/ohscentric/internal/worker"
	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/sync/errgroup"
)

// Conversation turns per subscriber per minute, on top of the daily quota.
const chatRequestsPerMinute = 20

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database connection
	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Run migrations
	if err := internal.RunMigrations(db, logger); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database ready")

	// Initialize repository
	repo := repository.New(db)

	// Transcript storage
	store, err := storage.New(storage.Config{
		Provider: cfg.StorageProvider,
		Local:    storage.LocalConfig{BasePath: cfg.LocalStoragePath},
		R2: storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
		},
	}, logger)
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}
	logger.Info("Storage ready", "provider", cfg.StorageProvider)

	provider, err := newAIProvider(cfg, logger)
	if err != nil {
		return fmt.Errorf("AI provider initialization failed: %w", err)
	}

	tokens, err := auth.NewTokenIssuer(cfg.TokenSecret, cfg.BaseURL, cfg.TokenTTL)
	if err != nil {
		return fmt.Errorf("token issuer initialization failed: %w", err)
	}

	// Billing stays nil without Stripe credentials; its endpoints answer 501.
	var billingService billing.Service
	if cfg.StripeSecretKey != "" {
		billingService = billing.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookSecret, billing.PriceConfig{
			ProfessionalMonthlyPriceID: cfg.StripeProfessionalMonthlyPriceID,
		})
		logger.Info("Stripe billing enabled")
	} else {
		logger.Warn("Stripe billing disabled: STRIPE_SECRET_KEY not set")
	}

	// Initialize services
	userService := service.NewUserService(repo, tokens, service.UserServiceConfig{
		SessionDuration: cfg.TokenTTL,
		TrialDays:       cfg.TrialDays,
		AdminEmails:     cfg.AdminEmails,
	}, logger)
	usageService := service.NewUsageService(repo, logger)
	transcriptService := service.NewTranscriptService(store, cfg.TranscriptLimit, logger)
	chatService := service.NewChatService(provider, usageService, transcriptService, cfg.HistoryWindow, logger)
	billingEvents := service.NewBillingEventLog(repo)

	// Initialize middleware
	isSecure := cfg.IsProduction()
	authMw := middleware.NewAuthMiddleware(userService, logger)
	authLimiter := middleware.NewAuthRateLimiter(logger)
	chatLimiter := middleware.NewUserRateLimitMiddleware(
		middleware.NewRateLimiter(chatRequestsPerMinute, time.Minute, logger), logger)
	requestLogger := middleware.NewRequestLoggingMiddleware(logger)
	securityHeaders := middleware.NewSecurityHeadersMiddleware(isSecure)
	cors := middleware.NewCORS(cfg.CORSAllowedOrigins, logger)

	// Initialize handlers
	validate := handler.NewValidator()
	mailer, err := email.NewSMTPEmailService(email.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	}, logger)
	if err != nil {
		return fmt.Errorf("email initialization failed: %w", err)
	}
	authHandler := handler.NewAuthHandler(userService, authLimiter, mailer, validate, logger)
	usageHandler := handler.NewUsageHandler(usageService, logger)
	chatHandler := handler.NewChatHandler(chatService, transcriptService, validate, logger)
	billingHandler := handler.NewBillingHandler(billingService, userService, cfg.BaseURL, validate, logger)
	webhookHandler := handler.NewWebhookHandler(billingService, userService, billingEvents, logger)
	resourcesHandler := handler.NewResourcesHandler(logger)
	healthHandler := handler.NewHealthHandler(db, logger)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	healthHandler.RegisterRoutes(mux)
	resourcesHandler.RegisterRoutes(mux)
	webhookHandler.RegisterRoutes(mux)

	if cfg.MetricsEnabled {
		metricsAuth := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword)
		mux.Handle("GET /metrics", metricsAuth.Endpoint())
		if cfg.MetricsUsername == "" && cfg.MetricsPassword == "" {
			logger.Warn("/metrics is exposed without authentication")
		}
	}

	authHandler.RegisterRoutes(mux, authMw.RequireUser, handler.AuthLimits{
		Login:         authLimiter.LimitLogin,
		Register:      authLimiter.LimitRegister,
		PasswordReset: authLimiter.LimitPasswordReset,
	})
	usageHandler.RegisterRoutes(mux, authMw.RequireUser)
	chatHandler.RegisterRoutes(mux, middleware.Stack(authMw.RequireUser, chatLimiter.Limit))
	billingHandler.RegisterRoutes(mux, authMw.RequireUser)

	app := middleware.Stack(
		requestLogger.Handler,
		metrics.Middleware(mux),
		securityHeaders.Handler,
		cors,
		authMw.WithUser,
	)(mux)

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           app,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
		// No WriteTimeout: answers are streamed for as long as the provider
		// takes.
	}

	// Maintenance worker
	workerCfg := worker.DefaultConfig()
	workerCfg.Interval = cfg.MaintenanceInterval
	maintenance, err := worker.New(workerCfg, logger)
	if err != nil {
		return fmt.Errorf("worker initialization failed: %w", err)
	}
	maintenance.Register(worker.ExpiredSessions{Sessions: userService})
	maintenance.Register(worker.ExpiredResetTokens{Tokens: userService})
	maintenance.Register(worker.StaleUsage{Usage: usageService, RetentionDays: cfg.UsageRetentionDays})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	maintenance.Start(gctx)

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received, initiating graceful shutdown...")

		// Create shutdown context with timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		maintenance.Stop()
		authHandler.WaitForMail()
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Graceful shutdown complete")
	return nil
}

// newAIProvider builds the conversation transport named by AI_PROVIDER.
func newAIProvider(cfg *internal.Config, logger *slog.Logger) (ai.Provider, error) {
	switch cfg.AIProvider {
	case "anthropic":
		p, err := anthropic.New(anthropic.Config{
			APIKey: cfg.AnthropicAPIKey,
			Model:  cfg.AnthropicModel,
			ProviderConfig: ai.ProviderConfig{
				MaxRetries:     cfg.AIMaxRetries,
				RetryBaseDelay: cfg.AIRetryBaseDelay,
				RequestTimeout: cfg.AIRequestTimeout,
				MaxTokens:      cfg.AIMaxTokens,
			},
		}, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("AI provider ready", "provider", "anthropic", "model", cfg.AnthropicModel)
		return p, nil
	default:
		logger.Warn("Using mock AI provider")
		return aimock.New(logger), nil
	}
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
