package internal

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env         string
	Port        int
	LogLevel    string
	DatabaseUrl string

	// Public URL of the server, used as the credential issuer.
	BaseURL string

	// Bearer credentials
	TokenSecret string
	TokenTTL    time.Duration

	// Browser origins allowed to call the API (comma separated in env).
	CORSAllowedOrigins []string

	// Trial and quota
	TrialDays       int
	HistoryWindow   int // prior turns forwarded with each question
	TranscriptLimit int // turns kept per subscriber

	// Storage Configuration (conversation transcripts)
	StorageProvider string // "local" or "r2"

	// Local Storage (development)
	LocalStoragePath string

	// R2 Storage (production)
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string

	// AI Provider Configuration
	AIProvider       string // "anthropic" or "mock"
	AnthropicAPIKey  string
	AnthropicModel   string
	AIMaxTokens      int
	AIMaxRetries     int
	AIRetryBaseDelay time.Duration
	AIRequestTimeout time.Duration

	// SMTP Email Configuration (password reset mail)
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string

	// Admin access control
	AdminEmails []string // Accounts registered with these emails get the admin role

	// Stripe Billing Configuration
	// Billing endpoints answer 501 while the secret key is empty.
	StripeSecretKey                  string
	StripeWebhookSecret              string
	StripeProfessionalMonthlyPriceID string

	// Metrics endpoint authentication
	// If both are empty, the /metrics endpoint will be unprotected (not recommended)
	MetricsEnabled  bool
	MetricsUsername string
	MetricsPassword string

	// Background maintenance: expired sessions and old usage counters
	MaintenanceInterval time.Duration
	UsageRetentionDays  int
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "debug"),
		BaseURL:  getEnv("BASE_URL", "http://localhost:8080"),

		TokenSecret: os.Getenv("TOKEN_SECRET"),
		TokenTTL:    getEnvDuration("TOKEN_TTL", 7*24*time.Hour),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", "http://localhost:5173", false),

		TrialDays:       getEnvInt("TRIAL_DAYS", 3),
		HistoryWindow:   getEnvInt("HISTORY_WINDOW", 10),
		TranscriptLimit: getEnvInt("TRANSCRIPT_LIMIT", 200),

		// Storage defaults to local filesystem for development
		StorageProvider:  getEnv("STORAGE_PROVIDER", "local"),
		LocalStoragePath: getEnv("LOCAL_STORAGE_PATH", "./storage"),

		// R2 configuration (production only)
		R2AccountID:       getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2BucketName:      getEnv("R2_BUCKET_NAME", ""),

		// AI provider defaults
		AIProvider:       getEnv("AI_PROVIDER", "mock"),
		AnthropicAPIKey:  getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:   getEnv("ANTHROPIC_MODEL", "claude-3-5-sonnet-20241022"),
		AIMaxTokens:      getEnvInt("AI_MAX_TOKENS", 1024),
		AIMaxRetries:     getEnvInt("AI_MAX_RETRIES", 3),
		AIRetryBaseDelay: getEnvDuration("AI_RETRY_BASE_DELAY", 1*time.Second),
		AIRequestTimeout: getEnvDuration("AI_REQUEST_TIMEOUT", 60*time.Second),

		// SMTP (defaults to Mailhog for local development)
		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnvInt("SMTP_PORT", 1025),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@ohscentric.com"),
		SMTPFromName: getEnv("SMTP_FROM_NAME", "Ohscentric"),

		AdminEmails: getEnvList("ADMIN_EMAILS", "", true),

		// Stripe billing (optional)
		StripeSecretKey:                  getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret:              getEnv("STRIPE_WEBHOOK_SECRET", ""),
		StripeProfessionalMonthlyPriceID: getEnv("STRIPE_PROFESSIONAL_MONTHLY_PRICE_ID", ""),

		// Metrics authentication
		MetricsEnabled:  getEnvBool("METRICS_ENABLED", true),
		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),

		MaintenanceInterval: getEnvDuration("MAINTENANCE_INTERVAL", time.Hour),
		UsageRetentionDays:  getEnvInt("USAGE_RETENTION_DAYS", 90),
	}

	// Required
	cfg.DatabaseUrl = os.Getenv("DATABASE_URL")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required settings and cross-field constraints.
func (c *Config) Validate() error {
	if c.DatabaseUrl == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if len(c.TokenSecret) < 32 {
		return fmt.Errorf("TOKEN_SECRET must be at least 32 characters")
	}
	if c.TrialDays < 0 {
		return fmt.Errorf("TRIAL_DAYS must not be negative, got: %d", c.TrialDays)
	}

	// Validate storage configuration
	switch c.StorageProvider {
	case "local":
	case "r2":
		if c.R2AccountID == "" {
			return fmt.Errorf("R2_ACCOUNT_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if c.R2AccessKeyID == "" {
			return fmt.Errorf("R2_ACCESS_KEY_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if c.R2SecretAccessKey == "" {
			return fmt.Errorf("R2_SECRET_ACCESS_KEY is required when STORAGE_PROVIDER is 'r2'")
		}
		if c.R2BucketName == "" {
			return fmt.Errorf("R2_BUCKET_NAME is required when STORAGE_PROVIDER is 'r2'")
		}
	default:
		return fmt.Errorf("STORAGE_PROVIDER must be either 'local' or 'r2', got: %s", c.StorageProvider)
	}

	// Validate AI provider configuration
	switch c.AIProvider {
	case "mock":
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required when AI_PROVIDER is 'anthropic'")
		}
	default:
		return fmt.Errorf("AI_PROVIDER must be either 'anthropic' or 'mock', got: %s", c.AIProvider)
	}

	if c.SMTPPort < 1 || c.SMTPPort > 65535 {
		return fmt.Errorf("SMTP_PORT must be between 1 and 65535, got: %d", c.SMTPPort)
	}

	if c.MaintenanceInterval <= 0 {
		return fmt.Errorf("MAINTENANCE_INTERVAL must be positive, got: %s", c.MaintenanceInterval)
	}
	if c.UsageRetentionDays < 1 {
		return fmt.Errorf("USAGE_RETENTION_DAYS must be at least 1, got: %d", c.UsageRetentionDays)
	}

	if c.StripeSecretKey != "" && c.StripeProfessionalMonthlyPriceID == "" {
		return fmt.Errorf("STRIPE_PROFESSIONAL_MONTHLY_PRICE_ID is required when STRIPE_SECRET_KEY is set")
	}
	return nil
}

// IsProduction reports whether the server runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// getEnvList splits a comma-separated variable, dropping empty entries.
func getEnvList(key, fallback string, lower bool) []string {
	var out []string
	for _, item := range strings.Split(getEnv(key, fallback), ",") {
		item = strings.TrimSpace(item)
		if lower {
			item = strings.ToLower(item)
		}
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
