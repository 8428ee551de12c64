package config

import (
	"errors"
	"os"
	"time"
)

// Config holds every secret and tunable the services need. It is built once
// in main and injected, so business logic never reads the environment.
type Config struct {
	AppPort     string
	BaseURL     string
	Environment string

	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioFromNumber  string
	LinkSigningSecret string
	JWTSecret         string

	StripeWebhookSecret string
	OpenAIAPIKey        string

	UseMemoryStore           bool
	DisableWebhookValidation bool

	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration

	OTPExpiry       time.Duration
	OTPResendWindow time.Duration
	OTPMaxAttempts  int

	UndoWindow   time.Duration
	IntakeExpiry time.Duration
}

// Defaults for time-based configuration.
const (
	DefaultAccessTokenExpiry  = 15 * time.Minute
	DefaultRefreshTokenExpiry = 7 * 24 * time.Hour
	DefaultOTPExpiry          = 5 * time.Minute
	DefaultOTPResendWindow    = 60 * time.Second
	DefaultOTPMaxAttempts     = 3
	DefaultUndoWindow         = 5 * time.Minute
	DefaultIntakeExpiry       = time.Hour
)

// Load reads configuration from the environment. A missing link-signing
// secret or JWT secret is a hard misconfiguration; missing Twilio or Stripe
// credentials only degrade the related features and are reported by callers.
func Load() (*Config, error) {
	cfg := &Config{
		AppPort:     getenv("PORT", "8080"),
		BaseURL:     getenv("BASE_URL", "http://localhost:8080"),
		Environment: getenv("ENVIRONMENT", "production"),

		TwilioAccountSID:  os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:   os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFromNumber:  os.Getenv("TWILIO_PHONE_NUMBER"),
		LinkSigningSecret: os.Getenv("LINK_SIGNING_SECRET"),
		JWTSecret:         os.Getenv("JWT_SECRET"),

		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		OpenAIAPIKey:        os.Getenv("OPENAI_API_KEY"),

		UseMemoryStore:           os.Getenv("USE_MEMORY_STORE") == "true",
		DisableWebhookValidation: os.Getenv("DISABLE_WEBHOOK_VALIDATION") == "true",

		AccessTokenExpiry:  DefaultAccessTokenExpiry,
		RefreshTokenExpiry: DefaultRefreshTokenExpiry,
		OTPExpiry:          DefaultOTPExpiry,
		OTPResendWindow:    DefaultOTPResendWindow,
		OTPMaxAttempts:     DefaultOTPMaxAttempts,
		UndoWindow:         DefaultUndoWindow,
		IntakeExpiry:       DefaultIntakeExpiry,
	}

	if cfg.LinkSigningSecret == "" {
		return nil, errors.New("LINK_SIGNING_SECRET is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	return cfg, nil
}

// WebhookValidationDisabled reports whether inbound webhook signature checks
// should be skipped. Only sensible for local development behind ngrok.
func (c *Config) WebhookValidationDisabled() bool {
	return c.Environment == "development" || c.DisableWebhookValidation
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
