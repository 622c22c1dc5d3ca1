package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	Port      string
	Env       string
	LogLevel  string
	LogFormat string

	// Session / CSRF tokens
	SessionSecret     string
	SessionTTL        time.Duration
	SessionCookieName string
	CSRFCookieName    string
	CookieDomain      string
	LoginPath         string

	// OTP issuance
	OTPProviderURL string
	OTPTTL         time.Duration
	OTPRatePerHour int

	// Commerce API
	CommerceAPIURL         string
	CommerceAPIToken       string
	CommerceConsumerKey    string
	CommerceConsumerSecret string
	CommerceTimeout        time.Duration

	// Payment gateway
	MerchantID         string
	PaymentCallbackURL string
	PaymentSandbox     bool

	// Shared store for multi-instance deployments (optional)
	RedisURL string

	AllowedOrigins    []string
	ProtectedPrefixes []string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:              envOr("PORT", "8080"),
		Env:               envOr("ENV", "development"),
		LogLevel:          envOr("LOG_LEVEL", "info"),
		LogFormat:         envOr("LOG_FORMAT", "json"),
		SessionCookieName: envOr("SESSION_COOKIE", "kdsid"),
		CSRFCookieName:    envOr("CSRF_COOKIE", "kdcsrf"),
		CookieDomain:      os.Getenv("COOKIE_DOMAIN"),
		LoginPath:         envOr("LOGIN_PATH", "/login"),

		OTPProviderURL: os.Getenv("OTP_PROVIDER_URL"),

		CommerceAPIURL:         os.Getenv("COMMERCE_API_URL"),
		CommerceAPIToken:       os.Getenv("COMMERCE_API_TOKEN"),
		CommerceConsumerKey:    os.Getenv("COMMERCE_CONSUMER_KEY"),
		CommerceConsumerSecret: os.Getenv("COMMERCE_CONSUMER_SECRET"),

		MerchantID:         os.Getenv("PAYMENT_MERCHANT_ID"),
		PaymentCallbackURL: os.Getenv("PAYMENT_CALLBACK_URL"),
		PaymentSandbox:     os.Getenv("PAYMENT_SANDBOX") == "true",

		RedisURL: os.Getenv("REDIS_URL"),

		AllowedOrigins:    envList("ALLOWED_ORIGINS", nil),
		ProtectedPrefixes: envList("PROTECTED_PREFIXES", []string{"/account", "/checkout"}),
	}

	// Load SESSION_SECRET (required)
	secret := os.Getenv("SESSION_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("SESSION_SECRET environment variable is required")
	}
	cfg.SessionSecret = secret

	var err error
	if cfg.SessionTTL, err = envDuration("SESSION_TTL", 72*time.Hour); err != nil {
		return nil, err
	}
	if cfg.CommerceTimeout, err = envDuration("COMMERCE_TIMEOUT", 8*time.Second); err != nil {
		return nil, err
	}

	ttlSeconds, err := envInt("OTP_TTL_SECONDS", 180)
	if err != nil {
		return nil, err
	}
	cfg.OTPTTL = time.Duration(ttlSeconds) * time.Second

	if cfg.OTPRatePerHour, err = envInt("OTP_ATTEMPT_RATE_PER_HOUR", 5); err != nil {
		return nil, err
	}

	return cfg, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return d, nil
}

func envList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
