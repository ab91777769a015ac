package config

import (
	"fmt"
	"log"
	"net/mail"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"venue-tickets-api/database"
	"venue-tickets-api/handshake"
	"venue-tickets-api/services/email"
)

type Config struct {
	Database database.DatabaseConfig
	Provider handshake.ProviderConfig
	Checkout CheckoutConfig
	Coupons  CouponConfig
	Session  SessionConfig
	SMTP     email.SMTPConfig
	Server   ServerConfig
	Redis    RedisConfig
}

type CheckoutConfig struct {
	ReadyTimeout   time.Duration
	OutcomeTimeout time.Duration
	SessionTTL     time.Duration
	TokenSecret    string
	LocaleFile     string
	Debug          bool

	// SaleReportEmail receives a report for every checkout the buyer's page
	// reports as paid. Empty disables the reports.
	SaleReportEmail string
}

type CouponConfig struct {
	// ValidationURL points at a remote discount-validation endpoint. When
	// empty, coupons are validated against the local database.
	ValidationURL string
	Timeout       time.Duration
	CacheTTL      time.Duration
}

type SessionConfig struct {
	Secret string
	Domain string
	MaxAge int
	Secure bool
}

type ServerConfig struct {
	Port        string
	OtelEnabled bool
}

type RedisConfig struct {
	URL               string
	WorkerConcurrency int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	cfg := &Config{
		Database: database.DatabaseConfig{
			Host:     os.Getenv("DB_HOST"),
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			DBName:   os.Getenv("DB_NAME"),
		},
		Provider: handshake.ProviderConfig{
			Mosad:               os.Getenv("PROVIDER_MOSAD"),
			ApiValid:            os.Getenv("PROVIDER_API_VALID"),
			PaymentType:         handshake.PaymentType(getEnv("PROVIDER_PAYMENT_TYPE", string(handshake.PaymentRegular))),
			Currency:            handshake.Currency(getEnv("PROVIDER_CURRENCY", string(handshake.CurrencyUSD))),
			Installments:        getEnvInt("PROVIDER_INSTALLMENTS", 1),
			Group:               os.Getenv("PROVIDER_GROUPE"),
			Street:              os.Getenv("PROVIDER_STREET"),
			City:                os.Getenv("PROVIDER_CITY"),
			CallbackURL:         os.Getenv("PROVIDER_CALLBACK_URL"),
			CallbackMailError:   os.Getenv("PROVIDER_CALLBACK_MAIL_ERROR"),
			ThirdPartyReceipt:   getEnvBool("PROVIDER_THIRD_PARTY_RECEIPT", false),
			ForceUpdateMatching: getEnvBool("PROVIDER_FORCE_UPDATE_MATCHING", false),
			TrustedOrigin:       getEnv("PROVIDER_ORIGIN", "https://matara.pro"),
			FrameURL:            getEnv("PROVIDER_FRAME_URL", "https://matara.pro/nedarimplus/iframe/"),
		},
		Checkout: CheckoutConfig{
			ReadyTimeout:    getEnvDuration("READY_TIMEOUT", handshake.DefaultReadyTimeout),
			OutcomeTimeout:  getEnvDuration("OUTCOME_TIMEOUT", handshake.DefaultOutcomeTimeout),
			SessionTTL:      getEnvDuration("CHECKOUT_SESSION_TTL", 30*time.Minute),
			TokenSecret:     os.Getenv("JWT_SECRET"),
			LocaleFile:      os.Getenv("LOCALE_FILE"),
			Debug:           getEnvBool("DEBUG_HANDSHAKE", false),
			SaleReportEmail: os.Getenv("SALE_REPORT_EMAIL"),
		},
		Coupons: CouponConfig{
			ValidationURL: os.Getenv("COUPON_VALIDATION_URL"),
			Timeout:       getEnvDuration("COUPON_VALIDATION_TIMEOUT", 5*time.Second),
			CacheTTL:      getEnvDuration("COUPON_CACHE_TTL", 5*time.Minute),
		},
		Session: SessionConfig{
			Secret: os.Getenv("SESSION_SECRET"),
			Domain: os.Getenv("SESSION_DOMAIN"),
			MaxAge: getEnvInt("SESSION_MAX_AGE", 86400*365),
			Secure: getEnvBool("SESSION_SECURE", true),
		},
		SMTP: email.SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     os.Getenv("SMTP_PORT"),
			Username: os.Getenv("SMTP_USER"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     getEnv("SMTP_FROM", "no-reply@matara.pro"),
		},
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			OtelEnabled: getEnvBool("OTEL_ENABLED", false),
		},
		Redis: RedisConfig{
			URL:               os.Getenv("REDIS_URL"),
			WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 2),
		},
	}

	// Use default Redis URL if not set
	if cfg.Redis.URL == "" {
		cfg.Redis.URL = "redis://localhost:6379/0"
		log.Printf("Warning: REDIS_URL not set, using default: %s", cfg.Redis.URL)
	}

	log.Printf("Config loaded: port=%s origin=%s frame=%s coupons=%s",
		cfg.Server.Port, cfg.Provider.TrustedOrigin, cfg.Provider.FrameURL, cfg.couponSource())

	return cfg
}

func (c *Config) couponSource() string {
	if c.Coupons.ValidationURL != "" {
		return c.Coupons.ValidationURL
	}
	return "database"
}

func (c *Config) Validate() error {
	port, err := strconv.Atoi(c.Server.Port)
	if err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("invalid server port: %q (must be 1-65535)", c.Server.Port)
	}

	if c.Provider.Mosad == "" {
		return fmt.Errorf("PROVIDER_MOSAD must be set")
	}
	if c.Provider.ApiValid == "" {
		return fmt.Errorf("PROVIDER_API_VALID must be set")
	}
	paymentType, err := handshake.ParsePaymentType(string(c.Provider.PaymentType))
	if err != nil {
		return fmt.Errorf("invalid PROVIDER_PAYMENT_TYPE: %w", err)
	}
	c.Provider.PaymentType = paymentType
	currency, err := handshake.ParseCurrency(string(c.Provider.Currency))
	if err != nil {
		return fmt.Errorf("invalid PROVIDER_CURRENCY: %w", err)
	}
	c.Provider.Currency = currency
	if c.Provider.Installments < 1 {
		return fmt.Errorf("installments must be at least 1, got %d", c.Provider.Installments)
	}
	if _, err := handshake.NormalizeOrigin(c.Provider.TrustedOrigin); err != nil {
		return fmt.Errorf("invalid PROVIDER_ORIGIN: %w", err)
	}
	if !strings.HasPrefix(c.Provider.FrameURL, "https://") && !strings.HasPrefix(c.Provider.FrameURL, "http://") {
		return fmt.Errorf("invalid PROVIDER_FRAME_URL: %q", c.Provider.FrameURL)
	}

	if c.Checkout.ReadyTimeout <= 0 {
		return fmt.Errorf("ready timeout must be positive, got %s", c.Checkout.ReadyTimeout)
	}
	if c.Checkout.OutcomeTimeout <= 0 {
		return fmt.Errorf("outcome timeout must be positive, got %s", c.Checkout.OutcomeTimeout)
	}
	if c.Checkout.SessionTTL <= 0 {
		return fmt.Errorf("checkout session ttl must be positive, got %s", c.Checkout.SessionTTL)
	}
	if c.Checkout.TokenSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set")
	}
	if c.Checkout.SaleReportEmail != "" {
		if _, err := mail.ParseAddress(c.Checkout.SaleReportEmail); err != nil {
			return fmt.Errorf("invalid SALE_REPORT_EMAIL: %w", err)
		}
	}
	if len(c.Session.Secret) < 32 {
		return fmt.Errorf("SESSION_SECRET must be at least 32 bytes")
	}

	if c.Coupons.ValidationURL == "" && c.Database.Host == "" {
		return fmt.Errorf("either COUPON_VALIDATION_URL or DB_HOST must be set")
	}
	if c.Coupons.CacheTTL < 0 {
		return fmt.Errorf("coupon cache ttl cannot be negative")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Warning: invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("Warning: invalid %s=%q, using %t", key, v, fallback)
		return fallback
	}
	return b
}

// getEnvDuration accepts Go durations ("90s") or a plain number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	log.Printf("Warning: invalid %s=%q, using %s", key, v, fallback)
	return fallback
}
