package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venue-tickets-api/handshake"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("PROVIDER_MOSAD", "7000000")
	t.Setenv("PROVIDER_API_VALID", "token")
	t.Setenv("JWT_SECRET", "jwt-secret")
	t.Setenv("SESSION_SECRET", strings.Repeat("s", 32))
	t.Setenv("DB_HOST", "localhost:3306")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg := Load()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, handshake.PaymentRegular, cfg.Provider.PaymentType)
	assert.Equal(t, handshake.CurrencyUSD, cfg.Provider.Currency)
	assert.Equal(t, 1, cfg.Provider.Installments)
	assert.Equal(t, handshake.DefaultReadyTimeout, cfg.Checkout.ReadyTimeout)
	assert.Equal(t, handshake.DefaultOutcomeTimeout, cfg.Checkout.OutcomeTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Coupons.CacheTTL)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
}

func TestLoadOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PROVIDER_ORIGIN", "https://www.matara.pro")
	t.Setenv("PROVIDER_CURRENCY", "ils")
	t.Setenv("PROVIDER_PAYMENT_TYPE", "HK")
	t.Setenv("READY_TIMEOUT", "8")
	t.Setenv("OUTCOME_TIMEOUT", "90s")
	t.Setenv("DEBUG_HANDSHAKE", "true")
	t.Setenv("SALE_REPORT_EMAIL", "sales@venue.example")

	cfg := Load()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "https://www.matara.pro", cfg.Provider.TrustedOrigin)
	assert.Equal(t, handshake.CurrencyILS, cfg.Provider.Currency)
	assert.Equal(t, handshake.PaymentStandingOrder, cfg.Provider.PaymentType)
	assert.Equal(t, 8*time.Second, cfg.Checkout.ReadyTimeout)
	assert.Equal(t, 90*time.Second, cfg.Checkout.OutcomeTimeout)
	assert.True(t, cfg.Checkout.Debug)
	assert.Equal(t, "sales@venue.example", cfg.Checkout.SaleReportEmail)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:    "bad port",
			mutate:  func(c *Config) { c.Server.Port = "70000" },
			wantErr: "invalid server port",
		},
		{
			name:    "missing mosad",
			mutate:  func(c *Config) { c.Provider.Mosad = "" },
			wantErr: "PROVIDER_MOSAD",
		},
		{
			name:    "unknown currency",
			mutate:  func(c *Config) { c.Provider.Currency = "3" },
			wantErr: "PROVIDER_CURRENCY",
		},
		{
			name:    "origin with path",
			mutate:  func(c *Config) { c.Provider.TrustedOrigin = "https://matara.pro/iframe" },
			wantErr: "PROVIDER_ORIGIN",
		},
		{
			name:    "short session secret",
			mutate:  func(c *Config) { c.Session.Secret = "short" },
			wantErr: "SESSION_SECRET",
		},
		{
			name: "no coupon source",
			mutate: func(c *Config) {
				c.Coupons.ValidationURL = ""
				c.Database.Host = ""
			},
			wantErr: "COUPON_VALIDATION_URL",
		},
		{
			name:    "malformed report address",
			mutate:  func(c *Config) { c.Checkout.SaleReportEmail = "not an address" },
			wantErr: "SALE_REPORT_EMAIL",
		},
		{
			name:    "zero outcome timeout",
			mutate:  func(c *Config) { c.Checkout.OutcomeTimeout = 0 },
			wantErr: "outcome timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			cfg := Load()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
