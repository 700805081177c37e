package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Database: DatabaseConfig{URL: "postgres://localhost/tourcrow"},
		Razorpay: RazorpayConfig{
			KeyID:         "rzp_test_key",
			KeySecret:     "key-secret",
			WebhookSecret: "webhook-secret",
		},
		Email: EmailConfig{Mode: "dev"},
		App:   AppConfig{WebsiteURL: "https://tourcrow.com", DepositRate: 0.25},
		JWT:   JWTConfig{Secret: "jwt-secret"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing database", func(c *Config) { c.Database.URL = "" }, "DATABASE_URL is required"},
		{"missing key id", func(c *Config) { c.Razorpay.KeyID = "" }, "RAZORPAY_KEY_ID is required"},
		{"missing key secret", func(c *Config) { c.Razorpay.KeySecret = "" }, "RAZORPAY_KEY_SECRET is required"},
		{"missing webhook secret", func(c *Config) { c.Razorpay.WebhookSecret = "" }, "RAZORPAY_WEBHOOK_SECRET is required"},
		{"shared secret", func(c *Config) { c.Razorpay.WebhookSecret = c.Razorpay.KeySecret }, "must differ"},
		{"missing website", func(c *Config) { c.App.WebsiteURL = "" }, "WEBSITE_URL is required"},
		{"bad deposit rate", func(c *Config) { c.App.DepositRate = 1.5 }, "DEPOSIT_RATE"},
		{"missing jwt secret", func(c *Config) { c.JWT.Secret = "" }, "JWT_SECRET is required"},
		{"production email without domain", func(c *Config) {
			c.Email.Mode = "production"
			c.Email.APIKey = "key"
		}, "MAILGUN_DOMAIN is required"},
		{"production email without key", func(c *Config) {
			c.Email.Mode = "production"
			c.Email.Domain = "mg.tourcrow.com"
		}, "MAILGUN_API_KEY is required"},
		{"unknown email mode", func(c *Config) { c.Email.Mode = "smtp" }, "invalid EMAIL_MODE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetEnvAsSlice(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://tourcrow.com , ,https://www.tourcrow.com")
	assert.Equal(t,
		[]string{"https://tourcrow.com", "https://www.tourcrow.com"},
		getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
	)

	t.Setenv("CORS_ALLOWED_ORIGINS", " , ")
	assert.Equal(t, []string{"*"}, getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}))
}

func TestGetEnvAsNumbers(t *testing.T) {
	t.Setenv("DEPOSIT_RATE", "0.3")
	assert.Equal(t, 0.3, getEnvAsFloat("DEPOSIT_RATE", 0.25))

	t.Setenv("DEPOSIT_RATE", "abc")
	assert.Equal(t, 0.25, getEnvAsFloat("DEPOSIT_RATE", 0.25))

	t.Setenv("RATE_LIMIT_BURST", "x")
	assert.Equal(t, 5, getEnvAsInt("RATE_LIMIT_BURST", 5))
}

func TestLoad_StripsTrailingSlashFromWebsite(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/tourcrow")
	t.Setenv("RAZORPAY_KEY_ID", "rzp_test_key")
	t.Setenv("RAZORPAY_KEY_SECRET", "key-secret")
	t.Setenv("RAZORPAY_WEBHOOK_SECRET", "webhook-secret")
	t.Setenv("WEBSITE_URL", "https://tourcrow.com/")
	t.Setenv("JWT_SECRET", "jwt-secret")
	t.Setenv("EMAIL_MODE", "dev")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://tourcrow.com", cfg.App.WebsiteURL)
	assert.Equal(t, "https://api.razorpay.com", cfg.Razorpay.APIBaseURL)
}
