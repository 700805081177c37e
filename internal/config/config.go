package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Razorpay gateway configuration
	Razorpay RazorpayConfig

	// Confirmation email configuration
	Email EmailConfig

	// Public website configuration
	App AppConfig

	// Admin API configuration
	JWT   JWTConfig
	Admin AdminConfig

	// Rate limiting configuration
	RateLimit RateLimitConfig

	// CORS configuration
	CORS CORSConfig

	// Security configuration
	Security SecurityConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

// RazorpayConfig holds the gateway credentials.
// KeySecret signs checkout callbacks, WebhookSecret signs webhook bodies.
// They are two independent secrets and must never be swapped.
type RazorpayConfig struct {
	KeyID         string
	KeySecret     string // SECRET - never expose to client
	WebhookSecret string // SECRET - configured in the Razorpay dashboard
	APIBaseURL    string
	Timeout       time.Duration
	MerchantName  string // shown in the checkout widget
}

// EmailConfig holds Mailgun configuration
type EmailConfig struct {
	Mode        string // "dev" logs emails, "production" sends through Mailgun
	Domain      string
	APIKey      string
	APIBase     string // empty for the US region
	SenderName  string
	SenderEmail string
}

// AppConfig holds settings for links rendered into emails and checkout
type AppConfig struct {
	WebsiteURL  string
	DepositRate float64
}

// JWTConfig holds JWT-related configuration
type JWTConfig struct {
	Secret            string
	AccessTokenExpiry time.Duration
}

// AdminConfig holds the single operator account for the admin API
type AdminConfig struct {
	Email        string
	PasswordHash string // bcrypt hash, see cmd/generate-secrets
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Requests      int
	WindowSeconds int
	Burst         int
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	EnableRequestLog bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
		},
		Razorpay: RazorpayConfig{
			KeyID:         getEnv("RAZORPAY_KEY_ID", ""),
			KeySecret:     getEnv("RAZORPAY_KEY_SECRET", ""),
			WebhookSecret: getEnv("RAZORPAY_WEBHOOK_SECRET", ""),
			APIBaseURL:    getEnv("RAZORPAY_API_BASE_URL", "https://api.razorpay.com"),
			Timeout:       time.Duration(getEnvAsInt("RAZORPAY_TIMEOUT_SECONDS", 30)) * time.Second,
			MerchantName:  getEnv("RAZORPAY_MERCHANT_NAME", "Tourcrow"),
		},
		Email: EmailConfig{
			Mode:        getEnv("EMAIL_MODE", "dev"),
			Domain:      getEnv("MAILGUN_DOMAIN", ""),
			APIKey:      getEnv("MAILGUN_API_KEY", ""),
			APIBase:     getEnv("MAILGUN_API_BASE", ""),
			SenderName:  getEnv("EMAIL_SENDER_NAME", "Tourcrow"),
			SenderEmail: getEnv("EMAIL_SENDER_ADDRESS", "bookings@tourcrow.com"),
		},
		App: AppConfig{
			WebsiteURL:  strings.TrimRight(getEnv("WEBSITE_URL", ""), "/"),
			DepositRate: getEnvAsFloat("DEPOSIT_RATE", 0.25),
		},
		JWT: JWTConfig{
			Secret:            getEnv("JWT_SECRET", ""),
			AccessTokenExpiry: time.Duration(getEnvAsInt("JWT_ACCESS_TOKEN_EXPIRY", 3600)) * time.Second,
		},
		Admin: AdminConfig{
			Email:        getEnv("ADMIN_EMAIL", ""),
			PasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		},
		RateLimit: RateLimitConfig{
			Requests:      getEnvAsInt("RATE_LIMIT_REQUESTS", 30),
			WindowSeconds: getEnvAsInt("RATE_LIMIT_WINDOW_SECONDS", 60),
			Burst:         getEnvAsInt("RATE_LIMIT_BURST", 5),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization", "X-Request-ID"}),
		},
		Security: SecurityConfig{
			EnableRequestLog: getEnvAsBool("ENABLE_REQUEST_LOGGING", true),
		},
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration.
// Missing secrets abort start-up instead of surfacing on the first request.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Razorpay.KeyID == "" {
		return fmt.Errorf("RAZORPAY_KEY_ID is required")
	}

	if c.Razorpay.KeySecret == "" {
		return fmt.Errorf("RAZORPAY_KEY_SECRET is required")
	}

	if c.Razorpay.WebhookSecret == "" {
		return fmt.Errorf("RAZORPAY_WEBHOOK_SECRET is required")
	}

	if c.Razorpay.WebhookSecret == c.Razorpay.KeySecret {
		return fmt.Errorf("RAZORPAY_WEBHOOK_SECRET must differ from RAZORPAY_KEY_SECRET")
	}

	if c.App.WebsiteURL == "" {
		return fmt.Errorf("WEBSITE_URL is required")
	}

	if c.App.DepositRate <= 0 || c.App.DepositRate > 1 {
		return fmt.Errorf("DEPOSIT_RATE must be in (0, 1], got %v", c.App.DepositRate)
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	// Mailgun credentials are only needed when emails are actually sent
	switch c.Email.Mode {
	case "dev":
	case "production":
		if c.Email.Domain == "" {
			return fmt.Errorf("MAILGUN_DOMAIN is required in production email mode")
		}
		if c.Email.APIKey == "" {
			return fmt.Errorf("MAILGUN_API_KEY is required in production email mode")
		}
	default:
		return fmt.Errorf("invalid EMAIL_MODE: %s (must be 'dev' or 'production')", c.Email.Mode)
	}

	return nil
}

// Helper functions to get environment variables

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Invalid float value for %s, using default: %v", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid boolean value for %s, using default: %t", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
