package services

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"

	"github.com/tourcrow/payments-backend/internal/config"
	"github.com/tourcrow/payments-backend/pkg/jwt"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for any failed admin login
var ErrInvalidCredentials = fmt.Errorf("invalid email or password")

// AdminLoginResponse is returned after a successful admin login
type AdminLoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Email       string `json:"email"`
}

// AdminAuthService authenticates the operator account that reads the payment
// audit trail
type AdminAuthService struct {
	admin      config.AdminConfig
	jwtService *jwt.Service
}

// NewAdminAuthService creates a new admin auth service
func NewAdminAuthService(admin config.AdminConfig, jwtService *jwt.Service) *AdminAuthService {
	return &AdminAuthService{
		admin:      admin,
		jwtService: jwtService,
	}
}

// Login authenticates the admin and returns an access token
func (s *AdminAuthService) Login(ctx context.Context, email, password string) (*AdminLoginResponse, error) {
	if s.admin.Email == "" || s.admin.PasswordHash == "" {
		return nil, fmt.Errorf("admin login is not configured")
	}

	email = strings.ToLower(strings.TrimSpace(email))
	emailMatch := subtle.ConstantTimeCompare([]byte(email), []byte(strings.ToLower(s.admin.Email))) == 1

	// Always run bcrypt so a wrong email costs the same as a wrong password
	passwordErr := bcrypt.CompareHashAndPassword([]byte(s.admin.PasswordHash), []byte(password))
	if !emailMatch || passwordErr != nil {
		return nil, ErrInvalidCredentials
	}

	accessToken, err := s.jwtService.GenerateAccessToken(email, []string{jwt.RoleAdmin})
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	return &AdminLoginResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.jwtService.Expiry().Seconds()),
		Email:       email,
	}, nil
}

// HashPassword hashes an admin password for ADMIN_PASSWORD_HASH
func HashPassword(password string) (string, error) {
	if len(password) < 12 {
		return "", fmt.Errorf("password must be at least 12 characters")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}
