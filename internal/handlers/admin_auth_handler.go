package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/tourcrow/payments-backend/internal/services"
	"github.com/tourcrow/payments-backend/internal/utils"
)

// AdminAuthenticator issues admin access tokens
type AdminAuthenticator interface {
	Login(ctx context.Context, email, password string) (*services.AdminLoginResponse, error)
}

// AdminAuthHandler handles admin authentication HTTP requests
type AdminAuthHandler struct {
	adminAuthService AdminAuthenticator
	logger           *logrus.Logger
}

// NewAdminAuthHandler creates a new admin auth handler
func NewAdminAuthHandler(adminAuthService AdminAuthenticator, logger *logrus.Logger) *AdminAuthHandler {
	return &AdminAuthHandler{
		adminAuthService: adminAuthService,
		logger:           logger,
	}
}

// AdminLoginRequest represents the admin login body
type AdminLoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login handles POST /api/admin/login
func (h *AdminAuthHandler) Login(c *gin.Context) {
	var req AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: MsgInvalidRequestBody, Details: err.Error()})
		return
	}

	response, err := h.adminAuthService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		fields := logrus.Fields{
			"email": req.Email,
			"ip":    utils.GetRealIP(c),
		}
		if errors.Is(err, services.ErrInvalidCredentials) {
			h.logger.WithFields(fields).Warn("Admin login failed")
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Invalid email or password"})
			return
		}
		h.logger.WithError(err).WithFields(fields).Error("Admin login unavailable")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "Admin login is not available"})
		return
	}

	h.logger.WithField("email", response.Email).Info("Admin login successful")
	c.JSON(http.StatusOK, response)
}
