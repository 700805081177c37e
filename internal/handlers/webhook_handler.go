package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/tourcrow/payments-backend/internal/models"
	"github.com/tourcrow/payments-backend/internal/services"
	"github.com/tourcrow/payments-backend/internal/utils"
)

// MaxWebhookBodyBytes caps the webhook body read into memory
const MaxWebhookBodyBytes = 64 << 10

// Razorpay webhook headers
const (
	HeaderWebhookSignature = "X-Razorpay-Signature"
	HeaderWebhookEventID   = "X-Razorpay-Event-Id"
)

// WebhookProcessor applies a verified webhook delivery
type WebhookProcessor interface {
	Process(ctx context.Context, d services.WebhookDelivery) (*models.WebhookResult, error)
}

// WebhookHandler receives gateway webhooks
type WebhookHandler struct {
	webhooks WebhookProcessor
	logger   *logrus.Logger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(webhooks WebhookProcessor, logger *logrus.Logger) *WebhookHandler {
	return &WebhookHandler{
		webhooks: webhooks,
		logger:   logger,
	}
}

// HandleRazorpay handles POST /api/webhooks/razorpay. The body is read raw
// since the signature covers the exact bytes sent.
func (h *WebhookHandler) HandleRazorpay(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, MaxWebhookBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.logger.WithField("limit", MaxWebhookBodyBytes).Warn("Webhook body too large")
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: MsgPayloadTooLarge})
			return
		}
		h.logger.WithError(err).Warn("Failed to read webhook body")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: services.MsgInvalidPayload})
		return
	}

	result, err := h.webhooks.Process(c.Request.Context(), services.WebhookDelivery{
		Body:      body,
		Signature: c.GetHeader(HeaderWebhookSignature),
		EventID:   c.GetHeader(HeaderWebhookEventID),
		Meta:      utils.RequestMeta(c),
	})
	if err != nil {
		respondError(c, h.logger, err, webhookMessages)
		return
	}

	c.JSON(http.StatusOK, result)
}
