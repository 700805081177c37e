package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/tourcrow/payments-backend/internal/apperr"
	"github.com/tourcrow/payments-backend/internal/utils"
)

// Client-facing error messages
const (
	MsgInvalidRequestBody      = "Invalid request body"
	MsgBookingNotFound         = "Booking not found"
	MsgConfigurationError      = "Configuration error"
	MsgInvalidPaymentSignature = "Invalid payment signature"
	MsgInvalidSignature        = "Invalid signature"
	MsgPayloadTooLarge         = "Payload too large"
	MsgInternalError           = "Internal server error"
)

// errorMessages holds the per-endpoint wording for each error kind
type errorMessages struct {
	signature   string
	persistence string
	fallback    string
}

var (
	verifyMessages = errorMessages{
		signature:   MsgInvalidPaymentSignature,
		persistence: "Failed to update booking status",
		fallback:    "Payment verification failed",
	}
	webhookMessages = errorMessages{
		signature:   MsgInvalidSignature,
		persistence: "Database update failed",
		fallback:    "Webhook processing failed",
	}
	orderMessages = errorMessages{
		persistence: "Failed to load booking",
		fallback:    "Failed to create payment order",
	}
	bookingMessages = errorMessages{
		persistence: "Failed to process booking",
		fallback:    MsgInternalError,
	}
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// respondError maps a service error onto a status code and message
func respondError(c *gin.Context, logger *logrus.Logger, err error, msgs errorMessages) {
	status := apperr.HTTPStatus(err)
	resp := ErrorResponse{Error: msgs.fallback}

	var (
		validationErr *apperr.ValidationError
		gatewayErr    *apperr.GatewayError
	)
	switch {
	case errors.As(err, &validationErr):
		resp.Error = validationErr.Error()
	case apperr.IsSignatureMismatch(err):
		resp.Error = msgs.signature
	case apperr.IsNotFound(err):
		resp.Error = MsgBookingNotFound
	case apperr.IsConfiguration(err):
		resp.Error = MsgConfigurationError
	case apperr.IsPersistence(err):
		resp.Error = msgs.persistence
	case errors.As(err, &gatewayErr):
		resp.Details = gatewayErr.Message
	}

	entry := logger.WithError(err).WithFields(logrus.Fields{
		"kind":       apperr.Kind(err),
		"status":     status,
		"path":       c.Request.URL.Path,
		"request_id": utils.GetRequestID(c),
	})
	if status >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Warn("Request rejected")
	}

	c.JSON(status, resp)
}
