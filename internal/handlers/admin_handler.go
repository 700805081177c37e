package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/tourcrow/payments-backend/internal/models"
)

// AuditReader reads the payment audit ledger
type AuditReader interface {
	BookingTrail(ctx context.Context, bookingID string) ([]*models.PaymentAudit, error)
	Anomalies(ctx context.Context, limit int) ([]*models.PaymentAudit, error)
}

// AdminHandler serves the operator's read-only payment views
type AdminHandler struct {
	audit  AuditReader
	logger *logrus.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(audit AuditReader, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{
		audit:  audit,
		logger: logger,
	}
}

// GetBookingAudit handles GET /api/admin/bookings/:id/audit
func (h *AdminHandler) GetBookingAudit(c *gin.Context) {
	bookingID := c.Param("id")

	events, err := h.audit.BookingTrail(c.Request.Context(), bookingID)
	if err != nil {
		h.logger.WithError(err).WithField("booking_id", bookingID).Error("Failed to load payment audit trail")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to load audit trail"})
		return
	}
	if events == nil {
		events = []*models.PaymentAudit{}
	}

	c.JSON(http.StatusOK, gin.H{
		"booking_id": bookingID,
		"events":     events,
		"count":      len(events),
	})
}

// GetAnomalies handles GET /api/admin/payments/anomalies?limit=N
func (h *AdminHandler) GetAnomalies(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a number"})
			return
		}
		limit = parsed
	}

	anomalies, err := h.audit.Anomalies(c.Request.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load payment anomalies")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to load anomalies"})
		return
	}
	if anomalies == nil {
		anomalies = []*models.PaymentAudit{}
	}

	c.JSON(http.StatusOK, gin.H{
		"anomalies": anomalies,
		"count":     len(anomalies),
	})
}
