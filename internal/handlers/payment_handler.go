package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/tourcrow/payments-backend/internal/models"
	"github.com/tourcrow/payments-backend/internal/services"
	"github.com/tourcrow/payments-backend/internal/utils"
)

// PaymentAPI is the payment service as the HTTP layer sees it
type PaymentAPI interface {
	CreateOrder(ctx context.Context, req *models.CreateOrderRequest, meta models.RequestMeta) (*models.CreateOrderResponse, error)
	VerifyPayment(ctx context.Context, req *models.VerifyPaymentRequest, meta models.RequestMeta) error
	RetryPayment(ctx context.Context, bookingID string, meta models.RequestMeta) (*models.CreateOrderResponse, error)
	CancelPayment(ctx context.Context, bookingID string, meta models.RequestMeta) error
	GetPaymentStatus(ctx context.Context, bookingID string) (*models.PaymentStatusResponse, error)
	CreateBooking(ctx context.Context, req *models.CreateBookingRequest) (*models.CreateBookingResponse, error)
}

// PaymentHandler handles checkout-side payment requests
type PaymentHandler struct {
	payments PaymentAPI
	logger   *logrus.Logger
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(payments PaymentAPI, logger *logrus.Logger) *PaymentHandler {
	return &PaymentHandler{
		payments: payments,
		logger:   logger,
	}
}

// VerifyPaymentResponse is returned once the booking is confirmed
type VerifyPaymentResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// CreateOrder handles POST /api/payment/create-order
func (h *PaymentHandler) CreateOrder(c *gin.Context) {
	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: services.MsgMissingFields})
		return
	}

	resp, err := h.payments.CreateOrder(c.Request.Context(), &req, utils.RequestMeta(c))
	if err != nil {
		respondError(c, h.logger, err, orderMessages)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// VerifyPayment handles POST /api/payment/verify
func (h *PaymentHandler) VerifyPayment(c *gin.Context) {
	var req models.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: services.MsgMissingFields})
		return
	}

	if err := h.payments.VerifyPayment(c.Request.Context(), &req, utils.RequestMeta(c)); err != nil {
		respondError(c, h.logger, err, verifyMessages)
		return
	}

	c.JSON(http.StatusOK, VerifyPaymentResponse{
		Success: true,
		Message: "Payment verified successfully",
	})
}

// RetryPayment handles POST /api/payment/retry
func (h *PaymentHandler) RetryPayment(c *gin.Context) {
	var req models.BookingActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: MsgInvalidRequestBody})
		return
	}

	resp, err := h.payments.RetryPayment(c.Request.Context(), req.BookingID, utils.RequestMeta(c))
	if err != nil {
		respondError(c, h.logger, err, orderMessages)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// CancelPayment handles POST /api/payment/cancel
func (h *PaymentHandler) CancelPayment(c *gin.Context) {
	var req models.BookingActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: MsgInvalidRequestBody})
		return
	}

	if err := h.payments.CancelPayment(c.Request.Context(), req.BookingID, utils.RequestMeta(c)); err != nil {
		respondError(c, h.logger, err, bookingMessages)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetPaymentStatus handles GET /api/payment/status/:bookingId
func (h *PaymentHandler) GetPaymentStatus(c *gin.Context) {
	resp, err := h.payments.GetPaymentStatus(c.Request.Context(), c.Param("bookingId"))
	if err != nil {
		respondError(c, h.logger, err, bookingMessages)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// CreateBooking handles POST /api/bookings
func (h *PaymentHandler) CreateBooking(c *gin.Context) {
	var req models.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: MsgInvalidRequestBody, Details: err.Error()})
		return
	}

	resp, err := h.payments.CreateBooking(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err, bookingMessages)
		return
	}

	c.JSON(http.StatusCreated, resp)
}
