package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tourcrow/payments-backend/internal/apperr"
	"github.com/tourcrow/payments-backend/internal/config"
	"github.com/tourcrow/payments-backend/internal/models"
)

// RazorpayService creates gateway orders. Order creation is the only gateway
// call the backend trusts; everything the gateway reports later arrives signed.
type RazorpayService struct {
	config *config.RazorpayConfig
	logger *logrus.Logger
	client *http.Client
}

// RazorpayOrderRequest represents the body of POST /v1/orders
type RazorpayOrderRequest struct {
	Amount   int64             `json:"amount"` // minor units
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    models.OrderNotes `json:"notes"`
}

// razorpayErrorResponse is the gateway's error envelope
type razorpayErrorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
		Reason      string `json:"reason"`
	} `json:"error"`
}

// NewRazorpayService creates a new Razorpay gateway client
func NewRazorpayService(cfg *config.RazorpayConfig, logger *logrus.Logger) *RazorpayService {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &RazorpayService{
		config: cfg,
		logger: logger,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// KeyID returns the public key id the checkout widget needs
func (s *RazorpayService) KeyID() string {
	return s.config.KeyID
}

// CreateOrder creates a new order on the gateway. Every call creates a new
// order; callers issue one per payment attempt.
func (s *RazorpayService) CreateOrder(ctx context.Context, req *RazorpayOrderRequest) (*models.PaymentOrder, error) {
	if s.config.KeyID == "" {
		return nil, apperr.Configuration("RAZORPAY_KEY_ID")
	}
	if s.config.KeySecret == "" {
		return nil, apperr.Configuration("RAZORPAY_KEY_SECRET")
	}
	if req.Amount <= 0 {
		return nil, apperr.Validation("amount", "must be greater than zero")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order request: %w", err)
	}

	endpoint := strings.TrimRight(s.config.APIBaseURL, "/") + "/v1/orders"

	s.logger.WithFields(logrus.Fields{
		"receipt":    req.Receipt,
		"amount":     req.Amount,
		"currency":   req.Currency,
		"booking_id": req.Notes.BookingID,
	}).Info("Creating Razorpay order")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.SetBasicAuth(s.config.KeyID, s.config.KeySecret)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		s.logger.WithError(err).Error("Razorpay order request failed")
		return nil, &apperr.GatewayError{
			StatusCode: http.StatusBadGateway,
			Message:    "order request failed",
			Err:        err,
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &apperr.GatewayError{
			StatusCode: http.StatusBadGateway,
			Message:    "failed to read order response",
			Err:        err,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		gwErr := parseGatewayError(resp.StatusCode, respBody)
		s.logger.WithFields(logrus.Fields{
			"status_code": resp.StatusCode,
			"code":        gwErr.Code,
			"description": gwErr.Message,
			"receipt":     req.Receipt,
		}).Error("Razorpay rejected order")
		return nil, gwErr
	}

	var order models.PaymentOrder
	if err := json.Unmarshal(respBody, &order); err != nil {
		return nil, &apperr.GatewayError{
			StatusCode: http.StatusBadGateway,
			Message:    "invalid order response",
			Err:        err,
		}
	}
	if order.ID == "" || order.Amount <= 0 {
		return nil, &apperr.GatewayError{
			StatusCode: http.StatusBadGateway,
			Message:    "order response is missing id or amount",
		}
	}

	s.logger.WithFields(logrus.Fields{
		"order_id":   order.ID,
		"receipt":    order.Receipt,
		"booking_id": req.Notes.BookingID,
	}).Info("Razorpay order created")

	return &order, nil
}

func parseGatewayError(status int, body []byte) *apperr.GatewayError {
	gwErr := &apperr.GatewayError{
		StatusCode: status,
		Message:    http.StatusText(status),
	}

	var parsed razorpayErrorResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Description != "" {
		gwErr.Code = parsed.Error.Code
		gwErr.Message = parsed.Error.Description
	}
	return gwErr
}
