package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tourcrow/payments-backend/internal/apperr"
	"github.com/tourcrow/payments-backend/internal/database"
	"github.com/tourcrow/payments-backend/internal/models"
	"github.com/tourcrow/payments-backend/pkg/money"
	"github.com/tourcrow/payments-backend/pkg/signature"
)

// Messages returned to the gateway for rejected deliveries
const (
	MsgMissingSignature     = "Missing signature"
	MsgInvalidPayload       = "Invalid payload"
	MsgBookingNotIdentified = "Booking not identified"
	MsgPaymentNotIdentified = "Payment not identified"
)

// PaymentRecorder applies payment outcomes to bookings
type PaymentRecorder interface {
	ConfirmBooking(ctx context.Context, pc PaymentConfirmation) (ConfirmOutcome, error)
	RecordFailure(ctx context.Context, bookingID, paymentID, orderID, reason string, meta models.RequestMeta) error
}

// RefundStore records refunds against the booking holding the payment
type RefundStore interface {
	RecordRefund(ctx context.Context, p database.RefundParams) (*database.RefundResult, error)
}

// WebhookDelivery is one POST from the gateway
type WebhookDelivery struct {
	Body      []byte
	Signature string
	EventID   string
	Meta      models.RequestMeta
}

// WebhookService verifies and applies gateway webhooks. Every handler is
// idempotent so gateway redeliveries are safe.
type WebhookService struct {
	payments PaymentRecorder
	refunds  RefundStore
	audit    *AuditService
	secret   string
	logger   *logrus.Logger
}

// NewWebhookService creates a new webhook service
func NewWebhookService(payments PaymentRecorder, refunds RefundStore, audit *AuditService, webhookSecret string, logger *logrus.Logger) *WebhookService {
	return &WebhookService{
		payments: payments,
		refunds:  refunds,
		audit:    audit,
		secret:   webhookSecret,
		logger:   logger,
	}
}

// Process verifies the delivery signature over the raw body, then dispatches
// on the event type
func (s *WebhookService) Process(ctx context.Context, d WebhookDelivery) (*models.WebhookResult, error) {
	start := time.Now()

	if err := s.verify(ctx, d); err != nil {
		return nil, err
	}

	if d.EventID != "" {
		seen, err := s.audit.HasProcessed(ctx, d.EventID)
		if err != nil {
			s.logger.WithError(err).WithField("event_id", d.EventID).Warn("Duplicate check failed, processing anyway")
		} else if seen {
			s.logger.WithField("event_id", d.EventID).Info("Webhook already processed")
			return &models.WebhookResult{Status: models.WebhookStatusAlreadyProcessed}, nil
		}
	}

	var event models.WebhookEvent
	if err := json.Unmarshal(d.Body, &event); err != nil {
		s.logger.WithError(err).Warn("Webhook payload is not valid JSON")
		return nil, apperr.Validation("", MsgInvalidPayload)
	}

	s.logger.WithFields(logrus.Fields{
		"event":    event.Event,
		"event_id": d.EventID,
	}).Info("Webhook verified")

	s.audit.Record(ctx, models.NewPaymentAudit(models.PaymentEventWebhookReceived, models.PaymentSourceRazorpayWebhook).
		SetGatewayEvent(event.Event).
		SetRawBody(d.Body).
		SetMetadata(d.Meta))

	var (
		result *models.WebhookResult
		err    error
	)
	switch event.Event {
	case models.WebhookEventPaymentAuthorized, models.WebhookEventPaymentCaptured:
		result, err = s.handlePaymentAuthorized(ctx, event, d)
	case models.WebhookEventPaymentFailed:
		result, err = s.handlePaymentFailed(ctx, event, d)
	case models.WebhookEventRefundProcessed:
		result, err = s.handleRefundProcessed(ctx, event, d)
	default:
		s.logger.WithField("event", event.Event).Info("No handler for webhook event")
		return &models.WebhookResult{Status: models.WebhookStatusUnhandled}, nil
	}
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, models.NewPaymentAudit(models.PaymentEventWebhookProcessed, models.PaymentSourceRazorpayWebhook).
		SetBooking(result.BookingID).
		SetGatewayEvent(event.Event).
		SetPaymentStatus(result.Status).
		SetIdempotencyKey(d.EventID).
		SetMetadata(d.Meta).
		SetProcessingTime(start))

	return result, nil
}

func (s *WebhookService) verify(ctx context.Context, d WebhookDelivery) error {
	if strings.TrimSpace(d.Signature) == "" {
		s.logger.Warn("Webhook rejected: missing signature")
		return apperr.Validation("", MsgMissingSignature)
	}

	ok, err := signature.VerifyPayload(s.secret, d.Body, d.Signature)
	if errors.Is(err, signature.ErrMissingSecret) {
		s.logger.Error("RAZORPAY_WEBHOOK_SECRET is not configured, rejecting webhook")
		return apperr.Configuration("RAZORPAY_WEBHOOK_SECRET")
	}
	if err != nil {
		return err
	}

	if !ok {
		s.logger.WithField("ip", d.Meta.IPAddress).Warn("Webhook rejected: invalid signature")
		s.audit.Record(ctx, models.NewPaymentAudit(models.PaymentEventWebhookRejected, models.PaymentSourceRazorpayWebhook).
			SetError("signature mismatch", "signature_mismatch").
			SetIdempotencyKey(d.EventID).
			SetMetadata(d.Meta))
		return apperr.SignatureMismatch("webhook")
	}
	return nil
}

func (s *WebhookService) handlePaymentAuthorized(ctx context.Context, event models.WebhookEvent, d WebhookDelivery) (*models.WebhookResult, error) {
	payment, err := paymentEntity(event)
	if err != nil {
		return nil, err
	}

	bookingID := IdentifyBooking(payment)
	if bookingID == "" {
		s.logger.WithField("payment_id", payment.ID).Error("Cannot identify booking from payment")
		return nil, apperr.Validation("", MsgBookingNotIdentified)
	}
	if payment.ID == "" {
		return nil, apperr.Validation("", MsgPaymentNotIdentified)
	}

	_, err = s.payments.ConfirmBooking(ctx, PaymentConfirmation{
		BookingID:    bookingID,
		PaymentID:    payment.ID,
		OrderID:      payment.OrderID,
		Method:       payment.Method,
		AmountMinor:  payment.Amount,
		Currency:     payment.Currency,
		PaidAt:       time.Now(),
		Source:       models.PaymentSourceRazorpayWebhook,
		GatewayEvent: event.Event,
		Meta:         d.Meta,
	})
	if err != nil {
		return nil, err
	}

	return &models.WebhookResult{Status: models.WebhookStatusPaymentProcessed, BookingID: bookingID}, nil
}

func (s *WebhookService) handlePaymentFailed(ctx context.Context, event models.WebhookEvent, d WebhookDelivery) (*models.WebhookResult, error) {
	payment, err := paymentEntity(event)
	if err != nil {
		return nil, err
	}

	bookingID := IdentifyBooking(payment)
	if bookingID == "" {
		s.logger.WithField("payment_id", payment.ID).Error("Cannot identify booking from failed payment")
		return nil, apperr.Validation("", MsgBookingNotIdentified)
	}

	reason := strings.TrimSpace(payment.ErrorDescription)
	if err := s.payments.RecordFailure(ctx, bookingID, payment.ID, payment.OrderID, reason, d.Meta); err != nil {
		return nil, err
	}

	return &models.WebhookResult{Status: models.WebhookStatusFailureRecorded, BookingID: bookingID}, nil
}

func (s *WebhookService) handleRefundProcessed(ctx context.Context, event models.WebhookEvent, d WebhookDelivery) (*models.WebhookResult, error) {
	if event.Payload.Refund == nil {
		return nil, apperr.Validation("", MsgInvalidPayload)
	}
	refund := event.Payload.Refund.Entity

	if strings.TrimSpace(refund.PaymentID) == "" {
		s.logger.WithField("refund_id", refund.ID).Error("No payment id in refund")
		return nil, apperr.Validation("", MsgPaymentNotIdentified)
	}

	fields := logrus.Fields{
		"refund_id":  refund.ID,
		"payment_id": refund.PaymentID,
	}

	result, err := s.refunds.RecordRefund(ctx, database.RefundParams{
		PaymentID: refund.PaymentID,
		RefundID:  refund.ID,
		Amount:    money.ToMajorUnits(refund.Amount),
		At:        time.Now(),
	})
	if err != nil {
		s.logger.WithError(err).WithFields(fields).Error("Failed to record refund")
		return nil, apperr.Persistence("record refund", err)
	}
	if result == nil {
		s.logger.WithFields(fields).Error("No booking holds the refunded payment")
		return nil, apperr.NotFound("booking", refund.PaymentID)
	}

	if !result.Applied {
		s.logger.WithFields(fields).WithFields(logrus.Fields{
			"booking_id": result.BookingID,
			"status":     result.Status,
		}).Warn("Refund for a booking that was never confirmed, not recorded")
		return &models.WebhookResult{Status: models.WebhookStatusRefundRecorded, BookingID: result.BookingID}, nil
	}

	s.logger.WithFields(fields).WithField("booking_id", result.BookingID).Info("Refund recorded")
	s.audit.Record(ctx, models.NewPaymentAudit(models.PaymentEventRefundRecorded, models.PaymentSourceRazorpayWebhook).
		SetBooking(result.BookingID).
		SetPayment("", refund.PaymentID).
		SetRefund(refund.ID).
		SetGatewayEvent(event.Event).
		SetReceivedAmount(money.ToMajorUnits(refund.Amount), refund.Currency).
		SetPaymentStatus(string(models.BookingStatusRefunded)).
		SetMetadata(d.Meta))

	return &models.WebhookResult{Status: models.WebhookStatusRefundRecorded, BookingID: result.BookingID}, nil
}

func paymentEntity(event models.WebhookEvent) (*models.PaymentEntity, error) {
	if event.Payload.Payment == nil {
		return nil, apperr.Validation("", MsgInvalidPayload)
	}
	return &event.Payload.Payment.Entity, nil
}

// IdentifyBooking recovers the booking id from a payment. The receipt holds
// at most 30 characters of the id, so notes.booking_id wins when it extends
// the receipt id; otherwise the receipt, then notes.
func IdentifyBooking(p *models.PaymentEntity) string {
	fromNotes := strings.TrimSpace(p.Notes["booking_id"])

	receipt := p.Notes["receipt"]
	if receipt == "" {
		receipt = p.Receipt
	}

	if id, ok := money.ParseReceipt(strings.TrimSpace(receipt)); ok {
		if fromNotes != "" && strings.HasPrefix(fromNotes, id) {
			return fromNotes
		}
		return id
	}
	return fromNotes
}
