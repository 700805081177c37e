package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/tourcrow/payments-backend/internal/models"
)

const auditColumns = `
	id, booking_id, payment_id, order_id, refund_id,
	event_type, event_source, gateway_event,
	expected_amount, received_amount, currency, amounts_match,
	payment_status, details, raw_body,
	error_message, error_code,
	processing_time_ms, idempotency_key,
	ip_address, user_agent, device_type, correlation_id,
	created_at, processed_at`

// PaymentAuditRepository handles payment audit operations
type PaymentAuditRepository struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewPaymentAuditRepository creates a new payment audit repository
func NewPaymentAuditRepository(db *sqlx.DB, logger *logrus.Logger) *PaymentAuditRepository {
	return &PaymentAuditRepository{
		db:     db,
		logger: logger,
	}
}

// Log creates a new payment audit entry
func (r *PaymentAuditRepository) Log(ctx context.Context, audit *models.PaymentAudit) error {
	if audit == nil {
		return fmt.Errorf("audit entry cannot be nil")
	}

	if audit.ID == uuid.Nil {
		audit.ID = uuid.New()
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO payment_audits (` + auditColumns + `
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8,
			$9, $10, $11, $12,
			$13, $14, $15,
			$16, $17,
			$18, $19,
			$20, $21, $22, $23,
			$24, $25
		)`

	_, err := r.db.ExecContext(ctx, query,
		audit.ID, audit.BookingID, audit.PaymentID, audit.OrderID, audit.RefundID,
		audit.EventType, audit.EventSource, audit.GatewayEvent,
		audit.ExpectedAmount, audit.ReceivedAmount, audit.Currency, audit.AmountsMatch,
		audit.PaymentStatus, audit.Details, audit.RawBody,
		audit.ErrorMessage, audit.ErrorCode,
		audit.ProcessingTimeMs, audit.IdempotencyKey,
		audit.IPAddress, audit.UserAgent, audit.DeviceType, audit.CorrelationID,
		audit.CreatedAt, audit.ProcessedAt,
	)

	if err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"event_type": audit.EventType,
			"booking_id": deref(audit.BookingID),
			"payment_id": deref(audit.PaymentID),
		}).Error("Failed to log payment audit")
		return fmt.Errorf("failed to log payment audit: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"audit_id":   audit.ID,
		"event_type": audit.EventType,
		"booking_id": deref(audit.BookingID),
	}).Debug("Payment audit logged")

	return nil
}

// HasProcessed reports whether a webhook with this idempotency key already
// completed processing
func (r *PaymentAuditRepository) HasProcessed(ctx context.Context, idempotencyKey string) (bool, error) {
	if idempotencyKey == "" {
		return false, nil
	}

	var exists bool
	query := `
		SELECT EXISTS (
			SELECT 1 FROM payment_audits
			WHERE idempotency_key = $1
			AND event_type = $2
		)`

	err := r.db.GetContext(ctx, &exists, query, idempotencyKey, models.PaymentEventWebhookProcessed)
	if err != nil {
		return false, fmt.Errorf("failed to check duplicate: %w", err)
	}

	return exists, nil
}

// GetByBookingID retrieves all audit entries for a booking in order
func (r *PaymentAuditRepository) GetByBookingID(ctx context.Context, bookingID string) ([]*models.PaymentAudit, error) {
	audits := []*models.PaymentAudit{}
	query := `SELECT ` + auditColumns + `
		FROM payment_audits
		WHERE booking_id = $1
		ORDER BY created_at ASC`

	err := r.db.SelectContext(ctx, &audits, query, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get audits by booking ID: %w", err)
	}

	return audits, nil
}

// GetAnomalies returns recent entries operators need to look at: amount
// mismatches and payments that arrived for an already-settled booking
func (r *PaymentAuditRepository) GetAnomalies(ctx context.Context, limit int) ([]*models.PaymentAudit, error) {
	audits := []*models.PaymentAudit{}
	query := `SELECT ` + auditColumns + `
		FROM payment_audits
		WHERE amounts_match = FALSE OR event_type = $1
		ORDER BY created_at DESC
		LIMIT $2`

	err := r.db.SelectContext(ctx, &audits, query, models.PaymentEventReconciliationMismatch, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment anomalies: %w", err)
	}

	return audits, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
