package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PaymentEventType represents the type of payment event
type PaymentEventType string

const (
	PaymentEventOrderCreated           PaymentEventType = "order_created"
	PaymentEventOrderFailed            PaymentEventType = "order_failed"
	PaymentEventVerifyAccepted         PaymentEventType = "verify_accepted"
	PaymentEventVerifyRejected         PaymentEventType = "verify_rejected"
	PaymentEventWebhookReceived        PaymentEventType = "webhook_received"
	PaymentEventWebhookRejected        PaymentEventType = "webhook_rejected"
	PaymentEventWebhookProcessed       PaymentEventType = "webhook_processed"
	PaymentEventBookingConfirmed       PaymentEventType = "booking_confirmed"
	PaymentEventPaymentFailed          PaymentEventType = "payment_failed"
	PaymentEventPaymentCancelled       PaymentEventType = "payment_cancelled"
	PaymentEventRetryStarted           PaymentEventType = "retry_started"
	PaymentEventRefundRecorded         PaymentEventType = "refund_recorded"
	PaymentEventReconciliationMismatch PaymentEventType = "reconciliation_mismatch"
	PaymentEventEmailSent              PaymentEventType = "confirmation_email_sent"
	PaymentEventEmailFailed            PaymentEventType = "confirmation_email_failed"
	PaymentEventError                  PaymentEventType = "error"
)

// PaymentEventSource identifies where the event originated
type PaymentEventSource string

const (
	PaymentSourceCheckout        PaymentEventSource = "checkout_callback"
	PaymentSourceRazorpayWebhook PaymentEventSource = "razorpay_webhook"
	PaymentSourceRazorpayAPI     PaymentEventSource = "razorpay_api"
	PaymentSourceUser            PaymentEventSource = "user"
	PaymentSourceSystem          PaymentEventSource = "system"
)

// JSONB is a custom type for handling JSONB fields
type JSONB map[string]interface{}

// Value implements the driver.Valuer interface
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	bytes, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(bytes), nil
}

// Scan implements the sql.Scanner interface
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("unsupported JSONB source type %T", value)
	}
	return json.Unmarshal(bytes, j)
}

// PaymentAudit is an immutable ledger entry for a payment event.
// Entries are what operators reconcile from when state and money disagree.
type PaymentAudit struct {
	ID        uuid.UUID `json:"id" db:"id"`
	BookingID *string   `json:"booking_id,omitempty" db:"booking_id"`
	PaymentID *string   `json:"payment_id,omitempty" db:"payment_id"`
	OrderID   *string   `json:"order_id,omitempty" db:"order_id"`
	RefundID  *string   `json:"refund_id,omitempty" db:"refund_id"`

	// Event info
	EventType    PaymentEventType   `json:"event_type" db:"event_type"`
	EventSource  PaymentEventSource `json:"event_source" db:"event_source"`
	GatewayEvent *string            `json:"gateway_event,omitempty" db:"gateway_event"`

	// Amount tracking (major units)
	ExpectedAmount *float64 `json:"expected_amount,omitempty" db:"expected_amount"`
	ReceivedAmount *float64 `json:"received_amount,omitempty" db:"received_amount"`
	Currency       *string  `json:"currency,omitempty" db:"currency"`
	AmountsMatch   *bool    `json:"amounts_match,omitempty" db:"amounts_match"`

	// Status
	PaymentStatus *string `json:"payment_status,omitempty" db:"payment_status"`

	// Raw payloads
	Details JSONB   `json:"details,omitempty" db:"details"`
	RawBody *string `json:"raw_body,omitempty" db:"raw_body"`

	// Error tracking
	ErrorMessage *string `json:"error_message,omitempty" db:"error_message"`
	ErrorCode    *string `json:"error_code,omitempty" db:"error_code"`

	// Processing info
	ProcessingTimeMs *int    `json:"processing_time_ms,omitempty" db:"processing_time_ms"`
	IdempotencyKey   *string `json:"idempotency_key,omitempty" db:"idempotency_key"`

	// Metadata
	IPAddress     *string `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent     *string `json:"user_agent,omitempty" db:"user_agent"`
	DeviceType    *string `json:"device_type,omitempty" db:"device_type"`
	CorrelationID *string `json:"correlation_id,omitempty" db:"correlation_id"`

	// Timestamps
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty" db:"processed_at"`
}

// NewPaymentAudit creates a new payment audit entry with required fields
func NewPaymentAudit(eventType PaymentEventType, source PaymentEventSource) *PaymentAudit {
	return &PaymentAudit{
		ID:          uuid.New(),
		EventType:   eventType,
		EventSource: source,
		CreatedAt:   time.Now(),
	}
}

// SetBooking sets the booking the event belongs to
func (pa *PaymentAudit) SetBooking(bookingID string) *PaymentAudit {
	pa.BookingID = optional(bookingID)
	return pa
}

// SetPayment sets the gateway order and payment ids
func (pa *PaymentAudit) SetPayment(orderID, paymentID string) *PaymentAudit {
	pa.OrderID = optional(orderID)
	pa.PaymentID = optional(paymentID)
	return pa
}

// SetRefund sets the gateway refund id
func (pa *PaymentAudit) SetRefund(refundID string) *PaymentAudit {
	pa.RefundID = optional(refundID)
	return pa
}

// SetGatewayEvent sets the webhook event name, e.g. payment.authorized
func (pa *PaymentAudit) SetGatewayEvent(event string) *PaymentAudit {
	pa.GatewayEvent = optional(event)
	return pa
}

// SetAmounts sets and compares amounts, returning whether they match
func (pa *PaymentAudit) SetAmounts(expected, received float64, currency string) bool {
	pa.ExpectedAmount = &expected
	pa.ReceivedAmount = &received
	pa.Currency = &currency

	// Compare with tolerance for floating point
	const tolerance = 0.01
	diff := expected - received
	if diff < 0 {
		diff = -diff
	}
	match := diff < tolerance
	pa.AmountsMatch = &match
	return match
}

// SetReceivedAmount records an amount without an expectation to compare against
func (pa *PaymentAudit) SetReceivedAmount(received float64, currency string) *PaymentAudit {
	pa.ReceivedAmount = &received
	pa.Currency = optional(currency)
	return pa
}

// SetPaymentStatus sets the payment status from gateway
func (pa *PaymentAudit) SetPaymentStatus(status string) *PaymentAudit {
	pa.PaymentStatus = optional(status)
	return pa
}

// SetError sets error information
func (pa *PaymentAudit) SetError(message, code string) *PaymentAudit {
	pa.ErrorMessage = optional(message)
	pa.ErrorCode = optional(code)
	return pa
}

// SetRawBody stores the raw request body before parsing
func (pa *PaymentAudit) SetRawBody(body []byte) *PaymentAudit {
	raw := string(body)
	pa.RawBody = &raw
	return pa
}

// SetDetails stores structured context
func (pa *PaymentAudit) SetDetails(details map[string]interface{}) *PaymentAudit {
	pa.Details = JSONB(details)
	return pa
}

// SetMetadata sets request metadata
func (pa *PaymentAudit) SetMetadata(meta RequestMeta) *PaymentAudit {
	pa.IPAddress = optional(meta.IPAddress)
	pa.UserAgent = optional(meta.UserAgent)
	pa.DeviceType = optional(meta.DeviceType)
	pa.CorrelationID = optional(meta.RequestID)
	return pa
}

// SetProcessingTime calculates and sets processing time
func (pa *PaymentAudit) SetProcessingTime(startTime time.Time) *PaymentAudit {
	durationMs := int(time.Since(startTime).Milliseconds())
	pa.ProcessingTimeMs = &durationMs
	now := time.Now()
	pa.ProcessedAt = &now
	return pa
}

// SetIdempotencyKey sets the idempotency key
func (pa *PaymentAudit) SetIdempotencyKey(key string) *PaymentAudit {
	pa.IdempotencyKey = optional(key)
	return pa
}

// RequestMeta describes the caller of an endpoint for audit entries
type RequestMeta struct {
	IPAddress  string
	UserAgent  string
	DeviceType string
	RequestID  string
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
