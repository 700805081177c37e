package models

import (
	"encoding/json"
	"strings"
)

// OrderNotes is the metadata attached to every gateway order
type OrderNotes struct {
	BookingID string `json:"booking_id"`
	TripID    string `json:"trip_id"`
}

// PaymentOrder is the gateway-issued order handle. It is never persisted on
// its own; only its ID is stored on the booking.
type PaymentOrder struct {
	ID         string     `json:"id"`
	Entity     string     `json:"entity"`
	Amount     int64      `json:"amount"` // minor units
	AmountPaid int64      `json:"amount_paid"`
	AmountDue  int64      `json:"amount_due"`
	Currency   string     `json:"currency"`
	Receipt    string     `json:"receipt"`
	Status     string     `json:"status"`
	Attempts   int        `json:"attempts"`
	Notes      OrderNotes `json:"notes"`
	CreatedAt  int64      `json:"created_at"`
}

// CreateOrderRequest represents POST /api/payment/create-order
type CreateOrderRequest struct {
	Amount    float64 `json:"amount"` // major units
	Currency  string  `json:"currency"`
	BookingID string  `json:"bookingId"`
	TripID    string  `json:"tripId"`
}

// CheckoutPrefill pre-populates the hosted checkout form
type CheckoutPrefill struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Contact string `json:"contact"`
}

// CreateOrderResponse is the gateway order plus what the checkout widget needs
type CreateOrderResponse struct {
	PaymentOrder
	KeyID       string           `json:"key_id"`
	Name        string           `json:"name,omitempty"`
	Description string           `json:"description,omitempty"`
	Prefill     *CheckoutPrefill `json:"prefill,omitempty"`
}

// VerifyPaymentRequest represents POST /api/payment/verify
type VerifyPaymentRequest struct {
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpaySignature string `json:"razorpay_signature"`
	BookingID         string `json:"bookingId"`
}

// Missing reports whether any field is blank
func (r *VerifyPaymentRequest) Missing() bool {
	return blank(r.RazorpayOrderID) || blank(r.RazorpayPaymentID) || blank(r.RazorpaySignature) || blank(r.BookingID)
}

// BookingActionRequest carries a booking id for retry and cancel
type BookingActionRequest struct {
	BookingID string `json:"bookingId"`
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// ============================================================================
// Webhook payloads
// ============================================================================

// Webhook event names handled by the receiver
const (
	WebhookEventPaymentAuthorized = "payment.authorized"
	WebhookEventPaymentCaptured   = "payment.captured"
	WebhookEventPaymentFailed     = "payment.failed"
	WebhookEventRefundProcessed   = "refund.processed"
)

// WebhookEvent is the envelope Razorpay POSTs to the webhook URL
type WebhookEvent struct {
	Entity    string         `json:"entity"`
	AccountID string         `json:"account_id"`
	Event     string         `json:"event"`
	Contains  []string       `json:"contains"`
	Payload   WebhookPayload `json:"payload"`
	CreatedAt int64          `json:"created_at"`
}

// WebhookPayload holds whichever entities the event carries
type WebhookPayload struct {
	Payment *PaymentEntityWrapper `json:"payment,omitempty"`
	Refund  *RefundEntityWrapper  `json:"refund,omitempty"`
}

type PaymentEntityWrapper struct {
	Entity PaymentEntity `json:"entity"`
}

type RefundEntityWrapper struct {
	Entity RefundEntity `json:"entity"`
}

// PaymentEntity is the subset of the gateway payment object we read
type PaymentEntity struct {
	ID               string       `json:"id"`
	Amount           int64        `json:"amount"`
	Currency         string       `json:"currency"`
	Status           string       `json:"status"`
	OrderID          string       `json:"order_id"`
	Method           string       `json:"method"`
	Receipt          string       `json:"receipt,omitempty"`
	Email            string       `json:"email,omitempty"`
	Contact          string       `json:"contact,omitempty"`
	Notes            PaymentNotes `json:"notes"`
	ErrorCode        string       `json:"error_code,omitempty"`
	ErrorDescription string       `json:"error_description,omitempty"`
	ErrorReason      string       `json:"error_reason,omitempty"`
	CreatedAt        int64        `json:"created_at"`
}

// RefundEntity is the subset of the gateway refund object we read
type RefundEntity struct {
	ID        string       `json:"id"`
	Amount    int64        `json:"amount"`
	Currency  string       `json:"currency"`
	PaymentID string       `json:"payment_id"`
	Status    string       `json:"status"`
	Notes     PaymentNotes `json:"notes"`
	CreatedAt int64        `json:"created_at"`
}

// PaymentNotes is the gateway's free-form notes object. Razorpay sends an
// empty JSON array instead of an object when no notes exist, so decoding
// accepts both.
type PaymentNotes map[string]string

// UnmarshalJSON accepts an object of scalar values or an empty array
func (n *PaymentNotes) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" || strings.HasPrefix(trimmed, "[") {
		*n = PaymentNotes{}
		return nil
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make(PaymentNotes, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			out[k] = val
		case nil:
		default:
			b, _ := json.Marshal(val)
			out[k] = string(b)
		}
	}
	*n = out
	return nil
}

// WebhookResult is returned to the gateway as the response body
type WebhookResult struct {
	Status    string `json:"status"`
	BookingID string `json:"booking_id,omitempty"`
}

// Webhook result statuses
const (
	WebhookStatusPaymentProcessed = "payment_processed"
	WebhookStatusFailureRecorded  = "failure_recorded"
	WebhookStatusRefundRecorded   = "refund_recorded"
	WebhookStatusUnhandled        = "unhandled_event"
	WebhookStatusAlreadyProcessed = "already_processed"
)
