package models

import (
	"time"
)

// BookingStatus represents the lifecycle state of a trip booking
type BookingStatus string

const (
	BookingStatusPending       BookingStatus = "pending"
	BookingStatusConfirmed     BookingStatus = "confirmed"
	BookingStatusPaymentFailed BookingStatus = "payment_failed"
	BookingStatusRefunded      BookingStatus = "refunded"
)

// Failure reasons stored in payment_error
const (
	PaymentErrorCancelled     = "Payment was cancelled"
	PaymentErrorGatewayFailed = "Payment processing failed"
)

// AwaitingPayment reports whether a new payment attempt may be started
func (s BookingStatus) AwaitingPayment() bool {
	return s == BookingStatusPending || s == BookingStatusPaymentFailed
}

// Booking represents a trip reservation and its payment state.
// A confirmed booking always carries a PaymentID.
type Booking struct {
	ID            string        `json:"id" db:"id"`
	TripID        string        `json:"trip_id" db:"trip_id"`
	UserID        *string       `json:"user_id,omitempty" db:"user_id"`
	TotalPrice    float64       `json:"total_price" db:"total_price"`
	BookingDate   time.Time     `json:"booking_date" db:"booking_date"`
	ContactEmail  *string       `json:"contact_email,omitempty" db:"contact_email"`
	ContactNumber *string       `json:"contact_number,omitempty" db:"contact_number"`
	Status        BookingStatus `json:"status" db:"status"`

	// Payment
	PaymentID        *string    `json:"payment_id,omitempty" db:"payment_id"`
	PaymentOrderID   *string    `json:"payment_order_id,omitempty" db:"payment_order_id"`
	PaymentSignature *string    `json:"-" db:"payment_signature"`
	PaymentDate      *time.Time `json:"payment_date,omitempty" db:"payment_date"`
	PaymentMethod    *string    `json:"payment_method,omitempty" db:"payment_method"`
	PaymentAmount    *float64   `json:"payment_amount,omitempty" db:"payment_amount"`
	PaymentError     *string    `json:"payment_error,omitempty" db:"payment_error"`

	// Refund
	RefundID     *string    `json:"refund_id,omitempty" db:"refund_id"`
	RefundAmount *float64   `json:"refund_amount,omitempty" db:"refund_amount"`
	RefundDate   *time.Time `json:"refund_date,omitempty" db:"refund_date"`

	ConfirmationEmailSent bool       `json:"confirmation_email_sent" db:"confirmation_email_sent"`
	ConfirmationEmailDate *time.Time `json:"confirmation_email_date,omitempty" db:"confirmation_email_date"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Traveler is a person travelling on a booking. The first one is the main contact.
type Traveler struct {
	ID              string     `json:"id" db:"id"`
	BookingID       string     `json:"booking_id" db:"booking_id"`
	FirstName       string     `json:"first_name" db:"first_name"`
	LastName        string     `json:"last_name" db:"last_name"`
	FullName        string     `json:"full_name" db:"full_name"`
	Email           *string    `json:"email,omitempty" db:"email"`
	Phone           *string    `json:"phone,omitempty" db:"phone"`
	Gender          *string    `json:"gender,omitempty" db:"gender"`
	DateOfBirth     *time.Time `json:"date_of_birth,omitempty" db:"date_of_birth"`
	Country         *string    `json:"country,omitempty" db:"country"`
	InstagramHandle *string    `json:"instagram_handle,omitempty" db:"instagram_handle"`
	IsSubscribed    bool       `json:"is_subscribed" db:"is_subscribed"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
}

// BookingDetails is a booking joined with its trip name and travelers
type BookingDetails struct {
	Booking
	TripName  string     `json:"trip_name" db:"trip_name"`
	Travelers []Traveler `json:"travelers" db:"-"`
}

// PrimaryContactName returns the first traveler's name for greetings and prefill
func (d *BookingDetails) PrimaryContactName() string {
	if len(d.Travelers) == 0 {
		return ""
	}
	return d.Travelers[0].DisplayName()
}

// DisplayName returns the traveler's full name, falling back to first + last
func (t Traveler) DisplayName() string {
	if t.FullName != "" {
		return t.FullName
	}
	return joinName(t.FirstName, t.LastName)
}

func joinName(first, last string) string {
	switch {
	case first == "":
		return last
	case last == "":
		return first
	default:
		return first + " " + last
	}
}

// ============================================================================
// Requests / responses
// ============================================================================

// TravelerInput is a traveler submitted with a new booking
type TravelerInput struct {
	FirstName       string  `json:"first_name" binding:"required"`
	LastName        string  `json:"last_name" binding:"required"`
	Email           string  `json:"email" binding:"omitempty,email"`
	Phone           string  `json:"phone"`
	Gender          *string `json:"gender,omitempty"`
	DateOfBirth     *string `json:"date_of_birth,omitempty"` // YYYY-MM-DD
	Country         *string `json:"country,omitempty"`
	InstagramHandle *string `json:"instagram_handle,omitempty"`
	IsSubscribed    bool    `json:"is_subscribed"`
}

// CreateBookingRequest represents the request to create a pending booking
type CreateBookingRequest struct {
	TripID        string          `json:"trip_id" binding:"required"`
	UserID        *string         `json:"user_id,omitempty"`
	TotalPrice    float64         `json:"total_price" binding:"required,gt=0"`
	ContactEmail  string          `json:"contact_email" binding:"omitempty,email"`
	ContactNumber string          `json:"contact_number"`
	Travelers     []TravelerInput `json:"travelers" binding:"required,min=1,dive"`
}

// CreateBookingResponse is returned after a booking is stored
type CreateBookingResponse struct {
	BookingID     string        `json:"booking_id"`
	Status        BookingStatus `json:"status"`
	TotalPrice    float64       `json:"total_price"`
	DepositAmount float64       `json:"deposit_amount"`
}

// PaymentStatusResponse is what the payment-failed page reads back
type PaymentStatusResponse struct {
	BookingID       string        `json:"booking_id"`
	TripID          string        `json:"trip_id"`
	TripName        string        `json:"trip_name"`
	Status          BookingStatus `json:"status"`
	TotalPrice      float64       `json:"total_price"`
	DepositAmount   float64       `json:"deposit_amount"`
	ContactEmail    *string       `json:"contact_email,omitempty"`
	PaymentError    *string       `json:"payment_error,omitempty"`
	CanRetry        bool          `json:"can_retry"`
	RetryPath       string        `json:"retry_path,omitempty"`
	ConfirmationURL string        `json:"confirmation_url,omitempty"`
}
