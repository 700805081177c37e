package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/tourcrow/payments-backend/internal/models"
)

const bookingColumns = `
	id, trip_id, user_id, total_price, booking_date, contact_email, contact_number, status,
	payment_id, payment_order_id, payment_signature, payment_date, payment_method,
	payment_amount, payment_error, refund_id, refund_amount, refund_date,
	confirmation_email_sent, confirmation_email_date, created_at, updated_at`

// BookingRepository handles booking and traveler persistence.
// Every state change is a single guarded UPDATE so concurrent writers
// (checkout callback and webhook) never need an application lock.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository creates a new booking repository
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// ConfirmPaymentParams are the payment fields merged into a confirmed booking.
// Empty strings and nil pointers leave the stored value untouched.
type ConfirmPaymentParams struct {
	BookingID string
	PaymentID string
	OrderID   string
	Signature string
	Method    string
	Amount    *float64
	PaidAt    time.Time
}

// ConfirmResult describes what ConfirmPayment did
type ConfirmResult struct {
	// Applied is true when the row was written (new confirmation or merge)
	Applied bool
	// PreviousStatus is the status before the write, set when Applied
	PreviousStatus models.BookingStatus
	// TotalPrice of the booking, set when Applied
	TotalPrice float64
	// Current is the stored booking when nothing was written; nil if it does not exist
	Current *models.Booking
}

// NewlyConfirmed reports whether this call moved the booking into confirmed
func (r *ConfirmResult) NewlyConfirmed() bool {
	return r.Applied && r.PreviousStatus != models.BookingStatusConfirmed
}

// RefundParams identify a processed refund
type RefundParams struct {
	PaymentID string
	RefundID  string
	Amount    float64
	At        time.Time
}

// RefundResult describes what RecordRefund did
type RefundResult struct {
	BookingID string
	Applied   bool
	Status    models.BookingStatus
}

// Create inserts a pending booking and its travelers in one transaction
func (r *BookingRepository) Create(ctx context.Context, booking *models.Booking, travelers []models.Traveler) error {
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	now := time.Now()
	if booking.BookingDate.IsZero() {
		booking.BookingDate = now
	}
	booking.Status = models.BookingStatusPending
	booking.CreatedAt = now
	booking.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO bookings (
			id, trip_id, user_id, total_price, booking_date,
			contact_email, contact_number, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		booking.ID, booking.TripID, booking.UserID, booking.TotalPrice, booking.BookingDate,
		booking.ContactEmail, booking.ContactNumber, booking.Status, booking.CreatedAt, booking.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert booking: %w", err)
	}

	for i := range travelers {
		t := &travelers[i]
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		t.BookingID = booking.ID
		t.CreatedAt = now

		_, err = tx.ExecContext(ctx, `
			INSERT INTO travelers (
				id, booking_id, first_name, last_name, full_name, email, phone,
				gender, date_of_birth, country, instagram_handle, is_subscribed, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			t.ID, t.BookingID, t.FirstName, t.LastName, t.FullName, t.Email, t.Phone,
			t.Gender, t.DateOfBirth, t.Country, t.InstagramHandle, t.IsSubscribed, t.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert traveler %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit booking: %w", err)
	}
	return nil
}

// GetByID returns the booking or nil if it does not exist
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	var booking models.Booking
	err := r.db.GetContext(ctx, &booking, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &booking, nil
}

// GetByPaymentID returns the booking holding paymentID or nil.
// payment_id carries a unique index, so this is a point lookup.
func (r *BookingRepository) GetByPaymentID(ctx context.Context, paymentID string) (*models.Booking, error) {
	var booking models.Booking
	err := r.db.GetContext(ctx, &booking, `SELECT `+bookingColumns+` FROM bookings WHERE payment_id = $1`, paymentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking by payment id: %w", err)
	}
	return &booking, nil
}

// GetDetails returns the booking with its trip name and travelers, or nil
func (r *BookingRepository) GetDetails(ctx context.Context, id string) (*models.BookingDetails, error) {
	var details models.BookingDetails
	err := r.db.GetContext(ctx, &details, `
		SELECT b.id, b.trip_id, b.user_id, b.total_price, b.booking_date, b.contact_email,
			b.contact_number, b.status, b.payment_id, b.payment_order_id, b.payment_signature,
			b.payment_date, b.payment_method, b.payment_amount, b.payment_error, b.refund_id,
			b.refund_amount, b.refund_date, b.confirmation_email_sent, b.confirmation_email_date,
			b.created_at, b.updated_at, COALESCE(t.name, '') AS trip_name
		FROM bookings b
		LEFT JOIN trips t ON t.id = b.trip_id
		WHERE b.id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking details: %w", err)
	}

	travelers, err := r.ListTravelers(ctx, id)
	if err != nil {
		return nil, err
	}
	details.Travelers = travelers
	return &details, nil
}

// ListTravelers returns a booking's travelers in creation order
func (r *BookingRepository) ListTravelers(ctx context.Context, bookingID string) ([]models.Traveler, error) {
	travelers := []models.Traveler{}
	err := r.db.SelectContext(ctx, &travelers, `
		SELECT id, booking_id, first_name, last_name, full_name, email, phone, gender,
			date_of_birth, country, instagram_handle, is_subscribed, created_at
		FROM travelers
		WHERE booking_id = $1
		ORDER BY created_at ASC, id ASC`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list travelers: %w", err)
	}
	return travelers, nil
}

// SetPaymentOrder stores the latest gateway order id while payment is outstanding
func (r *BookingRepository) SetPaymentOrder(ctx context.Context, bookingID, orderID string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE bookings
		SET payment_order_id = $2, updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'payment_failed')`,
		bookingID, orderID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to set payment order: %w", err)
	}
	return affected(result)
}

// ConfirmPayment upserts the payment fields keyed by (booking id, payment id).
//
//   - pending / payment_failed: becomes confirmed with the given payment
//   - confirmed with the same payment id: missing fields are merged, status kept
//   - confirmed with another payment id, or refunded: nothing is written and
//     Current holds the stored booking for the caller to classify
func (r *BookingRepository) ConfirmPayment(ctx context.Context, p ConfirmPaymentParams) (*ConfirmResult, error) {
	if p.PaymentID == "" {
		return nil, fmt.Errorf("payment id is required to confirm a booking")
	}
	if p.PaidAt.IsZero() {
		p.PaidAt = time.Now()
	}

	query := `
		WITH prev AS (
			SELECT id, status, payment_id FROM bookings WHERE id = $1 FOR UPDATE
		)
		UPDATE bookings b SET
			status = 'confirmed',
			payment_id = $2,
			payment_order_id = COALESCE(NULLIF($3, ''), b.payment_order_id),
			payment_signature = COALESCE(NULLIF($4, ''), b.payment_signature),
			payment_date = CASE WHEN prev.status = 'confirmed' THEN COALESCE(b.payment_date, $5) ELSE $5 END,
			payment_method = COALESCE(NULLIF($6, ''), b.payment_method),
			payment_amount = COALESCE($7, b.payment_amount),
			payment_error = NULL,
			updated_at = NOW()
		FROM prev
		WHERE b.id = prev.id
		AND (
			prev.status IN ('pending', 'payment_failed')
			OR (prev.status = 'confirmed' AND prev.payment_id = $2)
		)
		RETURNING prev.status, b.total_price`

	var (
		previous models.BookingStatus
		total    float64
	)
	err := r.db.QueryRowxContext(ctx, query,
		p.BookingID, p.PaymentID, p.OrderID, p.Signature, p.PaidAt, p.Method, p.Amount,
	).Scan(&previous, &total)
	if err == nil {
		return &ConfirmResult{Applied: true, PreviousStatus: previous, TotalPrice: total}, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to confirm booking: %w", err)
	}

	current, err := r.GetByID(ctx, p.BookingID)
	if err != nil {
		return nil, err
	}
	return &ConfirmResult{Applied: false, Current: current}, nil
}

// MarkPaymentFailed records a gateway-reported failure. Confirmed and refunded
// bookings are never downgraded; false is returned for them.
func (r *BookingRepository) MarkPaymentFailed(ctx context.Context, bookingID, paymentID, orderID, reason string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE bookings
		SET status = 'payment_failed',
			payment_error = $2,
			payment_id = COALESCE(NULLIF($3, ''), payment_id),
			payment_order_id = COALESCE(NULLIF($4, ''), payment_order_id),
			updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'payment_failed')`,
		bookingID, reason, paymentID, orderID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark payment failed: %w", err)
	}
	return affected(result)
}

// MarkCancelled records that the user dismissed the checkout. Only pending
// bookings move; false is returned otherwise.
func (r *BookingRepository) MarkCancelled(ctx context.Context, bookingID string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE bookings
		SET status = 'payment_failed', payment_error = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`,
		bookingID, models.PaymentErrorCancelled,
	)
	if err != nil {
		return false, fmt.Errorf("failed to cancel payment: %w", err)
	}
	return affected(result)
}

// ResetForRetry moves a failed booking back to pending and returns it.
// nil is returned when the booking is not awaiting payment.
func (r *BookingRepository) ResetForRetry(ctx context.Context, bookingID string) (*models.Booking, error) {
	var booking models.Booking
	err := r.db.GetContext(ctx, &booking, `
		UPDATE bookings
		SET status = 'pending', payment_error = NULL, updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'payment_failed')
		RETURNING `+bookingColumns, bookingID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to reset booking for retry: %w", err)
	}
	return &booking, nil
}

// RecordRefund marks the booking holding the refunded payment as refunded.
// Returns nil when no booking holds the payment id.
func (r *BookingRepository) RecordRefund(ctx context.Context, p RefundParams) (*RefundResult, error) {
	if p.At.IsZero() {
		p.At = time.Now()
	}

	var bookingID string
	err := r.db.QueryRowxContext(ctx, `
		UPDATE bookings
		SET status = 'refunded', refund_id = $2, refund_amount = $3, refund_date = $4, updated_at = NOW()
		WHERE payment_id = $1 AND status IN ('confirmed', 'refunded')
		RETURNING id`,
		p.PaymentID, p.RefundID, p.Amount, p.At,
	).Scan(&bookingID)
	if err == nil {
		return &RefundResult{BookingID: bookingID, Applied: true, Status: models.BookingStatusRefunded}, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to record refund: %w", err)
	}

	current, err := r.GetByPaymentID(ctx, p.PaymentID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, nil
	}
	return &RefundResult{BookingID: current.ID, Applied: false, Status: current.Status}, nil
}

// ClaimConfirmationEmail atomically flips confirmation_email_sent for a
// confirmed booking and stamps it with claimedAt. Only the caller that gets
// true may send the email.
func (r *BookingRepository) ClaimConfirmationEmail(ctx context.Context, bookingID string, claimedAt time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE bookings
		SET confirmation_email_sent = TRUE, confirmation_email_date = $2
		WHERE id = $1 AND status = 'confirmed' AND confirmation_email_sent = FALSE`,
		bookingID, claimedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to claim confirmation email: %w", err)
	}
	return affected(result)
}

// ReleaseConfirmationEmail undoes a claim after a failed send. Only the claim
// stamped with claimedAt is released; false means it is no longer held.
func (r *BookingRepository) ReleaseConfirmationEmail(ctx context.Context, bookingID string, claimedAt time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE bookings
		SET confirmation_email_sent = FALSE, confirmation_email_date = NULL
		WHERE id = $1 AND confirmation_email_sent = TRUE AND confirmation_email_date = $2`,
		bookingID, claimedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to release confirmation email claim: %w", err)
	}
	return affected(result)
}

// ListUnsentConfirmations returns confirmed bookings still waiting for their email
func (r *BookingRepository) ListUnsentConfirmations(ctx context.Context, limit int) ([]string, error) {
	ids := []string{}
	err := r.db.SelectContext(ctx, &ids, `
		SELECT id FROM bookings
		WHERE status = 'confirmed' AND confirmation_email_sent = FALSE
		ORDER BY payment_date ASC NULLS LAST
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unsent confirmations: %w", err)
	}
	return ids, nil
}

func affected(result sql.Result) (bool, error) {
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}
