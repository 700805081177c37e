package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tourcrow/payments-backend/internal/apperr"
	"github.com/tourcrow/payments-backend/internal/config"
	"github.com/tourcrow/payments-backend/internal/database"
	"github.com/tourcrow/payments-backend/internal/models"
	"github.com/tourcrow/payments-backend/pkg/money"
	"github.com/tourcrow/payments-backend/pkg/signature"
	"github.com/tourcrow/payments-backend/pkg/validator"
)

// DefaultCurrency is used for orders the backend prices itself
const DefaultCurrency = "INR"

// MsgMissingFields is returned for any incomplete payment request
const MsgMissingFields = "Missing required fields"

// MsgNotAwaitingPayment is returned when retry is asked for a settled booking
const MsgNotAwaitingPayment = "Booking is not awaiting payment"

// BookingStore is the booking persistence the payment flows rely on
type BookingStore interface {
	Create(ctx context.Context, booking *models.Booking, travelers []models.Traveler) error
	GetByID(ctx context.Context, id string) (*models.Booking, error)
	GetDetails(ctx context.Context, id string) (*models.BookingDetails, error)
	SetPaymentOrder(ctx context.Context, bookingID, orderID string) (bool, error)
	ConfirmPayment(ctx context.Context, p database.ConfirmPaymentParams) (*database.ConfirmResult, error)
	MarkPaymentFailed(ctx context.Context, bookingID, paymentID, orderID, reason string) (bool, error)
	MarkCancelled(ctx context.Context, bookingID string) (bool, error)
	ResetForRetry(ctx context.Context, bookingID string) (*models.Booking, error)
	RecordRefund(ctx context.Context, p database.RefundParams) (*database.RefundResult, error)
}

// OrderGateway creates gateway orders
type OrderGateway interface {
	CreateOrder(ctx context.Context, req *RazorpayOrderRequest) (*models.PaymentOrder, error)
	KeyID() string
}

// ConfirmationNotifier sends the best-effort confirmation email
type ConfirmationNotifier interface {
	NotifyConfirmed(ctx context.Context, bookingID string, source models.PaymentEventSource)
}

// ConfirmOutcome describes how a confirming payment was applied
type ConfirmOutcome string

const (
	ConfirmOutcomeConfirmed        ConfirmOutcome = "confirmed"
	ConfirmOutcomeAlreadyConfirmed ConfirmOutcome = "already_confirmed"
	ConfirmOutcomeConflict         ConfirmOutcome = "conflicting_payment"
	ConfirmOutcomeRefunded         ConfirmOutcome = "refunded"
)

// PaymentConfirmation is a signed statement that a booking's payment succeeded
type PaymentConfirmation struct {
	BookingID    string
	PaymentID    string
	OrderID      string
	Signature    string
	Method       string
	AmountMinor  int64 // 0 when the channel does not report an amount
	Currency     string
	PaidAt       time.Time
	Source       models.PaymentEventSource
	GatewayEvent string
	Meta         models.RequestMeta
}

// PaymentService implements order creation, checkout verification, retry,
// cancellation and the booking confirmation shared with the webhook receiver
type PaymentService struct {
	bookings BookingStore
	gateway  OrderGateway
	notifier ConfirmationNotifier
	audit    *AuditService
	razorpay *config.RazorpayConfig
	app      config.AppConfig
	phones   *validator.PhoneValidator
	logger   *logrus.Logger
}

// NewPaymentService creates a new payment service
func NewPaymentService(
	bookings BookingStore,
	gateway OrderGateway,
	notifier ConfirmationNotifier,
	audit *AuditService,
	razorpay *config.RazorpayConfig,
	app config.AppConfig,
	logger *logrus.Logger,
) *PaymentService {
	return &PaymentService{
		bookings: bookings,
		gateway:  gateway,
		notifier: notifier,
		audit:    audit,
		razorpay: razorpay,
		app:      app,
		phones:   validator.NewPhoneValidator(),
		logger:   logger,
	}
}

// ============================================================================
// Order creation
// ============================================================================

// CreateOrder proxies order creation to the gateway. Each call creates a new
// gateway order; the order id is remembered on the booking when it exists.
func (s *PaymentService) CreateOrder(ctx context.Context, req *models.CreateOrderRequest, meta models.RequestMeta) (*models.CreateOrderResponse, error) {
	if req.Amount <= 0 || blank(req.Currency) || blank(req.BookingID) || blank(req.TripID) {
		return nil, apperr.Validation("", MsgMissingFields)
	}

	order, err := s.issueOrder(ctx, req.BookingID, req.TripID, req.Amount, strings.ToUpper(strings.TrimSpace(req.Currency)), meta)
	if err != nil {
		return nil, err
	}

	return &models.CreateOrderResponse{
		PaymentOrder: *order,
		KeyID:        s.gateway.KeyID(),
		Name:         s.razorpay.MerchantName,
	}, nil
}

func (s *PaymentService) issueOrder(ctx context.Context, bookingID, tripID string, amount float64, currency string, meta models.RequestMeta) (*models.PaymentOrder, error) {
	start := time.Now()
	orderReq := &RazorpayOrderRequest{
		Amount:   money.ToMinorUnits(amount),
		Currency: currency,
		Receipt:  money.BuildReceipt(bookingID),
		Notes: models.OrderNotes{
			BookingID: bookingID,
			TripID:    tripID,
		},
	}

	order, err := s.gateway.CreateOrder(ctx, orderReq)
	if err != nil {
		s.audit.Record(ctx, models.NewPaymentAudit(models.PaymentEventOrderFailed, models.PaymentSourceRazorpayAPI).
			SetBooking(bookingID).
			SetError(err.Error(), apperr.Kind(err)).
			SetMetadata(meta).
			SetProcessingTime(start))
		return nil, err
	}

	audit := models.NewPaymentAudit(models.PaymentEventOrderCreated, models.PaymentSourceRazorpayAPI).
		SetBooking(bookingID).
		SetPayment(order.ID, "").
		SetMetadata(meta).
		SetDetails(map[string]interface{}{"receipt": order.Receipt, "trip_id": tripID})
	audit.SetAmounts(amount, money.ToMajorUnits(order.Amount), order.Currency)
	s.audit.Record(ctx, audit.SetProcessingTime(start))

	stored, err := s.bookings.SetPaymentOrder(ctx, bookingID, order.ID)
	switch {
	case err != nil:
		s.logger.WithError(err).WithFields(logrus.Fields{
			"booking_id": bookingID,
			"order_id":   order.ID,
		}).Warn("Failed to store order id on booking")
	case !stored:
		s.logger.WithFields(logrus.Fields{
			"booking_id": bookingID,
			"order_id":   order.ID,
		}).Debug("Order id not stored, booking missing or not awaiting payment")
	}

	return order, nil
}

// ============================================================================
// Checkout verification
// ============================================================================

// VerifyPayment checks the checkout callback signature and confirms the
// booking. The booking is left untouched when the signature does not match.
func (s *PaymentService) VerifyPayment(ctx context.Context, req *models.VerifyPaymentRequest, meta models.RequestMeta) error {
	if req.Missing() {
		return apperr.Validation("", MsgMissingFields)
	}

	ok, err := signature.Verify(s.razorpay.KeySecret, req.RazorpaySignature, req.RazorpayOrderID, req.RazorpayPaymentID)
	if errors.Is(err, signature.ErrMissingSecret) {
		s.logger.Error("RAZORPAY_KEY_SECRET is not configured, rejecting payment verification")
		return apperr.Configuration("RAZORPAY_KEY_SECRET")
	}
	if err != nil {
		return err
	}

	if !ok {
		s.logger.WithFields(logrus.Fields{
			"booking_id": req.BookingID,
			"order_id":   req.RazorpayOrderID,
			"payment_id": req.RazorpayPaymentID,
			"ip":         meta.IPAddress,
		}).Warn("Payment signature verification failed")

		s.audit.Record(ctx, models.NewPaymentAudit(models.PaymentEventVerifyRejected, models.PaymentSourceCheckout).
			SetBooking(req.BookingID).
			SetPayment(req.RazorpayOrderID, req.RazorpayPaymentID).
			SetError("signature mismatch", "signature_mismatch").
			SetMetadata(meta))
		return apperr.SignatureMismatch("checkout")
	}

	s.audit.Record(ctx, models.NewPaymentAudit(models.PaymentEventVerifyAccepted, models.PaymentSourceCheckout).
		SetBooking(req.BookingID).
		SetPayment(req.RazorpayOrderID, req.RazorpayPaymentID).
		SetMetadata(meta))

	_, err = s.ConfirmBooking(ctx, PaymentConfirmation{
		BookingID: req.BookingID,
		PaymentID: req.RazorpayPaymentID,
		OrderID:   req.RazorpayOrderID,
		Signature: req.RazorpaySignature,
		PaidAt:    time.Now(),
		Source:    models.PaymentSourceCheckout,
		Meta:      meta,
	})
	return err
}

// ConfirmBooking applies a verified payment to a booking. Verification and
// webhooks may both call this for the same payment; the second call merges.
// A payment that conflicts with the stored one is reported as an anomaly and
// still treated as success.
func (s *PaymentService) ConfirmBooking(ctx context.Context, pc PaymentConfirmation) (ConfirmOutcome, error) {
	params := database.ConfirmPaymentParams{
		BookingID: pc.BookingID,
		PaymentID: pc.PaymentID,
		OrderID:   pc.OrderID,
		Signature: pc.Signature,
		Method:    pc.Method,
		PaidAt:    pc.PaidAt,
	}
	var received float64
	if pc.AmountMinor > 0 {
		received = money.ToMajorUnits(pc.AmountMinor)
		params.Amount = &received
	}

	fields := logrus.Fields{
		"booking_id": pc.BookingID,
		"payment_id": pc.PaymentID,
		"order_id":   pc.OrderID,
		"source":     pc.Source,
	}

	result, err := s.bookings.ConfirmPayment(ctx, params)
	if err != nil {
		s.logger.WithError(err).WithFields(fields).Error("CRITICAL: verified payment could not be recorded, manual reconciliation required")
		s.audit.Record(ctx, s.confirmationAudit(models.PaymentEventError, pc).
			SetError(err.Error(), "persistence_error"))
		return "", apperr.Persistence("update booking status", err)
	}

	if result.Applied {
		audit := s.confirmationAudit(models.PaymentEventBookingConfirmed, pc)
		var expected float64
		amountMismatch := false
		if pc.AmountMinor > 0 {
			expected = money.Deposit(result.TotalPrice, s.app.DepositRate)
			if money.SameAmount(received, result.TotalPrice) {
				expected = result.TotalPrice
			}
			if !audit.SetAmounts(expected, received, pc.Currency) {
				amountMismatch = true
				s.logger.WithFields(fields).WithFields(logrus.Fields{
					"expected_amount": expected,
					"received_amount": received,
				}).Warn("Payment amount does not match the booking deposit")
			}
		}

		outcome := ConfirmOutcomeAlreadyConfirmed
		if result.NewlyConfirmed() {
			outcome = ConfirmOutcomeConfirmed
			s.audit.Record(ctx, audit.SetPaymentStatus(string(models.BookingStatusConfirmed)))
			s.logger.WithFields(fields).WithField("previous_status", result.PreviousStatus).Info("Booking confirmed")
		} else {
			s.logger.WithFields(fields).Info("Booking already confirmed with this payment, merged payment details")
			// The first channel usually carries no amount, so the merge is
			// where a wrong amount shows up.
			if amountMismatch {
				anomaly := s.confirmationAudit(models.PaymentEventReconciliationMismatch, pc).
					SetPaymentStatus(string(models.BookingStatusConfirmed)).
					SetDetails(map[string]interface{}{"reason": "amount_mismatch"})
				anomaly.SetAmounts(expected, received, pc.Currency)
				s.audit.Record(ctx, anomaly)
			}
		}

		s.notifier.NotifyConfirmed(ctx, pc.BookingID, pc.Source)
		return outcome, nil
	}

	current := result.Current
	switch {
	case current == nil:
		return "", apperr.NotFound("booking", pc.BookingID)

	case current.Status == models.BookingStatusConfirmed:
		stored := ""
		if current.PaymentID != nil {
			stored = *current.PaymentID
		}
		s.logger.WithFields(fields).WithField("stored_payment_id", stored).
			Warn("Booking already confirmed with a different payment, possible double charge")
		s.audit.Record(ctx, s.confirmationAudit(models.PaymentEventReconciliationMismatch, pc).
			SetDetails(map[string]interface{}{
				"stored_payment_id":   stored,
				"incoming_payment_id": pc.PaymentID,
			}))
		return ConfirmOutcomeConflict, nil

	case current.Status == models.BookingStatusRefunded:
		s.logger.WithFields(fields).Info("Booking already refunded, ignoring confirmation")
		return ConfirmOutcomeRefunded, nil

	default:
		return "", fmt.Errorf("booking %s could not be confirmed from status %s", pc.BookingID, current.Status)
	}
}

func (s *PaymentService) confirmationAudit(eventType models.PaymentEventType, pc PaymentConfirmation) *models.PaymentAudit {
	return models.NewPaymentAudit(eventType, pc.Source).
		SetBooking(pc.BookingID).
		SetPayment(pc.OrderID, pc.PaymentID).
		SetGatewayEvent(pc.GatewayEvent).
		SetMetadata(pc.Meta)
}

// ============================================================================
// Failure, cancellation and retry
// ============================================================================

// RecordFailure stores a gateway-reported payment failure. Confirmed and
// refunded bookings are never downgraded.
func (s *PaymentService) RecordFailure(ctx context.Context, bookingID, paymentID, orderID, reason string, meta models.RequestMeta) error {
	if blank(reason) {
		reason = models.PaymentErrorGatewayFailed
	}

	updated, err := s.bookings.MarkPaymentFailed(ctx, bookingID, paymentID, orderID, reason)
	if err != nil {
		s.logger.WithError(err).WithField("booking_id", bookingID).Error("Failed to record payment failure")
		return apperr.Persistence("record payment failure", err)
	}

	fields := logrus.Fields{
		"booking_id": bookingID,
		"payment_id": paymentID,
		"reason":     reason,
	}
	if !updated {
		booking, err := s.bookings.GetByID(ctx, bookingID)
		if err != nil {
			return apperr.Persistence("load booking", err)
		}
		if booking == nil {
			return apperr.NotFound("booking", bookingID)
		}
		s.logger.WithFields(fields).WithField("status", booking.Status).Info("Ignoring payment failure for settled booking")
		return nil
	}

	s.logger.WithFields(fields).Info("Payment failure recorded")
	s.audit.Record(ctx, models.NewPaymentAudit(models.PaymentEventPaymentFailed, models.PaymentSourceRazorpayWebhook).
		SetBooking(bookingID).
		SetPayment(orderID, paymentID).
		SetGatewayEvent(models.WebhookEventPaymentFailed).
		SetPaymentStatus(string(models.BookingStatusPaymentFailed)).
		SetError(reason, "").
		SetMetadata(meta))
	return nil
}

// CancelPayment records that the user dismissed the checkout. Only a pending
// booking changes; anything else is left as it is.
func (s *PaymentService) CancelPayment(ctx context.Context, bookingID string, meta models.RequestMeta) error {
	if blank(bookingID) {
		return apperr.Validation("bookingId", "is required")
	}

	updated, err := s.bookings.MarkCancelled(ctx, bookingID)
	if err != nil {
		return apperr.Persistence("cancel payment", err)
	}

	if !updated {
		booking, err := s.bookings.GetByID(ctx, bookingID)
		if err != nil {
			return apperr.Persistence("load booking", err)
		}
		if booking == nil {
			return apperr.NotFound("booking", bookingID)
		}
		s.logger.WithFields(logrus.Fields{
			"booking_id": bookingID,
			"status":     booking.Status,
		}).Info("Cancel ignored, booking is not pending")
		return nil
	}

	s.audit.Record(ctx, models.NewPaymentAudit(models.PaymentEventPaymentCancelled, models.PaymentSourceUser).
		SetBooking(bookingID).
		SetPaymentStatus(string(models.BookingStatusPaymentFailed)).
		SetError(models.PaymentErrorCancelled, "").
		SetMetadata(meta))
	return nil
}

// RetryPayment puts a failed booking back to pending and issues a fresh order
// for the deposit
func (s *PaymentService) RetryPayment(ctx context.Context, bookingID string, meta models.RequestMeta) (*models.CreateOrderResponse, error) {
	if blank(bookingID) {
		return nil, apperr.Validation("bookingId", "is required")
	}

	details, err := s.bookings.GetDetails(ctx, bookingID)
	if err != nil {
		return nil, apperr.Persistence("load booking", err)
	}
	if details == nil {
		return nil, apperr.NotFound("booking", bookingID)
	}
	if !details.Status.AwaitingPayment() {
		return nil, apperr.Validation("", MsgNotAwaitingPayment)
	}

	reset, err := s.bookings.ResetForRetry(ctx, bookingID)
	if err != nil {
		return nil, apperr.Persistence("reset booking for retry", err)
	}
	if reset == nil {
		// settled between the read and the reset
		return nil, apperr.Validation("", MsgNotAwaitingPayment)
	}

	s.audit.Record(ctx, models.NewPaymentAudit(models.PaymentEventRetryStarted, models.PaymentSourceUser).
		SetBooking(bookingID).
		SetPaymentStatus(string(models.BookingStatusPending)).
		SetMetadata(meta))

	deposit := money.Deposit(details.TotalPrice, s.app.DepositRate)
	order, err := s.issueOrder(ctx, bookingID, details.TripID, deposit, DefaultCurrency, meta)
	if err != nil {
		return nil, err
	}

	tripName := details.TripName
	if tripName == "" {
		tripName = "your trip"
	}

	return &models.CreateOrderResponse{
		PaymentOrder: *order,
		KeyID:        s.gateway.KeyID(),
		Name:         s.razorpay.MerchantName,
		Description:  "Deposit for " + tripName,
		Prefill:      checkoutPrefill(details),
	}, nil
}

func checkoutPrefill(details *models.BookingDetails) *models.CheckoutPrefill {
	prefill := &models.CheckoutPrefill{
		Name:    details.PrimaryContactName(),
		Email:   confirmationRecipient(details),
		Contact: deref(details.ContactNumber),
	}
	if prefill.Contact == "" && len(details.Travelers) > 0 {
		prefill.Contact = deref(details.Travelers[0].Phone)
	}
	return prefill
}

// ============================================================================
// Status and booking creation
// ============================================================================

// GetPaymentStatus returns what the payment-failed page needs to offer a retry
func (s *PaymentService) GetPaymentStatus(ctx context.Context, bookingID string) (*models.PaymentStatusResponse, error) {
	if blank(bookingID) {
		return nil, apperr.Validation("bookingId", "is required")
	}

	details, err := s.bookings.GetDetails(ctx, bookingID)
	if err != nil {
		return nil, apperr.Persistence("load booking", err)
	}
	if details == nil {
		return nil, apperr.NotFound("booking", bookingID)
	}

	resp := &models.PaymentStatusResponse{
		BookingID:     details.ID,
		TripID:        details.TripID,
		TripName:      details.TripName,
		Status:        details.Status,
		TotalPrice:    details.TotalPrice,
		DepositAmount: money.Deposit(details.TotalPrice, s.app.DepositRate),
		ContactEmail:  details.ContactEmail,
		PaymentError:  details.PaymentError,
		CanRetry:      details.Status.AwaitingPayment(),
	}
	if resp.CanRetry {
		resp.RetryPath = fmt.Sprintf("/trip/%s/booking?retry=%s", details.TripID, details.ID)
	}
	if details.Status == models.BookingStatusConfirmed {
		resp.ConfirmationURL = confirmationURL(s.app.WebsiteURL, details.TripID, details.ID)
	}
	return resp, nil
}

// CreateBooking stores a pending booking with its travelers. The first
// traveler's email and phone stand in for missing contact details.
func (s *PaymentService) CreateBooking(ctx context.Context, req *models.CreateBookingRequest) (*models.CreateBookingResponse, error) {
	if blank(req.TripID) || req.TotalPrice <= 0 || len(req.Travelers) == 0 {
		return nil, apperr.Validation("", MsgMissingFields)
	}

	travelers := make([]models.Traveler, 0, len(req.Travelers))
	for i, in := range req.Travelers {
		if blank(in.FirstName) || blank(in.LastName) {
			return nil, apperr.Validation(fmt.Sprintf("travelers[%d]", i), "first and last name are required")
		}

		t := models.Traveler{
			FirstName:       strings.TrimSpace(in.FirstName),
			LastName:        strings.TrimSpace(in.LastName),
			Email:           optionalString(in.Email),
			Gender:          in.Gender,
			Country:         in.Country,
			InstagramHandle: in.InstagramHandle,
			IsSubscribed:    in.IsSubscribed,
		}
		t.FullName = t.FirstName + " " + t.LastName

		if !blank(in.Phone) {
			phone, err := s.phones.Validate(in.Phone)
			if err != nil {
				return nil, apperr.Validation(fmt.Sprintf("travelers[%d].phone", i), err.Error())
			}
			t.Phone = &phone
		}
		if in.DateOfBirth != nil && !blank(*in.DateOfBirth) {
			dob, err := time.Parse("2006-01-02", strings.TrimSpace(*in.DateOfBirth))
			if err != nil {
				return nil, apperr.Validation(fmt.Sprintf("travelers[%d].date_of_birth", i), "must be YYYY-MM-DD")
			}
			t.DateOfBirth = &dob
		}
		travelers = append(travelers, t)
	}

	booking := &models.Booking{
		TripID:       strings.TrimSpace(req.TripID),
		UserID:       req.UserID,
		TotalPrice:   req.TotalPrice,
		ContactEmail: optionalString(req.ContactEmail),
	}
	if booking.ContactEmail == nil {
		booking.ContactEmail = travelers[0].Email
	}

	if !blank(req.ContactNumber) {
		contact, err := s.phones.Validate(req.ContactNumber)
		if err != nil {
			return nil, apperr.Validation("contact_number", err.Error())
		}
		booking.ContactNumber = &contact
	} else {
		booking.ContactNumber = travelers[0].Phone
	}

	if err := s.bookings.Create(ctx, booking, travelers); err != nil {
		s.logger.WithError(err).WithField("trip_id", booking.TripID).Error("Failed to create booking")
		return nil, apperr.Persistence("create booking", err)
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"trip_id":    booking.TripID,
		"travelers":  len(travelers),
	}).Info("Booking created")

	return &models.CreateBookingResponse{
		BookingID:     booking.ID,
		Status:        booking.Status,
		TotalPrice:    booking.TotalPrice,
		DepositAmount: money.Deposit(booking.TotalPrice, s.app.DepositRate),
	}, nil
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
