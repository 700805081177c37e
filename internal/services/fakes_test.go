package services

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tourcrow/payments-backend/internal/config"
	"github.com/tourcrow/payments-backend/internal/database"
	"github.com/tourcrow/payments-backend/internal/models"
	"github.com/tourcrow/payments-backend/pkg/email"
)

const (
	testKeyID         = "rzp_test_key"
	testKeySecret     = "test_key_secret"
	testWebhookSecret = "test_webhook_secret"
	testWebsite       = "https://tourcrow.in"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// memoryBookings mirrors the guarded updates of BookingRepository in memory
type memoryBookings struct {
	mu        sync.Mutex
	bookings  map[string]*models.Booking
	travelers map[string][]models.Traveler
	tripNames map[string]string

	confirmErr error
}

func newMemoryBookings() *memoryBookings {
	return &memoryBookings{
		bookings:  make(map[string]*models.Booking),
		travelers: make(map[string][]models.Traveler),
		tripNames: make(map[string]string),
	}
}

func (m *memoryBookings) seed(id, tripID string, total float64, status models.BookingStatus) *models.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()

	contact := "asha@example.com"
	b := &models.Booking{
		ID:           id,
		TripID:       tripID,
		TotalPrice:   total,
		Status:       status,
		ContactEmail: &contact,
		BookingDate:  time.Now(),
	}
	m.bookings[id] = b
	m.travelers[id] = []models.Traveler{{ID: uuid.NewString(), BookingID: id, FirstName: "Asha", LastName: "Rao", FullName: "Asha Rao"}}
	m.tripNames[tripID] = "Spiti Valley Circuit"
	return b
}

func (m *memoryBookings) get(id string) models.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.bookings[id]
}

func (m *memoryBookings) Create(ctx context.Context, booking *models.Booking, travelers []models.Traveler) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	booking.ID = uuid.NewString()
	booking.Status = models.BookingStatusPending
	booking.BookingDate = time.Now()
	copied := *booking
	m.bookings[booking.ID] = &copied
	for i := range travelers {
		travelers[i].ID = uuid.NewString()
		travelers[i].BookingID = booking.ID
	}
	m.travelers[booking.ID] = travelers
	return nil
}

func (m *memoryBookings) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, nil
	}
	copied := *b
	return &copied, nil
}

func (m *memoryBookings) GetDetails(ctx context.Context, id string) (*models.BookingDetails, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, nil
	}
	return &models.BookingDetails{
		Booking:   *b,
		TripName:  m.tripNames[b.TripID],
		Travelers: append([]models.Traveler(nil), m.travelers[id]...),
	}, nil
}

func (m *memoryBookings) SetPaymentOrder(ctx context.Context, bookingID, orderID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[bookingID]
	if !ok || !b.Status.AwaitingPayment() {
		return false, nil
	}
	b.PaymentOrderID = &orderID
	return true, nil
}

func (m *memoryBookings) ConfirmPayment(ctx context.Context, p database.ConfirmPaymentParams) (*database.ConfirmResult, error) {
	if m.confirmErr != nil {
		return nil, m.confirmErr
	}
	if p.PaymentID == "" {
		return nil, errors.New("payment id is required to confirm a booking")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[p.BookingID]
	if !ok {
		return &database.ConfirmResult{}, nil
	}

	merge := b.Status == models.BookingStatusConfirmed && b.PaymentID != nil && *b.PaymentID == p.PaymentID
	if !b.Status.AwaitingPayment() && !merge {
		copied := *b
		return &database.ConfirmResult{Current: &copied}, nil
	}

	prev := b.Status
	paymentID := p.PaymentID
	b.Status = models.BookingStatusConfirmed
	b.PaymentID = &paymentID
	b.PaymentError = nil
	if p.OrderID != "" {
		orderID := p.OrderID
		b.PaymentOrderID = &orderID
	}
	if p.Method != "" {
		method := p.Method
		b.PaymentMethod = &method
	}
	if p.Amount != nil {
		amount := *p.Amount
		b.PaymentAmount = &amount
	}
	if b.PaymentDate == nil {
		paidAt := p.PaidAt
		b.PaymentDate = &paidAt
	}

	return &database.ConfirmResult{Applied: true, PreviousStatus: prev, TotalPrice: b.TotalPrice}, nil
}

func (m *memoryBookings) MarkPaymentFailed(ctx context.Context, bookingID, paymentID, orderID, reason string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[bookingID]
	if !ok || !b.Status.AwaitingPayment() {
		return false, nil
	}
	b.Status = models.BookingStatusPaymentFailed
	b.PaymentError = &reason
	return true, nil
}

func (m *memoryBookings) MarkCancelled(ctx context.Context, bookingID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[bookingID]
	if !ok || b.Status != models.BookingStatusPending {
		return false, nil
	}
	reason := models.PaymentErrorCancelled
	b.Status = models.BookingStatusPaymentFailed
	b.PaymentError = &reason
	return true, nil
}

func (m *memoryBookings) ResetForRetry(ctx context.Context, bookingID string) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[bookingID]
	if !ok || !b.Status.AwaitingPayment() {
		return nil, nil
	}
	b.Status = models.BookingStatusPending
	b.PaymentError = nil
	copied := *b
	return &copied, nil
}

func (m *memoryBookings) RecordRefund(ctx context.Context, p database.RefundParams) (*database.RefundResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bookings {
		if b.PaymentID == nil || *b.PaymentID != p.PaymentID {
			continue
		}
		if b.Status != models.BookingStatusConfirmed && b.Status != models.BookingStatusRefunded {
			return &database.RefundResult{BookingID: b.ID, Status: b.Status}, nil
		}
		refundID, amount, at := p.RefundID, p.Amount, p.At
		b.Status = models.BookingStatusRefunded
		b.RefundID = &refundID
		b.RefundAmount = &amount
		b.RefundDate = &at
		return &database.RefundResult{BookingID: b.ID, Applied: true, Status: b.Status}, nil
	}
	return nil, nil
}

func (m *memoryBookings) ClaimConfirmationEmail(ctx context.Context, bookingID string, claimedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[bookingID]
	if !ok || b.Status != models.BookingStatusConfirmed || b.ConfirmationEmailSent {
		return false, nil
	}
	b.ConfirmationEmailSent = true
	b.ConfirmationEmailDate = &claimedAt
	return true, nil
}

func (m *memoryBookings) ReleaseConfirmationEmail(ctx context.Context, bookingID string, claimedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[bookingID]
	if !ok || !b.ConfirmationEmailSent || b.ConfirmationEmailDate == nil || !b.ConfirmationEmailDate.Equal(claimedAt) {
		return false, nil
	}
	b.ConfirmationEmailSent = false
	b.ConfirmationEmailDate = nil
	return true, nil
}

func (m *memoryBookings) ListUnsentConfirmations(ctx context.Context, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, b := range m.bookings {
		if b.Status == models.BookingStatusConfirmed && !b.ConfirmationEmailSent {
			ids = append(ids, id)
		}
		if len(ids) == limit {
			break
		}
	}
	return ids, nil
}

// memoryAudit keeps audit entries in memory
type memoryAudit struct {
	mu      sync.Mutex
	entries []*models.PaymentAudit
	logErr  error
}

func (m *memoryAudit) Log(ctx context.Context, audit *models.PaymentAudit) error {
	if m.logErr != nil {
		return m.logErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, audit)
	return nil
}

func (m *memoryAudit) HasProcessed(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.EventType == models.PaymentEventWebhookProcessed && e.IdempotencyKey != nil && *e.IdempotencyKey == key {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryAudit) GetByBookingID(ctx context.Context, bookingID string) ([]*models.PaymentAudit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.PaymentAudit
	for _, e := range m.entries {
		if e.BookingID != nil && *e.BookingID == bookingID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memoryAudit) GetAnomalies(ctx context.Context, limit int) ([]*models.PaymentAudit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.PaymentAudit
	for _, e := range m.entries {
		mismatch := e.AmountsMatch != nil && !*e.AmountsMatch
		if mismatch || e.EventType == models.PaymentEventReconciliationMismatch {
			out = append(out, e)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryAudit) ofType(eventType models.PaymentEventType) []*models.PaymentAudit {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.PaymentAudit
	for _, e := range m.entries {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

// fakeOrders stands in for the Razorpay order API
type fakeOrders struct {
	mu       sync.Mutex
	requests []*RazorpayOrderRequest
	err      error
}

func (f *fakeOrders) CreateOrder(ctx context.Context, req *RazorpayOrderRequest) (*models.PaymentOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &models.PaymentOrder{
		ID:        "order_" + uuid.NewString()[:14],
		Entity:    "order",
		Amount:    req.Amount,
		AmountDue: req.Amount,
		Currency:  req.Currency,
		Receipt:   req.Receipt,
		Status:    "created",
		Notes:     req.Notes,
		CreatedAt: time.Now().Unix(),
	}, nil
}

func (f *fakeOrders) KeyID() string { return testKeyID }

// failingMailer rejects every send
type failingMailer struct{}

func (failingMailer) Send(ctx context.Context, msg email.Message) (string, error) {
	return "", errors.New("mailgun: 503 service unavailable")
}

func (failingMailer) GetName() string { return "failing" }

// stallingMailer blocks until the send context ends
type stallingMailer struct{}

func (stallingMailer) Send(ctx context.Context, msg email.Message) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (stallingMailer) GetName() string { return "stalling" }

type paymentFixture struct {
	bookings *memoryBookings
	audit    *memoryAudit
	orders   *fakeOrders
	mailer   *email.LogGateway
	confirm  *ConfirmationService
	payments *PaymentService
	webhooks *WebhookService
}

func newPaymentFixture() *paymentFixture {
	logger := testLogger()
	f := &paymentFixture{
		bookings: newMemoryBookings(),
		audit:    &memoryAudit{},
		orders:   &fakeOrders{},
		mailer:   email.NewLogGateway(nil),
	}

	app := config.AppConfig{WebsiteURL: testWebsite, DepositRate: 0.25}
	razorpay := &config.RazorpayConfig{
		KeyID:         testKeyID,
		KeySecret:     testKeySecret,
		WebhookSecret: testWebhookSecret,
		MerchantName:  "Tourcrow",
	}

	auditService := NewAuditService(f.audit, logger)
	f.confirm = NewConfirmationService(f.bookings, f.mailer, auditService, app, logger)
	f.payments = NewPaymentService(f.bookings, f.orders, f.confirm, auditService, razorpay, app, logger)
	f.webhooks = NewWebhookService(f.payments, f.bookings, auditService, testWebhookSecret, logger)
	return f
}
