package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tourcrow/payments-backend/internal/config"
	"github.com/tourcrow/payments-backend/internal/models"
	"github.com/tourcrow/payments-backend/pkg/email"
	"github.com/tourcrow/payments-backend/pkg/money"
	"golang.org/x/sync/errgroup"
)

// ConfirmationStore is the booking storage the confirmation email needs
type ConfirmationStore interface {
	GetDetails(ctx context.Context, id string) (*models.BookingDetails, error)
	ClaimConfirmationEmail(ctx context.Context, bookingID string, claimedAt time.Time) (bool, error)
	ReleaseConfirmationEmail(ctx context.Context, bookingID string, claimedAt time.Time) (bool, error)
	ListUnsentConfirmations(ctx context.Context, limit int) ([]string, error)
}

// DefaultSendTimeout bounds one confirmation email send. Payment callbacks
// and webhooks wait for it, so it stays well under the gateway's webhook
// timeout and the server's write timeout.
const DefaultSendTimeout = 5 * time.Second

// ConfirmationService sends the booking confirmation email at most once per
// booking. Both payment channels call it; the claim flag decides who sends.
type ConfirmationService struct {
	bookings    ConfirmationStore
	mailer      email.EmailGateway
	audit       *AuditService
	app         config.AppConfig
	logger      *logrus.Logger
	sendTimeout time.Duration
	now         func() time.Time
}

// NewConfirmationService creates a new confirmation email service
func NewConfirmationService(
	bookings ConfirmationStore,
	mailer email.EmailGateway,
	audit *AuditService,
	app config.AppConfig,
	logger *logrus.Logger,
) *ConfirmationService {
	return &ConfirmationService{
		bookings:    bookings,
		mailer:      mailer,
		audit:       audit,
		app:         app,
		logger:      logger,
		sendTimeout: DefaultSendTimeout,
		now:         time.Now,
	}
}

// SetSendTimeout changes the per-email send bound. Operator tools that run
// outside a request can afford a longer one.
func (s *ConfirmationService) SetSendTimeout(d time.Duration) {
	if d > 0 {
		s.sendTimeout = d
	}
}

// NotifyConfirmed sends the confirmation email and logs any failure. Email
// problems never fail the payment flow that triggered them.
func (s *ConfirmationService) NotifyConfirmed(ctx context.Context, bookingID string, source models.PaymentEventSource) {
	if _, err := s.SendConfirmation(ctx, bookingID, source); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"booking_id": bookingID,
			"source":     source,
		}).Warn("Confirmation email not sent")
	}
}

// SendConfirmation claims and sends the confirmation email. It returns false
// without error when another caller already sent it or the booking is not
// confirmed. A failed send releases the claim so a later attempt can retry.
func (s *ConfirmationService) SendConfirmation(ctx context.Context, bookingID string, source models.PaymentEventSource) (bool, error) {
	// The send must finish even if the triggering request goes away, or the
	// claim would be left set with no email delivered.
	ctx = context.WithoutCancel(ctx)

	// Postgres keeps microseconds; the claim time doubles as the claim token.
	claimedAt := s.now().UTC().Truncate(time.Microsecond)
	claimed, err := s.bookings.ClaimConfirmationEmail(ctx, bookingID, claimedAt)
	if err != nil {
		return false, err
	}
	if !claimed {
		s.logger.WithField("booking_id", bookingID).Debug("Confirmation email already claimed or booking not confirmed")
		return false, nil
	}

	messageID, recipient, err := s.deliver(ctx, bookingID)
	if err != nil {
		released, releaseErr := s.bookings.ReleaseConfirmationEmail(ctx, bookingID, claimedAt)
		switch {
		case releaseErr != nil:
			s.logger.WithError(releaseErr).WithField("booking_id", bookingID).Error("Failed to release confirmation email claim")
		case !released:
			s.logger.WithField("booking_id", bookingID).Warn("Confirmation email claim no longer held, not released")
		}
		s.audit.Record(ctx, models.NewPaymentAudit(models.PaymentEventEmailFailed, source).
			SetBooking(bookingID).
			SetError(err.Error(), ""))
		return false, err
	}

	s.audit.Record(ctx, models.NewPaymentAudit(models.PaymentEventEmailSent, source).
		SetBooking(bookingID).
		SetDetails(map[string]interface{}{
			"message_id": messageID,
			"recipient":  recipient,
			"gateway":    s.mailer.GetName(),
		}))

	s.logger.WithFields(logrus.Fields{
		"booking_id": bookingID,
		"message_id": messageID,
		"source":     source,
	}).Info("Confirmation email sent")

	return true, nil
}

func (s *ConfirmationService) deliver(ctx context.Context, bookingID string) (messageID, recipient string, err error) {
	msg, err := s.render(ctx, bookingID)
	if err != nil {
		return "", msg.To, err
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()

	messageID, err = s.mailer.Send(sendCtx, msg)
	if err != nil {
		return "", msg.To, fmt.Errorf("failed to send confirmation email: %w", err)
	}
	return messageID, msg.To, nil
}

// render loads the booking and builds its addressed confirmation email
func (s *ConfirmationService) render(ctx context.Context, bookingID string) (email.Message, error) {
	details, err := s.bookings.GetDetails(ctx, bookingID)
	if err != nil {
		return email.Message{}, err
	}
	if details == nil {
		return email.Message{}, fmt.Errorf("booking %s not found", bookingID)
	}

	recipient := confirmationRecipient(details)
	if recipient == "" {
		return email.Message{}, fmt.Errorf("booking %s has no contact email", bookingID)
	}

	msg, err := s.BuildMessage(details)
	if err != nil {
		return email.Message{To: recipient}, err
	}
	msg.To = recipient
	return msg, nil
}

// PendingConfirmation is an unsent confirmation email as it would go out
type PendingConfirmation struct {
	BookingID string
	Recipient string
	Subject   string
	Problem   string // set when the email cannot be rendered
}

// PreviewPending renders the emails ResendPending would send. Nothing is
// claimed and nothing is sent.
func (s *ConfirmationService) PreviewPending(ctx context.Context, limit int) ([]PendingConfirmation, error) {
	ids, err := s.bookings.ListUnsentConfirmations(ctx, limit)
	if err != nil {
		return nil, err
	}

	pending := make([]PendingConfirmation, 0, len(ids))
	for _, id := range ids {
		msg, err := s.render(ctx, id)
		p := PendingConfirmation{BookingID: id, Recipient: msg.To, Subject: msg.Subject}
		if err != nil {
			p.Problem = err.Error()
		}
		pending = append(pending, p)
	}
	return pending, nil
}

// ResendResult summarises a ResendPending run
type ResendResult struct {
	Checked int
	Sent    int
	Failed  int
}

// ResendPending sends confirmation emails for confirmed bookings whose email
// never went out, with at most concurrency sends in flight
func (s *ConfirmationService) ResendPending(ctx context.Context, limit, concurrency int) (*ResendResult, error) {
	ids, err := s.bookings.ListUnsentConfirmations(ctx, limit)
	if err != nil {
		return nil, err
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	var sent, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, id := range ids {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			ok, err := s.SendConfirmation(gctx, id, models.PaymentSourceSystem)
			switch {
			case err != nil:
				failed.Add(1)
				s.logger.WithError(err).WithField("booking_id", id).Warn("Resend failed")
			case ok:
				sent.Add(1)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &ResendResult{
		Checked: len(ids),
		Sent:    int(sent.Load()),
		Failed:  int(failed.Load()),
	}, nil
}

func confirmationRecipient(details *models.BookingDetails) string {
	if details.ContactEmail != nil && strings.TrimSpace(*details.ContactEmail) != "" {
		return strings.TrimSpace(*details.ContactEmail)
	}
	for _, t := range details.Travelers {
		if t.Email != nil && strings.TrimSpace(*t.Email) != "" {
			return strings.TrimSpace(*t.Email)
		}
	}
	return ""
}

// ConfirmationURL is the page a customer lands on after paying
func (s *ConfirmationService) ConfirmationURL(tripID, bookingID string) string {
	return confirmationURL(s.app.WebsiteURL, tripID, bookingID)
}

func confirmationURL(websiteURL, tripID, bookingID string) string {
	return fmt.Sprintf("%s/trip/%s/booking-confirmation?booking=%s", websiteURL, tripID, bookingID)
}

type confirmationData struct {
	Name            string
	TripName        string
	BookingID       string
	Travelers       []string
	Total           string
	DepositPaid     string
	Remaining       string
	PaidOn          string
	PaymentID       string
	ConfirmationURL string
}

// BuildMessage renders the confirmation email for a booking. To is left empty.
func (s *ConfirmationService) BuildMessage(details *models.BookingDetails) (email.Message, error) {
	deposit := money.Deposit(details.TotalPrice, s.app.DepositRate)
	if details.PaymentAmount != nil && *details.PaymentAmount > 0 {
		deposit = *details.PaymentAmount
	}

	tripName := details.TripName
	if tripName == "" {
		tripName = "your trip"
	}

	data := confirmationData{
		Name:            details.PrimaryContactName(),
		TripName:        tripName,
		BookingID:       details.ID,
		Total:           money.Format(details.TotalPrice),
		DepositPaid:     money.Format(deposit),
		Remaining:       money.Format(money.Remaining(details.TotalPrice, deposit)),
		ConfirmationURL: s.ConfirmationURL(details.TripID, details.ID),
	}
	if data.Name == "" {
		data.Name = "Traveller"
	}
	for _, t := range details.Travelers {
		data.Travelers = append(data.Travelers, t.DisplayName())
	}
	if details.PaymentDate != nil {
		data.PaidOn = details.PaymentDate.In(istLocation).Format("2 Jan 2006, 3:04 PM")
	}
	if details.PaymentID != nil {
		data.PaymentID = *details.PaymentID
	}

	var html bytes.Buffer
	if err := confirmationHTML.Execute(&html, data); err != nil {
		return email.Message{}, fmt.Errorf("failed to render confirmation email: %w", err)
	}

	return email.Message{
		Subject: "Booking Confirmed: " + tripName,
		HTML:    html.String(),
		Text:    confirmationText(data),
	}, nil
}

var istLocation = time.FixedZone("IST", 5*60*60+30*60)

func confirmationText(d confirmationData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", d.Name)
	fmt.Fprintf(&b, "Your booking for %s is confirmed.\n\n", d.TripName)
	fmt.Fprintf(&b, "Booking ID: %s\n", d.BookingID)
	if len(d.Travelers) > 0 {
		fmt.Fprintf(&b, "Travellers: %s\n", strings.Join(d.Travelers, ", "))
	}
	fmt.Fprintf(&b, "Total: %s\nDeposit paid: %s\nRemaining balance: %s\n\n", d.Total, d.DepositPaid, d.Remaining)
	fmt.Fprintf(&b, "View your booking: %s\n\nTeam Tourcrow\n", d.ConfirmationURL)
	return b.String()
}

var confirmationHTML = template.Must(template.New("confirmation").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #1f2933; max-width: 600px; margin: 0 auto;">
  <h1 style="color: #0b7285;">Booking Confirmed</h1>
  <p>Hi {{.Name}},</p>
  <p>Your deposit has been received and your booking for <strong>{{.TripName}}</strong> is confirmed.</p>
  <table style="width: 100%; border-collapse: collapse;">
    <tr><td>Booking ID</td><td>{{.BookingID}}</td></tr>
    {{- if .PaymentID}}
    <tr><td>Payment ID</td><td>{{.PaymentID}}</td></tr>
    {{- end}}
    {{- if .PaidOn}}
    <tr><td>Paid on</td><td>{{.PaidOn}}</td></tr>
    {{- end}}
    <tr><td>Total price</td><td>{{.Total}}</td></tr>
    <tr><td>Deposit paid</td><td>{{.DepositPaid}}</td></tr>
    <tr><td>Remaining balance</td><td>{{.Remaining}}</td></tr>
  </table>
  {{- if .Travelers}}
  <h3>Travellers</h3>
  <ul>
    {{- range .Travelers}}
    <li>{{.}}</li>
    {{- end}}
  </ul>
  {{- end}}
  <p>The remaining balance is collected before departure. Our team will reach out with the details.</p>
  <p><a href="{{.ConfirmationURL}}" style="background: #0b7285; color: #ffffff; padding: 10px 16px; text-decoration: none; border-radius: 4px;">View your booking</a></p>
  <p>Team Tourcrow</p>
</body>
</html>
`))
