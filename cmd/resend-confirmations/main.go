package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tourcrow/payments-backend/internal/config"
	"github.com/tourcrow/payments-backend/internal/database"
	"github.com/tourcrow/payments-backend/internal/services"
	"github.com/tourcrow/payments-backend/pkg/email"
)

func main() {
	var (
		limit       int
		concurrency int
		dryRun      bool
	)
	flag.IntVar(&limit, "limit", 100, "maximum bookings to process")
	flag.IntVar(&concurrency, "concurrency", 4, "emails sent in parallel")
	flag.BoolVar(&dryRun, "dry-run", false, "list the emails that would be sent without claiming or sending them")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.NewConnection(config.DatabaseConfig{
		URL:                cfg.Database.URL,
		MaxConnections:     concurrency + 1,
		MaxIdleConnections: concurrency,
		ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	var mailer email.EmailGateway = email.NewLogGateway(logger)
	if cfg.Email.Mode == "production" {
		mailer = email.NewMailgunGateway(email.MailgunConfig{
			Domain:      cfg.Email.Domain,
			APIKey:      cfg.Email.APIKey,
			APIBase:     cfg.Email.APIBase,
			SenderName:  cfg.Email.SenderName,
			SenderEmail: cfg.Email.SenderEmail,
		})
	}

	bookings := database.NewBookingRepository(db.DB)
	audit := services.NewAuditService(database.NewPaymentAuditRepository(db.DB, logger), logger)
	confirmations := services.NewConfirmationService(bookings, mailer, audit, cfg.App, logger)
	// No request is waiting on this tool
	confirmations.SetSendTimeout(30 * time.Second)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if dryRun {
		pending, err := confirmations.PreviewPending(ctx, limit)
		if err != nil {
			logger.Fatalf("Preview failed: %v", err)
		}
		for _, p := range pending {
			logger.WithFields(logrus.Fields{
				"booking_id": p.BookingID,
				"recipient":  p.Recipient,
				"subject":    p.Subject,
				"problem":    p.Problem,
			}).Info("Would send confirmation email")
		}
		logger.WithField("pending", len(pending)).Info("Dry run finished, nothing claimed or sent")
		return
	}

	result, err := confirmations.ResendPending(ctx, limit, concurrency)
	if err != nil {
		logger.Fatalf("Resend failed: %v", err)
	}

	logger.WithFields(logrus.Fields{
		"checked": result.Checked,
		"sent":    result.Sent,
		"failed":  result.Failed,
		"gateway": mailer.GetName(),
	}).Info("Confirmation resend finished")

	if result.Failed > 0 {
		os.Exit(1)
	}
}
