package services

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/tourcrow/payments-backend/internal/models"
)

const (
	defaultAnomalyLimit = 50
	maxAnomalyLimit     = 200
)

// AuditStore persists payment audit entries
type AuditStore interface {
	Log(ctx context.Context, audit *models.PaymentAudit) error
	HasProcessed(ctx context.Context, idempotencyKey string) (bool, error)
	GetByBookingID(ctx context.Context, bookingID string) ([]*models.PaymentAudit, error)
	GetAnomalies(ctx context.Context, limit int) ([]*models.PaymentAudit, error)
}

// AuditService records payment events in the audit ledger.
// Recording never fails the request that triggered it.
type AuditService struct {
	store  AuditStore
	logger *logrus.Logger
}

// NewAuditService creates a new audit service
func NewAuditService(store AuditStore, logger *logrus.Logger) *AuditService {
	return &AuditService{
		store:  store,
		logger: logger,
	}
}

// Record writes an audit entry. The write outlives the caller's request
// context so a client disconnect does not drop the entry.
func (s *AuditService) Record(ctx context.Context, audit *models.PaymentAudit) {
	if err := s.store.Log(context.WithoutCancel(ctx), audit); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"event_type": audit.EventType,
			"source":     audit.EventSource,
		}).Error("AUDIT ERROR: payment event not recorded")
	}
}

// HasProcessed reports whether a webhook delivery already completed
func (s *AuditService) HasProcessed(ctx context.Context, idempotencyKey string) (bool, error) {
	return s.store.HasProcessed(ctx, idempotencyKey)
}

// BookingTrail returns every payment event recorded for a booking
func (s *AuditService) BookingTrail(ctx context.Context, bookingID string) ([]*models.PaymentAudit, error) {
	return s.store.GetByBookingID(ctx, bookingID)
}

// Anomalies returns amount mismatches and conflicting payments, newest first
func (s *AuditService) Anomalies(ctx context.Context, limit int) ([]*models.PaymentAudit, error) {
	if limit <= 0 {
		limit = defaultAnomalyLimit
	}
	if limit > maxAnomalyLimit {
		limit = maxAnomalyLimit
	}
	return s.store.GetAnomalies(ctx, limit)
}
