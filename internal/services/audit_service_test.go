package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tourcrow/payments-backend/internal/models"
)

type cancelCheckingStore struct {
	memoryAudit
	ctxErr error
}

func (s *cancelCheckingStore) Log(ctx context.Context, audit *models.PaymentAudit) error {
	s.ctxErr = ctx.Err()
	return s.memoryAudit.Log(ctx, audit)
}

func TestAuditRecord_OutlivesRequest(t *testing.T) {
	store := &cancelCheckingStore{}
	service := NewAuditService(store, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	service.Record(ctx, models.NewPaymentAudit(models.PaymentEventWebhookReceived, models.PaymentSourceRazorpayWebhook))
	assert.NoError(t, store.ctxErr)
	assert.Len(t, store.entries, 1)
}

func TestAuditRecord_StoreFailureIsSwallowed(t *testing.T) {
	store := &memoryAudit{logErr: errors.New("relation payment_audits does not exist")}
	service := NewAuditService(store, testLogger())

	assert.NotPanics(t, func() {
		service.Record(context.Background(), models.NewPaymentAudit(models.PaymentEventError, models.PaymentSourceSystem))
	})
}

type limitRecordingStore struct {
	memoryAudit
	limit int
}

func (s *limitRecordingStore) GetAnomalies(ctx context.Context, limit int) ([]*models.PaymentAudit, error) {
	s.limit = limit
	return nil, nil
}

func TestAuditAnomalies_Limit(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{in: 0, want: 50},
		{in: -3, want: 50},
		{in: 20, want: 20},
		{in: 5000, want: 200},
	}

	for _, tt := range tests {
		store := &limitRecordingStore{}
		service := NewAuditService(store, testLogger())
		_, err := service.Anomalies(context.Background(), tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, store.limit, "limit %d", tt.in)
	}
}
