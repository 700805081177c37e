package database

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tourcrow/payments-backend/internal/models"
)

func setupAuditRepo(t *testing.T) (*PaymentAuditRepository, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	return NewPaymentAuditRepository(sqlx.NewDb(mockDB, "sqlmock"), logger), mock
}

func TestPaymentAuditRepository_Log(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		repo, mock := setupAuditRepo(t)

		audit := models.NewPaymentAudit(models.PaymentEventWebhookProcessed, models.PaymentSourceRazorpayWebhook).
			SetBooking("b1").
			SetPayment("order_1", "pay_1").
			SetIdempotencyKey("evt_1")

		mock.ExpectExec(`INSERT INTO payment_audits`).
			WithArgs(
				audit.ID, "b1", "pay_1", "order_1", nil,
				"webhook_processed", "razorpay_webhook", nil,
				nil, nil, nil, nil,
				nil, nil, nil,
				nil, nil,
				nil, "evt_1",
				nil, nil, nil, nil,
				sqlmock.AnyArg(), nil,
			).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Log(ctx, audit))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Assigns id and timestamp", func(t *testing.T) {
		repo, mock := setupAuditRepo(t)

		mock.ExpectExec(`INSERT INTO payment_audits`).WillReturnResult(sqlmock.NewResult(0, 1))

		audit := &models.PaymentAudit{EventType: models.PaymentEventError, EventSource: models.PaymentSourceSystem}
		require.NoError(t, repo.Log(ctx, audit))
		assert.NotEqual(t, uuid.Nil, audit.ID)
		assert.False(t, audit.CreatedAt.IsZero())
	})

	t.Run("Nil entry", func(t *testing.T) {
		repo, _ := setupAuditRepo(t)
		assert.Error(t, repo.Log(ctx, nil))
	})

	t.Run("Database error", func(t *testing.T) {
		repo, mock := setupAuditRepo(t)

		mock.ExpectExec(`INSERT INTO payment_audits`).WillReturnError(fmt.Errorf("disk full"))

		err := repo.Log(ctx, models.NewPaymentAudit(models.PaymentEventError, models.PaymentSourceSystem))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to log payment audit")
	})
}

func TestPaymentAuditRepository_HasProcessed(t *testing.T) {
	ctx := context.Background()

	t.Run("Seen event", func(t *testing.T) {
		repo, mock := setupAuditRepo(t)

		mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs("evt_1", "webhook_processed").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		seen, err := repo.HasProcessed(ctx, "evt_1")
		require.NoError(t, err)
		assert.True(t, seen)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Empty key never matches", func(t *testing.T) {
		repo, mock := setupAuditRepo(t)

		seen, err := repo.HasProcessed(ctx, "")
		require.NoError(t, err)
		assert.False(t, seen)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPaymentAuditRepository_GetAnomalies(t *testing.T) {
	repo, mock := setupAuditRepo(t)

	id := uuid.New()
	rows := sqlmock.NewRows([]string{"id", "booking_id", "event_type", "event_source", "details", "created_at"}).
		AddRow(id.String(), "b1", "reconciliation_mismatch", "razorpay_webhook", []byte(`{"stored_payment_id":"pay_1"}`), time.Now())

	mock.ExpectQuery(`WHERE amounts_match = FALSE OR event_type = \$1`).
		WithArgs("reconciliation_mismatch", 20).
		WillReturnRows(rows)

	audits, err := repo.GetAnomalies(context.Background(), 20)
	require.NoError(t, err)
	require.Len(t, audits, 1)
	assert.Equal(t, id, audits[0].ID)
	assert.Equal(t, models.PaymentEventReconciliationMismatch, audits[0].EventType)
	assert.Equal(t, "pay_1", audits[0].Details["stored_payment_id"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
