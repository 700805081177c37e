package apperr

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindAndHTTPStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantKind   string
		wantStatus int
	}{
		{"nil", nil, "", http.StatusOK},
		{"validation", Validation("bookingId", "is required"), "validation_error", http.StatusBadRequest},
		{"wrapped validation", fmt.Errorf("create order: %w", Validation("", "Missing required fields")), "validation_error", http.StatusBadRequest},
		{"configuration", Configuration("RAZORPAY_WEBHOOK_SECRET"), "configuration_error", http.StatusInternalServerError},
		{"signature", SignatureMismatch("checkout"), "signature_mismatch", http.StatusBadRequest},
		{"gateway with status", &GatewayError{StatusCode: http.StatusUnauthorized, Message: "Authentication failed"}, "gateway_error", http.StatusUnauthorized},
		{"gateway without status", &GatewayError{Message: "connection refused"}, "gateway_error", http.StatusBadGateway},
		{"persistence", Persistence("confirm booking", sql.ErrConnDone), "persistence_error", http.StatusInternalServerError},
		{"not found", NotFound("booking", "b1"), "not_found", http.StatusNotFound},
		{"unknown", errors.New("boom"), "internal", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.wantKind, Kind(tt.err))
			assert.Equal(t, tt.wantStatus, HTTPStatus(tt.err))
		})
	}
}

func TestUnwrap(t *testing.T) {
	t.Parallel()

	err := Persistence("record refund", sql.ErrConnDone)
	assert.True(t, errors.Is(err, sql.ErrConnDone))
	assert.Equal(t, "failed to record refund: sql: connection is already closed", err.Error())

	gw := &GatewayError{StatusCode: 502, Message: "order creation failed", Err: errors.New("dial tcp: timeout")}
	assert.Contains(t, gw.Error(), "dial tcp: timeout")
	assert.True(t, IsGateway(fmt.Errorf("wrapped: %w", gw)))
}

func TestMessages(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Missing required fields", Validation("", "Missing required fields").Error())
	assert.Equal(t, "amount: must be positive", Validation("amount", "must be positive").Error())
	assert.Equal(t, "configuration error: RAZORPAY_KEY_SECRET is not set", Configuration("RAZORPAY_KEY_SECRET").Error())
	assert.Equal(t, "webhook signature mismatch", SignatureMismatch("webhook").Error())
	assert.Equal(t, "booking not found: pay_123", NotFound("booking", "pay_123").Error())
}
