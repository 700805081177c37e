package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tourcrow/payments-backend/internal/models"
	"github.com/tourcrow/payments-backend/internal/services"
)

type stubAdminAuth struct {
	resp *services.AdminLoginResponse
	err  error
}

func (s *stubAdminAuth) Login(ctx context.Context, email, password string) (*services.AdminLoginResponse, error) {
	return s.resp, s.err
}

type stubAuditReader struct {
	events []*models.PaymentAudit
	err    error
	limit  int
}

func (s *stubAuditReader) BookingTrail(ctx context.Context, bookingID string) ([]*models.PaymentAudit, error) {
	return s.events, s.err
}

func (s *stubAuditReader) Anomalies(ctx context.Context, limit int) ([]*models.PaymentAudit, error) {
	s.limit = limit
	return s.events, s.err
}

func setupAdminRouter(auth AdminAuthenticator, audit AuditReader) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/api/admin/login", NewAdminAuthHandler(auth, testLogger()).Login)
	h := NewAdminHandler(audit, testLogger())
	router.GET("/api/admin/bookings/:id/audit", h.GetBookingAudit)
	router.GET("/api/admin/payments/anomalies", h.GetAnomalies)
	return router
}

func TestAdminLoginHandler(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		stub   *stubAdminAuth
		status int
	}{
		{
			name:   "success",
			body:   `{"email":"ops@tourcrow.in","password":"correct-horse-battery"}`,
			stub:   &stubAdminAuth{resp: &services.AdminLoginResponse{AccessToken: "tok", TokenType: "Bearer", ExpiresIn: 3600, Email: "ops@tourcrow.in"}},
			status: http.StatusOK,
		},
		{
			name:   "invalid credentials",
			body:   `{"email":"ops@tourcrow.in","password":"nope"}`,
			stub:   &stubAdminAuth{err: services.ErrInvalidCredentials},
			status: http.StatusUnauthorized,
		},
		{
			name:   "not configured",
			body:   `{"email":"ops@tourcrow.in","password":"nope"}`,
			stub:   &stubAdminAuth{err: errors.New("admin login is not configured")},
			status: http.StatusServiceUnavailable,
		},
		{
			name:   "bad body",
			body:   `{"email":"not-an-email"}`,
			stub:   &stubAdminAuth{},
			status: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupAdminRouter(tt.stub, &stubAuditReader{})
			w := doJSON(router, http.MethodPost, "/api/admin/login", tt.body)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestGetBookingAuditHandler(t *testing.T) {
	events := []*models.PaymentAudit{
		models.NewPaymentAudit(models.PaymentEventOrderCreated, models.PaymentSourceRazorpayAPI).SetBooking("b1"),
		models.NewPaymentAudit(models.PaymentEventBookingConfirmed, models.PaymentSourceCheckout).SetBooking("b1"),
	}
	router := setupAdminRouter(&stubAdminAuth{}, &stubAuditReader{events: events})

	w := doJSON(router, http.MethodGet, "/api/admin/bookings/b1/audit", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "b1", body["booking_id"])
	assert.Equal(t, float64(2), body["count"])
	first := body["events"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "order_created", first["event_type"])
}

func TestGetBookingAuditHandler_Empty(t *testing.T) {
	router := setupAdminRouter(&stubAdminAuth{}, &stubAuditReader{})

	w := doJSON(router, http.MethodGet, "/api/admin/bookings/b1/audit", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{}, decodeBody(t, w)["events"])
}

func TestGetAnomaliesHandler(t *testing.T) {
	audit := &stubAuditReader{}
	router := setupAdminRouter(&stubAdminAuth{}, audit)

	w := doJSON(router, http.MethodGet, "/api/admin/payments/anomalies?limit=25", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 25, audit.limit)

	w = doJSON(router, http.MethodGet, "/api/admin/payments/anomalies?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	failing := setupAdminRouter(&stubAdminAuth{}, &stubAuditReader{err: errors.New("boom")})
	w = doJSON(failing, http.MethodGet, "/api/admin/payments/anomalies", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
