package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tourcrow/payments-backend/internal/apperr"
	"github.com/tourcrow/payments-backend/internal/config"
	"github.com/tourcrow/payments-backend/internal/models"
)

func newTestRazorpay(baseURL string) *RazorpayService {
	return NewRazorpayService(&config.RazorpayConfig{
		KeyID:      testKeyID,
		KeySecret:  testKeySecret,
		APIBaseURL: baseURL,
		Timeout:    2 * time.Second,
	}, testLogger())
}

func TestRazorpayCreateOrder_Success(t *testing.T) {
	var received RazorpayOrderRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/orders", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, testKeyID, user)
		assert.Equal(t, testKeySecret, pass)

		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "order_Np3xQ7a1",
			"entity": "order",
			"amount": 100000,
			"amount_paid": 0,
			"amount_due": 100000,
			"currency": "INR",
			"receipt": "bk_b1",
			"status": "created",
			"attempts": 0,
			"notes": {"booking_id": "b1", "trip_id": "t1"},
			"created_at": 1767225600
		}`))
	}))
	defer server.Close()

	order, err := newTestRazorpay(server.URL+"/").CreateOrder(context.Background(), &RazorpayOrderRequest{
		Amount:   100000,
		Currency: "INR",
		Receipt:  "bk_b1",
		Notes:    models.OrderNotes{BookingID: "b1", TripID: "t1"},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(100000), received.Amount)
	assert.Equal(t, "bk_b1", received.Receipt)
	assert.Equal(t, "b1", received.Notes.BookingID)

	assert.Equal(t, "order_Np3xQ7a1", order.ID)
	assert.Equal(t, int64(100000), order.Amount)
	assert.Equal(t, "created", order.Status)
	assert.Equal(t, "t1", order.Notes.TripID)
}

func TestRazorpayCreateOrder_GatewayRejects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"Order amount less than minimum amount allowed","source":"business","reason":"input_validation_failed"}}`))
	}))
	defer server.Close()

	_, err := newTestRazorpay(server.URL).CreateOrder(context.Background(), &RazorpayOrderRequest{
		Amount: 50, Currency: "INR", Receipt: "bk_b1",
	})
	require.Error(t, err)

	var gwErr *apperr.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, http.StatusBadRequest, gwErr.StatusCode)
	assert.Equal(t, "BAD_REQUEST_ERROR", gwErr.Code)
	assert.Equal(t, "Order amount less than minimum amount allowed", gwErr.Message)
	assert.Equal(t, http.StatusBadRequest, apperr.HTTPStatus(err))
}

func TestRazorpayCreateOrder_UnparseableError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`<html>upstream down</html>`))
	}))
	defer server.Close()

	_, err := newTestRazorpay(server.URL).CreateOrder(context.Background(), &RazorpayOrderRequest{
		Amount: 100000, Currency: "INR", Receipt: "bk_b1",
	})

	var gwErr *apperr.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, http.StatusServiceUnavailable, gwErr.StatusCode)
	assert.Equal(t, "Service Unavailable", gwErr.Message)
}

func TestRazorpayCreateOrder_IncompleteResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"entity":"order","amount":100000}`))
	}))
	defer server.Close()

	_, err := newTestRazorpay(server.URL).CreateOrder(context.Background(), &RazorpayOrderRequest{
		Amount: 100000, Currency: "INR", Receipt: "bk_b1",
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, apperr.HTTPStatus(err))
}

func TestRazorpayCreateOrder_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := newTestRazorpay(url).CreateOrder(context.Background(), &RazorpayOrderRequest{
		Amount: 100000, Currency: "INR", Receipt: "bk_b1",
	})
	require.Error(t, err)
	assert.True(t, apperr.IsGateway(err))
	assert.Equal(t, http.StatusBadGateway, apperr.HTTPStatus(err))
}

func TestRazorpayCreateOrder_MissingCredentials(t *testing.T) {
	service := NewRazorpayService(&config.RazorpayConfig{KeyID: testKeyID}, testLogger())

	_, err := service.CreateOrder(context.Background(), &RazorpayOrderRequest{Amount: 100, Currency: "INR"})
	require.Error(t, err)
	assert.True(t, apperr.IsConfiguration(err))
	assert.Contains(t, err.Error(), "RAZORPAY_KEY_SECRET")
}
