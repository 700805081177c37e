package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookEvent_DecodePaymentAuthorized(t *testing.T) {
	body := `{
		"entity": "event",
		"account_id": "acc_BFQ7uQEaa7j2z7",
		"event": "payment.authorized",
		"contains": ["payment"],
		"payload": {
			"payment": {
				"entity": {
					"id": "pay_DESlfW9H8K9uqM",
					"entity": "payment",
					"amount": 100000,
					"currency": "INR",
					"status": "authorized",
					"order_id": "order_DESlLckIVRkHWj",
					"method": "upi",
					"notes": {"booking_id": "b1", "trip_id": "t1", "receipt": "bk_b1"},
					"fee": null,
					"created_at": 1567674599
				}
			}
		},
		"created_at": 1567674606
	}`

	var event WebhookEvent
	require.NoError(t, json.Unmarshal([]byte(body), &event))

	assert.Equal(t, WebhookEventPaymentAuthorized, event.Event)
	require.NotNil(t, event.Payload.Payment)
	assert.Nil(t, event.Payload.Refund)

	p := event.Payload.Payment.Entity
	assert.Equal(t, "pay_DESlfW9H8K9uqM", p.ID)
	assert.Equal(t, int64(100000), p.Amount)
	assert.Equal(t, "order_DESlLckIVRkHWj", p.OrderID)
	assert.Equal(t, "upi", p.Method)
	assert.Equal(t, "b1", p.Notes["booking_id"])
	assert.Equal(t, "bk_b1", p.Notes["receipt"])
}

func TestPaymentNotes_Shapes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want PaymentNotes
	}{
		{"object", `{"booking_id":"b1"}`, PaymentNotes{"booking_id": "b1"}},
		{"empty array", `[]`, PaymentNotes{}},
		{"number value", `{"attempt":2,"booking_id":"b2"}`, PaymentNotes{"attempt": "2", "booking_id": "b2"}},
		{"null value dropped", `{"booking_id":null}`, PaymentNotes{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var notes PaymentNotes
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &notes))
			assert.Equal(t, tt.want, notes)
		})
	}

	var notes PaymentNotes
	assert.Error(t, json.Unmarshal([]byte(`"text"`), &notes))
}

func TestVerifyPaymentRequest_Missing(t *testing.T) {
	full := VerifyPaymentRequest{
		RazorpayOrderID:   "order_1",
		RazorpayPaymentID: "pay_1",
		RazorpaySignature: "sig",
		BookingID:         "b1",
	}
	assert.False(t, full.Missing())

	blankSig := full
	blankSig.RazorpaySignature = "  "
	assert.True(t, blankSig.Missing())

	noBooking := full
	noBooking.BookingID = ""
	assert.True(t, noBooking.Missing())
}

func TestBookingDetails_PrimaryContactName(t *testing.T) {
	d := &BookingDetails{}
	assert.Equal(t, "", d.PrimaryContactName())

	d.Travelers = []Traveler{{FirstName: "Asha", LastName: "Rao"}}
	assert.Equal(t, "Asha Rao", d.PrimaryContactName())

	d.Travelers[0].FullName = "Asha K. Rao"
	assert.Equal(t, "Asha K. Rao", d.PrimaryContactName())
}

func TestBookingStatus_AwaitingPayment(t *testing.T) {
	assert.True(t, BookingStatusPending.AwaitingPayment())
	assert.True(t, BookingStatusPaymentFailed.AwaitingPayment())
	assert.False(t, BookingStatusConfirmed.AwaitingPayment())
	assert.False(t, BookingStatusRefunded.AwaitingPayment())
}

func TestPaymentAudit_Builders(t *testing.T) {
	audit := NewPaymentAudit(PaymentEventVerifyAccepted, PaymentSourceCheckout).
		SetBooking("b1").
		SetPayment("order_1", "").
		SetMetadata(RequestMeta{IPAddress: "203.0.113.9", RequestID: "req-1"})

	require.NotNil(t, audit.BookingID)
	assert.Equal(t, "b1", *audit.BookingID)
	assert.Equal(t, "order_1", *audit.OrderID)
	assert.Nil(t, audit.PaymentID)
	assert.Nil(t, audit.UserAgent)
	assert.Equal(t, "req-1", *audit.CorrelationID)

	assert.True(t, audit.SetAmounts(250, 250.004, "INR"))
	assert.False(t, audit.SetAmounts(250, 249, "INR"))
	assert.False(t, *audit.AmountsMatch)
}

func TestJSONB_ValueScan(t *testing.T) {
	v, err := JSONB{"reason": "mismatch"}.Value()
	require.NoError(t, err)
	assert.Equal(t, `{"reason":"mismatch"}`, v)

	nilValue, err := JSONB(nil).Value()
	require.NoError(t, err)
	assert.Nil(t, nilValue)

	var j JSONB
	require.NoError(t, j.Scan([]byte(`{"a":"b"}`)))
	assert.Equal(t, "b", j["a"])
	require.NoError(t, j.Scan(`{"c":"d"}`))
	assert.Equal(t, "d", j["c"])
	assert.Error(t, j.Scan(42))
}
