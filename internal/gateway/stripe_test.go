package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"shopcore/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions() Options {
	return Options{Timeout: 2 * time.Second, MaxRetries: 3, InitialInterval: time.Millisecond}
}

func sampleCharge() ChargeRequest {
	return ChargeRequest{
		OrderID:     "order-1",
		OrderNumber: "ORD-1A2B3C4D",
		Amount:      decimal.RequireFromString("104.49"),
		ItemsTotal:  decimal.RequireFromString("99.99"),
		Shipping:    decimal.RequireFromString("4.50"),
		Currency:    "USD",
		Lines: []LineItem{
			{Name: "Mug", Quantity: 1, UnitPrice: decimal.RequireFromString("99.99")},
		},
		ReturnURL:      "https://shop.example/orders/order-1?payment=success",
		CancelURL:      "https://shop.example/orders/order-1?payment=cancel",
		IdempotencyKey: "idem-1",
	}
}

func TestStripe_CreateCharge(t *testing.T) {
	var form url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		assert.Equal(t, "idem-1", r.Header.Get("Idempotency-Key"))
		body, _ := io.ReadAll(r.Body)
		form, _ = url.ParseQuery(string(body))
		w.Write([]byte(`{"id":"cs_X","url":"https://checkout.stripe.test/cs_X"}`))
	}))
	defer srv.Close()

	s := NewStripe(StripeConfig{SecretKey: "sk_test", BaseURL: srv.URL}, testOptions())
	charge, err := s.CreateCharge(context.Background(), sampleCharge())
	require.NoError(t, err)

	assert.Equal(t, "cs_X", charge.ExternalID)
	assert.Equal(t, "https://checkout.stripe.test/cs_X", charge.RedirectURL)
	assert.Equal(t, "order-1", form.Get("metadata[order_id]"))
	assert.Equal(t, "ORD-1A2B3C4D", form.Get("metadata[order_number]"))
	assert.Equal(t, "9999", form.Get("line_items[0][price_data][unit_amount]"))
	assert.Equal(t, "usd", form.Get("line_items[0][price_data][currency]"))
	assert.Equal(t, "Shipping", form.Get("line_items[1][price_data][product_data][name]"))
	assert.Equal(t, "450", form.Get("line_items[1][price_data][unit_amount]"))
}

func TestStripe_CreateChargeRetriesWithSameKey(t *testing.T) {
	var calls int32
	keys := make(chan string, 5)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keys <- r.Header.Get("Idempotency-Key")
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"id":"cs_retry","url":"https://checkout.stripe.test/cs_retry"}`))
	}))
	defer srv.Close()

	s := NewStripe(StripeConfig{SecretKey: "sk_test", BaseURL: srv.URL}, testOptions())
	charge, err := s.CreateCharge(context.Background(), sampleCharge())
	require.NoError(t, err)
	assert.Equal(t, "cs_retry", charge.ExternalID)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))

	close(keys)
	for k := range keys {
		assert.Equal(t, "idem-1", k)
	}
}

func TestStripe_CreateChargeRejectedIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"error":{"message":"Your card was declined."}}`))
	}))
	defer srv.Close()

	s := NewStripe(StripeConfig{SecretKey: "sk_test", BaseURL: srv.URL}, testOptions())
	_, err := s.CreateCharge(context.Background(), sampleCharge())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrProviderRejected))
	assert.Contains(t, err.Error(), "Your card was declined.")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestStripe_CreateChargeUnavailableAfterRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	opts := testOptions()
	opts.MaxRetries = 1
	s := NewStripe(StripeConfig{SecretKey: "sk_test", BaseURL: srv.URL}, opts)
	_, err := s.CreateCharge(context.Background(), sampleCharge())
	assert.True(t, errors.Is(err, domain.ErrProviderUnavailable), "got %v", err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestStripe_VerifyCallback(t *testing.T) {
	s := NewStripe(StripeConfig{SecretKey: "sk", WebhookSecret: "whsec"}, testOptions())
	s.now = func() time.Time { return time.Unix(1700000060, 0) }
	body := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)
	bare := hmacSHA256Hex("whsec", body)
	signedAt := func(ts string) string {
		return "t=" + ts + ",v1=" + hmacSHA256Hex("whsec", []byte(ts), []byte("."), body)
	}
	scheme := "t=1700000000,v1=deadbeef,v1=" + hmacSHA256Hex("whsec", []byte("1700000000"), []byte("."), body)

	cases := []struct {
		name   string
		header string
		body   []byte
		want   bool
	}{
		{"bare hex", bare, body, true},
		{"stripe scheme", scheme, body, true},
		{"tampered body", bare, []byte(`{"id":"evt_2"}`), false},
		{"wrong signature", "v1=00,t=1", body, false},
		{"missing header", "", body, false},
		{"not hex", "zzzz", body, false},
		{"replayed old timestamp", signedAt("1699999000"), body, false},
		{"timestamp from the future", signedAt("1700000900"), body, false},
		{"timestamp not a number", signedAt("soon"), body, false},
		{"edge of tolerance", signedAt("1699999760"), body, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := http.Header{}
			if tc.header != "" {
				h.Set(stripeSignatureHeader, tc.header)
			}
			assert.Equal(t, tc.want, s.VerifyCallback(context.Background(), tc.body, h))
		})
	}

	unsigned := NewStripe(StripeConfig{SecretKey: "sk"}, testOptions())
	h := http.Header{}
	h.Set(stripeSignatureHeader, bare)
	assert.False(t, unsigned.VerifyCallback(context.Background(), body, h), "no secret must reject")
}

func TestStripe_TranslateCallback(t *testing.T) {
	s := NewStripe(StripeConfig{SecretKey: "sk"}, testOptions())
	cases := []struct {
		name    string
		body    string
		handled bool
		status  domain.PaymentStatus
		ref     string
	}{
		{"paid session", `{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"cs_X","payment_status":"paid","payment_intent":"pi_1","metadata":{"order_id":"o1"}}}}`, true, domain.PaymentStatusCompleted, "pi_1"},
		{"unpaid session", `{"id":"evt_2","type":"checkout.session.completed","data":{"object":{"id":"cs_X","payment_status":"unpaid","metadata":{"order_id":"o1"}}}}`, false, "", ""},
		{"expired", `{"id":"evt_3","type":"checkout.session.expired","data":{"object":{"id":"cs_X","metadata":{"order_id":"o1"}}}}`, true, domain.PaymentStatusFailed, ""},
		{"refunded", `{"id":"evt_4","type":"charge.refunded","data":{"object":{"id":"ch_1","payment_intent":{"id":"pi_1"},"metadata":{}}}}`, true, domain.PaymentStatusRefunded, "pi_1"},
		{"unrelated", `{"id":"evt_5","type":"customer.created","data":{"object":{}}}`, false, "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cb, err := s.TranslateCallback([]byte(tc.body))
			require.NoError(t, err)
			assert.Equal(t, tc.handled, cb.Handled)
			if tc.handled {
				assert.Equal(t, tc.status, cb.Status)
				assert.Equal(t, tc.ref, cb.ProviderReference)
			}
		})
	}

	_, err := s.TranslateCallback([]byte(`not json`))
	assert.Error(t, err)
	_, err = s.TranslateCallback([]byte(`{"id":"evt_6","type":"charge.refunded","data":{"object":{"id":"ch_2"}}}`))
	assert.Error(t, err, "a handled event without any reference cannot be reconciled")
}

func TestStripe_Refund(t *testing.T) {
	var form url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/refunds", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		form, _ = url.ParseQuery(string(body))
		w.Write([]byte(`{"id":"re_1","status":"succeeded"}`))
	}))
	defer srv.Close()

	s := NewStripe(StripeConfig{SecretKey: "sk", BaseURL: srv.URL}, testOptions())
	amount := decimal.RequireFromString("10.25")
	refund, err := s.Refund(context.Background(), RefundRequest{
		OrderID: "o1", ExternalID: "cs_X", ProviderReference: "pi_1", Amount: &amount, Currency: "USD",
	})
	require.NoError(t, err)
	assert.Equal(t, "re_1", refund.RefundID)
	assert.Equal(t, "pi_1", form.Get("payment_intent"))
	assert.Equal(t, "1025", form.Get("amount"))

	_, err = s.Refund(context.Background(), RefundRequest{ExternalID: "cs_X", Currency: "USD"})
	assert.True(t, errors.Is(err, domain.ErrProviderRejected))
}
