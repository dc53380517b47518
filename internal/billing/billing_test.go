package billing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"

	"github.com/DukeRupert/challan/internal/domain"
)

func TestMinorUnits(t *testing.T) {
	tests := []struct {
		amount string
		paise  int64
	}{
		{"1000", 100000},
		{"29.5", 2950},
		{"0.01", 1},
		{"10.005", 1001},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			d := decimal.RequireFromString(tt.amount)
			assert.Equal(t, tt.paise, ToMinorUnits(d))
		})
	}
	assert.True(t, decimal.RequireFromString("29.50").Equal(FromMinorUnits(2950)))
}

func TestRegistry(t *testing.T) {
	rp := NewSimulated("razorpay")
	reg := NewRegistry(NewSimulated("stripe"), rp)
	reg.Register("upi", rp)

	got, ok := reg.Refunder("upi")
	require.True(t, ok)
	assert.Equal(t, "razorpay", got.Gateway())

	charger, ok := reg.Charger("upi")
	require.True(t, ok)
	assert.Equal(t, "razorpay", charger.Gateway())

	_, ok = reg.Refunder("paypal")
	assert.False(t, ok)
	_, ok = reg.Charger("paypal")
	assert.False(t, ok)
	assert.Equal(t, []string{"razorpay", "stripe", "upi"}, reg.Gateways())
}

func TestSimulated_Refund(t *testing.T) {
	id := uuid.New()
	r, err := NewSimulated("stripe").Refund(context.Background(), RefundRequest{PaymentID: id, Amount: decimal.NewFromInt(500)})
	require.NoError(t, err)
	assert.Equal(t, id, r.PaymentID)
	assert.Equal(t, "processed", r.Status)
	assert.Regexp(t, `^RF-[0-9a-f]{8}$`, r.ID)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewSimulated("stripe").Refund(ctx, RefundRequest{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSimulated_Charge(t *testing.T) {
	c, err := NewSimulated("upi").Charge(context.Background(), ChargeRequest{
		TransactionID: "UPI-1792146600000-9f2c61ab3d4e",
		Amount:        decimal.NewFromInt(1000),
	})
	require.NoError(t, err)
	assert.Equal(t, "UPI-1792146600000-9f2c61ab3d4e", c.Reference)
	assert.True(t, decimal.NewFromInt(1000).Equal(c.Amount))
}

func TestRazorpayGateway_Refund(t *testing.T) {
	var gotPath, gotUser string
	var gotBody razorpayRefundRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, _, _ = r.BasicAuth()
		_ = json.NewDecoder(r.Body).Decode(&gotBody)

		w.Header().Set("Content-Type", "application/json")
		if gotBody.Amount > 100000 {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"The refund amount provided is greater than amount captured"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"rfnd_FP8QHiV938haTz","payment_id":"pay_29QQoUBi66xm2f","amount":50000,"status":"processed","created_at":1792146600}`))
	}))
	defer srv.Close()

	r := NewRazorpayGateway(RazorpayConfig{KeyID: "rzp_test_key", KeySecret: "secret", BaseURL: srv.URL})
	payID := uuid.New()

	refund, err := r.Refund(context.Background(), RefundRequest{
		PaymentID: payID,
		ChargeRef: "pay_29QQoUBi66xm2f",
		Amount:    decimal.NewFromInt(500),
		Reason:    "duplicate",
	})
	require.NoError(t, err)
	assert.Equal(t, "/v1/payments/pay_29QQoUBi66xm2f/refund", gotPath)
	assert.Equal(t, "rzp_test_key", gotUser)
	assert.Equal(t, int64(50000), gotBody.Amount)
	assert.Equal(t, payID.String(), gotBody.Receipt)
	assert.Equal(t, "rfnd_FP8QHiV938haTz", refund.ID)
	assert.Equal(t, "razorpay", refund.Gateway)
	assert.True(t, decimal.NewFromInt(500).Equal(refund.Amount))
	assert.Equal(t, int64(1792146600), refund.CreatedAt.Unix())

	_, err = r.Refund(context.Background(), RefundRequest{PaymentID: payID, ChargeRef: "pay_1", Amount: decimal.NewFromInt(2000)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BAD_REQUEST_ERROR")
}

func TestRazorpayGateway_Charge(t *testing.T) {
	var gotPath string
	var gotBody razorpayCaptureRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pay_29QQoUBi66xm2f","amount":101500,"currency":"INR","status":"captured"}`))
	}))
	defer srv.Close()

	r := NewRazorpayGateway(RazorpayConfig{KeyID: "rzp_test_key", KeySecret: "secret", BaseURL: srv.URL})

	c, err := r.Charge(context.Background(), ChargeRequest{
		PaymentID:     uuid.New(),
		TransactionID: "DC-1792146600000-9f2c61ab3d4e",
		Amount:        decimal.NewFromInt(1015),
		Token:         "pay_29QQoUBi66xm2f",
	})
	require.NoError(t, err)
	assert.Equal(t, "/v1/payments/pay_29QQoUBi66xm2f/capture", gotPath)
	assert.Equal(t, int64(101500), gotBody.Amount)
	assert.Equal(t, "INR", gotBody.Currency)
	assert.Equal(t, "pay_29QQoUBi66xm2f", c.Reference)

	_, err = r.Charge(context.Background(), ChargeRequest{Amount: decimal.NewFromInt(1015)})
	require.Error(t, err)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func newStripeTestBackend(url string) stripe.Backend {
	return stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(url),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
}

func TestStripeGateway_Charge(t *testing.T) {
	var gotPath, gotIdempotency string
	var gotForm map[string][]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotIdempotency = r.Header.Get("Idempotency-Key")
		_ = r.ParseForm()
		gotForm = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pi_3PqTest","object":"payment_intent","amount":102900,"currency":"inr","status":"succeeded"}`))
	}))
	defer srv.Close()

	s := NewStripeGatewayWithBackend("sk_test_123", newStripeTestBackend(srv.URL))

	c, err := s.Charge(context.Background(), ChargeRequest{
		PaymentID:     uuid.New(),
		TransactionID: "CC-1792146600000-9f2c61ab3d4e",
		Amount:        decimal.NewFromInt(1029),
		Token:         "pm_card_visa",
	})
	require.NoError(t, err)
	assert.Equal(t, "/v1/payment_intents", gotPath)
	assert.Equal(t, "CC-1792146600000-9f2c61ab3d4e", gotIdempotency)
	assert.Equal(t, []string{"pm_card_visa"}, gotForm["payment_method"])
	assert.Equal(t, []string{"102900"}, gotForm["amount"])
	assert.Equal(t, []string{"true"}, gotForm["confirm"])
	assert.Equal(t, "pi_3PqTest", c.Reference)
	assert.True(t, decimal.NewFromInt(1029).Equal(c.Amount))
}

func TestStripeGateway_ChargeRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pi_3PqTest","object":"payment_intent","amount":102900,"status":"requires_action"}`))
	}))
	defer srv.Close()

	s := NewStripeGatewayWithBackend("sk_test_123", newStripeTestBackend(srv.URL))

	_, err := s.Charge(context.Background(), ChargeRequest{Amount: decimal.NewFromInt(1029), Token: "pm_card_visa"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires_action")

	_, err = s.Charge(context.Background(), ChargeRequest{Amount: decimal.NewFromInt(1029)})
	require.Error(t, err)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestStripeGateway_Refund(t *testing.T) {
	var gotPath string
	var gotForm map[string][]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = r.ParseForm()
		gotForm = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"re_123","object":"refund","amount":100000,"currency":"inr","status":"succeeded","created":1792146600}`))
	}))
	defer srv.Close()

	s := NewStripeGatewayWithBackend("sk_test_123", newStripeTestBackend(srv.URL))

	refund, err := s.Refund(context.Background(), RefundRequest{
		PaymentID: uuid.New(),
		ChargeRef: "pi_123",
		Amount:    decimal.NewFromInt(1000),
	})
	require.NoError(t, err)
	assert.Equal(t, "/v1/refunds", gotPath)
	assert.Equal(t, []string{"pi_123"}, gotForm["payment_intent"])
	assert.Equal(t, []string{"100000"}, gotForm["amount"])
	assert.Equal(t, "re_123", refund.ID)
	assert.Equal(t, "succeeded", refund.Status)
	assert.True(t, decimal.NewFromInt(1000).Equal(refund.Amount))
}
