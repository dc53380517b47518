package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/challan/internal/billing"
	"github.com/DukeRupert/challan/internal/domain"
	"github.com/DukeRupert/challan/internal/email"
	"github.com/DukeRupert/challan/internal/sms"
	"github.com/DukeRupert/challan/internal/worker"
)

type fakeEmailSender struct {
	sent []email.Message
	err  error
}

func (f *fakeEmailSender) Send(ctx context.Context, msg email.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fakeSMSSender struct {
	to, body string
	err      error
}

func (f *fakeSMSSender) Send(ctx context.Context, to, body string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.to, f.body = to, body
	return "SM1", nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestDeliverEmailHandler(t *testing.T) {
	sender := &fakeEmailSender{}
	h := NewDeliverEmailHandler(sender, discard())
	assert.Equal(t, worker.JobTypeDeliverEmail, h.Type())

	err := h.Handle(context.Background(), mustJSON(t, worker.DeliverEmailPayload{
		To: "asha@example.com", Subject: "Challan issued", TextBody: "body", EventKind: "challan_created",
	}))
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "Challan issued", sender.sent[0].Subject)

	err = h.Handle(context.Background(), []byte("{not json"))
	assert.True(t, worker.IsPermanent(err))

	err = h.Handle(context.Background(), mustJSON(t, worker.DeliverEmailPayload{To: "nobody", Subject: "x", TextBody: "y"}))
	assert.True(t, worker.IsPermanent(err))

	sender.err = errors.New("smtp down")
	err = h.Handle(context.Background(), mustJSON(t, worker.DeliverEmailPayload{To: "a@b.c", Subject: "x", TextBody: "y"}))
	require.Error(t, err)
	assert.False(t, worker.IsPermanent(err))
}

func TestDeliverSMSHandler(t *testing.T) {
	sender := &fakeSMSSender{}
	h := NewDeliverSMSHandler(sender, discard())
	assert.Equal(t, worker.JobTypeDeliverSMS, h.Type())

	require.NoError(t, h.Handle(context.Background(), mustJSON(t, worker.DeliverSMSPayload{To: "+919876543210", Body: "paid"})))
	assert.Equal(t, "+919876543210", sender.to)

	err := h.Handle(context.Background(), mustJSON(t, worker.DeliverSMSPayload{To: "+919876543210"}))
	assert.True(t, worker.IsPermanent(err))

	sender.err = sms.ErrInvalidNumber
	err = h.Handle(context.Background(), mustJSON(t, worker.DeliverSMSPayload{To: "123", Body: "x"}))
	assert.True(t, worker.IsPermanent(err))

	sender.err = errors.New("twilio 503")
	err = h.Handle(context.Background(), mustJSON(t, worker.DeliverSMSPayload{To: "+919876543210", Body: "x"}))
	assert.False(t, worker.IsPermanent(err))
}

func TestRecordRefundHandler(t *testing.T) {
	paymentID := uuid.New()
	refundedAt := time.Date(2026, 10, 16, 11, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		payload   []byte
		recordErr error
		wantErr   bool
		permanent bool
	}{
		{
			name: "recorded",
			payload: mustJSON(t, worker.RecordRefundPayload{
				PaymentID: paymentID, RefundID: "re_1", Amount: decimal.NewFromInt(500), RefundedAt: refundedAt,
			}),
		},
		{
			name:      "malformed payload",
			payload:   []byte("{not json"),
			wantErr:   true,
			permanent: true,
		},
		{
			name:      "missing refund id",
			payload:   mustJSON(t, worker.RecordRefundPayload{PaymentID: paymentID}),
			wantErr:   true,
			permanent: true,
		},
		{
			name:      "payment refunded by another refund",
			payload:   mustJSON(t, worker.RecordRefundPayload{PaymentID: paymentID, RefundID: "re_1", Amount: decimal.NewFromInt(500)}),
			recordErr: domain.Errorf(domain.ETRANSITION, "payment.mark_refunded", "cannot refund a refunded payment"),
			wantErr:   true,
			permanent: true,
		},
		{
			name:      "database down",
			payload:   mustJSON(t, worker.RecordRefundPayload{PaymentID: paymentID, RefundID: "re_1", Amount: decimal.NewFromInt(500)}),
			recordErr: domain.Internal(errors.New("connection refused"), "store.update_payment", "failed to update payment"),
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotID uuid.UUID
			var gotRefund string
			var gotAmount decimal.Decimal
			record := func(ctx context.Context, id uuid.UUID, refundID string, amount decimal.Decimal, at time.Time) error {
				gotID, gotRefund, gotAmount = id, refundID, amount
				return tt.recordErr
			}
			h := NewRecordRefundHandler(record, discard())
			assert.Equal(t, worker.JobTypeRecordRefund, h.Type())

			err := h.Handle(context.Background(), tt.payload)
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, paymentID, gotID)
				assert.Equal(t, "re_1", gotRefund)
				assert.True(t, decimal.NewFromInt(500).Equal(gotAmount))
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.permanent, worker.IsPermanent(err))
		})
	}
}

type fakeRefunders map[string]billing.Refunder

func (f fakeRefunders) Refunder(gateway string) (billing.Refunder, bool) {
	r, ok := f[gateway]
	return r, ok
}

type recordingRefunder struct {
	reqs []billing.RefundRequest
	err  error
}

func (r *recordingRefunder) Gateway() string { return "stripe" }
func (r *recordingRefunder) Refund(ctx context.Context, req billing.RefundRequest) (*domain.Refund, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.reqs = append(r.reqs, req)
	return &domain.Refund{ID: "re_rev", PaymentID: req.PaymentID, Amount: req.Amount}, nil
}

func TestReverseChargeHandler(t *testing.T) {
	refunder := &recordingRefunder{}
	h := NewReverseChargeHandler(fakeRefunders{"stripe": refunder}, discard())
	assert.Equal(t, worker.JobTypeReverseCharge, h.Type())

	payload := worker.ReverseChargePayload{
		PaymentID: uuid.New(),
		Gateway:   "stripe",
		ChargeRef: "pi_3PqTest",
		Amount:    decimal.RequireFromString("1029"),
	}
	require.NoError(t, h.Handle(context.Background(), mustJSON(t, payload)))
	require.Len(t, refunder.reqs, 1)
	assert.Equal(t, "pi_3PqTest", refunder.reqs[0].ChargeRef)
	assert.True(t, payload.Amount.Equal(refunder.reqs[0].Amount))

	unknown := payload
	unknown.Gateway = "paypal"
	assert.True(t, worker.IsPermanent(h.Handle(context.Background(), mustJSON(t, unknown))))

	noRef := payload
	noRef.ChargeRef = ""
	assert.True(t, worker.IsPermanent(h.Handle(context.Background(), mustJSON(t, noRef))))

	refunder.err = errors.New("stripe 503")
	err := h.Handle(context.Background(), mustJSON(t, payload))
	require.Error(t, err)
	assert.False(t, worker.IsPermanent(err))
}
