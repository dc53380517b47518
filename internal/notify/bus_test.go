package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/challan/internal/domain"
	"github.com/DukeRupert/challan/internal/repository"
	"github.com/DukeRupert/challan/internal/storage"
	"github.com/DukeRupert/challan/internal/worker"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testEvent() domain.Event {
	return domain.NewEvent(domain.EventChallanCreated, time.Date(2026, 10, 16, 10, 30, 0, 0, time.UTC), map[string]any{
		domain.PayloadChallanID:     uuid.New().String(),
		domain.PayloadChallanNumber: "CH-20261016-9F2C61AB",
		domain.PayloadViolation:     "speeding",
		domain.PayloadVehicle:       "MH12AB1234",
		domain.PayloadAmount:        decimal.NewFromInt(1000),
		domain.PayloadDueDate:       "2026-11-15",
		domain.PayloadRecipientName: "Asha",
		domain.PayloadEmail:         "asha@example.com",
		domain.PayloadPhone:         "+919876543210",
	})
}

type recordingChannel struct {
	name  string
	calls atomic.Int32
}

func (c *recordingChannel) Name() string { return c.name }
func (c *recordingChannel) Deliver(ctx context.Context, event domain.Event) error {
	c.calls.Add(1)
	return nil
}

func TestBus_Isolation(t *testing.T) {
	tests := []struct {
		name    string
		failing Channel
	}{
		{"panicking channel", ChannelFunc{ChannelName: "a", Fn: func(context.Context, domain.Event) error { panic("boom") }}},
		{"erroring channel", ChannelFunc{ChannelName: "a", Fn: func(context.Context, domain.Event) error { return errors.New("down") }}},
		{"slow channel", ChannelFunc{ChannelName: "a", Fn: func(ctx context.Context, _ domain.Event) error {
			<-ctx.Done()
			return ctx.Err()
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &recordingChannel{name: "b"}
			c := &recordingChannel{name: "c"}
			bus := NewBus(testLogger(), 50*time.Millisecond, tt.failing, b, c)

			done := make(chan struct{})
			go func() {
				bus.Publish(context.Background(), testEvent())
				close(done)
			}()

			select {
			case <-done:
			case <-time.After(2 * time.Second):
				t.Fatal("Publish did not return")
			}
			assert.Equal(t, int32(1), b.calls.Load())
			assert.Equal(t, int32(1), c.calls.Load())
		})
	}
}

func TestBus_ChannelIgnoringContext(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	hung := ChannelFunc{ChannelName: "hung", Fn: func(context.Context, domain.Event) error {
		<-block
		return nil
	}}
	b := &recordingChannel{name: "b"}
	bus := NewBus(testLogger(), 50*time.Millisecond, hung, b)

	done := make(chan struct{})
	go func() {
		bus.Publish(context.Background(), testEvent())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a channel that ignores its context")
	}
	assert.Equal(t, int32(1), b.calls.Load())
}

func TestBus_DetachedFromCallerCancel(t *testing.T) {
	var gotErr error
	ch := ChannelFunc{ChannelName: "x", Fn: func(ctx context.Context, _ domain.Event) error {
		gotErr = ctx.Err()
		return nil
	}}
	bus := NewBus(testLogger(), time.Second, ch)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bus.Publish(ctx, testEvent())
	assert.NoError(t, gotErr)
}

func TestBus_Channels(t *testing.T) {
	bus := NewBus(testLogger(), 0, &recordingChannel{name: "email"}, &recordingChannel{name: "audit"})
	assert.Equal(t, []string{"email", "audit"}, bus.Channels())
	assert.Equal(t, DefaultChannelTimeout, bus.timeout)
}

// fakeQueue records enqueued jobs.
type fakeQueue struct {
	mu   sync.Mutex
	jobs []repository.EnqueueJobParams
}

func (q *fakeQueue) EnqueueJob(ctx context.Context, arg repository.EnqueueJobParams) (repository.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, arg)
	return repository.Job{ID: uuid.New(), JobType: arg.JobType}, nil
}

func TestEmailAndSMSChannels(t *testing.T) {
	q := &fakeQueue{}
	bus := NewBus(testLogger(), time.Second, NewEmailChannel(q), NewSMSChannel(q))
	bus.Publish(context.Background(), testEvent())

	require.Len(t, q.jobs, 2)
	byType := map[string][]byte{}
	for _, j := range q.jobs {
		byType[j.JobType] = j.Payload
	}

	var mail worker.DeliverEmailPayload
	require.NoError(t, json.Unmarshal(byType[worker.JobTypeDeliverEmail], &mail))
	assert.Equal(t, "asha@example.com", mail.To)
	assert.Equal(t, "Challan Created: CH-20261016-9F2C61AB", mail.Subject)
	assert.Contains(t, mail.TextBody, "Rs 1,000.00")
	assert.Contains(t, mail.TextBody, "MH12AB1234")

	var text worker.DeliverSMSPayload
	require.NoError(t, json.Unmarshal(byType[worker.JobTypeDeliverSMS], &text))
	assert.Equal(t, "+919876543210", text.To)
	assert.Equal(t, "challan_created", text.EventKind)
}

func TestEmailChannel_NoRecipient(t *testing.T) {
	q := &fakeQueue{}
	ev := domain.NewEvent(domain.EventPaymentRefunded, time.Now(), nil)
	require.NoError(t, NewEmailChannel(q).Deliver(context.Background(), ev))
	require.NoError(t, NewSMSChannel(q).Deliver(context.Background(), ev))
	assert.Empty(t, q.jobs)
}

func TestAuditChannel(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: dir}, testLogger())
	require.NoError(t, err)

	var key string
	spy := &spyStorage{Storage: store, onPut: func(k string) { key = k }}
	require.NoError(t, NewAuditChannel(spy).Deliver(context.Background(), testEvent()))

	assert.True(t, strings.HasPrefix(key, "audit/2026/10/16/challan_created-"))
	raw, err := os.ReadFile(filepath.Join(dir, key))
	require.NoError(t, err)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(raw, &rec))
	assert.Equal(t, "challan_created", rec["kind"])
	payload := rec["payload"].(map[string]any)
	assert.Equal(t, "1000", payload[domain.PayloadAmount])
	assert.NotContains(t, payload, domain.PayloadEmail)
	assert.NotContains(t, payload, domain.PayloadPhone)
}

type spyStorage struct {
	storage.Storage
	onPut func(key string)
}

func (s *spyStorage) Put(ctx context.Context, key string, data io.Reader, opts storage.PutOptions) error {
	s.onPut(key)
	return s.Storage.Put(ctx, key, data, opts)
}

type fakeConn struct {
	subject string
	data    []byte
	err     error
}

func (c *fakeConn) Publish(subj string, data []byte) error {
	c.subject, c.data = subj, data
	return c.err
}

func TestNATSChannel(t *testing.T) {
	conn := &fakeConn{}
	require.NoError(t, NewNATSChannel(conn).Deliver(context.Background(), testEvent()))
	assert.Equal(t, "challan.events.challan_created", conn.subject)
	assert.Contains(t, string(conn.data), `"challan_number":"CH-20261016-9F2C61AB"`)

	conn.err = errors.New("no responders")
	assert.Error(t, NewNATSChannel(conn).Deliver(context.Background(), testEvent()))
}

func TestRender(t *testing.T) {
	assert.Equal(t, "Payment Received", Title("payment_received"))
	assert.Equal(t, "Rs 29.00", FormatAmount(decimal.NewFromInt(29)))

	ev := domain.NewEvent(domain.EventPaymentReceived, time.Now(), map[string]any{
		domain.PayloadChallanNumber: "CH-1",
		domain.PayloadAmount:        "1500",
		domain.PayloadTransactionID: "UPI-1-abc",
	})
	assert.Equal(t, "payment of Rs 1,500.00 for challan CH-1 was received. Transaction: UPI-1-abc.", Body(ev))
	assert.Equal(t, "Payment Received: CH-1", Subject(ev))
}
