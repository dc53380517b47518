package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/DukeRupert/challan/internal/domain"
	"github.com/DukeRupert/challan/internal/storage"
	"github.com/DukeRupert/challan/internal/worker"
)

// Channel names.
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
	ChannelAudit = "audit"
	ChannelNATS  = "nats"
)

// =============================================================================
// Email
// =============================================================================

// EmailChannel queues an email to the recipient named in the payload.
// Delivery and retries happen in the background worker.
type EmailChannel struct {
	queue worker.Enqueuer
}

// NewEmailChannel creates an email channel backed by the job queue.
func NewEmailChannel(queue worker.Enqueuer) *EmailChannel {
	return &EmailChannel{queue: queue}
}

func (c *EmailChannel) Name() string { return ChannelEmail }

func (c *EmailChannel) Deliver(ctx context.Context, event domain.Event) error {
	to := event.String(domain.PayloadEmail)
	if to == "" {
		return nil
	}
	_, err := worker.EnqueueDeliverEmail(ctx, c.queue, worker.DeliverEmailPayload{
		To:        to,
		ToName:    event.String(domain.PayloadRecipientName),
		Subject:   Subject(event),
		TextBody:  Body(event),
		EventKind: string(event.Kind),
	})
	return err
}

// =============================================================================
// SMS
// =============================================================================

// SMSChannel queues a text to the phone number named in the payload.
type SMSChannel struct {
	queue worker.Enqueuer
}

// NewSMSChannel creates an SMS channel backed by the job queue.
func NewSMSChannel(queue worker.Enqueuer) *SMSChannel {
	return &SMSChannel{queue: queue}
}

func (c *SMSChannel) Name() string { return ChannelSMS }

func (c *SMSChannel) Deliver(ctx context.Context, event domain.Event) error {
	to := event.String(domain.PayloadPhone)
	if to == "" {
		return nil
	}
	_, err := worker.EnqueueDeliverSMS(ctx, c.queue, worker.DeliverSMSPayload{
		To:        to,
		Body:      Body(event),
		EventKind: string(event.Kind),
	})
	return err
}

// =============================================================================
// Audit
// =============================================================================

// Record is the serialized form of an event used by the audit and NATS
// channels.
type Record struct {
	Kind       domain.EventKind `json:"kind"`
	OccurredAt time.Time        `json:"occurred_at"`
	Payload    map[string]any   `json:"payload"`
}

// NewRecord converts an event to its serialized form. Contact details are
// dropped so archived records do not carry them.
func NewRecord(event domain.Event) Record {
	payload := make(map[string]any, len(event.Payload))
	for k, v := range event.Payload {
		if k == domain.PayloadEmail || k == domain.PayloadPhone {
			continue
		}
		payload[k] = v
	}
	return Record{Kind: event.Kind, OccurredAt: event.OccurredAt.UTC(), Payload: payload}
}

// AuditChannel archives every event as a JSON object in object storage.
type AuditChannel struct {
	store storage.Storage
}

// NewAuditChannel creates an audit channel writing to store.
func NewAuditChannel(store storage.Storage) *AuditChannel {
	return &AuditChannel{store: store}
}

func (c *AuditChannel) Name() string { return ChannelAudit }

func (c *AuditChannel) Deliver(ctx context.Context, event domain.Event) error {
	data, err := json.Marshal(NewRecord(event))
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}
	key := storage.AuditKey(string(event.Kind), event.OccurredAt)
	return c.store.Put(ctx, key, bytes.NewReader(data), storage.PutOptions{
		ContentType: storage.DefaultContentType,
	})
}

// =============================================================================
// NATS
// =============================================================================

// SubjectPrefix is prepended to the event kind to form the NATS subject.
const SubjectPrefix = "challan.events."

// MsgPublisher is the part of *nats.Conn the channel uses.
type MsgPublisher interface {
	Publish(subj string, data []byte) error
}

// NATSChannel publishes events on challan.events.<kind>.
type NATSChannel struct {
	conn MsgPublisher
}

// NewNATSChannel creates a channel publishing on conn.
func NewNATSChannel(conn MsgPublisher) *NATSChannel {
	return &NATSChannel{conn: conn}
}

func (c *NATSChannel) Name() string { return ChannelNATS }

func (c *NATSChannel) Deliver(ctx context.Context, event domain.Event) error {
	data, err := json.Marshal(NewRecord(event))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := c.conn.Publish(SubjectPrefix+string(event.Kind), data); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

// ConnectNATS dials a NATS server with reconnects enabled.
func ConnectNATS(url string, logger *slog.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(
		url,
		nats.Name("challan-server"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return nc, nil
}
