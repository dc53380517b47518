package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/DukeRupert/challan/internal/email"
	"github.com/DukeRupert/challan/internal/worker"
)

// DeliverEmailHandler sends notification emails queued by the email channel.
type DeliverEmailHandler struct {
	sender email.Sender
	logger *slog.Logger
}

// NewDeliverEmailHandler creates a new handler for email delivery jobs.
func NewDeliverEmailHandler(sender email.Sender, logger *slog.Logger) *DeliverEmailHandler {
	return &DeliverEmailHandler{sender: sender, logger: logger}
}

// Type returns the job type identifier.
func (h *DeliverEmailHandler) Type() string {
	return worker.JobTypeDeliverEmail
}

// Handle sends one email. Malformed payloads and invalid messages are
// permanent failures; send errors are retried.
func (h *DeliverEmailHandler) Handle(ctx context.Context, payload []byte) error {
	var p worker.DeliverEmailPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return worker.NewPermanentError(fmt.Errorf("invalid payload: %w", err))
	}

	msg := email.Message{
		To:       p.To,
		ToName:   p.ToName,
		Subject:  p.Subject,
		TextBody: p.TextBody,
	}
	if err := msg.Validate(); err != nil {
		return worker.NewPermanentError(err)
	}

	if err := h.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("send %s email: %w", p.EventKind, err)
	}

	h.logger.Debug("Delivered notification email", "event_kind", p.EventKind, "to", p.To)
	return nil
}
