package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/DukeRupert/challan/internal/sms"
	"github.com/DukeRupert/challan/internal/worker"
)

// DeliverSMSHandler sends notification texts queued by the SMS channel.
type DeliverSMSHandler struct {
	sender sms.Sender
	logger *slog.Logger
}

// NewDeliverSMSHandler creates a new handler for SMS delivery jobs.
func NewDeliverSMSHandler(sender sms.Sender, logger *slog.Logger) *DeliverSMSHandler {
	return &DeliverSMSHandler{sender: sender, logger: logger}
}

// Type returns the job type identifier.
func (h *DeliverSMSHandler) Type() string {
	return worker.JobTypeDeliverSMS
}

// Handle sends one SMS.
func (h *DeliverSMSHandler) Handle(ctx context.Context, payload []byte) error {
	var p worker.DeliverSMSPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return worker.NewPermanentError(fmt.Errorf("invalid payload: %w", err))
	}
	if p.Body == "" {
		return worker.NewPermanentError(errors.New("sms body is empty"))
	}

	sid, err := h.sender.Send(ctx, p.To, p.Body)
	if err != nil {
		if errors.Is(err, sms.ErrInvalidNumber) {
			return worker.NewPermanentError(err)
		}
		return fmt.Errorf("send %s sms: %w", p.EventKind, err)
	}

	h.logger.Debug("Delivered notification sms", "event_kind", p.EventKind, "to", p.To, "sid", sid)
	return nil
}
