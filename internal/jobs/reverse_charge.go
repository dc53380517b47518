package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/DukeRupert/challan/internal/billing"
	"github.com/DukeRupert/challan/internal/worker"
)

// Refunders finds the refunder for a gateway. *billing.Registry satisfies it.
type Refunders interface {
	Refunder(gateway string) (billing.Refunder, bool)
}

// ReverseChargeHandler returns charges whose payment was never saved.
type ReverseChargeHandler struct {
	refunders Refunders
	logger    *slog.Logger
}

// NewReverseChargeHandler creates a new handler for reverse_charge jobs.
func NewReverseChargeHandler(refunders Refunders, logger *slog.Logger) *ReverseChargeHandler {
	return &ReverseChargeHandler{refunders: refunders, logger: logger}
}

// Type returns the job type identifier.
func (h *ReverseChargeHandler) Type() string {
	return worker.JobTypeReverseCharge
}

// Handle refunds the full charge. Gateway errors are retried.
func (h *ReverseChargeHandler) Handle(ctx context.Context, payload []byte) error {
	var p worker.ReverseChargePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return worker.NewPermanentError(fmt.Errorf("invalid payload: %w", err))
	}
	if p.ChargeRef == "" || !p.Amount.IsPositive() {
		return worker.NewPermanentError(fmt.Errorf("charge_ref and a positive amount are required"))
	}

	refunder, ok := h.refunders.Refunder(p.Gateway)
	if !ok {
		return worker.NewPermanentError(fmt.Errorf("no refunder for gateway %q", p.Gateway))
	}

	refund, err := refunder.Refund(ctx, billing.RefundRequest{
		PaymentID: p.PaymentID,
		ChargeRef: p.ChargeRef,
		Amount:    p.Amount,
		Reason:    "payment not recorded",
	})
	if err != nil {
		return fmt.Errorf("reverse %s charge %s: %w", p.Gateway, p.ChargeRef, err)
	}

	h.logger.Warn("Reversed unrecorded charge",
		"payment_id", p.PaymentID,
		"gateway", p.Gateway,
		"charge_ref", p.ChargeRef,
		"refund_id", refund.ID,
	)
	return nil
}
