package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/DukeRupert/challan/internal/domain"
	"github.com/DukeRupert/challan/internal/worker"
)

// RecordRefundFunc writes a refund the gateway has already issued. It must
// be idempotent for the same refund id.
type RecordRefundFunc func(ctx context.Context, paymentID uuid.UUID, refundID string, amount decimal.Decimal, at time.Time) error

// RecordRefundHandler retries refund writes that failed after the gateway
// returned the money.
type RecordRefundHandler struct {
	record RecordRefundFunc
	logger *slog.Logger
}

// NewRecordRefundHandler creates a new handler for record_refund jobs.
func NewRecordRefundHandler(record RecordRefundFunc, logger *slog.Logger) *RecordRefundHandler {
	return &RecordRefundHandler{record: record, logger: logger}
}

// Type returns the job type identifier.
func (h *RecordRefundHandler) Type() string {
	return worker.JobTypeRecordRefund
}

// Handle records one refund. A missing payment or one already refunded by
// another refund cannot be fixed by retrying.
func (h *RecordRefundHandler) Handle(ctx context.Context, payload []byte) error {
	var p worker.RecordRefundPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return worker.NewPermanentError(fmt.Errorf("invalid payload: %w", err))
	}
	if p.PaymentID == uuid.Nil || p.RefundID == "" {
		return worker.NewPermanentError(fmt.Errorf("payment_id and refund_id are required"))
	}

	if err := h.record(ctx, p.PaymentID, p.RefundID, p.Amount, p.RefundedAt); err != nil {
		switch domain.ErrorCode(err) {
		case domain.ENOTFOUND, domain.ETRANSITION:
			h.logger.Error("Refund cannot be recorded, reconcile by hand",
				"payment_id", p.PaymentID,
				"refund_id", p.RefundID,
				"amount", p.Amount.String(),
				"error", err,
			)
			return worker.NewPermanentError(err)
		}
		return fmt.Errorf("record refund %s: %w", p.RefundID, err)
	}

	h.logger.Info("Recorded queued refund", "payment_id", p.PaymentID, "refund_id", p.RefundID)
	return nil
}
