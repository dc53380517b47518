package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/DukeRupert/challan/internal/repository"
)

// Job type constants - these must match the JobHandler.Type() values
const (
	JobTypeDeliverEmail  = "deliver_email"
	JobTypeDeliverSMS    = "deliver_sms"
	JobTypeRecordRefund  = "record_refund"
	JobTypeReverseCharge = "reverse_charge"
)

// Priority constants for job scheduling
const (
	PriorityLow    = 0
	PriorityNormal = 10
	PriorityHigh   = 20
)

// DeliverEmailPayload is the payload for email delivery jobs.
type DeliverEmailPayload struct {
	To        string `json:"to"`
	ToName    string `json:"to_name,omitempty"`
	Subject   string `json:"subject"`
	TextBody  string `json:"text_body"`
	EventKind string `json:"event_kind"`
}

// DeliverSMSPayload is the payload for SMS delivery jobs.
type DeliverSMSPayload struct {
	To        string `json:"to"`
	Body      string `json:"body"`
	EventKind string `json:"event_kind"`
}

// RecordRefundPayload is the payload for recording a refund the gateway has
// already issued but the database did not store.
type RecordRefundPayload struct {
	PaymentID  uuid.UUID       `json:"payment_id"`
	RefundID   string          `json:"refund_id"`
	Amount     decimal.Decimal `json:"amount"`
	RefundedAt time.Time       `json:"refunded_at"`
}

// ReverseChargePayload is the payload for returning a gateway charge whose
// payment could not be saved.
type ReverseChargePayload struct {
	PaymentID uuid.UUID       `json:"payment_id"`
	Gateway   string          `json:"gateway"`
	ChargeRef string          `json:"charge_ref"`
	Amount    decimal.Decimal `json:"amount"`
}

// Enqueuer inserts jobs. *repository.Queries satisfies it.
type Enqueuer interface {
	EnqueueJob(ctx context.Context, arg repository.EnqueueJobParams) (repository.Job, error)
}

// EnqueueOption is a functional option for customizing job enqueue parameters.
type EnqueueOption func(*repository.EnqueueJobParams)

// WithPriority sets the job priority.
func WithPriority(priority int32) EnqueueOption {
	return func(p *repository.EnqueueJobParams) {
		p.Priority = priority
	}
}

// WithMaxAttempts sets the maximum number of retry attempts.
func WithMaxAttempts(attempts int32) EnqueueOption {
	return func(p *repository.EnqueueJobParams) {
		p.MaxAttempts = attempts
	}
}

// WithDelay schedules the job to run after a delay.
func WithDelay(delay time.Duration) EnqueueOption {
	return func(p *repository.EnqueueJobParams) {
		p.ScheduledAt = time.Now().Add(delay)
	}
}

// EnqueueJob is a generic helper for enqueuing jobs with custom options.
func EnqueueJob(
	ctx context.Context,
	q Enqueuer,
	jobType string,
	payload interface{},
	opts ...EnqueueOption,
) (repository.Job, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return repository.Job{}, fmt.Errorf("marshal payload: %w", err)
	}

	params := repository.EnqueueJobParams{
		JobType:     jobType,
		Payload:     payloadJSON,
		Priority:    PriorityNormal,
		MaxAttempts: 5,
		ScheduledAt: time.Now(),
	}
	for _, opt := range opts {
		opt(&params)
	}

	job, err := q.EnqueueJob(ctx, params)
	if err != nil {
		return repository.Job{}, fmt.Errorf("enqueue job: %w", err)
	}
	return job, nil
}

// EnqueueDeliverEmail enqueues an email delivery.
func EnqueueDeliverEmail(ctx context.Context, q Enqueuer, payload DeliverEmailPayload, opts ...EnqueueOption) (repository.Job, error) {
	return EnqueueJob(ctx, q, JobTypeDeliverEmail, payload, opts...)
}

// EnqueueDeliverSMS enqueues an SMS delivery. SMS outranks email since
// it is the faster channel for payment receipts.
func EnqueueDeliverSMS(ctx context.Context, q Enqueuer, payload DeliverSMSPayload, opts ...EnqueueOption) (repository.Job, error) {
	opts = append([]EnqueueOption{WithPriority(PriorityHigh)}, opts...)
	return EnqueueJob(ctx, q, JobTypeDeliverSMS, payload, opts...)
}

// EnqueueRecordRefund enqueues a refund for recording. Money has already
// moved, so it runs ahead of notifications and retries longer.
func EnqueueRecordRefund(ctx context.Context, q Enqueuer, payload RecordRefundPayload, opts ...EnqueueOption) (repository.Job, error) {
	opts = append([]EnqueueOption{WithPriority(PriorityHigh), WithMaxAttempts(10)}, opts...)
	return EnqueueJob(ctx, q, JobTypeRecordRefund, payload, opts...)
}

// EnqueueReverseCharge enqueues the reversal of an unrecorded charge.
func EnqueueReverseCharge(ctx context.Context, q Enqueuer, payload ReverseChargePayload, opts ...EnqueueOption) (repository.Job, error) {
	opts = append([]EnqueueOption{WithPriority(PriorityHigh), WithMaxAttempts(10)}, opts...)
	return EnqueueJob(ctx, q, JobTypeReverseCharge, payload, opts...)
}
