package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/DukeRupert/challan/internal/billing"
	"github.com/DukeRupert/challan/internal/domain"
	"github.com/DukeRupert/challan/internal/lock"
	"github.com/DukeRupert/challan/internal/metrics"
	"github.com/DukeRupert/challan/internal/notify"
	"github.com/DukeRupert/challan/internal/payment"
	"github.com/DukeRupert/challan/internal/worker"
)

// maxNumberAttempts bounds retries when a generated challan number collides.
const maxNumberAttempts = 3

// recentChallans is the number of challans shown on a dashboard.
const recentChallans = 5

// ChallanService defines the challan use cases. Errors are *domain.Error or
// *domain.ValidationError.
type ChallanService interface {
	// IssueChallan records a violation observed by an officer and issues a
	// pending challan to the citizen named in attrs.
	IssueChallan(ctx context.Context, officerID uuid.UUID, attrs domain.ViolationAttrs) (*domain.Challan, error)

	// ProcessPayment charges the challan's fine and marks it paid. At most
	// one payment per challan ever succeeds.
	ProcessPayment(ctx context.Context, citizenID, challanID uuid.UUID, method domain.PaymentMethod, details domain.MethodDetails) (*domain.Payment, *domain.Challan, error)

	// RefundPayment returns a completed payment through its gateway and
	// cancels the challan. A nil amount refunds the full fine.
	RefundPayment(ctx context.Context, actorID, paymentID uuid.UUID, amount *decimal.Decimal) (*domain.Refund, *domain.Payment, error)

	// DisputeChallan lets the owning citizen contest a pending challan.
	DisputeChallan(ctx context.Context, citizenID, challanID uuid.UUID, reason string) (*domain.Challan, error)

	// GetChallan returns a challan the user is allowed to see.
	GetChallan(ctx context.Context, userID, challanID uuid.UUID) (*domain.Challan, error)

	// ListChallans returns one page of the challans the user can see.
	ListChallans(ctx context.Context, userID uuid.UUID, params ListChallansParams) (*ChallanPage, error)

	// GetDashboard summarizes the challans the user can see.
	GetDashboard(ctx context.Context, userID uuid.UUID) (*domain.Dashboard, error)
}

// PaymentProcessor validates a payment instrument and prices the charge.
// *payment.Dispatcher satisfies it.
type PaymentProcessor interface {
	Process(amount decimal.Decimal, details domain.MethodDetails, method domain.PaymentMethod) (*payment.Result, error)
}

// GatewayRouter finds the charger and refunder for a gateway.
// *billing.Registry satisfies it.
type GatewayRouter interface {
	Charger(gateway string) (billing.Charger, bool)
	Refunder(gateway string) (billing.Refunder, bool)
}

// ChallanConfig holds the tunables of the challan service.
type ChallanConfig struct {
	// DueDays is the number of days between issue and due date.
	DueDays int

	// Disabled lists capabilities switched off by feature flags.
	Disabled map[domain.Capability]bool

	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

// ListChallansParams selects a page of challans.
type ListChallansParams struct {
	Status domain.ChallanStatus
	Page   int
	Limit  int
}

// ChallanPage is one page of a challan listing.
type ChallanPage struct {
	Challans []domain.Challan
	Total    int64
	Page     int
	Limit    int
}

// challanService implements ChallanService.
type challanService struct {
	store     domain.Store
	processor PaymentProcessor
	gateways  GatewayRouter
	locker    lock.Locker
	queue     worker.Enqueuer
	publisher notify.Publisher
	dueDays   int
	disabled  map[domain.Capability]bool
	now       func() time.Time
	logger    *slog.Logger
}

// NewChallanService creates a new ChallanService.
func NewChallanService(
	store domain.Store,
	processor PaymentProcessor,
	gateways GatewayRouter,
	locker lock.Locker,
	queue worker.Enqueuer,
	publisher notify.Publisher,
	cfg ChallanConfig,
	logger *slog.Logger,
) ChallanService {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.DueDays <= 0 {
		cfg.DueDays = domain.DefaultDueDays
	}
	return &challanService{
		store:     store,
		processor: processor,
		gateways:  gateways,
		locker:    locker,
		queue:     queue,
		publisher: publisher,
		dueDays:   cfg.DueDays,
		disabled:  cfg.Disabled,
		now:       cfg.Now,
		logger:    logger,
	}
}

// =============================================================================
// Issue
// =============================================================================

func (s *challanService) IssueChallan(ctx context.Context, officerID uuid.UUID, attrs domain.ViolationAttrs) (*domain.Challan, error) {
	const op = "challan.issue"

	officer, err := s.authorize(ctx, op, officerID, domain.CapCreateChallans)
	if err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(attrs.CitizenEmail))
	if email == "" {
		return nil, domain.NewValidationError(op, "citizen_email", "is required")
	}
	citizen, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	v, err := domain.NewViolation(attrs)
	if err != nil {
		return nil, err
	}
	v.OfficerID = officer.ID
	v.CitizenID = citizen.ID

	var c *domain.Challan
	for attempt := 1; ; attempt++ {
		c = domain.NewChallan(v, s.now(), s.dueDays)
		err = s.store.SaveChallan(ctx, c)
		if err == nil {
			break
		}
		if domain.ErrorCode(err) != domain.ECONFLICT || attempt == maxNumberAttempts {
			s.logger.Error("failed to save challan", "error", err, "op", op, "attempt", attempt)
			return nil, err
		}
		s.logger.Warn("challan number collision, retrying", "number", c.Number, "attempt", attempt)
	}

	s.logger.Info("challan issued",
		"challan_id", c.ID,
		"number", c.Number,
		"kind", c.Violation.Kind(),
		"fine", c.Fine.String(),
		"officer_id", officer.ID,
		"citizen_id", citizen.ID,
	)
	metrics.ChallanIssued(string(c.Violation.Kind()), c.Fine)

	payload := challanPayload(c)
	payload[domain.PayloadViolation] = string(c.Violation.Kind())
	payload[domain.PayloadVehicle] = c.Violation.VehicleNumber
	payload[domain.PayloadDueDate] = c.DueDate.Format("2006-01-02")
	payload[domain.PayloadActorID] = officer.ID.String()
	addContact(payload, citizen)
	s.publisher.Publish(ctx, domain.NewEvent(domain.EventChallanCreated, c.CreatedAt, payload))

	return c, nil
}

// =============================================================================
// Payment
// =============================================================================

func (s *challanService) ProcessPayment(ctx context.Context, citizenID, challanID uuid.UUID, method domain.PaymentMethod, details domain.MethodDetails) (*domain.Payment, *domain.Challan, error) {
	const op = "challan.pay"

	citizen, err := s.authorize(ctx, op, citizenID, domain.CapPayChallans)
	if err != nil {
		return nil, nil, err
	}

	// 1. Serialize payments for this challan so the gateway is never
	// charged twice.
	release, err := s.locker.Acquire(ctx, challanLockKey(challanID))
	if err != nil {
		return nil, nil, domain.Internal(err, op, "Failed to lock challan")
	}
	defer release()

	// 2. Load and check the challan.
	c, err := s.store.FindChallanByID(ctx, challanID)
	if err != nil {
		return nil, nil, err
	}
	if c.CitizenID() != citizen.ID {
		return nil, nil, domain.Forbidden(op, "challan belongs to another citizen")
	}
	if !domain.CanTransition(c.Status, domain.ChallanStatusPaid) {
		return nil, nil, domain.IllegalTransition(op, c.Status, domain.ChallanStatusPaid)
	}

	// 3. Dispatch to the payment strategy. Nothing is persisted on failure.
	result, err := s.processor.Process(c.Fine, details, method)
	if err != nil {
		metrics.PaymentProcessed(string(method), "rejected")
		return nil, nil, err
	}

	now := s.now()
	from := c.Status
	if err := c.MarkPaid(now); err != nil {
		return nil, nil, err
	}

	// 4. Charge through the gateway. Nothing is persisted on failure.
	charger, ok := s.gateways.Charger(result.Gateway)
	if !ok {
		metrics.PaymentProcessed(string(method), "rejected")
		return nil, nil, domain.Unsupported(op, fmt.Sprintf("no payment gateway for %q", result.Gateway))
	}
	paymentID := uuid.New()
	charge, err := charger.Charge(ctx, billing.ChargeRequest{
		PaymentID:     paymentID,
		TransactionID: result.TransactionID,
		Amount:        result.TotalAmount,
		Token:         details.PaymentToken,
		Description:   "Challan " + c.Number,
	})
	if err != nil {
		if domain.ErrorCode(err) == domain.EINVALID {
			metrics.PaymentProcessed(string(method), "rejected")
			return nil, nil, err
		}
		metrics.PaymentProcessed(string(method), "declined")
		s.logger.Warn("gateway charge failed", "error", err, "op", op, "challan_id", c.ID, "gateway", result.Gateway)
		return nil, nil, domain.Gateway(err, op, "Payment could not be processed by the payment gateway")
	}

	// 5. Persist payment and transition atomically.
	p := &domain.Payment{
		ID:            paymentID,
		TransactionID: result.TransactionID,
		ChallanID:     c.ID,
		UserID:        citizen.ID,
		Amount:        result.Amount,
		Fee:           result.Fee,
		Method:        result.Method,
		Gateway:       result.Gateway,
		GatewayRef:    charge.Reference,
		Status:        domain.PaymentStatusCompleted,
		ProcessedAt:   result.ProcessedAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	p.GatewayResponse, _ = json.Marshal(map[string]any{
		"transaction_id": result.TransactionID,
		"gateway":        result.Gateway,
		"gateway_ref":    charge.Reference,
		"charge_status":  charge.Status,
		"total_amount":   result.TotalAmount.String(),
		"processed_at":   result.ProcessedAt.UTC(),
	})

	err = s.store.InTx(ctx, func(tx domain.Store) error {
		if err := tx.SavePayment(ctx, p); err != nil {
			return err
		}
		return tx.TransitionChallan(ctx, c, from)
	})
	if err != nil {
		metrics.PaymentProcessed(string(method), "failed")
		s.logger.Error("failed to record payment", "error", err, "op", op, "challan_id", c.ID, "transaction_id", p.TransactionID)
		s.reverseCharge(ctx, op, p, charge.Amount)
		return nil, nil, err
	}

	s.logger.Info("payment received",
		"challan_id", c.ID,
		"payment_id", p.ID,
		"transaction_id", p.TransactionID,
		"method", p.Method,
		"total", p.Total().String(),
	)
	metrics.PaymentProcessed(string(method), "completed")

	payload := challanPayload(c)
	payload[domain.PayloadPaymentID] = p.ID.String()
	payload[domain.PayloadTransactionID] = p.TransactionID
	payload[domain.PayloadAmount] = p.Total()
	addContact(payload, citizen)
	s.publisher.Publish(ctx, domain.NewEvent(domain.EventPaymentReceived, now, payload))

	return p, c, nil
}

// =============================================================================
// Refund
// =============================================================================

func (s *challanService) RefundPayment(ctx context.Context, actorID, paymentID uuid.UUID, amount *decimal.Decimal) (*domain.Refund, *domain.Payment, error) {
	const op = "payment.refund"

	if _, err := s.authorize(ctx, op, actorID, domain.CapRefundPayments); err != nil {
		return nil, nil, err
	}

	p, err := s.store.FindPaymentByID(ctx, paymentID)
	if err != nil {
		return nil, nil, err
	}

	release, err := s.locker.Acquire(ctx, challanLockKey(p.ChallanID))
	if err != nil {
		return nil, nil, domain.Internal(err, op, "Failed to lock challan")
	}
	defer release()

	// Reload under the lock; a concurrent refund may have finished.
	p, err = s.store.FindPaymentByID(ctx, paymentID)
	if err != nil {
		return nil, nil, err
	}
	if p.Status != domain.PaymentStatusCompleted {
		return nil, nil, domain.Errorf(domain.ETRANSITION, op, "cannot refund a %s payment", p.Status)
	}

	refundAmount := p.Amount
	if amount != nil {
		if !amount.IsPositive() {
			return nil, nil, domain.Invalid(op, "refund amount must be greater than zero")
		}
		if amount.GreaterThan(p.Amount) {
			return nil, nil, domain.Invalid(op, fmt.Sprintf("refund amount cannot exceed %s", p.Amount.StringFixed(2)))
		}
		refundAmount = *amount
	}

	refunder, ok := s.gateways.Refunder(p.Gateway)
	if !ok {
		return nil, nil, domain.Unsupported(op, fmt.Sprintf("no refund gateway for %q", p.Gateway))
	}

	refund, err := refunder.Refund(ctx, billing.RefundRequest{
		PaymentID: p.ID,
		ChargeRef: chargeRef(p),
		Amount:    refundAmount,
		Reason:    "challan refund",
	})
	if err != nil {
		metrics.RefundProcessed(p.Gateway, "failed")
		s.logger.Warn("gateway refund failed", "error", err, "op", op, "payment_id", p.ID, "gateway", p.Gateway)
		return nil, nil, domain.Gateway(err, op, "Refund could not be processed by the payment gateway")
	}

	now := s.now()
	p, c, err := RecordRefund(ctx, s.store, p.ID, refund.ID, refund.Amount, now)
	if err != nil {
		// The gateway has already returned the money; queue the write.
		s.logger.Error("refund issued but not recorded", "error", err, "op", op, "payment_id", paymentID, "refund_id", refund.ID)
		_, qerr := worker.EnqueueRecordRefund(context.WithoutCancel(ctx), s.queue, worker.RecordRefundPayload{
			PaymentID:  paymentID,
			RefundID:   refund.ID,
			Amount:     refund.Amount,
			RefundedAt: now,
		})
		if qerr != nil {
			s.logger.Error("refund record not queued", "error", qerr, "op", op, "payment_id", paymentID, "refund_id", refund.ID, "amount", refund.Amount.String())
		}
		return nil, nil, err
	}

	s.logger.Info("payment refunded",
		"payment_id", p.ID,
		"challan_id", c.ID,
		"refund_id", refund.ID,
		"amount", refund.Amount.String(),
		"actor_id", actorID,
	)
	metrics.RefundProcessed(p.Gateway, "completed")

	payload := challanPayload(c)
	payload[domain.PayloadPaymentID] = p.ID.String()
	payload[domain.PayloadAmount] = refund.Amount
	payload[domain.PayloadActorID] = actorID.String()
	if citizen, err := s.store.FindUserByID(ctx, c.CitizenID()); err == nil {
		addContact(payload, citizen)
	} else {
		s.logger.Warn("refund recipient not found", "error", err, "citizen_id", c.CitizenID())
	}
	s.publisher.Publish(ctx, domain.NewEvent(domain.EventPaymentRefunded, now, payload))

	return refund, p, nil
}

// =============================================================================
// Dispute
// =============================================================================

func (s *challanService) DisputeChallan(ctx context.Context, citizenID, challanID uuid.UUID, reason string) (*domain.Challan, error) {
	const op = "challan.dispute"

	citizen, err := s.authorize(ctx, op, citizenID, domain.CapDisputeChallans)
	if err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, challanLockKey(challanID))
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to lock challan")
	}
	defer release()

	c, err := s.store.FindChallanByID(ctx, challanID)
	if err != nil {
		return nil, err
	}
	if c.CitizenID() != citizen.ID {
		return nil, domain.Forbidden(op, "challan belongs to another citizen")
	}

	from := c.Status
	if err := c.MarkDisputed(reason, s.now()); err != nil {
		return nil, err
	}
	if err := s.store.TransitionChallan(ctx, c, from); err != nil {
		return nil, err
	}

	s.logger.Info("challan disputed", "challan_id", c.ID, "citizen_id", citizen.ID)

	payload := challanPayload(c)
	payload[domain.PayloadReason] = c.DisputeReason
	addContact(payload, citizen)
	s.publisher.Publish(ctx, domain.NewEvent(domain.EventChallanDisputed, *c.DisputedAt, payload))

	return c, nil
}

// =============================================================================
// Reads
// =============================================================================

func (s *challanService) GetChallan(ctx context.Context, userID, challanID uuid.UUID) (*domain.Challan, error) {
	const op = "challan.get"

	user, err := s.store.FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	c, err := s.store.FindChallanByID(ctx, challanID)
	if err != nil {
		return nil, err
	}

	caps := domain.Capabilities(user, s.now(), s.disabled)
	switch {
	case caps.Has(domain.CapViewAllChallans):
	case caps.Has(domain.CapViewOwnChallans) && c.CitizenID() == user.ID:
	case caps.Has(domain.CapViewIssuedChallans) && c.OfficerID() == user.ID:
	default:
		return nil, domain.Forbidden(op, "you do not have access to this challan")
	}
	return c, nil
}

func (s *challanService) ListChallans(ctx context.Context, userID uuid.UUID, params ListChallansParams) (*ChallanPage, error) {
	const op = "challan.list"

	user, err := s.store.FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	q, _, err := s.scope(op, user)
	if err != nil {
		return nil, err
	}
	if params.Status != "" {
		if !params.Status.IsValid() {
			return nil, domain.Invalid(op, fmt.Sprintf("unknown status: %q", params.Status))
		}
		q.Status = params.Status
	}
	if params.Limit <= 0 || params.Limit > 100 {
		params.Limit = 20
	}
	if params.Page < 1 {
		params.Page = 1
	}

	total, err := s.store.CountChallans(ctx, q)
	if err != nil {
		return nil, err
	}
	challans, err := s.store.ListChallans(ctx, q, params.Limit, (params.Page-1)*params.Limit)
	if err != nil {
		return nil, err
	}
	return &ChallanPage{Challans: challans, Total: total, Page: params.Page, Limit: params.Limit}, nil
}

func (s *challanService) GetDashboard(ctx context.Context, userID uuid.UUID) (*domain.Dashboard, error) {
	const op = "dashboard.get"

	user, err := s.store.FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	q, scope, err := s.scope(op, user)
	if err != nil {
		return nil, err
	}

	summaries, err := s.store.SummarizeChallans(ctx, q)
	if err != nil {
		return nil, err
	}
	recent, err := s.store.ListChallans(ctx, q, recentChallans, 0)
	if err != nil {
		return nil, err
	}
	return domain.NewDashboard(user, scope, summaries, recent), nil
}

// scope returns the challan filter matching the widest view the user holds.
func (s *challanService) scope(op string, user *domain.User) (domain.ChallanQuery, string, error) {
	caps := domain.Capabilities(user, s.now(), s.disabled)
	switch {
	case caps.Has(domain.CapViewAllChallans):
		return domain.ChallanQuery{}, "all", nil
	case caps.Has(domain.CapViewIssuedChallans):
		return domain.ChallanQuery{OfficerID: &user.ID}, "issued", nil
	case caps.Has(domain.CapViewOwnChallans):
		return domain.ChallanQuery{CitizenID: &user.ID}, "own", nil
	}
	return domain.ChallanQuery{}, "", domain.Forbidden(op, "you cannot view challans")
}

// =============================================================================
// Helpers
// =============================================================================

// authorize loads the user and checks that they hold capability.
func (s *challanService) authorize(ctx context.Context, op string, userID uuid.UUID, capability domain.Capability) (*domain.User, error) {
	user, err := s.store.FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !domain.Capabilities(user, s.now(), s.disabled).Has(capability) {
		return nil, domain.Forbidden(op, fmt.Sprintf("missing capability %s", capability))
	}
	return user, nil
}

// RecordRefund marks a payment refunded and cancels its challan in one
// transaction. Recording the same refund twice is a no-op, so the refund
// path and the record_refund job can share it.
func RecordRefund(ctx context.Context, store domain.Store, paymentID uuid.UUID, refundID string, amount decimal.Decimal, at time.Time) (*domain.Payment, *domain.Challan, error) {
	var (
		p *domain.Payment
		c *domain.Challan
	)
	err := store.InTx(ctx, func(tx domain.Store) error {
		var err error
		p, err = tx.FindPaymentByID(ctx, paymentID)
		if err != nil {
			return err
		}
		c, err = tx.FindChallanByID(ctx, p.ChallanID)
		if err != nil {
			return err
		}
		if p.Status == domain.PaymentStatusRefunded && p.RefundID == refundID {
			return nil
		}

		if err := p.MarkRefunded(refundID, amount, at); err != nil {
			return err
		}
		if err := tx.UpdatePayment(ctx, p, domain.PaymentStatusCompleted); err != nil {
			return err
		}
		if c.Status == domain.ChallanStatusCancelled {
			return nil
		}
		from := c.Status
		if err := c.MarkCancelled(at); err != nil {
			return err
		}
		return tx.TransitionChallan(ctx, c, from)
	})
	if err != nil {
		return nil, nil, err
	}
	return p, c, nil
}

// reverseCharge returns a charge whose payment could not be saved. When the
// gateway cannot be reached the reversal is queued for the worker.
func (s *challanService) reverseCharge(ctx context.Context, op string, p *domain.Payment, amount decimal.Decimal) {
	ctx = context.WithoutCancel(ctx)
	logger := s.logger.With("op", op, "payment_id", p.ID, "gateway", p.Gateway, "gateway_ref", p.GatewayRef)

	if refunder, ok := s.gateways.Refunder(p.Gateway); ok {
		_, err := refunder.Refund(ctx, billing.RefundRequest{
			PaymentID: p.ID,
			ChargeRef: p.GatewayRef,
			Amount:    amount,
			Reason:    "payment not recorded",
		})
		if err == nil {
			logger.Warn("charge reversed after failed save")
			return
		}
		logger.Error("charge reversal failed", "error", err)
	}

	_, err := worker.EnqueueReverseCharge(ctx, s.queue, worker.ReverseChargePayload{
		PaymentID: p.ID,
		Gateway:   p.Gateway,
		ChargeRef: p.GatewayRef,
		Amount:    amount,
	})
	if err != nil {
		logger.Error("charge reversal not queued", "error", err, "amount", amount.String())
	}
}

// chargeRef is the gateway reference refunds are issued against. Payments
// recorded before charges were captured carry only a transaction id.
func chargeRef(p *domain.Payment) string {
	if p.GatewayRef != "" {
		return p.GatewayRef
	}
	return p.TransactionID
}

func challanLockKey(id uuid.UUID) string {
	return "challan:" + id.String()
}

func challanPayload(c *domain.Challan) map[string]any {
	return map[string]any{
		domain.PayloadChallanID:     c.ID.String(),
		domain.PayloadChallanNumber: c.Number,
		domain.PayloadAmount:        c.Fine,
		domain.PayloadStatus:        string(c.Status),
	}
}

func addContact(payload map[string]any, u *domain.User) {
	payload[domain.PayloadRecipientName] = u.DisplayName()
	if u.Email != "" {
		payload[domain.PayloadEmail] = u.Email
	}
	if u.Phone != "" {
		payload[domain.PayloadPhone] = u.Phone
	}
}
