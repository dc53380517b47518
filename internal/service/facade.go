package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/DukeRupert/challan/internal/domain"
)

// Result is the outcome envelope shared by every Facade call. On failure
// Error holds a user-safe message and Code the error code.
type Result struct {
	Success bool
	Error   string
	Code    string
}

// IssueChallanResult is returned by Facade.IssueChallan.
type IssueChallanResult struct {
	Result
	Challan *domain.Challan
}

// ProcessPaymentResult is returned by Facade.ProcessPayment.
type ProcessPaymentResult struct {
	Result
	Payment *domain.Payment
	Challan *domain.Challan
}

// RefundPaymentResult is returned by Facade.RefundPayment.
type RefundPaymentResult struct {
	Result
	Refund  *domain.Refund
	Payment *domain.Payment
}

// ChallanResult is returned by Facade.GetChallan and Facade.DisputeChallan.
type ChallanResult struct {
	Result
	Challan *domain.Challan
}

// ChallanListResult is returned by Facade.ListChallans.
type ChallanListResult struct {
	Result
	Page *ChallanPage
}

// DashboardResult is returned by Facade.GetDashboard.
type DashboardResult struct {
	Result
	Dashboard *domain.Dashboard
}

// Facade is the boundary in front of ChallanService. It never returns an
// error value and never lets a panic escape; every failure becomes a
// Result with Success false.
type Facade struct {
	svc    ChallanService
	logger *slog.Logger
}

// NewFacade wraps a ChallanService.
func NewFacade(svc ChallanService, logger *slog.Logger) *Facade {
	return &Facade{svc: svc, logger: logger}
}

// IssueChallan issues a challan on behalf of an officer.
func (f *Facade) IssueChallan(ctx context.Context, officerID uuid.UUID, attrs domain.ViolationAttrs) IssueChallanResult {
	var out IssueChallanResult
	out.Result = f.run("facade.issue_challan", func() (err error) {
		out.Challan, err = f.svc.IssueChallan(ctx, officerID, attrs)
		return err
	})
	return out
}

// ProcessPayment pays a challan on behalf of its citizen.
func (f *Facade) ProcessPayment(ctx context.Context, citizenID, challanID uuid.UUID, method domain.PaymentMethod, details domain.MethodDetails) ProcessPaymentResult {
	var out ProcessPaymentResult
	out.Result = f.run("facade.process_payment", func() (err error) {
		out.Payment, out.Challan, err = f.svc.ProcessPayment(ctx, citizenID, challanID, method, details)
		return err
	})
	return out
}

// RefundPayment refunds a payment. A nil amount refunds it in full.
func (f *Facade) RefundPayment(ctx context.Context, actorID, paymentID uuid.UUID, amount *decimal.Decimal) RefundPaymentResult {
	var out RefundPaymentResult
	out.Result = f.run("facade.refund_payment", func() (err error) {
		out.Refund, out.Payment, err = f.svc.RefundPayment(ctx, actorID, paymentID, amount)
		return err
	})
	return out
}

// DisputeChallan records a citizen's dispute.
func (f *Facade) DisputeChallan(ctx context.Context, citizenID, challanID uuid.UUID, reason string) ChallanResult {
	var out ChallanResult
	out.Result = f.run("facade.dispute_challan", func() (err error) {
		out.Challan, err = f.svc.DisputeChallan(ctx, citizenID, challanID, reason)
		return err
	})
	return out
}

// GetChallan fetches one challan.
func (f *Facade) GetChallan(ctx context.Context, userID, challanID uuid.UUID) ChallanResult {
	var out ChallanResult
	out.Result = f.run("facade.get_challan", func() (err error) {
		out.Challan, err = f.svc.GetChallan(ctx, userID, challanID)
		return err
	})
	return out
}

// ListChallans fetches a page of challans.
func (f *Facade) ListChallans(ctx context.Context, userID uuid.UUID, params ListChallansParams) ChallanListResult {
	var out ChallanListResult
	out.Result = f.run("facade.list_challans", func() (err error) {
		out.Page, err = f.svc.ListChallans(ctx, userID, params)
		return err
	})
	return out
}

// GetDashboard builds the user's dashboard.
func (f *Facade) GetDashboard(ctx context.Context, userID uuid.UUID) DashboardResult {
	var out DashboardResult
	out.Result = f.run("facade.get_dashboard", func() (err error) {
		out.Dashboard, err = f.svc.GetDashboard(ctx, userID)
		return err
	})
	return out
}

// run calls fn and folds its error or panic into a Result.
func (f *Facade) run(op string, fn func() error) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("recovered panic", "op", op, "panic", fmt.Sprint(r))
			res = f.fail(op, domain.Internal(fmt.Errorf("panic: %v", r), op, "unexpected failure"))
		}
	}()

	if err := fn(); err != nil {
		return f.fail(op, err)
	}
	return Result{Success: true}
}

func (f *Facade) fail(op string, err error) Result {
	code := domain.ErrorCode(err)
	if code == domain.EINTERNAL {
		f.logger.Error("internal error", "op", op, "error", err)
	} else {
		f.logger.Debug("request failed", "op", op, "code", code, "error", err)
	}
	return Result{
		Success: false,
		Error:   domain.ErrorMessage(err),
		Code:    code,
	}
}
