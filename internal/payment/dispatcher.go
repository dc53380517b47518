// Package payment validates payment instruments and computes processing
// fees for each supported payment method.
//
// The dispatcher holds no persistent state. It maps a method to a strategy,
// and each strategy validates its instrument data, computes the fee and
// allocates a transaction id. Charging a real card is the gateway's job and
// happens outside this package.
package payment

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/DukeRupert/challan/internal/domain"
)

// Gateway names recorded on payments. Refunds are routed by these.
const (
	GatewayStripe   = "stripe"
	GatewayRazorpay = "razorpay"
	GatewayUPI      = "upi"
)

// Result is the outcome of a successful dispatch.
type Result struct {
	TransactionID string
	Method        domain.PaymentMethod
	Amount        decimal.Decimal
	Fee           decimal.Decimal
	TotalAmount   decimal.Decimal
	Gateway       string
	ProcessedAt   time.Time
}

// Strategy processes one payment method.
type Strategy interface {
	// Validate checks the instrument data. Failures are *domain.ValidationError.
	Validate(details domain.MethodDetails) error
	// Fee returns the processing fee for amount, rounded to 2 decimal places.
	Fee(amount decimal.Decimal) decimal.Decimal
	// Gateway names the processor handling the method.
	Gateway() string
	// Prefix is the transaction id prefix.
	Prefix() string
}

// Dispatcher routes payments to the strategy registered for their method.
type Dispatcher struct {
	strategies map[domain.PaymentMethod]Strategy
	now        func() time.Time
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithClock overrides the time source used for ProcessedAt and transaction ids.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		d.now = now
	}
}

// WithStrategy registers or replaces the strategy for a method.
func WithStrategy(method domain.PaymentMethod, s Strategy) Option {
	return func(d *Dispatcher) {
		d.strategies[method] = s
	}
}

// NewDispatcher returns a dispatcher with credit card, debit card and UPI
// strategies registered. Net banking and cash are recognized methods with
// no strategy.
func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		strategies: map[domain.PaymentMethod]Strategy{
			domain.PaymentMethodCreditCard: CreditCard{},
			domain.PaymentMethodDebitCard:  DebitCard{},
			domain.PaymentMethodUPI:        UPI{},
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Supports reports whether a strategy is registered for method.
func (d *Dispatcher) Supports(method domain.PaymentMethod) bool {
	_, ok := d.strategies[method]
	return ok
}

// Process validates the instrument for method and computes the fee and
// total for amount.
func (d *Dispatcher) Process(amount decimal.Decimal, details domain.MethodDetails, method domain.PaymentMethod) (*Result, error) {
	const op = "payment.process"

	strategy, ok := d.strategies[method]
	if !ok {
		return nil, domain.Unsupported(op, fmt.Sprintf("unsupported payment method: %q", method))
	}

	if !amount.IsPositive() {
		return nil, domain.Invalid(op, "amount must be greater than zero")
	}

	if err := strategy.Validate(details); err != nil {
		return nil, err
	}

	now := d.now()
	fee := strategy.Fee(amount)

	return &Result{
		TransactionID: NewTransactionID(strategy.Prefix(), now),
		Method:        method,
		Amount:        amount,
		Fee:           fee,
		TotalAmount:   amount.Add(fee),
		Gateway:       strategy.Gateway(),
		ProcessedAt:   now,
	}, nil
}

// NewTransactionID returns an id of the form PREFIX-<unix millis>-<12 hex>.
func NewTransactionID(prefix string, now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%s-%d-%s", prefix, now.UnixMilli(), suffix)
}
