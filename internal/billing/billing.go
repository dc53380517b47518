// Package billing charges and refunds payments through payment gateways.
package billing

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/DukeRupert/challan/internal/domain"
)

// ChargeRequest describes one charge for a challan payment.
type ChargeRequest struct {
	PaymentID     uuid.UUID
	TransactionID string          // Local transaction id, used as idempotency key
	Amount        decimal.Decimal // Fine plus processing fee
	Token         string          // Instrument from client checkout
	Description   string
}

// Charge is a completed charge at a gateway.
type Charge struct {
	Reference string // Gateway id of the charge; refunds go against it
	Amount    decimal.Decimal
	Status    string
}

// Charger takes money through one gateway.
type Charger interface {
	Gateway() string

	// Charge collects req.Amount. An error means nothing was collected.
	// A missing or unusable token is a *domain.ValidationError.
	Charge(ctx context.Context, req ChargeRequest) (*Charge, error)
}

// RefundRequest describes one refund against a completed payment.
type RefundRequest struct {
	PaymentID uuid.UUID
	ChargeRef string // Gateway reference of the original charge
	Amount    decimal.Decimal
	Reason    string
}

// Refunder returns money through one gateway.
type Refunder interface {
	// Gateway is the gateway name stored on payments, e.g. "stripe".
	Gateway() string

	// Refund asks the gateway to return req.Amount. An error means no
	// refund was issued.
	Refund(ctx context.Context, req RefundRequest) (*domain.Refund, error)
}

// Provider charges and refunds through the same gateway account. Charges
// and refunds are always registered together so a refund is only ever sent
// to the gateway that holds the charge.
type Provider interface {
	Charger
	Refunder
}

// Registry looks up providers by gateway name.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry creates a registry. Later providers replace earlier ones
// with the same gateway name.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.Register(p.Gateway(), p)
	}
	return r
}

// Register maps a gateway name to a provider. Used to route gateways that
// share an account, such as UPI through Razorpay.
func (r *Registry) Register(gateway string, p Provider) {
	r.providers[gateway] = p
}

// Charger returns the charger for a gateway.
func (r *Registry) Charger(gateway string) (Charger, bool) {
	p, ok := r.providers[gateway]
	return p, ok
}

// Refunder returns the refunder for a gateway.
func (r *Registry) Refunder(gateway string) (Refunder, bool) {
	p, ok := r.providers[gateway]
	return p, ok
}

// Gateways lists the registered gateway names in sorted order.
func (r *Registry) Gateways() []string {
	out := make([]string, 0, len(r.providers))
	for g := range r.providers {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

// ToMinorUnits converts rupees to paise.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// FromMinorUnits converts paise to rupees.
func FromMinorUnits(paise int64) decimal.Decimal {
	return decimal.New(paise, -2)
}

// =============================================================================
// Simulated
// =============================================================================

// Simulated acknowledges every charge and refund without calling out. It
// stands in for gateways that have no credentials configured. Its charge
// reference is the local transaction id.
type Simulated struct {
	gateway string
	now     func() time.Time
}

// NewSimulated creates a simulated provider for a gateway name.
func NewSimulated(gateway string) *Simulated {
	return &Simulated{gateway: gateway, now: time.Now}
}

func (s *Simulated) Gateway() string { return s.gateway }

func (s *Simulated) Charge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Charge{Reference: req.TransactionID, Amount: req.Amount, Status: "captured"}, nil
}

func (s *Simulated) Refund(ctx context.Context, req RefundRequest) (*domain.Refund, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &domain.Refund{
		ID:        "RF-" + uuid.NewString()[:8],
		PaymentID: req.PaymentID,
		Gateway:   s.gateway,
		Amount:    req.Amount,
		Status:    "processed",
		CreatedAt: s.now(),
	}, nil
}
