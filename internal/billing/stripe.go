package billing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/paymentintent"
	"github.com/stripe/stripe-go/v79/refund"

	"github.com/DukeRupert/challan/internal/domain"
)

// StripeGateway charges cards with confirmed PaymentIntents and refunds
// them through the Stripe Refunds API.
type StripeGateway struct {
	intents *paymentintent.Client
	refunds *refund.Client
}

// NewStripeGateway creates a gateway using the default Stripe backend.
func NewStripeGateway(secretKey string) *StripeGateway {
	return NewStripeGatewayWithBackend(secretKey, stripe.GetBackend(stripe.APIBackend))
}

// NewStripeGatewayWithBackend creates a gateway on a specific backend,
// such as one pointed at a test server.
func NewStripeGatewayWithBackend(secretKey string, backend stripe.Backend) *StripeGateway {
	return &StripeGateway{
		intents: &paymentintent.Client{B: backend, Key: secretKey},
		refunds: &refund.Client{B: backend, Key: secretKey},
	}
}

func (s *StripeGateway) Gateway() string { return "stripe" }

// Charge creates and confirms a PaymentIntent for the PaymentMethod in
// req.Token. Only an intent that reaches "succeeded" counts as a charge.
func (s *StripeGateway) Charge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	if !strings.HasPrefix(req.Token, "pm_") {
		return nil, domain.NewValidationError("billing.stripe_charge", "payment_token", "must be a Stripe PaymentMethod id")
	}

	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(ToMinorUnits(req.Amount)),
		Currency:           stripe.String(string(stripe.CurrencyINR)),
		PaymentMethod:      stripe.String(req.Token),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Confirm:            stripe.Bool(true),
		Description:        stripe.String(req.Description),
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.TransactionID)
	params.AddMetadata("payment_id", req.PaymentID.String())
	params.AddMetadata("transaction_id", req.TransactionID)

	pi, err := s.intents.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe create payment intent: %w", err)
	}
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return nil, fmt.Errorf("stripe payment intent %s: status %s", pi.ID, pi.Status)
	}

	return &Charge{
		Reference: pi.ID,
		Amount:    FromMinorUnits(pi.Amount),
		Status:    string(pi.Status),
	}, nil
}

func (s *StripeGateway) Refund(ctx context.Context, req RefundRequest) (*domain.Refund, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.ChargeRef),
		Amount:        stripe.Int64(ToMinorUnits(req.Amount)),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	params.Context = ctx
	params.AddMetadata("payment_id", req.PaymentID.String())

	r, err := s.refunds.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe create refund: %w", err)
	}
	if r.Status == stripe.RefundStatusFailed || r.Status == stripe.RefundStatusCanceled {
		return nil, fmt.Errorf("stripe refund %s: status %s", r.ID, r.Status)
	}

	return &domain.Refund{
		ID:        r.ID,
		PaymentID: req.PaymentID,
		Gateway:   s.Gateway(),
		Amount:    FromMinorUnits(r.Amount),
		Status:    string(r.Status),
		CreatedAt: time.Unix(r.Created, 0).UTC(),
	}, nil
}
