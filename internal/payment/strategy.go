package payment

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/DukeRupert/challan/internal/domain"
)

var (
	creditRate   = decimal.RequireFromString("0.029")
	creditMinFee = decimal.NewFromInt(10)
	debitRate    = decimal.RequireFromString("0.015")
	debitMaxFee  = decimal.NewFromInt(25)
)

const minCardLength = 16

// CreditCard charges through Stripe. Fee is 2.9% with a floor of 10.
type CreditCard struct{}

func (CreditCard) Validate(d domain.MethodDetails) error {
	fields := map[string]string{}
	if len(digitsOnly(d.CardNumber)) < minCardLength {
		fields["card_number"] = "must be at least 16 digits"
	}
	if len(strings.TrimSpace(d.CVV)) < 3 {
		fields["cvv"] = "must be at least 3 digits"
	}
	if strings.TrimSpace(d.HolderName) == "" {
		fields["holder_name"] = "is required"
	}
	return fieldErrors("payment.credit_card", fields)
}

func (CreditCard) Fee(amount decimal.Decimal) decimal.Decimal {
	return decimal.Max(amount.Mul(creditRate), creditMinFee).Round(2)
}

func (CreditCard) Gateway() string { return GatewayStripe }
func (CreditCard) Prefix() string  { return "CC" }

// DebitCard charges through Razorpay. Fee is 1.5% capped at 25.
type DebitCard struct{}

func (DebitCard) Validate(d domain.MethodDetails) error {
	fields := map[string]string{}
	if len(digitsOnly(d.CardNumber)) < minCardLength {
		fields["card_number"] = "must be at least 16 digits"
	}
	if !isPIN(d.PIN) {
		fields["pin"] = "must be exactly 4 digits"
	}
	return fieldErrors("payment.debit_card", fields)
}

func (DebitCard) Fee(amount decimal.Decimal) decimal.Decimal {
	return decimal.Min(amount.Mul(debitRate), debitMaxFee).Round(2)
}

func (DebitCard) Gateway() string { return GatewayRazorpay }
func (DebitCard) Prefix() string  { return "DC" }

// UPI is free for the payer.
type UPI struct{}

func (UPI) Validate(d domain.MethodDetails) error {
	fields := map[string]string{}
	if !strings.Contains(d.UPIID, "@") {
		fields["upi_id"] = "must be a valid UPI id"
	}
	if !isPIN(d.PIN) {
		fields["pin"] = "must be exactly 4 digits"
	}
	return fieldErrors("payment.upi", fields)
}

func (UPI) Fee(decimal.Decimal) decimal.Decimal { return decimal.Zero }
func (UPI) Gateway() string                     { return GatewayUPI }
func (UPI) Prefix() string                      { return "UPI" }

func fieldErrors(op string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	return &domain.ValidationError{Op: op, Fields: fields}
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isPIN(s string) bool {
	if len(s) != 4 {
		return false
	}
	return digitsOnly(s) == s
}
