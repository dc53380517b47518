// Package domain contains core business types and interfaces.
//
// This file defines payments made against challans.
package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod identifies how a citizen pays.
type PaymentMethod string

const (
	PaymentMethodCreditCard PaymentMethod = "credit_card"
	PaymentMethodDebitCard  PaymentMethod = "debit_card"
	PaymentMethodUPI        PaymentMethod = "upi"
	PaymentMethodNetBanking PaymentMethod = "net_banking"
	PaymentMethodCash       PaymentMethod = "cash"
)

// String returns the string representation of the method.
func (m PaymentMethod) String() string {
	return string(m)
}

// IsValid returns true if the method is a recognized value. A recognized
// method is not necessarily one the dispatcher can process.
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCreditCard, PaymentMethodDebitCard, PaymentMethodUPI,
		PaymentMethodNetBanking, PaymentMethodCash:
		return true
	}
	return false
}

// PaymentStatus represents the state of a payment.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// String returns the string representation of the status.
func (s PaymentStatus) String() string {
	return string(s)
}

// MethodDetails carries the instrument data for a payment. Which fields are
// required depends on the method.
type MethodDetails struct {
	CardNumber string `json:"card_number,omitempty"`
	CVV        string `json:"cvv,omitempty"`
	HolderName string `json:"holder_name,omitempty"`
	PIN        string `json:"pin,omitempty"`
	UPIID      string `json:"upi_id,omitempty"`

	// PaymentToken is the gateway-side instrument produced by client
	// checkout: a Stripe PaymentMethod id or an authorized Razorpay payment
	// id. Live gateways require it; simulated ones ignore it.
	PaymentToken string `json:"payment_token,omitempty"`
}

// Payment is a processed payment for a challan.
type Payment struct {
	ID              uuid.UUID
	TransactionID   string
	ChallanID       uuid.UUID
	UserID          uuid.UUID
	Amount          decimal.Decimal
	Fee             decimal.Decimal
	Method          PaymentMethod
	Gateway         string
	GatewayRef      string // Charge reference at the gateway; refunds go against it
	Status          PaymentStatus
	ProcessedAt     time.Time
	RefundID        string
	RefundAmount    *decimal.Decimal
	RefundedAt      *time.Time
	GatewayResponse json.RawMessage
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Total returns amount plus fee. It is never stored independently.
func (p *Payment) Total() decimal.Decimal {
	return p.Amount.Add(p.Fee)
}

// MarkRefunded records a successful gateway refund.
func (p *Payment) MarkRefunded(refundID string, amount decimal.Decimal, at time.Time) error {
	const op = "payment.mark_refunded"
	if p.Status != PaymentStatusCompleted {
		return Errorf(ETRANSITION, op, "cannot refund a %s payment", p.Status)
	}
	p.Status = PaymentStatusRefunded
	p.RefundID = refundID
	p.RefundAmount = &amount
	p.RefundedAt = &at
	p.UpdatedAt = at
	return nil
}

// Refund is the gateway's acknowledgement of a refund.
type Refund struct {
	ID        string          `json:"id"`
	PaymentID uuid.UUID       `json:"payment_id"`
	Gateway   string          `json:"gateway"`
	Amount    decimal.Decimal `json:"amount"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}
