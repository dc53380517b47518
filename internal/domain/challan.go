// Package domain contains core business types and interfaces.
//
// This file defines the Challan record and the status transitions it allows.
package domain

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultDueDays is the number of days a citizen has to pay a challan.
const DefaultDueDays = 30

// =============================================================================
// Challan Status
// =============================================================================

// ChallanStatus represents the lifecycle state of a challan.
type ChallanStatus string

const (
	ChallanStatusPending   ChallanStatus = "pending"
	ChallanStatusPaid      ChallanStatus = "paid"
	ChallanStatusDisputed  ChallanStatus = "disputed"
	ChallanStatusCancelled ChallanStatus = "cancelled"
)

// ChallanStatuses lists every status in display order.
var ChallanStatuses = []ChallanStatus{
	ChallanStatusPending,
	ChallanStatusPaid,
	ChallanStatusDisputed,
	ChallanStatusCancelled,
}

// String returns the string representation of the status.
func (s ChallanStatus) String() string {
	return string(s)
}

// IsValid returns true if the status is a recognized value.
func (s ChallanStatus) IsValid() bool {
	switch s {
	case ChallanStatusPending, ChallanStatusPaid, ChallanStatusDisputed, ChallanStatusCancelled:
		return true
	}
	return false
}

// transitions holds the legal moves. Cancellation only happens via refund.
var transitions = map[ChallanStatus][]ChallanStatus{
	ChallanStatusPending: {ChallanStatusPaid, ChallanStatusDisputed},
	ChallanStatusPaid:    {ChallanStatusCancelled},
}

// CanTransition reports whether a challan may move from one status to another.
func CanTransition(from, to ChallanStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// =============================================================================
// Challan Domain Type
// =============================================================================

// Challan is a traffic-violation citation issued to a citizen.
type Challan struct {
	ID            uuid.UUID
	Number        string
	Violation     Violation
	Fine          decimal.Decimal
	Status        ChallanStatus
	DueDate       time.Time
	PaymentDate   *time.Time
	DisputeReason string
	DisputedAt    *time.Time
	CancelledAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewChallan creates a pending challan and computes its fine. The fine is
// never recomputed afterwards.
func NewChallan(v Violation, now time.Time, dueDays int) *Challan {
	if dueDays <= 0 {
		dueDays = DefaultDueDays
	}
	fine, _ := ComputeFine(v)
	return &Challan{
		ID:        uuid.New(),
		Number:    NewChallanNumber(now),
		Violation: v,
		Fine:      fine,
		Status:    ChallanStatusPending,
		DueDate:   now.AddDate(0, 0, dueDays),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TypeLabel returns the display label of the challan's violation.
func (c *Challan) TypeLabel() string {
	return ViolationLabel(c.Violation.Kind())
}

// CitizenID returns the owner of the challan.
func (c *Challan) CitizenID() uuid.UUID {
	return c.Violation.CitizenID
}

// OfficerID returns the issuing officer.
func (c *Challan) OfficerID() uuid.UUID {
	return c.Violation.OfficerID
}

// IsOverdue returns true if the challan is unpaid past its due date.
func (c *Challan) IsOverdue(now time.Time) bool {
	return c.Status == ChallanStatusPending && now.After(c.DueDate)
}

// MarkPaid moves a pending challan to paid.
func (c *Challan) MarkPaid(at time.Time) error {
	const op = "challan.mark_paid"
	if !CanTransition(c.Status, ChallanStatusPaid) {
		return IllegalTransition(op, c.Status, ChallanStatusPaid)
	}
	c.Status = ChallanStatusPaid
	c.PaymentDate = &at
	c.UpdatedAt = at
	return nil
}

// MarkDisputed moves a pending challan to disputed. Resolving a dispute is
// handled outside this package.
func (c *Challan) MarkDisputed(reason string, at time.Time) error {
	const op = "challan.mark_disputed"
	if !CanTransition(c.Status, ChallanStatusDisputed) {
		return IllegalTransition(op, c.Status, ChallanStatusDisputed)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Invalid(op, "dispute reason is required")
	}
	if len(reason) > 1000 {
		return Invalid(op, "dispute reason must be 1000 characters or less")
	}
	c.Status = ChallanStatusDisputed
	c.DisputeReason = reason
	c.DisputedAt = &at
	c.UpdatedAt = at
	return nil
}

// MarkCancelled moves a paid challan to cancelled. Only the refund flow
// calls this.
func (c *Challan) MarkCancelled(at time.Time) error {
	const op = "challan.mark_cancelled"
	if !CanTransition(c.Status, ChallanStatusCancelled) {
		return IllegalTransition(op, c.Status, ChallanStatusCancelled)
	}
	c.Status = ChallanStatusCancelled
	c.CancelledAt = &at
	c.UpdatedAt = at
	return nil
}

// NewChallanNumber returns a human-readable challan number such as
// CH-20261016-9F2C61AB.
func NewChallanNumber(now time.Time) string {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		copy(b[:], uuid.New().NodeID())
	}
	return fmt.Sprintf("CH-%s-%s", now.Format("20060102"), strings.ToUpper(hex.EncodeToString(b[:])))
}

// =============================================================================
// Queries
// =============================================================================

// ChallanQuery filters challans for listing and aggregation. Zero values
// are ignored.
type ChallanQuery struct {
	CitizenID *uuid.UUID
	OfficerID *uuid.UUID
	Status    ChallanStatus
}

// StatusSummary is the count and fine total for one status.
type StatusSummary struct {
	Status ChallanStatus
	Count  int64
	Total  decimal.Decimal
}
