package handler

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/DukeRupert/challan/internal/domain"
	"github.com/DukeRupert/challan/internal/service"
)

// =============================================================================
// Requests
// =============================================================================

// PaymentRequest is the body of POST /api/challans/{id}/payments.
type PaymentRequest struct {
	Method  domain.PaymentMethod `json:"method"`
	Details domain.MethodDetails `json:"details"`
}

// RefundRequest is the body of POST /api/payments/{id}/refund. A missing
// amount refunds the whole payment.
type RefundRequest struct {
	Amount *decimal.Decimal `json:"amount,omitempty"`
}

// DisputeRequest is the body of POST /api/challans/{id}/dispute.
type DisputeRequest struct {
	Reason string `json:"reason"`
}

// =============================================================================
// Responses
// =============================================================================

// ChallanResponse is the public view of a challan.
type ChallanResponse struct {
	ID            uuid.UUID       `json:"id"`
	Number        string          `json:"number"`
	Type          string          `json:"type"`
	TypeLabel     string          `json:"type_label"`
	VehicleNumber string          `json:"vehicle_number"`
	Location      string          `json:"location"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Description   string          `json:"description,omitempty"`
	Details       json.RawMessage `json:"details,omitempty"`
	Fine          string          `json:"fine"`
	Status        string          `json:"status"`
	Overdue       bool            `json:"overdue"`
	DueDate       time.Time       `json:"due_date"`
	PaymentDate   *time.Time      `json:"payment_date,omitempty"`
	DisputeReason string          `json:"dispute_reason,omitempty"`
	DisputedAt    *time.Time      `json:"disputed_at,omitempty"`
	CancelledAt   *time.Time      `json:"cancelled_at,omitempty"`
	OfficerID     uuid.UUID       `json:"officer_id"`
	CitizenID     uuid.UUID       `json:"citizen_id"`
	CreatedAt     time.Time       `json:"created_at"`
}

// PaymentResponse is the public view of a payment. Gateway responses are
// never exposed.
type PaymentResponse struct {
	ID            uuid.UUID  `json:"id"`
	TransactionID string     `json:"transaction_id"`
	ChallanID     uuid.UUID  `json:"challan_id"`
	Amount        string     `json:"amount"`
	Fee           string     `json:"fee"`
	Total         string     `json:"total"`
	Method        string     `json:"method"`
	Gateway       string     `json:"gateway"`
	Status        string     `json:"status"`
	ProcessedAt   time.Time  `json:"processed_at"`
	RefundID      string     `json:"refund_id,omitempty"`
	RefundAmount  string     `json:"refund_amount,omitempty"`
	RefundedAt    *time.Time `json:"refunded_at,omitempty"`
}

// PaymentResultResponse is returned by a successful payment.
type PaymentResultResponse struct {
	Payment PaymentResponse `json:"payment"`
	Challan ChallanResponse `json:"challan"`
}

// RefundResultResponse is returned by a successful refund.
type RefundResultResponse struct {
	RefundID  string          `json:"refund_id"`
	Amount    string          `json:"amount"`
	Status    string          `json:"status"`
	Payment   PaymentResponse `json:"payment"`
	CreatedAt time.Time       `json:"created_at"`
}

// ChallanListResponse is one page of challans.
type ChallanListResponse struct {
	Challans []ChallanResponse `json:"challans"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	Limit    int               `json:"limit"`
}

// StatusSummaryResponse counts challans in one status.
type StatusSummaryResponse struct {
	Count int64  `json:"count"`
	Total string `json:"total"`
}

// DashboardResponse is the caller's challan summary.
type DashboardResponse struct {
	Role        string                           `json:"role"`
	Scope       string                           `json:"scope"`
	Total       int64                            `json:"total"`
	Outstanding string                           `json:"outstanding"`
	Collected   string                           `json:"collected"`
	ByStatus    map[string]StatusSummaryResponse `json:"by_status"`
	Recent      []ChallanResponse                `json:"recent"`
}

func newChallanResponse(c *domain.Challan, now time.Time) ChallanResponse {
	details, _ := domain.MarshalDetails(c.Violation.Details)
	return ChallanResponse{
		ID:            c.ID,
		Number:        c.Number,
		Type:          string(c.Violation.Kind()),
		TypeLabel:     c.TypeLabel(),
		VehicleNumber: c.Violation.VehicleNumber,
		Location:      c.Violation.Location,
		OccurredAt:    c.Violation.OccurredAt,
		Description:   c.Violation.Description,
		Details:       details,
		Fine:          c.Fine.StringFixed(2),
		Status:        string(c.Status),
		Overdue:       c.IsOverdue(now),
		DueDate:       c.DueDate,
		PaymentDate:   c.PaymentDate,
		DisputeReason: c.DisputeReason,
		DisputedAt:    c.DisputedAt,
		CancelledAt:   c.CancelledAt,
		OfficerID:     c.OfficerID(),
		CitizenID:     c.CitizenID(),
		CreatedAt:     c.CreatedAt,
	}
}

func newChallanResponses(challans []domain.Challan, now time.Time) []ChallanResponse {
	out := make([]ChallanResponse, 0, len(challans))
	for i := range challans {
		out = append(out, newChallanResponse(&challans[i], now))
	}
	return out
}

func newPaymentResponse(p *domain.Payment) PaymentResponse {
	resp := PaymentResponse{
		ID:            p.ID,
		TransactionID: p.TransactionID,
		ChallanID:     p.ChallanID,
		Amount:        p.Amount.StringFixed(2),
		Fee:           p.Fee.StringFixed(2),
		Total:         p.Total().StringFixed(2),
		Method:        string(p.Method),
		Gateway:       p.Gateway,
		Status:        string(p.Status),
		ProcessedAt:   p.ProcessedAt,
		RefundID:      p.RefundID,
		RefundedAt:    p.RefundedAt,
	}
	if p.RefundAmount != nil {
		resp.RefundAmount = p.RefundAmount.StringFixed(2)
	}
	return resp
}

func newChallanListResponse(page *service.ChallanPage, now time.Time) ChallanListResponse {
	return ChallanListResponse{
		Challans: newChallanResponses(page.Challans, now),
		Total:    page.Total,
		Page:     page.Page,
		Limit:    page.Limit,
	}
}

func newDashboardResponse(d *domain.Dashboard, now time.Time) DashboardResponse {
	by := make(map[string]StatusSummaryResponse, len(d.ByStatus))
	for status, s := range d.ByStatus {
		by[string(status)] = StatusSummaryResponse{Count: s.Count, Total: s.Total.StringFixed(2)}
	}
	return DashboardResponse{
		Role:        string(d.Role),
		Scope:       d.Scope,
		Total:       d.Total,
		Outstanding: d.Outstanding.StringFixed(2),
		Collected:   d.Collected.StringFixed(2),
		ByStatus:    by,
		Recent:      newChallanResponses(d.Recent, now),
	}
}
