package billing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/DukeRupert/challan/internal/domain"
)

// DefaultRazorpayURL is the Razorpay API base URL.
const DefaultRazorpayURL = "https://api.razorpay.com"

// RazorpayConfig holds Razorpay API credentials.
type RazorpayConfig struct {
	KeyID     string
	KeySecret string
	BaseURL   string // Defaults to DefaultRazorpayURL
	Timeout   time.Duration
}

// RazorpayGateway captures and refunds payments through the Razorpay REST
// API. Client checkout authorizes the payment; Charge captures it.
type RazorpayGateway struct {
	client *resty.Client
}

// NewRazorpayGateway creates a gateway authenticated with basic auth.
func NewRazorpayGateway(cfg RazorpayConfig) *RazorpayGateway {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultRazorpayURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetBasicAuth(cfg.KeyID, cfg.KeySecret).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")
	return &RazorpayGateway{client: client}
}

func (r *RazorpayGateway) Gateway() string { return "razorpay" }

type razorpayCaptureRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type razorpayPayment struct {
	ID     string `json:"id"`
	Amount int64  `json:"amount"`
	Status string `json:"status"`
}

type razorpayRefundRequest struct {
	Amount  int64             `json:"amount"`
	Speed   string            `json:"speed"`
	Receipt string            `json:"receipt,omitempty"`
	Notes   map[string]string `json:"notes,omitempty"`
}

type razorpayRefundResponse struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
	Status    string `json:"status"`
	CreatedAt int64  `json:"created_at"`
}

type razorpayError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// Charge captures the authorized payment named by req.Token.
func (r *RazorpayGateway) Charge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	if !strings.HasPrefix(req.Token, "pay_") {
		return nil, domain.NewValidationError("billing.razorpay_charge", "payment_token", "must be a Razorpay payment id")
	}

	var result razorpayPayment
	var apiErr razorpayError

	resp, err := r.client.R().
		SetContext(ctx).
		SetPathParam("id", req.Token).
		SetBody(razorpayCaptureRequest{
			Amount:   ToMinorUnits(req.Amount),
			Currency: "INR",
		}).
		SetResult(&result).
		SetError(&apiErr).
		Post("/v1/payments/{id}/capture")
	if err != nil {
		return nil, fmt.Errorf("razorpay capture request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("razorpay capture: %s: %s (HTTP %d)",
			apiErr.Error.Code, apiErr.Error.Description, resp.StatusCode())
	}
	if result.Status != "captured" {
		return nil, fmt.Errorf("razorpay payment %s: status %s", result.ID, result.Status)
	}

	return &Charge{
		Reference: result.ID,
		Amount:    FromMinorUnits(result.Amount),
		Status:    result.Status,
	}, nil
}

func (r *RazorpayGateway) Refund(ctx context.Context, req RefundRequest) (*domain.Refund, error) {
	var result razorpayRefundResponse
	var apiErr razorpayError

	resp, err := r.client.R().
		SetContext(ctx).
		SetPathParam("id", req.ChargeRef).
		SetBody(razorpayRefundRequest{
			Amount:  ToMinorUnits(req.Amount),
			Speed:   "normal",
			Receipt: req.PaymentID.String(),
			Notes:   map[string]string{"reason": req.Reason},
		}).
		SetResult(&result).
		SetError(&apiErr).
		Post("/v1/payments/{id}/refund")
	if err != nil {
		return nil, fmt.Errorf("razorpay refund request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("razorpay refund: %s: %s (HTTP %d)",
			apiErr.Error.Code, apiErr.Error.Description, resp.StatusCode())
	}
	if result.Status == "failed" {
		return nil, fmt.Errorf("razorpay refund %s: status failed", result.ID)
	}

	return &domain.Refund{
		ID:        result.ID,
		PaymentID: req.PaymentID,
		Gateway:   r.Gateway(),
		Amount:    FromMinorUnits(result.Amount),
		Status:    result.Status,
		CreatedAt: time.Unix(result.CreatedAt, 0).UTC(),
	}, nil
}
