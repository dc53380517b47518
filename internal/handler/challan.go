// Package handler contains the JSON HTTP handlers of the challan API.
//
// Handlers talk only to the service facade, which folds every failure into a
// Result. A handler therefore never sees an error value from the domain.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/DukeRupert/challan/internal/domain"
	"github.com/DukeRupert/challan/internal/middleware"
	"github.com/DukeRupert/challan/internal/service"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 10

// ChallanAPI is the facade surface used by ChallanHandler. *service.Facade
// satisfies it.
type ChallanAPI interface {
	IssueChallan(ctx context.Context, officerID uuid.UUID, attrs domain.ViolationAttrs) service.IssueChallanResult
	ProcessPayment(ctx context.Context, citizenID, challanID uuid.UUID, method domain.PaymentMethod, details domain.MethodDetails) service.ProcessPaymentResult
	RefundPayment(ctx context.Context, actorID, paymentID uuid.UUID, amount *decimal.Decimal) service.RefundPaymentResult
	DisputeChallan(ctx context.Context, citizenID, challanID uuid.UUID, reason string) service.ChallanResult
	GetChallan(ctx context.Context, userID, challanID uuid.UUID) service.ChallanResult
	ListChallans(ctx context.Context, userID uuid.UUID, params service.ListChallansParams) service.ChallanListResult
	GetDashboard(ctx context.Context, userID uuid.UUID) service.DashboardResult
}

// =============================================================================
// Handler Configuration
// =============================================================================

// ChallanHandler serves the challan, payment and dashboard endpoints.
type ChallanHandler struct {
	api    ChallanAPI
	now    func() time.Time
	logger *slog.Logger
}

// NewChallanHandler creates a new ChallanHandler.
func NewChallanHandler(api ChallanAPI, logger *slog.Logger) *ChallanHandler {
	return &ChallanHandler{
		api:    api,
		now:    time.Now,
		logger: logger,
	}
}

// =============================================================================
// Route Registration
// =============================================================================

// RegisterRoutes registers the API routes with the provided mux.
//
// All routes require authentication via the requireUser middleware.
//
// Routes:
// - POST /api/challans               -> Issue
// - GET  /api/challans               -> List
// - GET  /api/challans/{id}          -> Show
// - POST /api/challans/{id}/payments -> Pay
// - POST /api/challans/{id}/dispute  -> Dispute
// - POST /api/payments/{id}/refund   -> Refund
// - GET  /api/dashboard              -> Dashboard
func (h *ChallanHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("POST /api/challans", requireUser(http.HandlerFunc(h.Issue)))
	mux.Handle("GET /api/challans", requireUser(http.HandlerFunc(h.List)))
	mux.Handle("GET /api/challans/{id}", requireUser(http.HandlerFunc(h.Show)))
	mux.Handle("POST /api/challans/{id}/payments", requireUser(http.HandlerFunc(h.Pay)))
	mux.Handle("POST /api/challans/{id}/dispute", requireUser(http.HandlerFunc(h.Dispute)))
	mux.Handle("POST /api/payments/{id}/refund", requireUser(http.HandlerFunc(h.Refund)))
	mux.Handle("GET /api/dashboard", requireUser(http.HandlerFunc(h.Dashboard)))
}

// =============================================================================
// Challans
// =============================================================================

// Issue records a violation and issues a challan.
func (h *ChallanHandler) Issue(w http.ResponseWriter, r *http.Request) {
	var attrs domain.ViolationAttrs
	if !h.decode(w, r, &attrs) {
		return
	}

	res := h.api.IssueChallan(r.Context(), middleware.GetUserID(r.Context()), attrs)
	if !res.Success {
		writeResult(w, r, h.logger, res.Result)
		return
	}
	writeData(w, http.StatusCreated, newChallanResponse(res.Challan, h.now()))
}

// List returns a page of the challans the caller can see.
func (h *ChallanHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := service.ListChallansParams{Status: domain.ChallanStatus(q.Get("status"))}

	var err error
	if params.Page, err = queryInt(q.Get("page")); err != nil {
		badRequest(w, "page must be a number")
		return
	}
	if params.Limit, err = queryInt(q.Get("limit")); err != nil {
		badRequest(w, "limit must be a number")
		return
	}

	res := h.api.ListChallans(r.Context(), middleware.GetUserID(r.Context()), params)
	if !res.Success {
		writeResult(w, r, h.logger, res.Result)
		return
	}
	writeData(w, http.StatusOK, newChallanListResponse(res.Page, h.now()))
}

// Show returns one challan.
func (h *ChallanHandler) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	res := h.api.GetChallan(r.Context(), middleware.GetUserID(r.Context()), id)
	if !res.Success {
		writeResult(w, r, h.logger, res.Result)
		return
	}
	writeData(w, http.StatusOK, newChallanResponse(res.Challan, h.now()))
}

// Dispute contests a pending challan.
func (h *ChallanHandler) Dispute(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req DisputeRequest
	if !h.decode(w, r, &req) {
		return
	}

	res := h.api.DisputeChallan(r.Context(), middleware.GetUserID(r.Context()), id, req.Reason)
	if !res.Success {
		writeResult(w, r, h.logger, res.Result)
		return
	}
	writeData(w, http.StatusOK, newChallanResponse(res.Challan, h.now()))
}

// =============================================================================
// Payments
// =============================================================================

// Pay charges the challan's fine.
func (h *ChallanHandler) Pay(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req PaymentRequest
	if !h.decode(w, r, &req) {
		return
	}

	res := h.api.ProcessPayment(r.Context(), middleware.GetUserID(r.Context()), id, req.Method, req.Details)
	if !res.Success {
		writeResult(w, r, h.logger, res.Result)
		return
	}
	writeData(w, http.StatusCreated, PaymentResultResponse{
		Payment: newPaymentResponse(res.Payment),
		Challan: newChallanResponse(res.Challan, h.now()),
	})
}

// Refund returns a payment through its gateway.
func (h *ChallanHandler) Refund(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req RefundRequest
	if !h.decode(w, r, &req) {
		return
	}

	res := h.api.RefundPayment(r.Context(), middleware.GetUserID(r.Context()), id, req.Amount)
	if !res.Success {
		writeResult(w, r, h.logger, res.Result)
		return
	}
	writeData(w, http.StatusOK, RefundResultResponse{
		RefundID:  res.Refund.ID,
		Amount:    res.Refund.Amount.StringFixed(2),
		Status:    res.Refund.Status,
		Payment:   newPaymentResponse(res.Payment),
		CreatedAt: res.Refund.CreatedAt,
	})
}

// =============================================================================
// Dashboard
// =============================================================================

// Dashboard summarizes the challans the caller can see.
func (h *ChallanHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	res := h.api.GetDashboard(r.Context(), middleware.GetUserID(r.Context()))
	if !res.Success {
		writeResult(w, r, h.logger, res.Result)
		return
	}
	writeData(w, http.StatusOK, newDashboardResponse(res.Dashboard, h.now()))
}

// =============================================================================
// Helpers
// =============================================================================

// decode reads a JSON body into v. An empty body leaves v at its zero value.
func (h *ChallanHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, domain.EINVALID, "request body too large")
			return false
		}
		h.logger.Debug("malformed request body", "error", err, "path", r.URL.Path)
		badRequest(w, "request body is not valid JSON for this endpoint")
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		badRequest(w, "id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
