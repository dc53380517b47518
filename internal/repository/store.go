package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/sqlc-dev/pqtype"

	"github.com/DukeRupert/challan/internal/domain"
)

// pgUniqueViolation is the SQLSTATE for unique constraint failures.
const pgUniqueViolation = "23505"

// Store implements domain.Store over PostgreSQL.
type Store struct {
	db  *sql.DB
	q   *Queries
	now func() time.Time
}

// NewStore returns a Store backed by db.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, q: New(db), now: time.Now}
}

// Queries exposes the raw query set, used by the job worker.
func (s *Store) Queries() *Queries {
	return s.q
}

// InTx runs fn in a transaction. Nested calls reuse the outer transaction.
func (s *Store) InTx(ctx context.Context, fn func(domain.Store) error) error {
	const op = "store.in_tx"

	if s.db == nil {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Internal(err, op, "failed to begin transaction")
	}
	defer tx.Rollback()

	if err := fn(&Store{q: s.q.WithTx(tx), now: s.now}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return domain.Internal(err, op, "failed to commit transaction")
	}
	return nil
}

// =============================================================================
// Users
// =============================================================================

func (s *Store) FindUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	const op = "store.find_user"

	row, err := s.q.GetUserByID(ctx, id)
	if err != nil {
		return nil, mapErr(err, op, "user", id.String())
	}
	return s.withGrants(ctx, op, row)
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	const op = "store.find_user_by_email"

	row, err := s.q.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, mapErr(err, op, "user", email)
	}
	return s.withGrants(ctx, op, row)
}

func (s *Store) withGrants(ctx context.Context, op string, row User) (*domain.User, error) {
	grants, err := s.q.ListActiveGrants(ctx, row.ID, s.now())
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load grants")
	}

	u := &domain.User{
		ID:          row.ID,
		Name:        row.Name,
		Email:       row.Email,
		Phone:       domain.NullStringValue(row.Phone),
		Role:        domain.Role(row.Role),
		BadgeNumber: domain.NullStringValue(row.BadgeNumber),
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
	for _, g := range grants {
		u.Grants = append(u.Grants, domain.Grant{
			Capability: domain.Capability(g.Capability),
			ExpiresAt:  g.ExpiresAt,
		})
	}
	return u, nil
}

// =============================================================================
// Challans
// =============================================================================

func (s *Store) FindChallanByID(ctx context.Context, id uuid.UUID) (*domain.Challan, error) {
	const op = "store.find_challan"

	row, err := s.q.GetChallanByID(ctx, id)
	if err != nil {
		return nil, mapErr(err, op, "challan", id.String())
	}
	c, err := challanFromRow(row)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to decode challan")
	}
	return c, nil
}

func (s *Store) SaveChallan(ctx context.Context, c *domain.Challan) error {
	const op = "store.save_challan"

	details, err := domain.MarshalDetails(c.Violation.Details)
	if err != nil {
		return domain.Internal(err, op, "failed to encode violation details")
	}

	err = s.q.CreateChallan(ctx, CreateChallanParams{
		ID:            c.ID,
		Number:        c.Number,
		Kind:          string(c.Violation.Kind()),
		Details:       details,
		VehicleNumber: c.Violation.VehicleNumber,
		Location:      c.Violation.Location,
		OccurredAt:    c.Violation.OccurredAt,
		Description:   c.Violation.Description,
		OfficerID:     c.Violation.OfficerID,
		CitizenID:     c.Violation.CitizenID,
		Fine:          c.Fine,
		Status:        string(c.Status),
		DueDate:       c.DueDate,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	})
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Errorf(domain.ECONFLICT, op, "challan number %s already exists", c.Number)
		}
		return domain.Internal(err, op, "failed to save challan")
	}
	return nil
}

func (s *Store) TransitionChallan(ctx context.Context, c *domain.Challan, from domain.ChallanStatus) error {
	const op = "store.transition_challan"

	n, err := s.q.TransitionChallanStatus(ctx, TransitionChallanStatusParams{
		ID:            c.ID,
		FromStatus:    string(from),
		ToStatus:      string(c.Status),
		PaymentDate:   domain.ToNullTime(c.PaymentDate),
		DisputeReason: domain.ToNullString(c.DisputeReason),
		DisputedAt:    domain.ToNullTime(c.DisputedAt),
		CancelledAt:   domain.ToNullTime(c.CancelledAt),
		UpdatedAt:     c.UpdatedAt,
	})
	if err != nil {
		return domain.Internal(err, op, "failed to update challan")
	}
	if n == 0 {
		return domain.Errorf(domain.ETRANSITION, op, "challan %s is no longer %s", c.Number, from)
	}
	return nil
}

func (s *Store) CountChallans(ctx context.Context, q domain.ChallanQuery) (int64, error) {
	n, err := s.q.CountChallans(ctx, filterParams(q))
	if err != nil {
		return 0, domain.Internal(err, "store.count_challans", "failed to count challans")
	}
	return n, nil
}

func (s *Store) ListChallans(ctx context.Context, q domain.ChallanQuery, limit, offset int) ([]domain.Challan, error) {
	const op = "store.list_challans"

	rows, err := s.q.ListChallans(ctx, ListChallansParams{
		ChallanFilterParams: filterParams(q),
		Limit:               int32(limit),
		Offset:              int32(offset),
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list challans")
	}

	out := make([]domain.Challan, 0, len(rows))
	for _, r := range rows {
		c, err := challanFromRow(r)
		if err != nil {
			return nil, domain.Internal(err, op, "failed to decode challan")
		}
		out = append(out, *c)
	}
	return out, nil
}

func (s *Store) SummarizeChallans(ctx context.Context, q domain.ChallanQuery) ([]domain.StatusSummary, error) {
	rows, err := s.q.SummarizeChallans(ctx, filterParams(q))
	if err != nil {
		return nil, domain.Internal(err, "store.summarize_challans", "failed to summarize challans")
	}
	out := make([]domain.StatusSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.StatusSummary{
			Status: domain.ChallanStatus(r.Status),
			Count:  r.Count,
			Total:  r.Total,
		})
	}
	return out, nil
}

func filterParams(q domain.ChallanQuery) ChallanFilterParams {
	var p ChallanFilterParams
	if q.CitizenID != nil {
		p.CitizenID = uuid.NullUUID{UUID: *q.CitizenID, Valid: true}
	}
	if q.OfficerID != nil {
		p.OfficerID = uuid.NullUUID{UUID: *q.OfficerID, Valid: true}
	}
	if q.Status != "" {
		p.Statuses = []string{string(q.Status)}
	}
	return p
}

func challanFromRow(r Challan) (*domain.Challan, error) {
	details, err := domain.UnmarshalDetails(domain.ViolationKind(r.Kind), r.Details)
	if err != nil {
		return nil, err
	}
	return &domain.Challan{
		ID:     r.ID,
		Number: r.Number,
		Violation: domain.Violation{
			VehicleNumber: r.VehicleNumber,
			Location:      r.Location,
			OccurredAt:    r.OccurredAt,
			OfficerID:     r.OfficerID,
			CitizenID:     r.CitizenID,
			Description:   r.Description,
			Details:       details,
		},
		Fine:          r.Fine,
		Status:        domain.ChallanStatus(r.Status),
		DueDate:       r.DueDate,
		PaymentDate:   domain.NullTimeValue(r.PaymentDate),
		DisputeReason: domain.NullStringValue(r.DisputeReason),
		DisputedAt:    domain.NullTimeValue(r.DisputedAt),
		CancelledAt:   domain.NullTimeValue(r.CancelledAt),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}, nil
}

// =============================================================================
// Payments
// =============================================================================

func (s *Store) FindPaymentByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	row, err := s.q.GetPaymentByID(ctx, id)
	if err != nil {
		return nil, mapErr(err, "store.find_payment", "payment", id.String())
	}
	return paymentFromRow(row), nil
}

func (s *Store) FindPaymentsByChallan(ctx context.Context, challanID uuid.UUID) ([]domain.Payment, error) {
	rows, err := s.q.ListPaymentsByChallan(ctx, challanID)
	if err != nil {
		return nil, domain.Internal(err, "store.find_payments", "failed to list payments")
	}
	out := make([]domain.Payment, 0, len(rows))
	for _, r := range rows {
		out = append(out, *paymentFromRow(r))
	}
	return out, nil
}

func (s *Store) SavePayment(ctx context.Context, p *domain.Payment) error {
	const op = "store.save_payment"

	err := s.q.CreatePayment(ctx, CreatePaymentParams{
		ID:              p.ID,
		TransactionID:   p.TransactionID,
		ChallanID:       p.ChallanID,
		UserID:          p.UserID,
		Amount:          p.Amount,
		Fee:             p.Fee,
		Method:          string(p.Method),
		Gateway:         p.Gateway,
		Status:          string(p.Status),
		ProcessedAt:     p.ProcessedAt,
		GatewayResponse: nullJSON(p.GatewayResponse),
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
		GatewayRef:      p.GatewayRef,
	})
	if err != nil {
		if isUniqueViolation(err) {
			// The partial unique index allows one completed payment per challan.
			return domain.Errorf(domain.ETRANSITION, op, "challan already has a completed payment")
		}
		return domain.Internal(err, op, "failed to save payment")
	}
	return nil
}

func (s *Store) UpdatePayment(ctx context.Context, p *domain.Payment, from domain.PaymentStatus) error {
	const op = "store.update_payment"

	var refundAmount decimal.NullDecimal
	if p.RefundAmount != nil {
		refundAmount = decimal.NullDecimal{Decimal: *p.RefundAmount, Valid: true}
	}

	n, err := s.q.UpdatePaymentStatus(ctx, UpdatePaymentStatusParams{
		ID:              p.ID,
		FromStatus:      string(from),
		ToStatus:        string(p.Status),
		RefundID:        domain.ToNullString(p.RefundID),
		RefundAmount:    refundAmount,
		RefundedAt:      domain.ToNullTime(p.RefundedAt),
		GatewayResponse: nullJSON(p.GatewayResponse),
		UpdatedAt:       p.UpdatedAt,
	})
	if err != nil {
		return domain.Internal(err, op, "failed to update payment")
	}
	if n == 0 {
		return domain.Errorf(domain.ETRANSITION, op, "payment %s is no longer %s", p.TransactionID, from)
	}
	return nil
}

func paymentFromRow(r Payment) *domain.Payment {
	p := &domain.Payment{
		ID:            r.ID,
		TransactionID: r.TransactionID,
		ChallanID:     r.ChallanID,
		UserID:        r.UserID,
		Amount:        r.Amount,
		Fee:           r.Fee,
		Method:        domain.PaymentMethod(r.Method),
		Gateway:       r.Gateway,
		GatewayRef:    r.GatewayRef,
		Status:        domain.PaymentStatus(r.Status),
		ProcessedAt:   r.ProcessedAt,
		RefundID:      domain.NullStringValue(r.RefundID),
		RefundedAt:    domain.NullTimeValue(r.RefundedAt),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if r.RefundAmount.Valid {
		amt := r.RefundAmount.Decimal
		p.RefundAmount = &amt
	}
	if r.GatewayResponse.Valid {
		p.GatewayResponse = r.GatewayResponse.RawMessage
	}
	return p
}

// =============================================================================
// Helpers
// =============================================================================

func nullJSON(raw []byte) pqtype.NullRawMessage {
	if len(raw) == 0 {
		return pqtype.NullRawMessage{}
	}
	return pqtype.NullRawMessage{RawMessage: raw, Valid: true}
}

func mapErr(err error, op, resource, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFound(op, resource, id)
	}
	return domain.Internal(err, op, fmt.Sprintf("failed to load %s", resource))
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

var _ domain.Store = (*Store)(nil)
