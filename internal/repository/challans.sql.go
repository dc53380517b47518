package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const challanColumns = `id, number, kind, details, vehicle_number, location, occurred_at, description,
	officer_id, citizen_id, fine, status, due_date, payment_date, dispute_reason, disputed_at,
	cancelled_at, created_at, updated_at`

func scanChallan(row interface{ Scan(...interface{}) error }) (Challan, error) {
	var i Challan
	err := row.Scan(
		&i.ID,
		&i.Number,
		&i.Kind,
		&i.Details,
		&i.VehicleNumber,
		&i.Location,
		&i.OccurredAt,
		&i.Description,
		&i.OfficerID,
		&i.CitizenID,
		&i.Fine,
		&i.Status,
		&i.DueDate,
		&i.PaymentDate,
		&i.DisputeReason,
		&i.DisputedAt,
		&i.CancelledAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createChallan = `-- name: CreateChallan :exec
INSERT INTO challans (
	id, number, kind, details, vehicle_number, location, occurred_at, description,
	officer_id, citizen_id, fine, status, due_date, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
`

type CreateChallanParams struct {
	ID            uuid.UUID
	Number        string
	Kind          string
	Details       []byte
	VehicleNumber string
	Location      string
	OccurredAt    time.Time
	Description   string
	OfficerID     uuid.UUID
	CitizenID     uuid.UUID
	Fine          decimal.Decimal
	Status        string
	DueDate       time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (q *Queries) CreateChallan(ctx context.Context, arg CreateChallanParams) error {
	_, err := q.db.ExecContext(ctx, createChallan,
		arg.ID,
		arg.Number,
		arg.Kind,
		arg.Details,
		arg.VehicleNumber,
		arg.Location,
		arg.OccurredAt,
		arg.Description,
		arg.OfficerID,
		arg.CitizenID,
		arg.Fine,
		arg.Status,
		arg.DueDate,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return err
}

const getChallanByID = `-- name: GetChallanByID :one
SELECT ` + challanColumns + ` FROM challans WHERE id = $1
`

func (q *Queries) GetChallanByID(ctx context.Context, id uuid.UUID) (Challan, error) {
	return scanChallan(q.db.QueryRowContext(ctx, getChallanByID, id))
}

const transitionChallanStatus = `-- name: TransitionChallanStatus :execrows
UPDATE challans
SET status = $3,
	payment_date = $4,
	dispute_reason = $5,
	disputed_at = $6,
	cancelled_at = $7,
	updated_at = $8
WHERE id = $1 AND status = $2
`

type TransitionChallanStatusParams struct {
	ID            uuid.UUID
	FromStatus    string
	ToStatus      string
	PaymentDate   sql.NullTime
	DisputeReason sql.NullString
	DisputedAt    sql.NullTime
	CancelledAt   sql.NullTime
	UpdatedAt     time.Time
}

// TransitionChallanStatus returns the number of rows updated. Zero means
// the stored status was no longer FromStatus.
func (q *Queries) TransitionChallanStatus(ctx context.Context, arg TransitionChallanStatusParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, transitionChallanStatus,
		arg.ID,
		arg.FromStatus,
		arg.ToStatus,
		arg.PaymentDate,
		arg.DisputeReason,
		arg.DisputedAt,
		arg.CancelledAt,
		arg.UpdatedAt,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// challanFilter is shared by the list, count and summary queries. Null ids
// and an empty status list match everything.
const challanFilter = `
WHERE ($1::uuid IS NULL OR citizen_id = $1)
  AND ($2::uuid IS NULL OR officer_id = $2)
  AND (cardinality($3::text[]) = 0 OR status = ANY($3::text[]))
`

type ChallanFilterParams struct {
	CitizenID uuid.NullUUID
	OfficerID uuid.NullUUID
	Statuses  []string
}

func (f ChallanFilterParams) args() []interface{} {
	statuses := f.Statuses
	if statuses == nil {
		statuses = []string{}
	}
	return []interface{}{f.CitizenID, f.OfficerID, pq.Array(statuses)}
}

const countChallans = `-- name: CountChallans :one
SELECT COUNT(*) FROM challans` + challanFilter

func (q *Queries) CountChallans(ctx context.Context, arg ChallanFilterParams) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countChallans, arg.args()...).Scan(&count)
	return count, err
}

const listChallans = `-- name: ListChallans :many
SELECT ` + challanColumns + ` FROM challans` + challanFilter + `
ORDER BY created_at DESC
LIMIT $4 OFFSET $5
`

type ListChallansParams struct {
	ChallanFilterParams
	Limit  int32
	Offset int32
}

func (q *Queries) ListChallans(ctx context.Context, arg ListChallansParams) ([]Challan, error) {
	args := append(arg.args(), arg.Limit, arg.Offset)
	rows, err := q.db.QueryContext(ctx, listChallans, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Challan
	for rows.Next() {
		i, err := scanChallan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const summarizeChallans = `-- name: SummarizeChallans :many
SELECT status, COUNT(*), COALESCE(SUM(fine), 0) FROM challans` + challanFilter + `
GROUP BY status
ORDER BY status
`

func (q *Queries) SummarizeChallans(ctx context.Context, arg ChallanFilterParams) ([]StatusSummaryRow, error) {
	rows, err := q.db.QueryContext(ctx, summarizeChallans, arg.args()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []StatusSummaryRow
	for rows.Next() {
		var i StatusSummaryRow
		if err := rows.Scan(&i.Status, &i.Count, &i.Total); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
