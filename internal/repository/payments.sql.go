package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sqlc-dev/pqtype"
)

const paymentColumns = `id, transaction_id, challan_id, user_id, amount, fee, method, gateway, status,
	processed_at, refund_id, refund_amount, refunded_at, gateway_response, created_at, updated_at, gateway_ref`

func scanPayment(row interface{ Scan(...interface{}) error }) (Payment, error) {
	var i Payment
	err := row.Scan(
		&i.ID,
		&i.TransactionID,
		&i.ChallanID,
		&i.UserID,
		&i.Amount,
		&i.Fee,
		&i.Method,
		&i.Gateway,
		&i.Status,
		&i.ProcessedAt,
		&i.RefundID,
		&i.RefundAmount,
		&i.RefundedAt,
		&i.GatewayResponse,
		&i.CreatedAt,
		&i.UpdatedAt,
		&i.GatewayRef,
	)
	return i, err
}

const createPayment = `-- name: CreatePayment :exec
INSERT INTO payments (
	id, transaction_id, challan_id, user_id, amount, fee, method, gateway, status,
	processed_at, gateway_response, created_at, updated_at, gateway_ref
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
`

type CreatePaymentParams struct {
	ID              uuid.UUID
	TransactionID   string
	ChallanID       uuid.UUID
	UserID          uuid.UUID
	Amount          decimal.Decimal
	Fee             decimal.Decimal
	Method          string
	Gateway         string
	Status          string
	ProcessedAt     time.Time
	GatewayResponse pqtype.NullRawMessage
	CreatedAt       time.Time
	UpdatedAt       time.Time
	GatewayRef      string
}

func (q *Queries) CreatePayment(ctx context.Context, arg CreatePaymentParams) error {
	_, err := q.db.ExecContext(ctx, createPayment,
		arg.ID,
		arg.TransactionID,
		arg.ChallanID,
		arg.UserID,
		arg.Amount,
		arg.Fee,
		arg.Method,
		arg.Gateway,
		arg.Status,
		arg.ProcessedAt,
		arg.GatewayResponse,
		arg.CreatedAt,
		arg.UpdatedAt,
		arg.GatewayRef,
	)
	return err
}

const getPaymentByID = `-- name: GetPaymentByID :one
SELECT ` + paymentColumns + ` FROM payments WHERE id = $1
`

func (q *Queries) GetPaymentByID(ctx context.Context, id uuid.UUID) (Payment, error) {
	return scanPayment(q.db.QueryRowContext(ctx, getPaymentByID, id))
}

const listPaymentsByChallan = `-- name: ListPaymentsByChallan :many
SELECT ` + paymentColumns + ` FROM payments WHERE challan_id = $1 ORDER BY created_at
`

func (q *Queries) ListPaymentsByChallan(ctx context.Context, challanID uuid.UUID) ([]Payment, error) {
	rows, err := q.db.QueryContext(ctx, listPaymentsByChallan, challanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Payment
	for rows.Next() {
		i, err := scanPayment(rows)
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

const updatePaymentStatus = `-- name: UpdatePaymentStatus :execrows
UPDATE payments
SET status = $3,
	refund_id = $4,
	refund_amount = $5,
	refunded_at = $6,
	gateway_response = $7,
	updated_at = $8
WHERE id = $1 AND status = $2
`

type UpdatePaymentStatusParams struct {
	ID              uuid.UUID
	FromStatus      string
	ToStatus        string
	RefundID        sql.NullString
	RefundAmount    decimal.NullDecimal
	RefundedAt      sql.NullTime
	GatewayResponse pqtype.NullRawMessage
	UpdatedAt       time.Time
}

// UpdatePaymentStatus returns the number of rows updated.
func (q *Queries) UpdatePaymentStatus(ctx context.Context, arg UpdatePaymentStatusParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updatePaymentStatus,
		arg.ID,
		arg.FromStatus,
		arg.ToStatus,
		arg.RefundID,
		arg.RefundAmount,
		arg.RefundedAt,
		arg.GatewayResponse,
		arg.UpdatedAt,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
