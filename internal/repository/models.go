package repository

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sqlc-dev/pqtype"
)

type User struct {
	ID          uuid.UUID
	Name        string
	Email       string
	Phone       sql.NullString
	Role        string
	BadgeNumber sql.NullString
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type UserGrant struct {
	UserID     uuid.UUID
	Capability string
	ExpiresAt  time.Time
}

type Challan struct {
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
	PaymentDate   sql.NullTime
	DisputeReason sql.NullString
	DisputedAt    sql.NullTime
	CancelledAt   sql.NullTime
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Payment struct {
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
	RefundID        sql.NullString
	RefundAmount    decimal.NullDecimal
	RefundedAt      sql.NullTime
	GatewayResponse pqtype.NullRawMessage
	CreatedAt       time.Time
	UpdatedAt       time.Time
	GatewayRef      string
}

type Job struct {
	ID           uuid.UUID
	JobType      string
	Payload      []byte
	Status       string
	Priority     int32
	Attempts     int32
	MaxAttempts  int32
	ScheduledAt  time.Time
	StartedAt    sql.NullTime
	CompletedAt  sql.NullTime
	ErrorMessage sql.NullString
	CreatedAt    time.Time
}

type StatusSummaryRow struct {
	Status string
	Count  int64
	Total  decimal.Decimal
}
