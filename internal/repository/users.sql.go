package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const userColumns = `id, name, email, phone, role, badge_number, created_at, updated_at`

func scanUser(row interface{ Scan(...interface{}) error }) (User, error) {
	var i User
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Email,
		&i.Phone,
		&i.Role,
		&i.BadgeNumber,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getUserByID = `-- name: GetUserByID :one
SELECT ` + userColumns + ` FROM users WHERE id = $1
`

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByID, id))
}

const getUserByEmail = `-- name: GetUserByEmail :one
SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)
`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByEmail, email))
}

const listActiveGrants = `-- name: ListActiveGrants :many
SELECT user_id, capability, expires_at
FROM user_grants
WHERE user_id = $1 AND expires_at > $2
ORDER BY capability
`

func (q *Queries) ListActiveGrants(ctx context.Context, userID uuid.UUID, now time.Time) ([]UserGrant, error) {
	rows, err := q.db.QueryContext(ctx, listActiveGrants, userID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []UserGrant
	for rows.Next() {
		var i UserGrant
		if err := rows.Scan(&i.UserID, &i.Capability, &i.ExpiresAt); err != nil {
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
