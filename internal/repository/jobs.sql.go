package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const jobColumns = `id, job_type, payload, status, priority, attempts, max_attempts, scheduled_at,
	started_at, completed_at, error_message, created_at`

func scanJob(row interface{ Scan(...interface{}) error }) (Job, error) {
	var i Job
	err := row.Scan(
		&i.ID,
		&i.JobType,
		&i.Payload,
		&i.Status,
		&i.Priority,
		&i.Attempts,
		&i.MaxAttempts,
		&i.ScheduledAt,
		&i.StartedAt,
		&i.CompletedAt,
		&i.ErrorMessage,
		&i.CreatedAt,
	)
	return i, err
}

const enqueueJob = `-- name: EnqueueJob :one
INSERT INTO jobs (job_type, payload, priority, max_attempts, scheduled_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + jobColumns

type EnqueueJobParams struct {
	JobType     string
	Payload     []byte
	Priority    int32
	MaxAttempts int32
	ScheduledAt time.Time
}

func (q *Queries) EnqueueJob(ctx context.Context, arg EnqueueJobParams) (Job, error) {
	row := q.db.QueryRowContext(ctx, enqueueJob,
		arg.JobType,
		arg.Payload,
		arg.Priority,
		arg.MaxAttempts,
		arg.ScheduledAt,
	)
	return scanJob(row)
}

// ClaimJob atomically picks the next due job and marks it running. Rows
// locked by other workers are skipped. Returns sql.ErrNoRows when idle.
const claimJob = `-- name: ClaimJob :one
UPDATE jobs
SET status = 'running', started_at = NOW(), attempts = attempts + 1
WHERE id = (
	SELECT id FROM jobs
	WHERE status = 'pending' AND scheduled_at <= NOW()
	ORDER BY priority DESC, scheduled_at
	LIMIT 1
	FOR UPDATE SKIP LOCKED
)
RETURNING ` + jobColumns

func (q *Queries) ClaimJob(ctx context.Context) (Job, error) {
	return scanJob(q.db.QueryRowContext(ctx, claimJob))
}

const completeJob = `-- name: CompleteJob :exec
UPDATE jobs SET status = 'completed', completed_at = NOW(), error_message = NULL WHERE id = $1
`

func (q *Queries) CompleteJob(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, completeJob, id)
	return err
}

// FailJob reschedules the job with exponential backoff (30s, 60s, 120s, ...)
// unless it is permanent or out of attempts, in which case it is failed.
const failJob = `-- name: FailJob :exec
UPDATE jobs
SET error_message = $2,
	status = CASE WHEN $3::boolean OR attempts >= max_attempts THEN 'failed' ELSE 'pending' END,
	completed_at = CASE WHEN $3::boolean OR attempts >= max_attempts THEN NOW() ELSE NULL END,
	scheduled_at = CASE WHEN $3::boolean OR attempts >= max_attempts THEN scheduled_at
		ELSE NOW() + (30 * power(2, attempts - 1)) * INTERVAL '1 second' END
WHERE id = $1
`

type FailJobParams struct {
	ID           uuid.UUID
	ErrorMessage sql.NullString
	Permanent    bool
}

func (q *Queries) FailJob(ctx context.Context, arg FailJobParams) error {
	_, err := q.db.ExecContext(ctx, failJob, arg.ID, arg.ErrorMessage, arg.Permanent)
	return err
}

const recoverStaleJobs = `-- name: RecoverStaleJobs :execrows
UPDATE jobs
SET status = 'pending', started_at = NULL
WHERE status = 'running' AND started_at < NOW() - ($1::float8 * INTERVAL '1 second')
`

func (q *Queries) RecoverStaleJobs(ctx context.Context, thresholdSeconds float64) (int64, error) {
	result, err := q.db.ExecContext(ctx, recoverStaleJobs, thresholdSeconds)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
