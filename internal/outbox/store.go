package outbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/k1networth/issuetracker-lite/internal/shared/events"
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// Enqueue inserts a pending row. Re-enqueueing the same event id is a no-op.
func (s *Store) Enqueue(ctx context.Context, env events.Envelope) error {
	const q = `
INSERT INTO outbox (event_id, aggregate, aggregate_id, event_type, request_id, payload, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (event_id) DO NOTHING;
`
	occurred := env.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, q,
		env.EventID, env.Aggregate, env.AggregateID, env.EventType, env.RequestID, []byte(env.Payload), occurred,
	)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", env.EventType, err)
	}
	return nil
}

func (s *Store) ResetStuck(ctx context.Context, processingTimeout time.Duration) (int64, error) {
	if processingTimeout <= 0 {
		processingTimeout = 30 * time.Second
	}
	const q = `
UPDATE outbox
SET status = 'pending',
    processing_started_at = NULL,
    next_retry_at = now(),
    last_error = 'processing timeout',
    updated_at = now()
WHERE status = 'processing'
  AND processing_started_at IS NOT NULL
  AND processing_started_at < $1;
`
	res, err := s.db.ExecContext(ctx, q, time.Now().UTC().Add(-processingTimeout))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) ClaimPending(ctx context.Context, batchSize int) ([]Record, error) {
	if batchSize <= 0 {
		batchSize = 50
	}

	const q = `
WITH cte AS (
  SELECT id
  FROM outbox
  WHERE status = 'pending'
    AND next_retry_at <= now()
  ORDER BY created_at
  LIMIT $1
  FOR UPDATE SKIP LOCKED
)
UPDATE outbox o
SET status = 'processing',
    processing_started_at = now(),
    attempts = o.attempts + 1,
    updated_at = now()
FROM cte
WHERE o.id = cte.id
RETURNING o.id, o.event_id, o.aggregate, o.aggregate_id, o.event_type, o.request_id, o.payload, o.created_at, o.attempts;
`

	rows, err := s.db.QueryContext(ctx, q, batchSize)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Record
	for rows.Next() {
		var rec Record
		var payload []byte
		if err := rows.Scan(
			&rec.ID,
			&rec.EventID,
			&rec.Aggregate,
			&rec.AggregateID,
			&rec.EventType,
			&rec.RequestID,
			&payload,
			&rec.CreatedAt,
			&rec.Attempts,
		); err != nil {
			return nil, err
		}
		rec.Payload = payload
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) MarkSent(ctx context.Context, id int64) error {
	const q = `
UPDATE outbox
SET status = 'sent',
    sent_at = now(),
    processing_started_at = NULL,
    last_error = NULL,
    updated_at = now()
WHERE id = $1;
`
	_, err := s.db.ExecContext(ctx, q, id)
	return err
}

// MarkFailed returns the row to pending, to be claimed again at nextRetryAt.
func (s *Store) MarkFailed(ctx context.Context, id int64, nextRetryAt time.Time, errMsg string) error {
	const q = `
UPDATE outbox
SET status = 'pending',
    processing_started_at = NULL,
    next_retry_at = $2,
    last_error = $3,
    updated_at = now()
WHERE id = $1;
`
	_, err := s.db.ExecContext(ctx, q, id, nextRetryAt, errMsg)
	return err
}

// MarkDead parks a row that exhausted its attempts.
func (s *Store) MarkDead(ctx context.Context, id int64, errMsg string) error {
	const q = `
UPDATE outbox
SET status = 'dead',
    processing_started_at = NULL,
    last_error = $2,
    updated_at = now()
WHERE id = $1;
`
	_, err := s.db.ExecContext(ctx, q, id, errMsg)
	return err
}

func (s *Store) LagSeconds(ctx context.Context) (float64, error) {
	const q = `
SELECT EXTRACT(EPOCH FROM (now() - created_at))::float8
FROM outbox
WHERE status = 'pending'
ORDER BY created_at
LIMIT 1;
`
	var v sql.NullFloat64
	if err := s.db.QueryRowContext(ctx, q).Scan(&v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	if !v.Valid {
		return 0, nil
	}
	return v.Float64, nil
}
