package notify

import (
	"context"
	"database/sql"

	"github.com/k1networth/issuetracker-lite/internal/shared/events"
)

const (
	statusProcessing = "processing"
	statusDone       = "done"
)

// Store records which events were already handled so redelivered Kafka
// messages are skipped.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// StartProcessing upserts the event row and bumps attempts. It returns false
// when the event is already done.
func (s *Store) StartProcessing(ctx context.Context, env events.Envelope) (bool, error) {
	const q = `
INSERT INTO processed_events (event_id, event_type, aggregate, aggregate_id, payload, status, attempts, updated_at)
VALUES ($1, $2, $3, $4, $5, 'processing', 1, now())
ON CONFLICT (event_id) DO UPDATE
SET attempts = processed_events.attempts + 1,
    updated_at = now()
RETURNING status;
`
	payload := []byte(env.Payload)
	if len(payload) == 0 {
		payload = []byte("null")
	}
	var status string
	err := s.db.QueryRowContext(ctx, q, env.EventID, env.EventType, env.Aggregate, env.AggregateID, payload).Scan(&status)
	if err != nil {
		return false, err
	}
	return status != statusDone, nil
}

func (s *Store) MarkDone(ctx context.Context, eventID string) error {
	const q = `
UPDATE processed_events
SET status = 'done', processed_at = now(), last_error = NULL, updated_at = now()
WHERE event_id = $1;
`
	_, err := s.db.ExecContext(ctx, q, eventID)
	return err
}

func (s *Store) MarkFailed(ctx context.Context, eventID string, errMsg string) error {
	const q = `
UPDATE processed_events
SET status = $2, last_error = $3, updated_at = now()
WHERE event_id = $1;
`
	_, err := s.db.ExecContext(ctx, q, eventID, statusProcessing, errMsg)
	return err
}
