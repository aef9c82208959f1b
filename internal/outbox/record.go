package outbox

import (
	"encoding/json"
	"time"

	"github.com/k1networth/issuetracker-lite/internal/shared/events"
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusSent       = "sent"
	StatusDead       = "dead"
)

// Record is one outbox row as claimed by the relay.
type Record struct {
	ID          int64
	EventID     string
	Aggregate   string
	AggregateID string
	EventType   string
	RequestID   string
	Payload     json.RawMessage
	CreatedAt   time.Time
	Attempts    int
}

// Envelope rebuilds the wire message published for the record.
func (r Record) Envelope() events.Envelope {
	return events.Envelope{
		EventID:     r.EventID,
		EventType:   r.EventType,
		OccurredAt:  r.CreatedAt.UTC(),
		Aggregate:   r.Aggregate,
		AggregateID: r.AggregateID,
		RequestID:   r.RequestID,
		Payload:     r.Payload,
	}
}
