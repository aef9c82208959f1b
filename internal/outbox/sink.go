package outbox

import (
	"context"

	"github.com/k1networth/issuetracker-lite/internal/shared/events"
)

// Sink lets the issue service write its events into the outbox.
type Sink struct {
	Store *Store
}

func (s Sink) Publish(ctx context.Context, env events.Envelope) error {
	return s.Store.Enqueue(ctx, env)
}
