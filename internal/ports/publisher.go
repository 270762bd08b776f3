package ports

import (
	"context"
	"time"
)

// Event is one message on the process event bus.
type Event struct {
	// Topic routes the event to subscribers, e.g. "transport.data".
	Topic string

	// Payload is topic specific; subscribers type-assert it.
	Payload interface{}

	// At is when the event was produced.
	At time.Time
}

// Publisher posts events for other subsystems.
type Publisher interface {
	// Publish queues ev for delivery. It blocks until queued or ctx is done.
	Publish(ctx context.Context, ev Event) error
}
