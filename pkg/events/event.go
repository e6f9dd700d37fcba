package events

import (
	"context"
	"time"
)

const (
	TypeChatCompleted   = "CHAT_COMPLETED"
	TypeIngestRequested = "INGEST_REQUESTED"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "CHAT_COMPLETED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Publisher delivers events to the bus.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// NewChatCompleted describes one answered question. conversationID may be empty.
func NewChatCompleted(conversationID, mode string, tokens, sources int, duration time.Duration) BaseEvent {
	now := time.Now()
	return BaseEvent{
		Type: TypeChatCompleted,
		Data: map[string]interface{}{
			"conversation_id": conversationID,
			"mode":            mode,
			"tokens":          tokens,
			"sources":         sources,
			"duration_ms":     duration.Milliseconds(),
			"occurred_at":     now.Format(time.RFC3339),
		},
		OccurredAt: now,
	}
}

// NewIngestRequested asks a worker to (re)index the chapters under dir.
func NewIngestRequested(dir string, recreate bool) BaseEvent {
	now := time.Now()
	return BaseEvent{
		Type: TypeIngestRequested,
		Data: map[string]interface{}{
			"dir":         dir,
			"recreate":    recreate,
			"occurred_at": now.Format(time.RFC3339),
		},
		OccurredAt: now,
	}
}
